package ntfs

import "fmt"

const sectorSize = 512

// ApplyFixups verifies and repairs the update-sequence array of a raw
// MFT (or index) record in place. The last two bytes of every 512-byte
// sector carry a copy of the expected USA value; the real trailing
// bytes are stashed in the USA table at usaOffset and must be written
// back before the record is safe to parse. word[0] of the USA table is
// the expected signature, words[1..] are the true per-sector bytes.
func ApplyFixups(buffer []byte, usaOffset, usaCount int) error {
	if usaCount == 0 {
		return nil
	}

	usaTableLen := usaCount * 2
	if usaOffset < 0 || usaOffset+usaTableLen > len(buffer) {
		return fmt.Errorf("%w: update sequence array out of bounds", ErrTruncated)
	}

	usaTable := buffer[usaOffset : usaOffset+usaTableLen]
	expected := [2]byte{usaTable[0], usaTable[1]}

	for i := 1; i < usaCount; i++ {
		sectorTrailer := i*sectorSize - 2
		if sectorTrailer+2 > len(buffer) {
			break
		}

		if buffer[sectorTrailer] != expected[0] || buffer[sectorTrailer+1] != expected[1] {
			return ErrFixupMismatch
		}

		original := usaTable[i*2 : i*2+2]
		buffer[sectorTrailer] = original[0]
		buffer[sectorTrailer+1] = original[1]
	}

	return nil
}
