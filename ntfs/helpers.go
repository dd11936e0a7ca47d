package ntfs

import (
	"encoding/binary"
	"time"
	"unicode/utf16"
)

// windowsEpochDelta is the number of 100-ns intervals between the Windows
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const windowsEpochDelta = 116444736000000000

// FiletimeToTime converts a raw 64-bit Windows FILETIME (100-ns intervals
// since 1601-01-01) into a time.Time.
func FiletimeToTime(filetime uint64) time.Time {
	if filetime < windowsEpochDelta {
		return time.Time{}
	}
	unixNano := int64(filetime-windowsEpochDelta) * 100
	return time.Unix(0, unixNano).UTC()
}

// ParseUTF16String decodes a little-endian UTF-16 byte slice, stopping at
// the first NUL code unit if one is present before the slice ends.
func ParseUTF16String(b []byte) string {
	u16 := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		v := binary.LittleEndian.Uint16(b[i : i+2])
		if v == 0 {
			break
		}
		u16 = append(u16, v)
	}
	return string(utf16.Decode(u16))
}

func readUint16(b []byte, offset int) (uint16, bool) {
	if offset < 0 || offset+2 > len(b) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[offset : offset+2]), true
}

func readUint32(b []byte, offset int) (uint32, bool) {
	if offset < 0 || offset+4 > len(b) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[offset : offset+4]), true
}

func readUint64(b []byte, offset int) (uint64, bool) {
	if offset < 0 || offset+8 > len(b) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b[offset : offset+8]), true
}

func readInt8(b []byte, offset int) (int8, bool) {
	if offset < 0 || offset >= len(b) {
		return 0, false
	}
	return int8(b[offset]), true
}
