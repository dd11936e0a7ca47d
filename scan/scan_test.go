package scan

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Velocidex/ntfsidx/ntfs"
	"github.com/Velocidex/ntfsidx/volume"
)

func utf16Encode(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func buildUSNRecordV2(frn, parent uint64, usn int64, reason, attrs uint32, name string) []byte {
	nameUTF16 := utf16Encode(name)
	recordLen := 0x3C + len(nameUTF16)
	buf := make([]byte, recordLen)
	le := binary.LittleEndian

	le.PutUint32(buf[0x00:], uint32(recordLen))
	le.PutUint16(buf[0x04:], 2)
	le.PutUint64(buf[0x08:], frn)
	le.PutUint64(buf[0x10:], parent)
	le.PutUint64(buf[0x18:], uint64(usn))
	le.PutUint32(buf[0x28:], reason)
	le.PutUint32(buf[0x34:], attrs)
	le.PutUint16(buf[0x38:], uint16(len(nameUTF16)))
	le.PutUint16(buf[0x3A:], 0x3C)
	copy(buf[0x3C:], nameUTF16)
	return buf
}

func uint64ToBytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func syntheticVolumeDataReply() []byte {
	out := make([]byte, 128)
	le := binary.LittleEndian
	le.PutUint32(out[48:52], 1024)
	le.PutUint32(out[40:44], 512)
	le.PutUint32(out[44:48], 4096)
	return out
}

func buildResidentAttributeHeader(attrType uint32, content []byte) []byte {
	headerLen := 0x18
	total := headerLen + len(content)
	buf := make([]byte, total)
	le := binary.LittleEndian
	le.PutUint32(buf[0x00:], attrType)
	le.PutUint32(buf[0x04:], uint32(total))
	le.PutUint16(buf[0x0E:], 1)
	le.PutUint32(buf[0x10:], uint32(len(content)))
	le.PutUint16(buf[0x14:], uint16(headerLen))
	copy(buf[headerLen:], content)
	return buf
}

func syntheticFileNameContent(parent ntfs.FileReference, name string) []byte {
	utf16 := utf16Encode(name)
	buf := make([]byte, 0x42+len(utf16))
	le := binary.LittleEndian
	le.PutUint64(buf[0x00:], uint64(parent))
	buf[0x40] = byte(len([]rune(name)))
	buf[0x41] = 1
	copy(buf[0x42:], utf16)
	return buf
}

func syntheticDataAttribute(content []byte) []byte {
	return buildResidentAttributeHeader(ntfs.AttrTypeData, content)
}

func buildSyntheticMFTRecord(flags uint16, recordNumber uint32, attrs ...[]byte) []byte {
	buf := make([]byte, 1024)
	le := binary.LittleEndian

	copy(buf[0:4], "FILE")
	usaOffset := uint16(0x2A)
	le.PutUint16(buf[0x04:], usaOffset)
	le.PutUint16(buf[0x06:], 3)
	le.PutUint16(buf[0x16:], flags)
	le.PutUint32(buf[0x2C:], recordNumber)

	signature := [2]byte{0x11, 0x22}
	buf[usaOffset], buf[usaOffset+1] = signature[0], signature[1]
	buf[510], buf[511] = signature[0], signature[1]
	buf[1022], buf[1023] = signature[0], signature[1]

	attrOffset := uint16(0x38)
	le.PutUint16(buf[0x14:], attrOffset)
	offset := int(attrOffset)
	for _, attr := range attrs {
		copy(buf[offset:], attr)
		offset += len(attr)
	}
	le.PutUint32(buf[offset:], 0xFFFFFFFF)
	return buf
}

// fakeScanEnv answers every IOCTL a scan needs: the USN journal query
// and bulk enumerator, the volume-data bootstrap, and per-record MFT
// reads keyed by record number.
type fakeScanEnv struct {
	journalID  uint64
	usnReplies [][]byte
	usnCall    int
	mftRecords map[uint64][]byte
}

func (e *fakeScanEnv) deviceControl(code uint32, in []byte, outLen int) ([]byte, error) {
	switch code {
	case volume.FSCTLQueryUSNJournal:
		out := make([]byte, 64)
		binary.LittleEndian.PutUint64(out[0:8], e.journalID)
		return out, nil

	case volume.FSCTLEnumUSNData:
		if e.usnCall >= len(e.usnReplies) {
			return nil, nil
		}
		out := e.usnReplies[e.usnCall]
		e.usnCall++
		return out, nil

	case volume.FSCTLGetNTFSVolumeData:
		return syntheticVolumeDataReply(), nil

	case volume.FSCTLGetNTFSFileRecord:
		recordNumber := binary.LittleEndian.Uint64(in)
		record, ok := e.mftRecords[recordNumber]
		if !ok {
			record = buildSyntheticMFTRecord(0, uint32(recordNumber)) // not in use
		}
		out := make([]byte, 16+len(record))
		binary.LittleEndian.PutUint32(out[8:12], uint32(len(record)))
		copy(out[16:], record)
		return out, nil
	}
	return nil, nil
}

func TestRunUSNOnlyBuildsForestAndFiltersHidden(t *testing.T) {
	visible := buildUSNRecordV2(10, 5, 1, 0, 0, "visible.txt")
	hidden := buildUSNRecordV2(11, 5, 2, 0, FileAttributeHidden, "hidden.txt")
	batch := append(append([]byte{}, visible...), hidden...)

	env := &fakeScanEnv{
		journalID:  1,
		usnReplies: [][]byte{append(uint64ToBytes(100), batch...), {}},
	}
	handle := volume.NewFakeHandle('C', env.deviceControl)

	result, err := Run(context.Background(), handle, nil, Options{EnumerationSource: USNOnly}, nil)
	assert.NoError(t, err)

	_, ok := result.Forest.Lookup(ntfs.NewFileReference(10, 0))
	assert.True(t, ok)

	_, ok = result.Forest.Lookup(ntfs.NewFileReference(11, 0))
	assert.False(t, ok, "hidden record should be filtered out by default")

	assert.EqualValues(t, 1, result.Cursor.JournalID)
}

func TestRunUSNOnlyIncludesHiddenWhenRequested(t *testing.T) {
	hidden := buildUSNRecordV2(11, 5, 2, 0, FileAttributeHidden, "hidden.txt")

	env := &fakeScanEnv{
		journalID:  1,
		usnReplies: [][]byte{append(uint64ToBytes(100), hidden...), {}},
	}
	handle := volume.NewFakeHandle('C', env.deviceControl)

	result, err := Run(context.Background(), handle, nil, Options{EnumerationSource: USNOnly, IncludeHidden: true}, nil)
	assert.NoError(t, err)

	_, ok := result.Forest.Lookup(ntfs.NewFileReference(11, 0))
	assert.True(t, ok)
}

func TestRunMFTOnlyWalksRecordRange(t *testing.T) {
	fileName := buildResidentAttributeHeader(ntfs.AttrTypeFileName, syntheticFileNameContent(ntfs.NewFileReference(5, 0), "doc.txt"))
	data := syntheticDataAttribute([]byte("abc"))

	env := &fakeScanEnv{
		mftRecords: map[uint64][]byte{
			2: buildSyntheticMFTRecord(ntfs.MFTFlagInUse, 2, fileName, data),
		},
	}
	handle := volume.NewFakeHandle('C', env.deviceControl)

	mftCtx, err := ntfs.NewContext(handle, 16)
	assert.NoError(t, err)

	result, err := Run(context.Background(), handle, mftCtx, Options{EnumerationSource: MFTOnly, MaxRecordNumber: 2}, nil)
	assert.NoError(t, err)

	entry, ok := result.Forest.Lookup(ntfs.NewFileReference(2, 0))
	assert.True(t, ok)
	assert.Equal(t, "doc.txt", entry.Name)
	assert.EqualValues(t, 3, entry.LogicalSize)
}

func TestRunMFTOnlyAbortsPastFixupMismatchThreshold(t *testing.T) {
	mftRecords := make(map[uint64][]byte, 200)
	for i := uint64(0); i < 200; i++ {
		record := buildSyntheticMFTRecord(ntfs.MFTFlagInUse, uint32(i))
		if i < 4 {
			// Corrupt the sector trailer so ApplyFixups reports
			// FixupMismatch instead of a clean in-use record: 4/200 is
			// a 2% rate, past the 1% threshold.
			record[510] ^= 0xFF
		}
		mftRecords[i] = record
	}

	env := &fakeScanEnv{mftRecords: mftRecords}
	handle := volume.NewFakeHandle('C', env.deviceControl)

	mftCtx, err := ntfs.NewContext(handle, 256)
	assert.NoError(t, err)

	result, err := Run(context.Background(), handle, mftCtx, Options{EnumerationSource: MFTOnly, MaxRecordNumber: 199}, nil)
	assert.ErrorIs(t, err, ntfs.ErrCorruptVolume)
	assert.NotNil(t, result)
	assert.Greater(t, result.Forest.FixupMismatchRate(), 0.01)
}

func TestRunUSNAndMFTWithReadMFTSizesFillsSizes(t *testing.T) {
	created := buildUSNRecordV2(10, 5, 1, ntfs.UsnReasonFileCreate, 0, "sized.txt")

	fileName := buildResidentAttributeHeader(ntfs.AttrTypeFileName, syntheticFileNameContent(ntfs.NewFileReference(5, 0), "sized.txt"))
	data := syntheticDataAttribute([]byte("0123456789"))

	env := &fakeScanEnv{
		journalID:  1,
		usnReplies: [][]byte{append(uint64ToBytes(100), created...), {}},
		mftRecords: map[uint64][]byte{
			10: buildSyntheticMFTRecord(ntfs.MFTFlagInUse, 10, fileName, data),
		},
	}
	handle := volume.NewFakeHandle('C', env.deviceControl)

	mftCtx, err := ntfs.NewContext(handle, 16)
	assert.NoError(t, err)

	result, err := Run(context.Background(), handle, mftCtx, Options{
		EnumerationSource: USNAndMFT,
		ReadMFTSizes:      true,
		Parallelism:       1,
	}, nil)
	assert.NoError(t, err)

	entry, ok := result.Forest.Lookup(ntfs.NewFileReference(10, 0))
	assert.True(t, ok)
	assert.EqualValues(t, 10, entry.LogicalSize)
}
