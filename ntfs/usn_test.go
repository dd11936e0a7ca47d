package ntfs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildUSNRecordV2(frn, parent uint64, usn int64, reason uint32, name string) []byte {
	nameUTF16 := utf16Encode(name)
	recordLen := 0x3C + len(nameUTF16)
	buf := make([]byte, recordLen)
	le := binary.LittleEndian

	le.PutUint32(buf[0x00:], uint32(recordLen))
	le.PutUint16(buf[0x04:], 2)
	le.PutUint16(buf[0x06:], 0)
	le.PutUint64(buf[0x08:], frn)
	le.PutUint64(buf[0x10:], parent)
	le.PutUint64(buf[0x18:], uint64(usn))
	le.PutUint32(buf[0x28:], reason)
	le.PutUint16(buf[0x38:], uint16(len(nameUTF16)))
	le.PutUint16(buf[0x3A:], 0x3C)
	copy(buf[0x3C:], nameUTF16)

	return buf
}

func utf16Encode(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestParseUSNRecordV2(t *testing.T) {
	buf := buildUSNRecordV2(100, 5, 12345, UsnReasonFileCreate, "foo.txt")

	rec, err := ParseUSNRecord(buf)
	assert.NoError(t, err)
	assert.EqualValues(t, 100, rec.FileReference.RecordNumber())
	assert.EqualValues(t, 5, rec.ParentFRN.RecordNumber())
	assert.EqualValues(t, 12345, rec.USN)
	assert.Equal(t, "foo.txt", rec.FileName)
	assert.True(t, rec.HasReason(UsnReasonFileCreate))
	assert.False(t, rec.HasReason(UsnReasonFileDelete))
	assert.True(t, rec.Validate())
}

func TestParseUSNRecordUnsupportedVersion(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0x00:], 16)
	binary.LittleEndian.PutUint16(buf[0x04:], 9)
	_, err := ParseUSNRecord(buf)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNextUSNRecordSkipsNullPadding(t *testing.T) {
	rec1 := buildUSNRecordV2(1, 5, 10, UsnReasonFileCreate, "a.txt")
	padding := make([]byte, 8)
	rec2 := buildUSNRecordV2(2, 5, 11, UsnReasonFileDelete, "b.txt")

	buf := append(append(rec1, padding...), rec2...)

	first, offset, err := NextUSNRecord(buf, 0, len(buf))
	assert.NoError(t, err)
	assert.EqualValues(t, 1, first.FileReference.RecordNumber())

	second, _, err := NextUSNRecord(buf, offset, len(buf))
	assert.NoError(t, err)
	assert.EqualValues(t, 2, second.FileReference.RecordNumber())
}

func TestNextUSNRecordExhausted(t *testing.T) {
	buf := make([]byte, 16)
	rec, _, err := NextUSNRecord(buf, 0, len(buf))
	assert.NoError(t, err)
	assert.Nil(t, rec)
}
