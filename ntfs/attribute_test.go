package ntfs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildResidentAttribute lays out a minimal resident attribute header
// (spec.md §4.B) with the given content bytes.
func buildResidentAttribute(attrType uint32, content []byte) []byte {
	headerLen := 0x18
	total := headerLen + len(content)
	buf := make([]byte, total)
	le := binary.LittleEndian
	le.PutUint32(buf[0x00:], attrType)
	le.PutUint32(buf[0x04:], uint32(total))
	buf[0x08] = 0 // resident
	buf[0x09] = 0 // name length
	le.PutUint16(buf[0x0A:], 0)
	le.PutUint16(buf[0x0C:], 0) // flags
	le.PutUint16(buf[0x0E:], 1) // attribute id
	le.PutUint32(buf[0x10:], uint32(len(content)))
	le.PutUint16(buf[0x14:], uint16(headerLen))
	copy(buf[headerLen:], content)
	return buf
}

func TestParseResidentAttribute(t *testing.T) {
	content := []byte("hello")
	raw := buildResidentAttribute(AttrTypeData, content)

	attr, err := parseAttribute(raw)
	assert.NoError(t, err)
	assert.False(t, attr.NonResident)
	assert.True(t, attr.IsUnnamed())
	assert.Equal(t, content, attr.Content())

	logical, allocated := attr.Size()
	assert.EqualValues(t, len(content), logical)
	assert.EqualValues(t, len(content), allocated)
}

// encodeRun builds the run-list byte encoding of one run
// deterministically from a (length, signed-delta) pair, choosing
// minimal byte widths, mirroring the header-byte-per-run encoding
// DataRuns() decodes.
func encodeRun(length uint64, delta int64, hasOffset bool) []byte {
	lengthBytes := encodeUnsigned(length)
	var offsetBytes []byte
	if hasOffset {
		offsetBytes = encodeSigned(delta)
	}
	header := byte(len(lengthBytes)) | byte(len(offsetBytes))<<4
	out := []byte{header}
	out = append(out, lengthBytes...)
	out = append(out, offsetBytes...)
	return out
}

func encodeUnsigned(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var out []byte
	for v > 0 {
		out = append(out, byte(v))
		v >>= 8
	}
	return out
}

// encodeSigned picks the minimal little-endian two's-complement byte
// sequence that readLittleEndianSigned (sign-extending from the top bit
// of the last byte) would decode back to v.
func encodeSigned(v int64) []byte {
	for n := 1; n <= 8; n++ {
		b := make([]byte, n)
		for i := 0; i < n; i++ {
			b[i] = byte(v >> (8 * i))
		}
		if decodeSignExtended(b) == v {
			return b
		}
	}
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func decodeSignExtended(b []byte) int64 {
	padded := make([]byte, 8)
	copy(padded, b)
	if len(b) > 0 && b[len(b)-1]&0x80 != 0 {
		for i := len(b); i < 8; i++ {
			padded[i] = 0xFF
		}
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(padded[i])
	}
	return int64(v)
}

func TestDataRunsDecodeSimpleRun(t *testing.T) {
	runBytes := encodeRun(10, 100, true)
	runBytes = append(runBytes, 0) // terminator

	header := make([]byte, 0x40)
	le := binary.LittleEndian
	header[0x08] = 1 // non-resident
	le.PutUint64(header[0x28:], 10*4096) // allocated size
	le.PutUint64(header[0x30:], 40000)   // real size
	le.PutUint16(header[0x20:], uint16(len(header)))
	raw := append(header, runBytes...)
	le.PutUint32(raw[0x00:], AttrTypeData)
	le.PutUint32(raw[0x04:], uint32(len(raw)))

	attr, err := parseAttribute(raw)
	assert.NoError(t, err)
	assert.True(t, attr.NonResident)

	runs, err := attr.DataRuns()
	assert.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.EqualValues(t, 10, runs[0].ClusterCount)
	assert.EqualValues(t, 100, runs[0].LCN)
	assert.False(t, runs[0].Sparse)

	assert.EqualValues(t, 10, SumDataRunClusters(runs))
}

func TestDataRunsSparseRun(t *testing.T) {
	runBytes := encodeRun(50, 0, false)
	runBytes = append(runBytes, 0)

	header := make([]byte, 0x40)
	le := binary.LittleEndian
	header[0x08] = 1
	le.PutUint16(header[0x20:], uint16(len(header)))
	raw := append(header, runBytes...)
	le.PutUint32(raw[0x00:], AttrTypeData)
	le.PutUint32(raw[0x04:], uint32(len(raw)))

	attr, err := parseAttribute(raw)
	assert.NoError(t, err)

	runs, err := attr.DataRuns()
	assert.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.True(t, runs[0].Sparse)
	assert.EqualValues(t, 0, SumDataRunClusters(runs))
}

func TestDataRunsNegativeDelta(t *testing.T) {
	first := encodeRun(5, 200, true)
	second := encodeRun(5, -50, true)
	runBytes := append(first, second...)
	runBytes = append(runBytes, 0)

	header := make([]byte, 0x40)
	le := binary.LittleEndian
	header[0x08] = 1
	le.PutUint16(header[0x20:], uint16(len(header)))
	raw := append(header, runBytes...)
	le.PutUint32(raw[0x00:], AttrTypeData)
	le.PutUint32(raw[0x04:], uint32(len(raw)))

	attr, err := parseAttribute(raw)
	assert.NoError(t, err)

	runs, err := attr.DataRuns()
	assert.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.EqualValues(t, 200, runs[0].LCN)
	assert.EqualValues(t, 150, runs[1].LCN)
}

func TestResidentAttributeOutOfBoundsContent(t *testing.T) {
	raw := buildResidentAttribute(AttrTypeData, []byte("x"))
	binary.LittleEndian.PutUint32(raw[0x10:], 0xFFFF) // content size lies
	_, err := parseAttribute(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}
