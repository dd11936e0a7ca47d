package volume

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVolumeData(t *testing.T) {
	reply := make([]byte, 80)
	le := binary.LittleEndian
	le.PutUint64(reply[0:8], 0xdeadbeef)
	le.PutUint64(reply[8:16], 1000)
	le.PutUint64(reply[16:24], 2000)
	le.PutUint64(reply[24:32], 1500)
	le.PutUint32(reply[40:44], 512)
	le.PutUint32(reply[44:48], 4096)
	le.PutUint32(reply[48:52], 1024)
	le.PutUint32(reply[52:56], 0)
	le.PutUint64(reply[64:72], 786432)
	le.PutUint64(reply[72:80], 1572864)

	h := NewFakeHandle('C', func(code uint32, in []byte, outLen int) ([]byte, error) {
		assert.Equal(t, FSCTLGetNTFSVolumeData, code)
		return reply, nil
	})

	data, err := h.GetVolumeData()
	assert.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), data.VolumeSerialNumber)
	assert.EqualValues(t, 1000, data.NumberSectors)
	assert.EqualValues(t, 512, data.BytesPerSector)
	assert.EqualValues(t, 4096, data.BytesPerCluster)
	assert.EqualValues(t, 1024, data.BytesPerFileRecordSegment)
	assert.EqualValues(t, 786432, data.MftStartLcn)
	assert.EqualValues(t, 1572864, data.Mft2StartLcn)
}

func TestReadFileRecord(t *testing.T) {
	recordBody := []byte("FILE0123456789recordbytes")
	header := make([]byte, 16)
	binary.LittleEndian.PutUint64(header[0:8], 5)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(recordBody)))

	reply := append(header, recordBody...)

	h := NewFakeHandle('C', func(code uint32, in []byte, outLen int) ([]byte, error) {
		assert.Equal(t, FSCTLGetNTFSFileRecord, code)
		assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(in))
		return reply, nil
	})

	out, err := h.ReadFileRecord(5, 1024)
	assert.NoError(t, err)
	assert.Equal(t, recordBody, out)
}

func TestEnumUSNDataBuildsMftEnumDataV1Layout(t *testing.T) {
	h := NewFakeHandle('C', func(code uint32, in []byte, outLen int) ([]byte, error) {
		assert.Equal(t, FSCTLEnumUSNData, code)
		assert.Len(t, in, 28)

		le := binary.LittleEndian
		assert.EqualValues(t, 7, le.Uint64(in[0:8]), "start_file_reference_number")
		assert.EqualValues(t, 0, int64(le.Uint64(in[8:16])), "low_usn")
		assert.EqualValues(t, 54321, int64(le.Uint64(in[16:24])), "high_usn")
		assert.EqualValues(t, 2, le.Uint16(in[24:26]), "min_major_version")
		assert.EqualValues(t, 3, le.Uint16(in[26:28]), "max_major_version")
		return nil, nil
	})

	_, _, err := h.EnumUSNData(7, 54321, 2, 3, 4096)
	assert.NoError(t, err)
}

func TestEnumUSNDataEmptyEndsIteration(t *testing.T) {
	h := NewFakeHandle('C', func(code uint32, in []byte, outLen int) ([]byte, error) {
		return nil, nil
	})

	next, records, err := h.EnumUSNData(0, 0, 2, 3, 4096)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), next)
	assert.Nil(t, records)
}

func TestQueryUSNJournal(t *testing.T) {
	reply := make([]byte, 40)
	le := binary.LittleEndian
	le.PutUint64(reply[0:8], 99)
	le.PutUint64(reply[8:16], 100)
	le.PutUint64(reply[16:24], 200)
	le.PutUint64(reply[24:32], 50)
	le.PutUint64(reply[32:40], 9999)

	h := NewFakeHandle('C', func(code uint32, in []byte, outLen int) ([]byte, error) {
		return reply, nil
	})

	data, err := h.QueryUSNJournal()
	assert.NoError(t, err)
	assert.Equal(t, uint64(99), data.JournalID)
	assert.EqualValues(t, 100, data.FirstUSN)
	assert.EqualValues(t, 200, data.NextUSN)
}

func TestDeviceControlOnClosedHandleFails(t *testing.T) {
	h := NewFakeHandle('C', func(code uint32, in []byte, outLen int) ([]byte, error) {
		return []byte{1}, nil
	})
	assert.NoError(t, h.Close())

	_, err := h.DeviceControl(FSCTLGetNTFSVolumeData, nil, 8)
	assert.Error(t, err)
}
