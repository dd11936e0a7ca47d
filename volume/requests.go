package volume

import (
	"encoding/binary"
	"fmt"
)

// NTFSVolumeData is the decoded reply of FSCTL_GET_NTFS_VOLUME_DATA.
// Field offsets follow the Windows NTFS_VOLUME_DATA_BUFFER layout.
type NTFSVolumeData struct {
	VolumeSerialNumber            uint64
	NumberSectors                 int64
	TotalClusters                 int64
	FreeClusters                  int64
	BytesPerSector                uint32
	BytesPerCluster                uint32
	BytesPerFileRecordSegment      uint32
	ClustersPerFileRecordSegment   uint32
	MftStartLcn                   int64
	Mft2StartLcn                  int64
}

// GetVolumeData issues FSCTL_GET_NTFS_VOLUME_DATA.
func (h *Handle) GetVolumeData() (*NTFSVolumeData, error) {
	out, err := h.DeviceControl(FSCTLGetNTFSVolumeData, nil, 128)
	if err != nil {
		return nil, err
	}
	if len(out) < 80 {
		return nil, fmt.Errorf("%w: short NTFS_VOLUME_DATA_BUFFER reply", ErrIoFailure)
	}

	le := binary.LittleEndian
	return &NTFSVolumeData{
		VolumeSerialNumber:          le.Uint64(out[0:8]),
		NumberSectors:               int64(le.Uint64(out[8:16])),
		TotalClusters:               int64(le.Uint64(out[16:24])),
		FreeClusters:                int64(le.Uint64(out[24:32])),
		BytesPerSector:              le.Uint32(out[40:44]),
		BytesPerCluster:             le.Uint32(out[44:48]),
		BytesPerFileRecordSegment:   le.Uint32(out[48:52]),
		ClustersPerFileRecordSegment: le.Uint32(out[52:56]),
		MftStartLcn:                 int64(le.Uint64(out[64:72])),
		Mft2StartLcn:                int64(le.Uint64(out[72:80])),
	}, nil
}

// ReadFileRecord issues FSCTL_GET_NTFS_FILE_RECORD for one 48-bit record
// number, returning the fixup-armored raw record bytes.
func (h *Handle) ReadFileRecord(recordNumber uint64, recordBytes int) ([]byte, error) {
	in := make([]byte, 8)
	binary.LittleEndian.PutUint64(in, recordNumber)

	out, err := h.DeviceControl(FSCTLGetNTFSFileRecord, in, recordBytes+16)
	if err != nil {
		return nil, err
	}
	if len(out) < 16 {
		return nil, fmt.Errorf("%w: short NTFS_FILE_RECORD_OUTPUT_BUFFER reply", ErrIoFailure)
	}

	// FileReferenceNumber (8) + FileRecordLength (4, padded to 8) precede
	// FileRecordBuffer.
	length := binary.LittleEndian.Uint32(out[8:12])
	if int(length) > len(out)-16 {
		length = uint32(len(out) - 16)
	}
	return out[16 : 16+length], nil
}

// Extent is one entry of the retrieval-pointers reply.
type Extent struct {
	NextVCN int64
	LCN     int64 // -1 denotes a sparse extent.
}

// GetRetrievalPointers issues FSCTL_GET_RETRIEVAL_POINTERS starting at
// the given VCN.
func (h *Handle) GetRetrievalPointers(startingVCN int64) ([]Extent, error) {
	in := make([]byte, 8)
	binary.LittleEndian.PutUint64(in, uint64(startingVCN))

	out, err := h.DeviceControl(FSCTLGetRetrievalPointers, in, 4096)
	if err != nil {
		return nil, err
	}
	if len(out) < 16 {
		return nil, fmt.Errorf("%w: short RETRIEVAL_POINTERS_BUFFER reply", ErrIoFailure)
	}

	le := binary.LittleEndian
	extentCount := le.Uint32(out[0:4])

	extents := make([]Extent, 0, extentCount)
	offset := 16
	for i := uint32(0); i < extentCount; i++ {
		if offset+16 > len(out) {
			break
		}
		nextVCN := int64(le.Uint64(out[offset : offset+8]))
		lcn := int64(le.Uint64(out[offset+8 : offset+16]))
		extents = append(extents, Extent{NextVCN: nextVCN, LCN: lcn})
		offset += 16
	}

	return extents, nil
}

// EnumUSNData issues FSCTL_ENUM_USN_DATA, building the 28-byte
// MFT_ENUM_DATA_V1 input (start_file_reference_number u64, low_usn i64,
// high_usn i64, min_major_version u16, max_major_version u16) the V1
// IOCTL requires for Windows 8+'s V2/V3 USN record filtering. low_usn is
// always 0; highUSN is the journal's NextUSN at enumeration start.
// Returns the next cursor and the raw concatenated USN record bytes for
// the decoder (ntfs.NextUSNRecord) to walk.
func (h *Handle) EnumUSNData(startRecordNumber uint64, highUSN int64, minMajor, maxMajor uint16, bufferSize int) (nextRecordNumber uint64, records []byte, err error) {
	in := make([]byte, 28)
	le := binary.LittleEndian
	le.PutUint64(in[0:8], startRecordNumber)
	le.PutUint64(in[8:16], 0) // low_usn
	le.PutUint64(in[16:24], uint64(highUSN))
	le.PutUint16(in[24:26], minMajor)
	le.PutUint16(in[26:28], maxMajor)

	out, err := h.DeviceControl(FSCTLEnumUSNData, in, bufferSize)
	if err != nil {
		return 0, nil, err
	}
	if len(out) < 8 {
		// Fewer than the header bytes: iteration ends.
		return 0, nil, nil
	}

	nextRecordNumber = le.Uint64(out[0:8])
	return nextRecordNumber, out[8:], nil
}

// ReadUSNJournal issues FSCTL_READ_USN_JOURNAL for a follower's poll.
func (h *Handle) ReadUSNJournal(startUSN int64, reasonMask uint32, journalID uint64, bufferSize int) (nextUSN int64, records []byte, err error) {
	in := make([]byte, 32)
	le := binary.LittleEndian
	le.PutUint64(in[0:8], uint64(startUSN))
	le.PutUint32(in[8:12], reasonMask)
	le.PutUint32(in[12:16], 0) // ReturnOnlyOnClose = false
	le.PutUint64(in[16:24], 0) // Timeout
	le.PutUint64(in[24:32], uint64(0))
	// BytesToWaitFor and UsnJournalID are packed with journalID appended
	// below; widen the buffer to match READ_USN_JOURNAL_DATA_V0 exactly.
	in = append(in, make([]byte, 8)...)
	le.PutUint64(in[32:40], journalID)

	out, err := h.DeviceControl(FSCTLReadUSNJournal, in, bufferSize)
	if err != nil {
		return 0, nil, err
	}
	if len(out) < 8 {
		return 0, nil, nil
	}

	nextUSN = int64(le.Uint64(out[0:8]))
	return nextUSN, out[8:], nil
}

// USNJournalData is the decoded reply of FSCTL_QUERY_USN_JOURNAL.
type USNJournalData struct {
	JournalID    uint64
	FirstUSN     int64
	NextUSN      int64
	LowestValid  int64
	MaxUSN       int64
}

// QueryUSNJournal issues FSCTL_QUERY_USN_JOURNAL.
func (h *Handle) QueryUSNJournal() (*USNJournalData, error) {
	out, err := h.DeviceControl(FSCTLQueryUSNJournal, nil, 64)
	if err != nil {
		return nil, err
	}
	if len(out) < 40 {
		return nil, fmt.Errorf("%w: short USN_JOURNAL_DATA_V0 reply", ErrIoFailure)
	}

	le := binary.LittleEndian
	return &USNJournalData{
		JournalID:   le.Uint64(out[0:8]),
		FirstUSN:    int64(le.Uint64(out[8:16])),
		NextUSN:     int64(le.Uint64(out[16:24])),
		LowestValid: int64(le.Uint64(out[24:32])),
		MaxUSN:      int64(le.Uint64(out[32:40])),
	}, nil
}
