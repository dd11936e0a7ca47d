package ntfs

import "fmt"

// VolumeData holds the volume geometry the MFT reader and gateway need:
// cluster size, MFT start LCN, and bytes per record. Populated either
// from the FSCTL_GET_NTFS_VOLUME_DATA reply or, as a fallback, by
// decoding the boot sector directly.
type VolumeData struct {
	BytesPerSector   uint16
	SectorsPerCluster uint8
	ClusterBytes     int64
	TotalSectors     int64
	MFTStartLCN      int64
	MFTMirrorLCN     int64
	RecordBytes      int64
	IndexRecordBytes int64
}

// ParseBootSector decodes the first 512 bytes of an NTFS volume using
// the standard NTFS boot-sector field layout.
func ParseBootSector(b []byte) (*VolumeData, error) {
	if len(b) < 512 {
		return nil, ErrTruncated
	}

	signature, ok := readUint16(b, 0x1FE)
	if !ok || signature != 0xaa55 {
		return nil, ErrBadSignature
	}

	bytesPerSector, _ := readUint16(b, 0x0B)
	sectorsPerCluster := b[0x0D]
	totalSectors, _ := readUint64(b, 0x28)
	mftCluster, _ := readUint64(b, 0x30)
	mftMirrorCluster, _ := readUint64(b, 0x38)
	clustersPerRecord, _ := readInt8(b, 0x40)
	clustersPerIndex, _ := readInt8(b, 0x44)

	v := &VolumeData{
		BytesPerSector:    bytesPerSector,
		SectorsPerCluster: sectorsPerCluster,
		TotalSectors:      int64(totalSectors),
		MFTStartLCN:       int64(mftCluster),
		MFTMirrorLCN:      int64(mftMirrorCluster),
	}
	v.ClusterBytes = int64(sectorsPerCluster) * int64(bytesPerSector)
	v.RecordBytes = recordOrIndexSize(clustersPerRecord, v.ClusterBytes)
	v.IndexRecordBytes = recordOrIndexSize(clustersPerIndex, v.ClusterBytes)

	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// recordOrIndexSize implements the "clusters per record" encoding shared
// by $MFT records and index records: a positive byte is a cluster
// multiplier, a negative byte n means the record is 2^(-n) bytes,
// independent of cluster size.
func recordOrIndexSize(clustersPerRecord int8, clusterBytes int64) int64 {
	if clustersPerRecord > 0 {
		return int64(clustersPerRecord) * clusterBytes
	}
	return 1 << uint32(-clustersPerRecord)
}

func (v *VolumeData) Validate() error {
	switch v.ClusterBytes {
	case 0x200, 0x400, 0x800, 0x1000, 0x2000, 0x4000, 0x8000, 0x10000:
		// ok
	default:
		return fmt.Errorf("%w: invalid cluster size %#x", ErrMalformed, v.ClusterBytes)
	}

	if v.BytesPerSector == 0 || v.BytesPerSector%512 != 0 {
		return fmt.Errorf("%w: invalid sector size", ErrMalformed)
	}

	if v.TotalSectors == 0 {
		return fmt.Errorf("%w: volume size is 0", ErrMalformed)
	}

	return nil
}

func (v *VolumeData) TotalClusters() int64 {
	return v.TotalSectors * int64(v.BytesPerSector) / v.ClusterBytes
}
