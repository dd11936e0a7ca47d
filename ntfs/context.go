package ntfs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Velocidex/ntfsidx/volume"
)

// RecordBytesCap bounds how large a single MFT record read can be,
// guarding against a corrupt "allocated size" blowing up allocations.
const RecordBytesCap = 64 * 1024

// Context is the MFT reader: it issues per-record reads through a
// volume.Handle, applies fixups, and caches parsed records behind an LRU.
type Context struct {
	handle      *volume.Handle
	Volume      *VolumeData
	RecordBytes int64

	mu      sync.Mutex
	mftLRU  *LRU
}

// NewContext bootstraps a Context for MFT access, reading volume
// geometry through handle.
func NewContext(handle *volume.Handle, cacheSize int) (*Context, error) {
	volumeData, err := bootstrapVolumeData(handle)
	if err != nil {
		return nil, err
	}

	if volumeData.RecordBytes <= 0 || volumeData.RecordBytes > RecordBytesCap {
		return nil, fmt.Errorf("%w: implausible MFT record size %d", ErrMalformed, volumeData.RecordBytes)
	}

	DebugPrint("ntfs: volume geometry: %d clusters of %d bytes, MFT record %d bytes, index record %d bytes\n",
		volumeData.TotalClusters(), volumeData.ClusterBytes, volumeData.RecordBytes, volumeData.IndexRecordBytes)

	lru, err := NewLRU(cacheSize, nil, "ntfs.Context.mftLRU")
	if err != nil {
		return nil, err
	}

	return &Context{
		handle:      handle,
		Volume:      volumeData,
		RecordBytes: volumeData.RecordBytes,
		mftLRU:      lru,
	}, nil
}

// bootstrapVolumeData reads volume geometry via
// FSCTL_GET_NTFS_VOLUME_DATA, falling back to decoding the boot sector
// directly when that control code is unavailable (e.g. a filesystem
// driver that doesn't implement it).
func bootstrapVolumeData(handle *volume.Handle) (*VolumeData, error) {
	data, err := handle.GetVolumeData()
	if err == nil {
		return &VolumeData{
			BytesPerSector:    uint16(data.BytesPerSector),
			SectorsPerCluster: uint8(data.BytesPerCluster / uint32(data.BytesPerSector)),
			ClusterBytes:      int64(data.BytesPerCluster),
			TotalSectors:      data.NumberSectors,
			MFTStartLCN:       data.MftStartLcn,
			MFTMirrorLCN:      data.Mft2StartLcn,
			RecordBytes:       int64(data.BytesPerFileRecordSegment),
		}, nil
	}

	sector, sectorErr := handle.ReadBootSector()
	if sectorErr != nil {
		return nil, err
	}
	return ParseBootSector(sector)
}

// GetMFT returns the parsed, fixed-up MFT record for recordNumber,
// issuing FSCTL_GET_NTFS_FILE_RECORD and caching the result.
func (c *Context) GetMFT(recordNumber uint64) (*MFTRecord, error) {
	c.mu.Lock()
	if cached, ok := c.mftLRU.Get(int(recordNumber)); ok {
		c.mu.Unlock()
		return cached.(*MFTRecord), nil
	}
	c.mu.Unlock()

	raw, err := c.handle.ReadFileRecord(recordNumber, int(c.RecordBytes))
	if err != nil {
		return nil, err
	}

	record, err := ParseMFTRecord(raw)
	if err != nil {
		return nil, NewScanError(kindForDecodeError(err), NewFileReference(recordNumber, 0), err)
	}

	c.mu.Lock()
	c.mftLRU.Add(int(recordNumber), record)
	c.mu.Unlock()

	return record, nil
}

// ReadRange reads a contiguous span of record numbers, implemented over
// repeated GetMFT calls since the gateway has no native multi-record
// IOCTL.
func (c *Context) ReadRange(fromRecord uint64, count int) ([]*MFTRecord, []error) {
	records := make([]*MFTRecord, 0, count)
	var errs []error

	for i := 0; i < count; i++ {
		record, err := c.GetMFT(fromRecord + uint64(i))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, record)
	}

	return records, errs
}

// Purge drops all cached records; used by the follower before each poll
// so stale MFT data is never served after an applied change.
func (c *Context) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mftLRU.Purge()
}

// Close releases the underlying volume handle.
func (c *Context) Close() error {
	return c.handle.Close()
}

func kindForDecodeError(err error) ScanKind {
	switch {
	case errors.Is(err, ErrFixupMismatch):
		return KindFixupMismatch
	case errors.Is(err, ErrBadSignature):
		return KindBadSignature
	case errors.Is(err, ErrTruncated):
		return KindTruncated
	default:
		return KindMalformedField
	}
}
