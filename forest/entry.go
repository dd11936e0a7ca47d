package forest

import (
	"time"

	"github.com/Velocidex/ntfsidx/ntfs"
)

// Entry is one node of the in-memory forest.
type Entry struct {
	FRN       ntfs.FileReference
	ParentFRN ntfs.FileReference
	Name      string

	IsDirectory bool
	Attributes  uint32

	LogicalSize   uint64
	AllocatedSize uint64

	// DiagnosticAllocatedSize is the data-run cluster-count sum, kept
	// alongside the canonical attribute-level AllocatedSize rather than
	// replacing it, since sparse and compressed runs make the two
	// diverge.
	DiagnosticAllocatedSize uint64

	Created     uint64
	Modified    uint64
	Accessed    uint64
	MFTChanged  uint64

	// FileCount/DirCount are subtree aggregates rolled up alongside the
	// sizes.
	FileCount uint64
	DirCount  uint64

	Children []ntfs.FileReference

	// SizeUnknown flags a record whose size could not be determined:
	// its attribute list spans multiple MFT records (flagged rather than
	// chased into the extension record), its attribute walk stopped on a
	// malformed attribute, or no $FILE_NAME attribute decoded.
	SizeUnknown bool
}

func (e *Entry) CreatedTime() time.Time    { return ntfs.FiletimeToTime(e.Created) }
func (e *Entry) ModifiedTime() time.Time   { return ntfs.FiletimeToTime(e.Modified) }
func (e *Entry) AccessedTime() time.Time   { return ntfs.FiletimeToTime(e.Accessed) }
func (e *Entry) MFTChangedTime() time.Time { return ntfs.FiletimeToTime(e.MFTChanged) }

// IsRoot reports whether this entry is its own parent.
func (e *Entry) IsRoot() bool {
	return e.ParentFRN == e.FRN
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Children = append([]ntfs.FileReference(nil), e.Children...)
	return &c
}
