package scan

import "runtime"

// EnumerationSource selects which of the USN enumerator / MFT reader
// feed the scan.
type EnumerationSource int

const (
	// USNOnly streams the USN journal's enumeration records directly
	// into the forest; sizes stay zero since the USN record carries no
	// $DATA attribute.
	USNOnly EnumerationSource = iota
	// USNAndMFT seeds the forest from USN enumeration, then a worker
	// pool re-reads every non-directory record's MFT data for
	// sizes/timestamps/confirmed name.
	USNAndMFT
	// MFTOnly walks read_range directly over the $MFT record-number
	// space, for volumes whose USN journal is disabled or absent.
	MFTOnly
)

// FileAttributeHidden and FileAttributeSystem are the Windows
// FILE_ATTRIBUTE_* bits scan filtering checks against.
const (
	FileAttributeHidden uint32 = 0x2
	FileAttributeSystem uint32 = 0x4
)

// Options configures a scan run.
type Options struct {
	IncludeHidden bool
	IncludeSystem bool
	ReadMFTSizes  bool
	Parallelism   int

	EnumerationSource EnumerationSource

	// MaxRecordNumber bounds an MFTOnly walk, since the gateway (unlike
	// a local $MFT file handle) has no cheap way to learn the MFT's
	// current record count up front; callers of MFTOnly must supply a
	// bound (e.g. from a prior full-volume scan, or VolumeData's
	// cluster count as a conservative over-estimate).
	MaxRecordNumber uint64

	// EnumerateBufferBytes and ProgressEvery override the enumerator
	// reply buffer size and the record interval between progress log
	// lines; zero picks the package defaults.
	EnumerateBufferBytes int
	ProgressEvery        uint64
}

func (o Options) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

func (o Options) progressEvery() uint64 {
	if o.ProgressEvery > 0 {
		return o.ProgressEvery
	}
	return 100000
}
