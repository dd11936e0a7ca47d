package ntfs

import "errors"

// Error kinds raised by the decoder and reader layers, kept as plain
// sentinel values rather than a wrapping library.
var (
	ErrTruncated    = errors.New("ntfs: truncated record")
	ErrBadSignature = errors.New("ntfs: bad signature")
	ErrMalformed    = errors.New("ntfs: malformed field")
	ErrFixupMismatch = errors.New("ntfs: fixup mismatch")

	ErrNeedsElevation        = errors.New("ntfs: needs elevation")
	ErrUnsupportedFilesystem = errors.New("ntfs: unsupported filesystem")
	ErrStaleUpdate           = errors.New("ntfs: stale update")
	ErrJournalReset          = errors.New("ntfs: journal reset")
	ErrCancelled             = errors.New("ntfs: cancelled")

	// Not in use / extension records are not errors but are reported
	// through this sentinel so callers can Is() against it when a
	// record is intentionally skipped rather than faulty.
	ErrRecordNotInUse       = errors.New("ntfs: record not in use")
	ErrExtensionRecord      = errors.New("ntfs: extension record")
	ErrAttributeListTooDeep = errors.New("ntfs: attribute list spans records, size unknown")

	// ErrCorruptVolume is raised by the scan orchestrator when the
	// fixup-mismatch rate crosses its abort threshold.
	ErrCorruptVolume = errors.New("ntfs: fixup mismatch rate exceeds 1%, volume treated as corrupt")
)

// ScanKind classifies a *ScanError for callers that need to branch on it
// without string matching.
type ScanKind int

const (
	KindUnknown ScanKind = iota
	KindNeedsElevation
	KindUnsupportedFilesystem
	KindIoFailure
	KindTruncated
	KindBadSignature
	KindMalformedField
	KindFixupMismatch
	KindStaleUpdate
	KindJournalReset
	KindCancelled
)

// ScanError carries the offending FRN when available, so callers can
// report which record a fault came from.
type ScanError struct {
	Kind ScanKind
	FRN  FileReference
	Err  error
}

func (e *ScanError) Error() string {
	if e.Err == nil {
		return "ntfs: scan error"
	}
	return e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

func NewScanError(kind ScanKind, frn FileReference, err error) *ScanError {
	return &ScanError{Kind: kind, FRN: frn, Err: err}
}
