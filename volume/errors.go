package volume

import "errors"

// Open/device-control failure kinds.
var (
	ErrNeedsElevation        = errors.New("volume: access denied, needs elevation")
	ErrUnsupportedFilesystem = errors.New("volume: not an NTFS filesystem")
	ErrIoFailure             = errors.New("volume: device control failed")
)
