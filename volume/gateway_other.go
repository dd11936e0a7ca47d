//go:build !windows

package volume

// Non-Windows stub: the device-control interface this package targets
// is Windows-specific. Opening always reports UnsupportedFilesystem so
// callers fail fast instead of hanging on a platform with no NTFS
// gateway.
type stubHandle struct{}

func openRaw(letter byte) (rawHandle, error) {
	return nil, ErrUnsupportedFilesystem
}

func (h *stubHandle) deviceControl(code uint32, in []byte, outLen int) ([]byte, int, error) {
	return nil, 0, ErrUnsupportedFilesystem
}

func (h *stubHandle) readSector0() ([]byte, error) {
	return nil, ErrUnsupportedFilesystem
}

func (h *stubHandle) close() error {
	return nil
}
