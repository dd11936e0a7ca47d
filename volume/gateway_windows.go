//go:build windows

package volume

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// winHandle is the Windows implementation of rawHandle, opening
// \\.\<letter>: with CreateFile and issuing requests through
// DeviceIoControl.
type winHandle struct {
	fd windows.Handle
}

func openRaw(letter byte) (rawHandle, error) {
	path := fmt.Sprintf(`\\.\%c:`, letter)
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}

	fd, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		if err == windows.ERROR_ACCESS_DENIED {
			return nil, ErrNeedsElevation
		}
		return nil, fmt.Errorf("volume: CreateFile %s: %w", path, err)
	}

	return &winHandle{fd: fd}, nil
}

func (h *winHandle) deviceControl(code uint32, in []byte, outLen int) ([]byte, int, error) {
	out := make([]byte, outLen)

	var bytesReturned uint32
	err := windows.DeviceIoControl(
		h.fd,
		code,
		sliceOrNil(in),
		uint32(len(in)),
		sliceOrNil(out),
		uint32(outLen),
		&bytesReturned,
		nil,
	)
	if err != nil {
		if err == windows.ERROR_INVALID_FUNCTION {
			return nil, 0, ErrUnsupportedFilesystem
		}
		return nil, 0, err
	}

	return out, int(bytesReturned), nil
}

// readSector0 reads the volume's boot sector via an overlapped read at
// offset 0, leaving the handle's file pointer untouched.
func (h *winHandle) readSector0() ([]byte, error) {
	buf := make([]byte, 512)
	var bytesRead uint32
	overlapped := &windows.Overlapped{}
	if err := windows.ReadFile(h.fd, buf, &bytesRead, overlapped); err != nil {
		return nil, err
	}
	return buf[:bytesRead], nil
}

func (h *winHandle) close() error {
	return windows.CloseHandle(h.fd)
}

func sliceOrNil(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}
