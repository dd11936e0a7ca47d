package volume

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handle is a raw block-device handle to one NTFS volume. Calls against
// one Handle are serialised by mu; callers that want concurrency (the
// MFT reader's worker pool) open one Handle per worker rather than
// share one.
type Handle struct {
	letter byte
	raw    rawHandle
	mu     sync.Mutex
	closed bool
}

// Open opens a raw device handle to the given drive letter (e.g. 'C').
// An access-denied failure is reported as ErrNeedsElevation, and on
// non-Windows platforms Open always returns ErrUnsupportedFilesystem;
// other open failures are returned as wrapped OS errors.
func Open(letter byte) (*Handle, error) {
	raw, err := openRaw(letter)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"letter": string(letter),
			"error":  err,
		}).Warn("volume: failed to open device handle")
		return nil, err
	}

	return &Handle{letter: letter, raw: raw}, nil
}

func (h *Handle) Letter() byte {
	return h.letter
}

// DeviceControl issues one device-control request and returns the output
// buffer truncated to the bytes actually written.
func (h *Handle) DeviceControl(code uint32, in []byte, outLen int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("volume: device control on closed handle")
	}

	out, n, err := h.raw.deviceControl(code, in, outLen)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"letter": string(h.letter),
			"code":   fmt.Sprintf("%#x", code),
			"error":  err,
		}).Warn("volume: device control failed")
		return nil, fmt.Errorf("%w: code %#x: %v", ErrIoFailure, code, err)
	}

	return out[:n], nil
}

// ReadBootSector reads the raw first 512 bytes of the volume, for
// callers that need to decode the boot sector directly when
// FSCTL_GET_NTFS_VOLUME_DATA is unavailable.
func (h *Handle) ReadBootSector() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("volume: read on closed handle")
	}
	return h.raw.readSector0()
}

// Close releases the underlying device handle. Safe to call more than
// once.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.raw.close()
}

// rawHandle is the platform-specific half of Handle, implemented in
// gateway_windows.go (real DeviceIoControl/ReadFile) and
// gateway_other.go (a stub that always reports UnsupportedFilesystem).
type rawHandle interface {
	deviceControl(code uint32, in []byte, outLen int) (out []byte, n int, err error)
	readSector0() ([]byte, error)
	close() error
}
