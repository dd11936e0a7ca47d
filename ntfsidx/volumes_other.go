//go:build !windows

package ntfsidx

import "github.com/Velocidex/ntfsidx/ntfs"

// ListVolumes has no non-Windows implementation: the device-control
// interface this package targets is Windows-specific, matching the
// volume/gateway_other.go stub.
func ListVolumes() ([]VolumeInfo, error) {
	return nil, ntfs.ErrUnsupportedFilesystem
}
