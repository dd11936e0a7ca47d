//go:build windows

package ntfsidx

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ListVolumes enumerates mounted drive letters and reports their label,
// free/total capacity, via the same golang.org/x/sys/windows surface the
// volume gateway uses for DeviceIoControl (GetLogicalDrives/
// GetVolumeInformation/GetDiskFreeSpaceEx are ordinary Win32 calls, not
// FSCTLs, so they sit in this package rather than volume/).
func ListVolumes() ([]VolumeInfo, error) {
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return nil, fmt.Errorf("ntfsidx: enumerating logical drives: %w", err)
	}

	var volumes []VolumeInfo
	for i := 0; i < 26; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		letter := byte('A' + i)
		info, ok := describeVolume(letter)
		if !ok {
			continue
		}
		volumes = append(volumes, info)
	}
	return volumes, nil
}

func describeVolume(letter byte) (VolumeInfo, bool) {
	root := fmt.Sprintf(`%c:\`, letter)
	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return VolumeInfo{}, false
	}

	var volumeNameBuf [windows.MAX_PATH + 1]uint16
	var fsNameBuf [windows.MAX_PATH + 1]uint16

	err = windows.GetVolumeInformation(
		rootPtr,
		&volumeNameBuf[0], uint32(len(volumeNameBuf)),
		nil, nil, nil,
		&fsNameBuf[0], uint32(len(fsNameBuf)),
	)
	if err != nil {
		return VolumeInfo{}, false
	}

	fsName := windows.UTF16ToString(fsNameBuf[:])
	if fsName != "NTFS" {
		return VolumeInfo{}, false
	}

	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := getDiskFreeSpaceEx(rootPtr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return VolumeInfo{}, false
	}

	return VolumeInfo{
		Letter:     letter,
		Label:      windows.UTF16ToString(volumeNameBuf[:]),
		FreeBytes:  freeBytes,
		TotalBytes: totalBytes,
	}, true
}

var (
	modkernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetDiskFreeSpaceExW = modkernel32.NewProc("GetDiskFreeSpaceExW")
)

func getDiskFreeSpaceEx(rootPathName *uint16, freeBytesAvailable, totalNumberOfBytes, totalNumberOfFreeBytes *uint64) error {
	r1, _, e1 := procGetDiskFreeSpaceExW.Call(
		uintptr(unsafe.Pointer(rootPathName)),
		uintptr(unsafe.Pointer(freeBytesAvailable)),
		uintptr(unsafe.Pointer(totalNumberOfBytes)),
		uintptr(unsafe.Pointer(totalNumberOfFreeBytes)),
	)
	if r1 == 0 {
		if e1 != syscall.Errno(0) {
			return e1
		}
		return windows.EINVAL
	}
	return nil
}
