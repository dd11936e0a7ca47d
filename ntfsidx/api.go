// Package ntfsidx is the consumer-facing API: volume discovery,
// scanning, and change-following, built on the volume/ntfs/forest/journal
// packages. It is the single entry point external collaborators (a TUI,
// a CLI, a library caller) use instead of reaching into the lower
// packages directly.
package ntfsidx

import (
	"context"

	"github.com/Velocidex/ntfsidx/forest"
	"github.com/Velocidex/ntfsidx/journal"
	"github.com/Velocidex/ntfsidx/ntfs"
	"github.com/Velocidex/ntfsidx/scan"
	"github.com/Velocidex/ntfsidx/volume"
)

// VolumeInfo is one entry returned by ListVolumes.
type VolumeInfo struct {
	Letter     byte
	Label      string
	FreeBytes  uint64
	TotalBytes uint64
}

// Config is the caller-supplied configuration for Scan/StartFollower.
type Config struct {
	DriveLetter   byte
	ReadMFTSizes  bool
	IncludeHidden bool
	IncludeSystem bool
	Parallelism   int
}

// FollowerHandle wraps a journal.Follower with the volume.Handle and
// ntfs.Context it owns, so start_follower() callers get one object to
// Poll/Stop without juggling the lower-level resources themselves.
type FollowerHandle struct {
	handle   *volume.Handle
	mftCtx   *ntfs.Context
	follower *journal.Follower
}

func (f *FollowerHandle) Poll() (int, error) {
	return f.follower.Poll()
}

func (f *FollowerHandle) Cursor() journal.Cursor {
	return f.follower.Cursor()
}

func (f *FollowerHandle) Stop() error {
	f.follower.Stop()
	return f.handle.Close()
}

// cacheSizeForMFT is the MFT record LRU capacity handed to every
// ntfs.Context this package opens.
const cacheSizeForMFT = 16384

// Scan opens cfg.DriveLetter, runs the scan orchestrator, and returns
// the populated forest.Forest plus the captured journal.Cursor. The
// returned cursor seeds ResumeFollower for incremental updates without a
// second full scan.
func Scan(ctx context.Context, cfg Config) (*scan.Result, error) {
	handle, err := volume.Open(cfg.DriveLetter)
	if err != nil {
		return nil, err
	}

	mftCtx, err := ntfs.NewContext(handle, cacheSizeForMFT)
	if err != nil {
		handle.Close()
		return nil, err
	}
	defer mftCtx.Close()

	source := scan.USNOnly
	if cfg.ReadMFTSizes {
		source = scan.USNAndMFT
	}

	opts := scan.Options{
		IncludeHidden:     cfg.IncludeHidden,
		IncludeSystem:     cfg.IncludeSystem,
		ReadMFTSizes:      cfg.ReadMFTSizes,
		Parallelism:       cfg.Parallelism,
		EnumerationSource: source,
	}

	openWorker := func() (*volume.Handle, error) {
		return volume.Open(cfg.DriveLetter)
	}

	return scan.Run(ctx, handle, mftCtx, opts, openWorker)
}

// StartFollower opens a fresh handle/context pair for cfg.DriveLetter,
// positions a journal.Follower at its current journal cursor, and
// returns a FollowerHandle ready for repeated Poll() calls.
func StartFollower(cfg Config, tree *forest.Forest) (*FollowerHandle, error) {
	handle, err := volume.Open(cfg.DriveLetter)
	if err != nil {
		return nil, err
	}

	mftCtx, err := ntfs.NewContext(handle, cacheSizeForMFT)
	if err != nil {
		handle.Close()
		return nil, err
	}

	follower := journal.NewFollower(handle, mftCtx, tree)
	if _, err := follower.Start(); err != nil {
		mftCtx.Close()
		return nil, err
	}

	return &FollowerHandle{handle: handle, mftCtx: mftCtx, follower: follower}, nil
}

// ResumeFollower is the same as StartFollower but seeds the follower
// from a cursor captured by a previous Scan, skipping re-enumeration.
func ResumeFollower(cfg Config, tree *forest.Forest, cursor journal.Cursor) (*FollowerHandle, error) {
	handle, err := volume.Open(cfg.DriveLetter)
	if err != nil {
		return nil, err
	}

	mftCtx, err := ntfs.NewContext(handle, cacheSizeForMFT)
	if err != nil {
		handle.Close()
		return nil, err
	}

	follower := journal.NewFollower(handle, mftCtx, tree)
	follower.Resume(cursor)

	return &FollowerHandle{handle: handle, mftCtx: mftCtx, follower: follower}, nil
}
