package scan

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Velocidex/ntfsidx/forest"
	"github.com/Velocidex/ntfsidx/journal"
	"github.com/Velocidex/ntfsidx/ntfs"
	"github.com/Velocidex/ntfsidx/volume"
)

// Result is the orchestrator's output: a populated forest.Forest and
// the journal.Cursor captured before enumeration started, ready to seed
// a journal.Follower.
type Result struct {
	Forest   *forest.Forest
	Cursor   journal.Cursor
	Cancelled bool
}

// fixupMismatchRateThreshold is the fraction of FixupMismatch records
// that marks a volume as too corrupt to keep scanning.
// minFixupMismatchSample guards against aborting on the first unlucky
// record of a small batch before the rate has any statistical meaning.
const (
	fixupMismatchRateThreshold = 0.01
	minFixupMismatchSample     = 100
)

// checkFixupMismatchRate aborts the scan with ntfs.ErrCorruptVolume once
// the forest's fixup-mismatch rate crosses the threshold, once enough
// records have been processed for the rate to be meaningful.
func checkFixupMismatchRate(tree *forest.Forest) error {
	if tree.ProcessedCount() >= minFixupMismatchSample && tree.FixupMismatchRate() > fixupMismatchRateThreshold {
		return ntfs.ErrCorruptVolume
	}
	return nil
}

// OpenWorkerHandle opens one additional volume.Handle for a full-path
// worker; each worker needs its own handle since DeviceIoControl calls
// on a shared handle would serialize against each other.
type OpenWorkerHandle func() (*volume.Handle, error)

// Run drives one scan to completion (or cancellation) against an
// already-open Handle/Context pair: it enumerates records via the USN
// journal or a direct MFT walk, links the resulting tree, optionally
// fans a worker pool out over it for sizes/timestamps, and rolls up
// directory sizes.
func Run(ctx context.Context, handle *volume.Handle, mftCtx *ntfs.Context, opts Options, openWorker OpenWorkerHandle) (*Result, error) {
	cursorData, err := handle.QueryUSNJournal()
	if err != nil && opts.EnumerationSource != MFTOnly {
		return nil, err
	}
	var cursor journal.Cursor
	if cursorData != nil {
		cursor = journal.Cursor{JournalID: cursorData.JournalID, NextUSN: cursorData.NextUSN}
	}

	tree := forest.New()

	var processed uint64
	progressEvery := opts.progressEvery()

	switch opts.EnumerationSource {
	case USNOnly, USNAndMFT:
		if err := runUSNPhase(ctx, handle, tree, opts, &processed, progressEvery); err != nil {
			return &Result{Forest: tree, Cursor: cursor, Cancelled: isCancelled(err)}, err
		}
	case MFTOnly:
		if err := runMFTWalkPhase(ctx, mftCtx, tree, opts, &processed, progressEvery); err != nil {
			return &Result{Forest: tree, Cursor: cursor, Cancelled: isCancelled(err)}, err
		}
	default:
		return nil, fmt.Errorf("scan: unknown enumeration source %v", opts.EnumerationSource)
	}

	tree.LinkChildren()

	if opts.EnumerationSource == USNAndMFT && opts.ReadMFTSizes {
		if err := runFullPath(ctx, mftCtx, tree, opts, openWorker); err != nil {
			return &Result{Forest: tree, Cursor: cursor, Cancelled: isCancelled(err)}, err
		}
	}

	tree.RollupSizes()

	logrus.WithFields(logrus.Fields{
		"records":  processed,
		"source":   opts.EnumerationSource,
		"full_path": opts.EnumerationSource == USNAndMFT && opts.ReadMFTSizes,
	}).Info("scan: complete")

	return &Result{Forest: tree, Cursor: cursor}, nil
}

func isCancelled(err error) bool {
	return err == context.Canceled
}

// runUSNPhase builds a zero-sized Entry from each enumerated USN record
// and inserts it, filtering on IncludeHidden/IncludeSystem.
func runUSNPhase(ctx context.Context, handle *volume.Handle, tree *forest.Forest, opts Options, processed *uint64, progressEvery uint64) error {
	records := journal.Enumerate(ctx, handle, opts.EnumerateBufferBytes)

	for item := range records {
		if item.Err != nil {
			return item.Err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !passesFilter(item.Record.FileAttributes, opts) {
			continue
		}

		entry := &forest.Entry{
			FRN:        item.Record.FileReference,
			ParentFRN:  item.Record.ParentFRN,
			Name:       item.Record.FileName,
			Attributes: item.Record.FileAttributes,
		}
		if entry.FRN.IsRoot() {
			entry.ParentFRN = entry.FRN
		}

		if err := tree.InsertOrUpdate(entry); err != nil {
			tree.RecordSkippedRecord()
		}

		*processed++
		if *processed%progressEvery == 0 {
			logrus.WithField("records", *processed).Info("scan: usn enumeration progress")
		}
	}

	return nil
}

// runMFTWalkPhase is the MFTOnly path: walk read_range directly over
// the record-number space instead of following the USN journal.
func runMFTWalkPhase(ctx context.Context, mftCtx *ntfs.Context, tree *forest.Forest, opts Options, processed *uint64, progressEvery uint64) error {
	const batch = 256

	for start := uint64(0); start <= opts.MaxRecordNumber; start += batch {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		count := batch
		if remaining := opts.MaxRecordNumber - start + 1; remaining < uint64(batch) {
			count = int(remaining)
		}

		records, errs := mftCtx.ReadRange(start, count)
		for _, err := range errs {
			if scanErr, ok := err.(*ntfs.ScanError); ok && scanErr.Kind == ntfs.KindFixupMismatch {
				tree.RecordFixupMismatch()
			} else {
				tree.RecordSkippedRecord()
			}
		}

		for _, record := range records {
			entry, err := buildEntryFromMFTRecord(record)
			if err != nil {
				tree.RecordSkippedRecord()
				continue
			}
			if entry == nil || !passesFilter(entry.Attributes, opts) {
				continue
			}
			if err := tree.InsertOrUpdate(entry); err != nil {
				tree.RecordSkippedRecord()
			}

			*processed++
			if *processed%progressEvery == 0 {
				logrus.WithField("records", *processed).Info("scan: mft walk progress")
			}
		}

		if abortErr := checkFixupMismatchRate(tree); abortErr != nil {
			return abortErr
		}
	}

	return nil
}

func passesFilter(attrs uint32, opts Options) bool {
	if !opts.IncludeHidden && attrs&FileAttributeHidden != 0 {
		return false
	}
	if !opts.IncludeSystem && attrs&FileAttributeSystem != 0 {
		return false
	}
	return true
}

// runFullPath re-reads every non-directory live entry's MFT record
// through a worker pool for sizes/timestamps/confirmed name, with each
// worker holding its own volume.Handle and ntfs.Context.
func runFullPath(ctx context.Context, mainCtx *ntfs.Context, tree *forest.Forest, opts Options, openWorker OpenWorkerHandle) error {
	var recordNumbers []uint64
	tree.IterAll(func(e *forest.Entry) {
		if !e.IsDirectory {
			recordNumbers = append(recordNumbers, e.FRN.RecordNumber())
		}
	})

	queue := make(chan uint64, 1024)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	worker := func(workerCtx *ntfs.Context) {
		defer wg.Done()
		for recNum := range queue {
			select {
			case <-ctx.Done():
				continue // drain the queue without processing once cancelled.
			default:
			}

			entry, err := forest.BuildEntry(workerCtx, recNum)
			if err != nil {
				if scanErr, ok := err.(*ntfs.ScanError); ok && scanErr.Kind == ntfs.KindFixupMismatch {
					tree.RecordFixupMismatch()
					if abortErr := checkFixupMismatchRate(tree); abortErr != nil {
						errOnce.Do(func() { firstErr = abortErr })
					}
				} else {
					tree.RecordSkippedRecord()
				}
				continue
			}
			if err := tree.InsertOrUpdate(entry); err != nil {
				tree.RecordSkippedRecord()
			}
		}
	}

	parallelism := opts.parallelism()
	workerContexts := make([]*ntfs.Context, 0, parallelism)
	workerContexts = append(workerContexts, mainCtx)

	for i := 1; i < parallelism; i++ {
		if openWorker == nil {
			break
		}
		h, err := openWorker()
		if err != nil {
			logrus.WithError(err).Warn("scan: failed to open worker handle, reducing parallelism")
			break
		}
		wc, err := ntfs.NewContext(h, 4096)
		if err != nil {
			h.Close()
			logrus.WithError(err).Warn("scan: failed to bootstrap worker context, reducing parallelism")
			break
		}
		workerContexts = append(workerContexts, wc)
	}

	for _, wc := range workerContexts {
		wg.Add(1)
		go worker(wc)
	}

	for _, recNum := range recordNumbers {
		select {
		case <-ctx.Done():
			errOnce.Do(func() { firstErr = ctx.Err() })
			goto drain
		case queue <- recNum:
		}
	}

drain:
	close(queue)
	wg.Wait()

	for _, wc := range workerContexts[1:] {
		wc.Close()
	}

	return firstErr
}

func buildEntryFromMFTRecord(record *ntfs.MFTRecord) (*forest.Entry, error) {
	return forest.BuildEntryFromRecordForScan(record)
}
