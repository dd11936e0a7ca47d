package journal

import (
	"fmt"

	"github.com/Velocidex/ntfsidx/forest"
	"github.com/Velocidex/ntfsidx/ntfs"
	"github.com/Velocidex/ntfsidx/volume"
)

// Cursor identifies a position in one volume's USN journal: the
// journal's identity plus the next USN to read from. Opaque to callers
// beyond storing and replaying it.
type Cursor struct {
	JournalID uint64
	NextUSN   int64
}

// DefaultFollowerBufferBytes is the FSCTL_READ_USN_JOURNAL reply buffer
// size used by Poll.
const DefaultFollowerBufferBytes = 64 * 1024

// Follower applies live USN journal changes onto a forest.Forest,
// keeping the Forest's state converging toward the volume's actual
// state between full rescans.
type Follower struct {
	handle     *volume.Handle
	ctx        *ntfs.Context
	tree       *forest.Forest
	cursor     Cursor
	bufferSize int
}

func NewFollower(handle *volume.Handle, ctx *ntfs.Context, tree *forest.Forest) *Follower {
	return &Follower{
		handle:     handle,
		ctx:        ctx,
		tree:       tree,
		bufferSize: DefaultFollowerBufferBytes,
	}
}

// Start queries the volume's journal identity and positions the cursor
// at the journal's current NextUSN: the follower picks up changes from
// the moment it starts, not historical ones. Callers that captured a
// cursor from a prior run should skip Start and set Cursor directly via
// Resume.
func (f *Follower) Start() (Cursor, error) {
	data, err := f.handle.QueryUSNJournal()
	if err != nil {
		return Cursor{}, err
	}
	f.cursor = Cursor{JournalID: data.JournalID, NextUSN: data.NextUSN}
	return f.cursor, nil
}

// Resume restores a previously captured cursor, letting a scan's
// captured cursor seed a follower directly without re-enumeration.
func (f *Follower) Resume(cursor Cursor) {
	f.cursor = cursor
}

func (f *Follower) Cursor() Cursor {
	return f.cursor
}

// Poll reads one batch of journal records and applies each to the
// Forest, returning the number of records applied. A journal whose
// identity no longer matches the cursor (the journal was deleted and
// recreated, e.g. after a volume format) returns ErrJournalReset; the
// caller must fall back to a full rescan.
func (f *Follower) Poll() (int, error) {
	identity, err := f.handle.QueryUSNJournal()
	if err != nil {
		return 0, err
	}
	if identity.JournalID != f.cursor.JournalID {
		return 0, ntfs.ErrJournalReset
	}

	nextUSN, buf, err := f.handle.ReadUSNJournal(f.cursor.NextUSN, allReasonsMask, f.cursor.JournalID, f.bufferSize)
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		// No new records since last poll.
		return 0, nil
	}

	f.ctx.Purge()

	applied := 0
	offset := 0
	for offset < len(buf) {
		record, next, err := ntfs.NextUSNRecord(buf, offset, len(buf))
		if err != nil {
			return applied, fmt.Errorf("journal: decoding record at offset %d: %w", offset, err)
		}
		if record == nil {
			break
		}

		if err := f.apply(record); err != nil {
			return applied, err
		}
		applied++
		offset = next
	}

	f.tree.LinkChildren()
	f.tree.RollupSizes()

	if nextUSN > f.cursor.NextUSN {
		f.cursor.NextUSN = nextUSN
	}
	return applied, nil
}

// allReasonsMask subscribes to every USN reason bit; narrowing this
// would silently drop change classes the Forest needs.
const allReasonsMask = 0xFFFFFFFF

// apply folds one USN record's reason bits into the Forest.
func (f *Follower) apply(record *ntfs.USNRecord) error {
	switch {
	case record.HasReason(ntfs.UsnReasonFileDelete):
		f.tree.Remove(record.FileReference)
		return nil

	case record.HasReason(ntfs.UsnReasonRenameOldName):
		// The companion RenameNewName record (same USN transaction)
		// carries the new name; nothing to do until it arrives.
		return nil

	case record.HasReason(ntfs.UsnReasonFileCreate), record.HasReason(ntfs.UsnReasonRenameNewName):
		return f.refreshFromMFT(record.FileReference)

	case record.HasReason(ntfs.UsnReasonDataExtend),
		record.HasReason(ntfs.UsnReasonDataTruncation),
		record.HasReason(ntfs.UsnReasonDataOverwrite),
		record.HasReason(ntfs.UsnReasonBasicInfoChange),
		record.HasReason(ntfs.UsnReasonHardLinkChange):
		return f.refreshFromMFT(record.FileReference)

	case record.HasReason(ntfs.UsnReasonClose):
		// Close carries no state change of its own; whatever reason
		// triggered it was already applied above.
		return nil

	default:
		return nil
	}
}

// refreshFromMFT re-reads the record's current MFT state and folds it
// into the Forest, the same path the full scan uses to build entries
// (forest.BuildEntry), so a follower-maintained Forest and a freshly
// scanned one converge on identical Entry values.
func (f *Follower) refreshFromMFT(frn ntfs.FileReference) error {
	entry, err := forest.BuildEntry(f.ctx, frn.RecordNumber())
	if err != nil {
		if err == ntfs.ErrRecordNotInUse {
			f.tree.Remove(frn)
			return nil
		}
		return err
	}

	if err := f.tree.InsertOrUpdate(entry); err != nil {
		if err == ntfs.ErrStaleUpdate {
			// A journal record describing an already-superseded
			// sequence number; silently discarded.
			return nil
		}
		return err
	}
	return nil
}

// Stop releases resources the follower does not own outright (the MFT
// cache); the underlying volume.Handle and forest.Forest outlive the
// follower and are closed by their owner.
func (f *Follower) Stop() {
	f.ctx.Purge()
}
