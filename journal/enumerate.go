package journal

import (
	"context"

	"github.com/Velocidex/ntfsidx/ntfs"
	"github.com/Velocidex/ntfsidx/volume"
)

// EnumerateBufferBytes is the default FSCTL_ENUM_USN_DATA reply buffer.
const EnumerateBufferBytes = 64 * 1024

// EnumeratedRecord pairs a decoded USN record with any error hit while
// reading it, for the scan orchestrator's USN enumeration path.
type EnumeratedRecord struct {
	Record *ntfs.USNRecord
	Err    error
}

// Enumerate drives FSCTL_ENUM_USN_DATA to completion and streams every
// decoded record over the returned channel, closing it when the volume
// is exhausted or ctx is cancelled.
func Enumerate(ctx context.Context, handle *volume.Handle, bufferSize int) <-chan *EnumeratedRecord {
	if bufferSize <= 0 {
		bufferSize = EnumerateBufferBytes
	}

	out := make(chan *EnumeratedRecord)

	go func() {
		defer close(out)

		select {
		case <-ctx.Done():
			return
		default:
		}

		// highUSN bounds the enumeration to records already present at
		// the moment it started: it reads the journal's current NextUSN
		// once rather than per-batch, so records written mid-enumeration
		// aren't double-counted against a later follower poll.
		journalData, err := handle.QueryUSNJournal()
		if err != nil {
			emit(ctx, out, &EnumeratedRecord{Err: err})
			return
		}
		highUSN := journalData.NextUSN

		var startRecord uint64

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			nextRecord, buf, err := handle.EnumUSNData(startRecord, highUSN, 2, 3, bufferSize)
			if err != nil {
				emit(ctx, out, &EnumeratedRecord{Err: err})
				return
			}
			if len(buf) == 0 {
				// Fewer than header bytes, or an empty batch: volume
				// exhausted.
				return
			}

			offset := 0
			for offset < len(buf) {
				record, next, err := ntfs.NextUSNRecord(buf, offset, len(buf))
				if err != nil {
					if !emit(ctx, out, &EnumeratedRecord{Err: ntfs.NewScanError(ntfs.KindMalformedField, 0, err)}) {
						return
					}
					break
				}
				if record == nil {
					break
				}
				if !emit(ctx, out, &EnumeratedRecord{Record: record}) {
					return
				}
				offset = next
			}

			if nextRecord <= startRecord {
				// No cursor progress: avoid spinning forever on a
				// stuck device reply.
				return
			}
			startRecord = nextRecord
		}
	}()

	return out
}

func emit(ctx context.Context, out chan<- *EnumeratedRecord, rec *EnumeratedRecord) bool {
	select {
	case out <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}
