package forest

import (
	"github.com/Velocidex/ntfsidx/ntfs"
)

// BuildEntry decodes one MFT record into an Entry by walking its
// attribute list: $STANDARD_INFORMATION for timestamps/attributes, every
// $FILE_NAME for the preferred name/parent, and the unnamed $DATA run
// for size. Shared between the scan orchestrator's full walk and the
// change follower's create/rename handling so both apply the same
// namespace-preference and size rules.
func BuildEntry(ctx *ntfs.Context, recordNumber uint64) (*Entry, error) {
	record, err := ctx.GetMFT(recordNumber)
	if err != nil {
		return nil, err
	}
	return buildEntryFromRecord(recordNumber, record)
}

// BuildEntryFromRecordForScan exposes the attribute-walk entry builder
// for callers that already hold a decoded *ntfs.MFTRecord (the scan
// orchestrator's MFTOnly batch path), avoiding a redundant LRU lookup.
func BuildEntryFromRecordForScan(record *ntfs.MFTRecord) (*Entry, error) {
	return buildEntryFromRecord(uint64(record.RecordNumber), record)
}

func buildEntryFromRecord(recordNumber uint64, record *ntfs.MFTRecord) (*Entry, error) {
	if !record.InUse() {
		return nil, ntfs.ErrRecordNotInUse
	}
	if record.IsExtensionRecord() {
		return nil, ntfs.ErrExtensionRecord
	}

	attrs, walkErr := record.EnumerateAttributes()

	var names []*ntfs.FileName
	var stdInfo *ntfs.StandardInformation
	var logicalSize, allocatedSize uint64
	var diagnosticAllocated uint64
	sizeUnknown := false

	for _, attr := range attrs {
		switch attr.Type {
		case ntfs.AttrTypeStandardInformation:
			if attr.NonResident {
				continue
			}
			si, err := ntfs.ParseStandardInformation(attr.Content())
			if err == nil {
				stdInfo = si
			}

		case ntfs.AttrTypeFileName:
			if attr.NonResident {
				continue
			}
			fn, err := ntfs.ParseFileName(attr.Content())
			if err == nil {
				names = append(names, fn)
			}

		case ntfs.AttrTypeData:
			if !attr.IsUnnamed() {
				continue // named/alternate data streams don't roll into the primary size.
			}
			logical, allocated := attr.Size()
			logicalSize, allocatedSize = logical, allocated

			if attr.NonResident {
				runs, err := attr.DataRuns()
				if err == nil {
					diagnosticAllocated = ntfs.SumDataRunClusters(runs)
				}
			}

		case ntfs.AttrTypeAttributeList:
			// An attribute list spanning records means the true size
			// may live in an extension record; flag rather than chase it.
			sizeUnknown = true
		}
	}

	if walkErr != nil {
		sizeUnknown = true
	}

	preferred := ntfs.PreferredFileName(names)

	e := &Entry{
		FRN:                     ntfs.NewFileReference(recordNumber, record.SequenceNumber),
		IsDirectory:             record.IsDirectory(),
		LogicalSize:             logicalSize,
		AllocatedSize:           allocatedSize,
		DiagnosticAllocatedSize: diagnosticAllocated,
		SizeUnknown:             sizeUnknown,
	}

	if preferred != nil {
		e.Name = preferred.Name
		e.ParentFRN = preferred.ParentReference
		e.Created = preferred.Created
		e.Modified = preferred.Modified
		e.MFTChanged = preferred.MFTModified
		e.Accessed = preferred.Accessed
	}

	if stdInfo != nil {
		e.Attributes = stdInfo.FileAttributes
		e.Created = stdInfo.Created
		e.Modified = stdInfo.Modified
		e.MFTChanged = stdInfo.MFTModified
		e.Accessed = stdInfo.Accessed
	}

	if e.FRN.IsRoot() {
		e.ParentFRN = e.FRN
	} else if preferred == nil {
		// No $FILE_NAME decoded: leave this entry parentless so
		// LinkChildren() buckets it as an orphan rather than silently
		// treating it as a root.
		e.SizeUnknown = true
	}

	return e, nil
}
