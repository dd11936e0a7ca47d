package forest

import (
	"sort"
	"strings"
	"sync"

	"github.com/Velocidex/ntfsidx/ntfs"
	"github.com/Velocidex/ordereddict"
)

// Forest is the in-memory file-tree index: a mapping from record number
// to Entry, plus a root set (entries whose parent equals self, plus
// orphans). Unlike an MFT record cache, every live entry stays resident
// for the life of the scan rather than being evicted.
type Forest struct {
	mu sync.RWMutex

	entries map[uint64]*Entry

	// orphans maps a not-yet-seen parent record number to the record
	// numbers of children waiting on it.
	orphans map[uint64]map[uint64]bool

	stats stats
}

type stats struct {
	orphanCount         uint64
	fixupMismatchCount  uint64
	skippedRecordCount  uint64
	cycleCount          uint64
	staleUpdateCount    uint64
}

func New() *Forest {
	return &Forest{
		entries: make(map[uint64]*Entry),
		orphans: make(map[uint64]map[uint64]bool),
	}
}

// InsertOrUpdate writes e into slot record_number(e.FRN), rejecting an
// update whose sequence number is older than what's already stored:
// MFT record numbers are recycled, so an older sequence number means
// the update describes a record this entry's slot no longer occupies.
func (f *Forest) InsertOrUpdate(e *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	recNum := e.FRN.RecordNumber()
	if existing, ok := f.entries[recNum]; ok && e.FRN.Sequence() < existing.FRN.Sequence() {
		f.stats.staleUpdateCount++
		return ntfs.ErrStaleUpdate
	}

	f.entries[recNum] = e
	return nil
}

// Remove clears the slot and unlinks it from its parent's children
// list. Ancestor sizes are left stale; callers re-run RollupSizes()
// after a batch of Remove calls rather than re-rolling up on every one.
func (f *Forest) Remove(frn ntfs.FileReference) {
	f.mu.Lock()
	defer f.mu.Unlock()

	recNum := frn.RecordNumber()
	entry, ok := f.entries[recNum]
	if !ok {
		return
	}
	delete(f.entries, recNum)

	if parent, ok := f.entries[entry.ParentFRN.RecordNumber()]; ok {
		parent.Children = removeFRN(parent.Children, frn)
	}
	delete(f.orphans, recNum)
}

func removeFRN(children []ntfs.FileReference, target ntfs.FileReference) []ntfs.FileReference {
	out := children[:0]
	for _, c := range children {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// LinkChildren is a one-pass post-scan: for every live entry with a
// parent different from itself, append its FileReference to the
// parent's children list. Unresolved parents populate the orphan
// bucket. Children lists are sorted case-insensitively for determinism.
func (f *Forest) LinkChildren() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range f.entries {
		e.Children = e.Children[:0]
	}

	f.orphans = make(map[uint64]map[uint64]bool)

	for recNum, e := range f.entries {
		if e.IsRoot() {
			continue
		}

		parentNum := e.ParentFRN.RecordNumber()
		parent, ok := f.entries[parentNum]
		if !ok {
			f.addOrphan(parentNum, recNum)
			continue
		}
		parent.Children = append(parent.Children, e.FRN)
	}

	for _, e := range f.entries {
		sortChildren(e.Children, f.entries)
	}
}

func (f *Forest) addOrphan(parentNum, childNum uint64) {
	bucket, ok := f.orphans[parentNum]
	if !ok {
		bucket = make(map[uint64]bool)
		f.orphans[parentNum] = bucket
	}
	if !bucket[childNum] {
		bucket[childNum] = true
		f.stats.orphanCount++
	}
}

// FlushOrphans promotes any children waiting on parentRecNum into the
// parent's Children list, now that the parent has arrived.
func (f *Forest) FlushOrphans(parentRecNum uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent, ok := f.entries[parentRecNum]
	if !ok {
		return
	}

	bucket, ok := f.orphans[parentRecNum]
	if !ok {
		return
	}
	delete(f.orphans, parentRecNum)

	for childNum := range bucket {
		child, ok := f.entries[childNum]
		if !ok {
			continue
		}
		parent.Children = append(parent.Children, child.FRN)
	}
	sortChildren(parent.Children, f.entries)
}

func sortChildren(children []ntfs.FileReference, entries map[uint64]*Entry) {
	sort.Slice(children, func(i, j int) bool {
		a, aOK := entries[children[i].RecordNumber()]
		b, bOK := entries[children[j].RecordNumber()]
		if !aOK || !bOK {
			return children[i] < children[j]
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.Name < b.Name
	})
}

// RollupSizes is a post-order traversal: a directory's logical/allocated
// size is the sum over its children (files contribute their own size,
// directories their rolled-up size), along with FileCount/DirCount
// aggregates. Orphans form extra roots. An explicit visited set defends
// against a malformed volume presenting a cycle, counted rather than
// causing infinite recursion.
func (f *Forest) RollupSizes() {
	f.mu.Lock()
	defer f.mu.Unlock()

	visited := make(map[uint64]bool)
	inProgress := make(map[uint64]bool)

	var visit func(recNum uint64) *Entry
	visit = func(recNum uint64) *Entry {
		e, ok := f.entries[recNum]
		if !ok {
			return nil
		}
		if visited[recNum] {
			return e
		}
		if inProgress[recNum] {
			f.stats.cycleCount++
			return e
		}
		inProgress[recNum] = true

		if e.IsDirectory {
			var logical, allocated, fileCount, dirCount uint64
			for _, childFRN := range e.Children {
				childNum := childFRN.RecordNumber()
				child := visit(childNum)
				if child == nil {
					continue
				}
				logical += child.LogicalSize
				allocated += child.AllocatedSize
				if child.IsDirectory {
					dirCount += 1 + child.DirCount
					fileCount += child.FileCount
				} else {
					fileCount++
				}
			}
			e.LogicalSize = logical
			e.AllocatedSize = allocated
			e.FileCount = fileCount
			e.DirCount = dirCount
		}

		inProgress[recNum] = false
		visited[recNum] = true
		return e
	}

	for recNum, e := range f.entries {
		if e.IsRoot() {
			visit(recNum)
		}
	}
	// Orphans (parent never arrived) are extra roots.
	for parentNum := range f.orphans {
		for childNum := range f.orphans[parentNum] {
			visit(childNum)
		}
	}
}

// Lookup returns the entry for frn.
func (f *Forest) Lookup(frn ntfs.FileReference) (*Entry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[frn.RecordNumber()]
	return e, ok
}

// Children returns the child FileReferences of a directory entry.
func (f *Forest) Children(frn ntfs.FileReference) []ntfs.FileReference {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[frn.RecordNumber()]
	if !ok {
		return nil
	}
	return append([]ntfs.FileReference(nil), e.Children...)
}

// IterAll calls fn for every live entry. fn must not mutate the forest.
func (f *Forest) IterAll(fn func(*Entry)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, e := range f.entries {
		fn(e)
	}
}

// PathOf resolves frn to a full path by walking parent references to
// the root, detecting cycles along the way.
func (f *Forest) PathOf(frn ntfs.FileReference) string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var components []string
	seen := make(map[uint64]bool)

	current := frn
	for {
		e, ok := f.entries[current.RecordNumber()]
		if !ok {
			break
		}
		if e.IsRoot() {
			break
		}
		if seen[current.RecordNumber()] {
			components = append(components, "<CycleDetected>")
			break
		}
		seen[current.RecordNumber()] = true

		components = append(components, e.Name)
		current = e.ParentFRN
	}

	// Reverse.
	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}
	return "/" + strings.Join(components, "/")
}

// SubtreeSize returns the rolled-up logical size of frn.
func (f *Forest) SubtreeSize(frn ntfs.FileReference) uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[frn.RecordNumber()]
	if !ok {
		return 0
	}
	return e.LogicalSize
}

// FindLargestFiles returns the k largest non-directory entries by
// logical size, descending.
func (f *Forest) FindLargestFiles(k int) []*Entry {
	return f.findLargest(k, false)
}

// FindLargestDirs returns the k largest directory entries by rolled-up
// logical size, descending.
func (f *Forest) FindLargestDirs(k int) []*Entry {
	return f.findLargest(k, true)
}

func (f *Forest) findLargest(k int, directories bool) []*Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var candidates []*Entry
	for _, e := range f.entries {
		if e.IsDirectory == directories {
			candidates = append(candidates, e)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].LogicalSize != candidates[j].LogicalSize {
			return candidates[i].LogicalSize > candidates[j].LogicalSize
		}
		return candidates[i].Name < candidates[j].Name
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}

	result := make([]*Entry, len(candidates))
	for i, e := range candidates {
		result[i] = e.clone()
	}
	return result
}

// Snapshot returns a cheap, self-consistent read-only copy of the
// current forest state: writers block while the copy is taken, but the
// returned Snapshot remains valid even as the live Forest continues to
// mutate, since every Entry it references is cloned.
type Snapshot struct {
	entries map[uint64]*Entry
}

func (f *Forest) Snapshot() *Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	copied := make(map[uint64]*Entry, len(f.entries))
	for k, e := range f.entries {
		copied[k] = e.clone()
	}
	return &Snapshot{entries: copied}
}

func (s *Snapshot) Lookup(frn ntfs.FileReference) (*Entry, bool) {
	e, ok := s.entries[frn.RecordNumber()]
	return e, ok
}

func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Stats returns an ordereddict.Dict snapshot of forest-wide counters.
func (f *Forest) Stats() *ordereddict.Dict {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var directories, totalBytes uint64
	for _, e := range f.entries {
		if e.IsDirectory {
			directories++
		} else {
			totalBytes += e.LogicalSize
		}
	}

	return ordereddict.NewDict().
		Set("TotalEntries", uint64(len(f.entries))).
		Set("TotalDirectories", directories).
		Set("TotalBytes", totalBytes).
		Set("OrphanCount", f.stats.orphanCount).
		Set("FixupMismatchCount", f.stats.fixupMismatchCount).
		Set("SkippedRecordCount", f.stats.skippedRecordCount).
		Set("CycleCount", f.stats.cycleCount).
		Set("StaleUpdateCount", f.stats.staleUpdateCount)
}

// RecordFixupMismatch and RecordSkippedRecord let the scan orchestrator
// and MFT reader surface per-record faults into Forest.Stats() without
// reaching into Forest internals.
func (f *Forest) RecordFixupMismatch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.fixupMismatchCount++
}

func (f *Forest) RecordSkippedRecord() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.skippedRecordCount++
}

// FixupMismatchRate reports the fraction of processed records that
// failed fixup verification, for the scan orchestrator's abort rule.
func (f *Forest) FixupMismatchRate() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	total := f.processedCountLocked()
	if total == 0 {
		return 0
	}
	return float64(f.stats.fixupMismatchCount) / float64(total)
}

// ProcessedCount is the denominator behind FixupMismatchRate: every
// live entry plus every record the scan counted as faulty or skipped.
func (f *Forest) ProcessedCount() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.processedCountLocked()
}

func (f *Forest) processedCountLocked() uint64 {
	return uint64(len(f.entries)) + f.stats.fixupMismatchCount + f.stats.skippedRecordCount
}
