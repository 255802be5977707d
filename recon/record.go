package recon

import "sort"

// FileRecord is an immutable snapshot of one file as reported by a side's
// listing. A zero HasMtime/HasHashes means the transport did not report
// that attribute for this file, not that the value is the zero value.
type FileRecord struct {
	Path  string
	Size  int64

	// Mtime is Unix seconds (sub-second precision optional). Only
	// meaningful when HasMtime is true.
	Mtime float64
	HasMtime bool

	// Hashes maps a normalized algorithm name ("md5", "sha1", "crc32", ...)
	// to its hex digest. Present iff the transport reported at least one
	// non-empty hash for this file.
	Hashes map[string]string

	// Inode carries a platform inode number for local remotes, when the
	// backend can supply one; used by the Rename Detector as a same-confidence
	// signal alongside mtime matching for local-to-local sync pairs.
	Inode    uint64
	HasInode bool
}

// HasHashes reports whether this record carries any hash values.
func (r FileRecord) HasHashes() bool {
	return len(r.Hashes) > 0
}

// CommonHash returns a hash algorithm present and non-empty on both records,
// and true if one was found. When multiple algorithms are common, all must
// already have been checked for agreement by the caller (see same() in
// comparator.go); CommonHash only locates one for logging/debugging use.
func (r FileRecord) CommonHash(other FileRecord) (algo string, ok bool) {
	for a, v := range r.Hashes {
		if v == "" {
			continue
		}
		if ov, present := other.Hashes[a]; present && ov != "" {
			return a, true
		}
	}
	return "", false
}

// Listing is an ordered-by-insertion collection of FileRecords for one side,
// indexed for O(1) path lookup and O(1) amortized size lookup.
type Listing struct {
	order []string // insertion order of paths, for stable iteration
	byPath map[string]FileRecord
	bySize map[int64][]string // paths sharing a size, order-preserving
}

// NewListing builds a Listing from an iterable of records. Directory entries
// must already be filtered out by the caller (C1 invariant: file entries only).
func NewListing(records []FileRecord) *Listing {
	l := &Listing{
		byPath: make(map[string]FileRecord, len(records)),
		bySize: make(map[int64][]string),
	}
	for _, r := range records {
		l.Insert(r)
	}
	return l
}

// Len returns the number of records in the listing.
func (l *Listing) Len() int {
	return len(l.byPath)
}

// Get returns the record at path, or false if absent.
func (l *Listing) Get(path string) (FileRecord, bool) {
	r, ok := l.byPath[path]
	return r, ok
}

// ByPath is an alias of Get, matching the C1 interface naming in spec.md §4.1.
func (l *Listing) ByPath(path string) (FileRecord, bool) {
	return l.Get(path)
}

// BySize returns every record with the given exact size.
func (l *Listing) BySize(size int64) []FileRecord {
	paths := l.bySize[size]
	out := make([]FileRecord, 0, len(paths))
	for _, p := range paths {
		if r, ok := l.byPath[p]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Insert adds or overwrites a record. Re-inserting an existing path updates
// its value in place without disturbing iteration order.
func (l *Listing) Insert(r FileRecord) {
	if _, exists := l.byPath[r.Path]; !exists {
		l.order = append(l.order, r.Path)
	} else {
		l.removeFromSizeIndex(r.Path, l.byPath[r.Path].Size)
	}
	l.byPath[r.Path] = r
	l.bySize[r.Size] = append(l.bySize[r.Size], r.Path)
}

// Remove deletes the record at path, if present.
func (l *Listing) Remove(path string) {
	r, ok := l.byPath[path]
	if !ok {
		return
	}
	delete(l.byPath, path)
	l.removeFromSizeIndex(path, r.Size)
	for i, p := range l.order {
		if p == path {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Rename moves the record at oldPath to newPath, preserving its other fields.
// No-op if oldPath is absent. Overwrites any existing record at newPath.
func (l *Listing) Rename(oldPath, newPath string) {
	r, ok := l.byPath[oldPath]
	if !ok {
		return
	}
	l.Remove(oldPath)
	r.Path = newPath
	l.Insert(r)
}

// Records returns every record in insertion order. The returned slice is a
// copy; mutating it does not affect the Listing.
func (l *Listing) Records() []FileRecord {
	out := make([]FileRecord, 0, len(l.order))
	for _, p := range l.order {
		out = append(out, l.byPath[p])
	}
	return out
}

// Paths returns every path in insertion order.
func (l *Listing) Paths() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// SortedPaths returns every path in lexical order, useful for deterministic
// test assertions and stable plan ordering.
func (l *Listing) SortedPaths() []string {
	out := l.Paths()
	sort.Strings(out)
	return out
}

func (l *Listing) removeFromSizeIndex(path string, size int64) {
	paths := l.bySize[size]
	for i, p := range paths {
		if p == path {
			l.bySize[size] = append(paths[:i], paths[i+1:]...)
			break
		}
	}
	if len(l.bySize[size]) == 0 {
		delete(l.bySize, size)
	}
}

// emptyListing returns a Listing with no records, used for first-run /
// reset-state semantics where a side has no prior snapshot.
func emptyListing() *Listing {
	return NewListing(nil)
}
