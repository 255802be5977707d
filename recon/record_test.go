package recon

import "testing"

func TestListingInsertGetRemove(t *testing.T) {
	l := NewListing(nil)
	l.Insert(FileRecord{Path: "a.txt", Size: 10})
	l.Insert(FileRecord{Path: "b.txt", Size: 10})
	l.Insert(FileRecord{Path: "c.txt", Size: 20})

	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	if r, ok := l.Get("a.txt"); !ok || r.Size != 10 {
		t.Fatalf("Get(a.txt) = %+v, %v", r, ok)
	}

	l.Remove("a.txt")
	if l.Len() != 2 {
		t.Fatalf("Len() after remove = %d, want 2", l.Len())
	}
	if _, ok := l.Get("a.txt"); ok {
		t.Fatal("a.txt should be gone")
	}
}

func TestListingBySize(t *testing.T) {
	l := NewListing([]FileRecord{
		{Path: "a.txt", Size: 10},
		{Path: "b.txt", Size: 10},
		{Path: "c.txt", Size: 20},
	})

	got := l.BySize(10)
	if len(got) != 2 {
		t.Fatalf("BySize(10) = %d records, want 2", len(got))
	}

	l.Remove("a.txt")
	got = l.BySize(10)
	if len(got) != 1 || got[0].Path != "b.txt" {
		t.Fatalf("BySize(10) after remove = %+v", got)
	}
}

func TestListingInsertOverwriteUpdatesSizeIndex(t *testing.T) {
	l := NewListing([]FileRecord{{Path: "a.txt", Size: 10}})
	l.Insert(FileRecord{Path: "a.txt", Size: 20})

	if got := l.BySize(10); len(got) != 0 {
		t.Fatalf("BySize(10) should be empty after resize, got %+v", got)
	}
	if got := l.BySize(20); len(got) != 1 {
		t.Fatalf("BySize(20) should have one entry, got %+v", got)
	}
}

func TestListingRename(t *testing.T) {
	l := NewListing([]FileRecord{{Path: "old.txt", Size: 5, HasMtime: true, Mtime: 100}})
	l.Rename("old.txt", "new.txt")

	if _, ok := l.Get("old.txt"); ok {
		t.Fatal("old.txt should no longer exist")
	}
	r, ok := l.Get("new.txt")
	if !ok {
		t.Fatal("new.txt should exist")
	}
	if r.Size != 5 || r.Mtime != 100 {
		t.Fatalf("renamed record lost fields: %+v", r)
	}
}

func TestListingPathsPreservesInsertionOrder(t *testing.T) {
	l := NewListing(nil)
	l.Insert(FileRecord{Path: "z.txt", Size: 1})
	l.Insert(FileRecord{Path: "a.txt", Size: 1})

	paths := l.Paths()
	if len(paths) != 2 || paths[0] != "z.txt" || paths[1] != "a.txt" {
		t.Fatalf("Paths() = %v, want insertion order [z.txt a.txt]", paths)
	}

	sorted := l.SortedPaths()
	if sorted[0] != "a.txt" || sorted[1] != "z.txt" {
		t.Fatalf("SortedPaths() = %v, want lexical order", sorted)
	}
}

func TestFileRecordCommonHash(t *testing.T) {
	a := FileRecord{Hashes: map[string]string{"md5": "abc", "sha1": "x"}}
	b := FileRecord{Hashes: map[string]string{"sha1": "x"}}

	algo, ok := a.CommonHash(b)
	if !ok || algo != "sha1" {
		t.Fatalf("CommonHash = %q, %v, want sha1, true", algo, ok)
	}

	c := FileRecord{Hashes: map[string]string{"crc32": "y"}}
	if _, ok := a.CommonHash(c); ok {
		t.Fatal("CommonHash should fail with no overlapping algorithm")
	}
}

func TestEmptyListing(t *testing.T) {
	l := emptyListing()
	if l.Len() != 0 {
		t.Fatalf("emptyListing().Len() = %d, want 0", l.Len())
	}
	if len(l.Records()) != 0 {
		t.Fatal("emptyListing().Records() should be empty")
	}
}
