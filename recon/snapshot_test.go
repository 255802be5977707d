package recon

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"testing"

	"github.com/reconsync/reconsync/transport/backend/memory"
)

func TestSnapshotStoreLoadAbsentReturnsEmptyListing(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	s := NewSnapshotStore(b, "work", "pair", false)

	listing, err := s.Load(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(listing.Paths()) != 0 {
		t.Fatalf("expected empty listing on first run, got %v", listing.Paths())
	}
}

func TestSnapshotStoreResetStateIgnoresPersisted(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	s := NewSnapshotStore(b, "work", "pair", false)
	if err := s.Save(ctx, "A", NewListing([]FileRecord{{Path: "x.txt", Size: 1}})); err != nil {
		t.Fatal(err)
	}

	reset := NewSnapshotStore(b, "work", "pair", true)
	listing, err := reset.Load(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(listing.Paths()) != 0 {
		t.Fatal("resetState store should ignore any persisted snapshot")
	}
}

func TestSnapshotStoreSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	s := NewSnapshotStore(b, "work", "pair", false)

	want := NewListing([]FileRecord{
		{Path: "a.txt", Size: 10, Mtime: 100, HasMtime: true},
		{Path: "dir/b.txt", Size: 20, Mtime: 200, HasMtime: true},
	})
	if err := s.Save(ctx, "A", want); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if rec, ok := got.Get("a.txt"); !ok || rec.Size != 10 {
		t.Fatalf("round-tripped a.txt = %+v, %v", rec, ok)
	}
	if rec, ok := got.Get("dir/b.txt"); !ok || rec.Size != 20 {
		t.Fatalf("round-tripped dir/b.txt = %+v, %v", rec, ok)
	}
}

func TestSnapshotStoreReadsLegacyZlibFormat(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	s := NewSnapshotStore(b, "work", "pair", false)

	records := []FileRecord{{Path: "legacy.txt", Size: 7}}
	jsonBytes, err := json.Marshal(records)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	buf.Write(legacyMagic)
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(jsonBytes); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	w, err := b.NewWriter(ctx, s.legacyPath("A"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	if rec, ok := got.Get("legacy.txt"); !ok || rec.Size != 7 {
		t.Fatalf("legacy load = %+v, %v", rec, ok)
	}
}

func TestSnapshotStoreSaveCleansUpTempObject(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	s := NewSnapshotStore(b, "work", "pair", false)

	if err := s.Save(ctx, "A", NewListing(nil)); err != nil {
		t.Fatal(err)
	}
	if ok, _ := b.Exists(ctx, s.path("A")+".tmp"); ok {
		t.Fatal("temp object should not remain after a successful save")
	}
	if ok, _ := b.Exists(ctx, s.path("A")); !ok {
		t.Fatal("final snapshot object should exist after save")
	}
}
