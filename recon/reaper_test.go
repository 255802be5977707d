package recon

import (
	"context"
	"testing"

	"github.com/reconsync/reconsync/transport/backend/memory"
)

func newTestSideExecutor(t *testing.T) *sideExecutor {
	t.Helper()
	b := memory.New()
	gw := NewGateway(b, "", GatewayOptions{Retry: DefaultRetryConfig()}, nil)
	return &sideExecutor{gw: gw, backend: b, basePath: ""}
}

func TestParentDirs(t *testing.T) {
	l := NewListing([]FileRecord{
		{Path: "a/b/c.txt"},
		{Path: "a/d.txt"},
	})
	dirs := parentDirs(l)
	for _, want := range []string{"a", "a/b"} {
		if !dirs[want] {
			t.Fatalf("parentDirs(%v) missing %q", dirs, want)
		}
	}
}

func TestDepth(t *testing.T) {
	if depth("a/b/c") != 2 {
		t.Fatalf("depth(a/b/c) = %d, want 2", depth("a/b/c"))
	}
	if depth("a") != 0 {
		t.Fatalf("depth(a) = %d, want 0", depth("a"))
	}
}

func TestReapEmptyDirsModeFalseIsNoop(t *testing.T) {
	ctx := context.Background()
	side := newTestSideExecutor(t)

	before := NewListing([]FileRecord{{Path: "dir/file.txt"}})
	after := NewListing(nil)

	if err := reapEmptyDirs(ctx, side, before, after, CleanupFalse); err != nil {
		t.Fatal(err)
	}
}

func TestReapEmptyDirsRemovesDroppedDirs(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	gw := NewGateway(b, "", GatewayOptions{Retry: DefaultRetryConfig()}, nil)
	side := &sideExecutor{gw: gw, backend: b, basePath: ""}

	if err := b.Mkdir(ctx, "dir"); err != nil {
		t.Fatal(err)
	}

	before := NewListing([]FileRecord{{Path: "dir/file.txt"}})
	after := NewListing(nil)

	if err := reapEmptyDirs(ctx, side, before, after, CleanupTrue); err != nil {
		t.Fatal(err)
	}

	if exists, _ := b.Exists(ctx, "dir"); exists {
		t.Fatal("dir should have been removed once it became empty")
	}
}
