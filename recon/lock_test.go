package recon

import (
	"context"
	"testing"

	"github.com/reconsync/reconsync/transport/backend/channel"
	"github.com/reconsync/reconsync/transport/backend/memory"
)

func TestLockServiceDisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	l := NewLockService(b, "/work", "pair", false)

	unlocked, err := l.Check(ctx)
	if err != nil || !unlocked {
		t.Fatalf("Check = %v, %v, want true, nil for disabled lock", unlocked, err)
	}
	if err := l.Acquire(ctx, "ts"); err != nil {
		t.Fatal(err)
	}
	if exists, _ := b.Exists(ctx, l.sentinelPath()); exists {
		t.Fatal("disabled lock should not write a sentinel")
	}
}

func TestLockServiceAcquireCheckRelease(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	l := NewLockService(b, "/work", "pair", true)

	unlocked, err := l.Check(ctx)
	if err != nil || !unlocked {
		t.Fatalf("Check before acquire = %v, %v, want true, nil", unlocked, err)
	}

	if err := l.Acquire(ctx, "20260101T000000Z"); err != nil {
		t.Fatal(err)
	}

	unlocked, err = l.Check(ctx)
	if err != nil || unlocked {
		t.Fatalf("Check after acquire = %v, %v, want false, nil", unlocked, err)
	}

	if err := ensureUnlocked(ctx, l, "A"); err == nil {
		t.Fatal("ensureUnlocked should fail while locked")
	} else if !IsKind(err, KindRemoteLocked) {
		t.Fatalf("error = %v, want KindRemoteLocked", err)
	}

	if err := l.Release(ctx); err != nil {
		t.Fatal(err)
	}

	unlocked, err = l.Check(ctx)
	if err != nil || !unlocked {
		t.Fatalf("Check after release = %v, %v, want true, nil", unlocked, err)
	}
}

func TestLockServiceReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	l := NewLockService(b, "/work", "pair", true)

	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release on never-acquired lock should be a no-op, got %v", err)
	}
}

// TestLockServiceOverChannelBackend exercises the same LockService logic
// over the in-process channel backend instead of memory, since LockService
// only ever needs NewWriter/Exists/Delete -- a plain transport.Backend, no
// ExtendedBackend features -- making channel a fast, no-I/O fixture for
// lock-contention tests.
func TestLockServiceOverChannelBackend(t *testing.T) {
	ctx := context.Background()
	b := channel.New()
	l := NewLockService(b, "/work", "pair", true)

	unlocked, err := l.Check(ctx)
	if err != nil || !unlocked {
		t.Fatalf("Check before acquire = %v, %v, want true, nil", unlocked, err)
	}

	if err := l.Acquire(ctx, "20260101T000000Z"); err != nil {
		t.Fatal(err)
	}

	unlocked, err = l.Check(ctx)
	if err != nil || unlocked {
		t.Fatalf("Check after acquire = %v, %v, want false, nil", unlocked, err)
	}

	if err := l.Release(ctx); err != nil {
		t.Fatal(err)
	}
	unlocked, err = l.Check(ctx)
	if err != nil || !unlocked {
		t.Fatalf("Check after release = %v, %v, want true, nil", unlocked, err)
	}
}

func TestLockServiceBreakIgnoresNotFound(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	l := NewLockService(b, "/work", "pair", true)

	if err := l.Break(ctx); err != nil {
		t.Fatalf("Break on absent sentinel should not error, got %v", err)
	}

	if err := l.Acquire(ctx, "ts"); err != nil {
		t.Fatal(err)
	}
	if err := l.Break(ctx); err != nil {
		t.Fatal(err)
	}
	unlocked, _ := l.Check(ctx)
	if !unlocked {
		t.Fatal("Break should remove the sentinel")
	}
}
