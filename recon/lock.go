package recon

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/reconsync/reconsync/transport"
)

// LockService implements C10: advisory cross-run locking via a sentinel
// object at {workdir}/LOCK/LOCK_{name}. When Settings.SetLock is false, the
// service is a no-op (spec.md §4.10).
type LockService struct {
	backend transport.Backend
	workdir string
	name    string
	enabled bool
}

// NewLockService builds a LockService for one side's workdir.
func NewLockService(backend transport.Backend, workdir, name string, enabled bool) *LockService {
	return &LockService{backend: backend, workdir: workdir, name: name, enabled: enabled}
}

func (l *LockService) sentinelPath() string {
	return path.Join(l.workdir, "LOCK", "LOCK_"+l.name)
}

// Check returns true iff the sentinel is absent (side is unlocked).
func (l *LockService) Check(ctx context.Context) (unlocked bool, err error) {
	if !l.enabled {
		return true, nil
	}
	exists, err := l.backend.Exists(ctx, l.sentinelPath())
	if err != nil {
		return false, newError(KindTransportError, l.sentinelPath(), err)
	}
	return !exists, nil
}

// Acquire writes the sentinel, content is the run timestamp. Idempotent.
func (l *LockService) Acquire(ctx context.Context, runTimestamp string) error {
	if !l.enabled {
		return nil
	}
	w, err := l.backend.NewWriter(ctx, l.sentinelPath())
	if err != nil {
		return newError(KindTransportError, l.sentinelPath(), err)
	}
	if _, err := w.Write([]byte(runTimestamp)); err != nil {
		_ = w.Close()
		return newError(KindTransportError, l.sentinelPath(), err)
	}
	if err := w.Close(); err != nil {
		return newError(KindTransportError, l.sentinelPath(), err)
	}
	return nil
}

// Release removes the sentinel. Idempotent: removing an absent sentinel is
// not an error (Backend.Delete is documented idempotent).
func (l *LockService) Release(ctx context.Context) error {
	if !l.enabled {
		return nil
	}
	if err := l.backend.Delete(ctx, l.sentinelPath()); err != nil {
		return newError(KindTransportError, l.sentinelPath(), err)
	}
	return nil
}

// Break unconditionally removes the sentinel, using retries=1 and ignoring
// "not found" errors, per spec.md §4.9's retry policy for lock-break.
func (l *LockService) Break(ctx context.Context) error {
	cfg := RetryConfig{MaxRetries: 1}
	return retryOperation(ctx, cfg, func() error {
		err := l.backend.Delete(ctx, l.sentinelPath())
		if err != nil && !isNotFound(err) {
			return err
		}
		return nil
	})
}

// ensureUnlocked checks and returns RemoteLocked if the side is held, naming
// the offending sentinel in the error per spec.md §7.
func ensureUnlocked(ctx context.Context, l *LockService, side string) error {
	unlocked, err := l.Check(ctx)
	if err != nil {
		return err
	}
	if !unlocked {
		return newError(KindRemoteLocked, l.sentinelPath(), fmt.Errorf("side %s is locked by a competing run", side))
	}
	return nil
}

// runTimestamp formats t the way backup directories and lock sentinels key
// on: a sortable, filesystem-safe timestamp.
func runTimestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
