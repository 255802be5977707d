package recon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reconsync/reconsync/transport"
	gzipcodec "github.com/reconsync/reconsync/transport/compress/gzip"
	"github.com/reconsync/reconsync/transport/format/ndjson"
)

// RunResult summarizes one reconciliation run.
type RunResult struct {
	Plan       *PlanLists
	DryRun     bool
	Duration   time.Duration
	NextA, NextB *Listing
}

// Endpoint binds a transport.Backend to the root path it serves as one side
// of a sync pair, plus the (optionally separate) workdir holding its
// snapshot/backups/lock.
type Endpoint struct {
	Backend transport.Backend
	Root    string
	Workdir string // defaults to Root + "/.reconsync" when empty
}

func (e Endpoint) workdir() string {
	if e.Workdir != "" {
		return e.Workdir
	}
	return e.Root + "/.reconsync"
}

// Run executes one full reconciliation: acquire locks, load snapshots, list
// both sides in parallel, reconcile, detect renames, resolve conflicts,
// build the plan, execute it (unless DryRun), reap empty directories, and
// persist the next snapshot. This is the entry point gluing C1-C11 together.
func Run(ctx context.Context, a, b Endpoint, s Settings) (*RunResult, error) {
	start := time.Now()
	logger := s.logger()

	if err := s.Validate(); err != nil {
		return nil, err
	}

	lockA := NewLockService(a.Backend, a.workdir(), s.Name, s.SetLock)
	lockB := NewLockService(b.Backend, b.workdir(), s.Name, s.SetLock)

	if err := ensureUnlocked(ctx, lockA, "A"); err != nil {
		return nil, err
	}
	if err := ensureUnlocked(ctx, lockB, "B"); err != nil {
		return nil, err
	}

	ts := runTimestamp(start)
	if !s.DryRun {
		if err := lockA.Acquire(ctx, ts); err != nil {
			return nil, err
		}
		defer func() { _ = lockA.Release(ctx) }()
		if err := lockB.Acquire(ctx, ts); err != nil {
			return nil, err
		}
		defer func() { _ = lockB.Release(ctx) }()
	}

	snapA := NewSnapshotStore(a.Backend, a.workdir(), s.Name, s.ResetState)
	snapB := NewSnapshotStore(b.Backend, b.workdir(), s.Name, s.ResetState)

	prevA, err := snapA.Load(ctx, "A")
	if err != nil {
		return nil, err
	}
	prevB, err := snapB.Load(ctx, "B")
	if err != nil {
		return nil, err
	}

	gwOptsA := GatewayOptions{
		Hashes:               s.Compare == CompareHash || s.RenamesA == RenameHash,
		Mtime:                s.Compare == CompareMtime || s.AlwaysGetMtime,
		Filter:               s.FilterFlags,
		ReuseHashesFromPrior: s.ReuseHashesA,
		RateLimiter:          nil,
		Retry:                DefaultRetryConfig(),
	}
	gwOptsB := gwOptsA
	gwOptsB.ReuseHashesFromPrior = s.ReuseHashesB
	gwOptsB.Hashes = s.Compare == CompareHash || s.RenamesB == RenameHash

	gwA := NewGateway(a.Backend, a.Root, gwOptsA, logger)
	gwB := NewGateway(b.Backend, b.Root, gwOptsB, logger)

	if s.RunLog {
		if w, err := openRunLog(ctx, a.Backend, a.workdir(), ts, "A"); err == nil {
			gwA.WithRunLog(w)
			defer func() { _ = w.Close() }()
		} else {
			logger.Warn("run-log unavailable on A", slog.Any("error", err))
		}
		if w, err := openRunLog(ctx, b.Backend, b.workdir(), ts, "B"); err == nil {
			gwB.WithRunLog(w)
			defer func() { _ = w.Close() }()
		} else {
			logger.Warn("run-log unavailable on B", slog.Any("error", err))
		}
	}

	currA, currB, err := listBothSides(ctx, gwA, gwB, prevA, prevB)
	if err != nil {
		return nil, err
	}

	cmp := newComparator(s, logger)

	intermediates, err := reconcile(currA, currB, prevA, prevB, cmp)
	if err != nil {
		return nil, err
	}

	detectRenames(currA, prevA, &intermediates.NewA, &intermediates.DelB, &intermediates.MovesB, s.RenamesA, s.Dt, logger)
	detectRenames(currB, prevB, &intermediates.NewB, &intermediates.DelA, &intermediates.MovesA, s.RenamesB, s.Dt, logger)

	if err := resolveConflicts(intermediates, s, ts, logger); err != nil {
		return nil, err
	}

	plan := buildPlan(intermediates, s)

	result := &RunResult{Plan: plan, DryRun: s.DryRun}

	if s.DryRun {
		logger.Info("dry run: plan built, no changes applied",
			slog.Int("deletes_a", len(plan.DelA)), slog.Int("deletes_b", len(plan.DelB)),
			slog.Int("transfers_a2b", len(plan.TransA2B)), slog.Int("transfers_b2a", len(plan.TransB2A)))
		result.Duration = time.Since(start)
		return result, nil
	}

	sideA := &sideExecutor{gw: gwA, backend: a.Backend, basePath: a.Root, backupDir: backupDir(a.workdir(), ts, s.Name, "A")}
	sideB := &sideExecutor{gw: gwB, backend: b.Backend, basePath: b.Root, backupDir: backupDir(b.workdir(), ts, s.Name, "B")}

	nextA, nextB, err := Execute(ctx, plan, sideA, sideB, currA, currB, s)
	if err != nil {
		return nil, err
	}

	if err := reapEmptyDirs(ctx, sideA, currA, nextA, s.CleanupEmptyDirsA); err != nil {
		logger.Warn("empty-dir cleanup failed on A", slog.Any("error", err))
	}
	if err := reapEmptyDirs(ctx, sideB, currB, nextB, s.CleanupEmptyDirsB); err != nil {
		logger.Warn("empty-dir cleanup failed on B", slog.Any("error", err))
	}

	if err := snapA.Save(ctx, "A", nextA); err != nil {
		return nil, err
	}
	if err := snapB.Save(ctx, "B", nextB); err != nil {
		return nil, err
	}

	result.NextA, result.NextB = nextA, nextB
	result.Duration = time.Since(start)

	logger.Info("run complete",
		slog.Duration("duration", result.Duration),
		slog.Int("files_a", nextA.Len()), slog.Int("files_b", nextB.Len()))

	return result, nil
}

// listBothSides issues the A and B listings concurrently (spec.md §5:
// "A-listing and B-listing run concurrently").
func listBothSides(ctx context.Context, gwA, gwB *Gateway, prevA, prevB *Listing) (*Listing, *Listing, error) {
	type listResult struct {
		listing *Listing
		err     error
	}

	chA := make(chan listResult, 1)
	chB := make(chan listResult, 1)

	go func() {
		l, err := gwA.List(ctx, prevA)
		chA <- listResult{l, err}
	}()
	go func() {
		l, err := gwB.List(ctx, prevB)
		chB <- listResult{l, err}
	}()

	ra, rb := <-chA, <-chB
	if ra.err != nil {
		return nil, nil, ra.err
	}
	if rb.err != nil {
		return nil, nil, rb.err
	}
	return ra.listing, rb.listing, nil
}

func backupDir(workdir, runTs, name, side string) string {
	return fmt.Sprintf("%s/backups/%s_%s_%s", workdir, runTs, name, side)
}

// openRunLog creates the per-side NDJSON call log for one run, named by
// timestamp so concurrent runs never collide (spec.md §10's log_path).
// The stream is gzip-compressed as it's written so a long run's log
// doesn't grow unbounded on the remote.
func openRunLog(ctx context.Context, backend transport.Backend, workdir, runTs, side string) (transport.RecordWriter, error) {
	p := fmt.Sprintf("%s/logs/%s_%s.ndjson.gz", workdir, runTs, side)
	w, err := backend.NewWriter(ctx, p)
	if err != nil {
		return nil, err
	}
	gw, err := gzipcodec.NewWriter(w)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	return ndjson.NewWriter(gw), nil
}

// BreakLock implements the --break-lock {A|B|both} CLI surface (spec.md §6):
// unconditionally remove the sentinel, ignoring not-found, retries=1.
func BreakLock(ctx context.Context, a, b Endpoint, name string, which string) error {
	if which == "A" || which == "both" {
		l := NewLockService(a.Backend, a.workdir(), name, true)
		if err := l.Break(ctx); err != nil {
			return err
		}
	}
	if which == "B" || which == "both" {
		l := NewLockService(b.Backend, b.workdir(), name, true)
		if err := l.Break(ctx); err != nil {
			return err
		}
	}
	return nil
}
