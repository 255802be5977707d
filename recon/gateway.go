package recon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync/atomic"
	"time"

	"github.com/grokify/mogo/log/slogutil"
	"github.com/reconsync/reconsync/recon/filter"
	"github.com/reconsync/reconsync/transport"
)

// Features reports per-side capabilities, mirroring spec.md §4.3's
// features(side) -> {move, emptyDirs, commonHashes}.
type Features struct {
	Move         bool
	EmptyDirs    bool
	CommonHashes []string
}

// Gateway is the thin façade over a transport.Backend implementing the
// operation set the core needs (C3). Unlike the spec's external-CLI
// transport, this Gateway drives an in-process transport.Backend directly;
// see SPEC_FULL.md §0 for why that's a faithful reading of the contract.
type Gateway struct {
	backend  transport.Backend
	basePath string
	opts     GatewayOptions
	logger   *slog.Logger
	runLog   transport.RecordWriter // optional ndjson sink, see WithRunLog
	callTime atomic.Int64           // cumulative nanoseconds spent in backend calls
}

// GatewayOptions configures gateway behavior independent of reconciliation policy.
type GatewayOptions struct {
	Hashes           bool
	Mtime            bool
	Filter           *filter.Filter
	ReuseHashesFromPrior bool
	RateLimiter      *tokenBucket
	Retry            RetryConfig
}

// NewGateway builds a Gateway over backend rooted at basePath.
func NewGateway(backend transport.Backend, basePath string, opts GatewayOptions, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slogutil.Null()
	}
	return &Gateway{backend: backend, basePath: basePath, opts: opts, logger: logger}
}

// WithRunLog attaches an NDJSON run-log sink; every gateway call appends one
// record (operation, duration, error) satisfying spec.md §4.3's "serializes
// stderr/stdout to the run log."
func (g *Gateway) WithRunLog(w transport.RecordWriter) *Gateway {
	g.runLog = w
	return g
}

func (g *Gateway) logCall(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	g.callTime.Add(int64(elapsed))
	if g.runLog == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error: " + err.Error()
	}
	record := fmt.Sprintf(`{"op":%q,"duration_ms":%d,"status":%q}`, op, elapsed.Milliseconds(), status)
	_ = g.runLog.Write([]byte(record))
}

// CumulativeCallTime returns the total time spent in backend calls so far.
func (g *Gateway) CumulativeCallTime() time.Duration {
	return time.Duration(g.callTime.Load())
}

// List implements list(side, opts): returns a Listing of file records,
// root-relative, applying the configured filter and (when ReuseHashesFromPrior
// is set) carrying hashes forward from prev when (path, size, mtime) match
// -- the hash-reuse-from-prior-snapshot optimization from syncrclone's
// file_list(), supplemented per SPEC_FULL.md §3.
func (g *Gateway) List(ctx context.Context, prev *Listing) (*Listing, error) {
	start := time.Now()
	paths, err := g.backend.List(ctx, g.basePath)
	g.logCall("list", start, err)
	if err != nil {
		return nil, newError(KindTransportError, g.basePath, err)
	}

	ext, hasExt := transport.AsExtended(g.backend)

	var records []FileRecord
	for _, p := range paths {
		rel := relativePath(p, g.basePath)

		if g.opts.Filter != nil {
			if !g.opts.Filter.Match(filter.FileInfo{Path: rel}) {
				continue
			}
		}
		if isInternalNamespace(rel) {
			continue
		}

		rec := FileRecord{Path: rel}

		if hasExt {
			info, statErr := ext.Stat(ctx, p)
			if statErr != nil {
				continue
			}
			if info.IsDir() {
				continue // C1 invariant: file entries only
			}
			rec.Size = info.Size()
			if g.opts.Mtime || true { // mtime is recorded whenever the backend reports one; Options.Mtime does not gate it
				if mt := info.ModTime(); !mt.IsZero() {
					rec.Mtime = float64(mt.UnixNano()) / 1e9
					rec.HasMtime = true
				}
			}
			if g.opts.Hashes {
				if reused, ok := g.reuseHash(prev, rel, rec); ok {
					rec.Hashes = reused
				} else if hs := hashesFromInfo(info); len(hs) > 0 {
					rec.Hashes = hs
				}
			}
			if inode, ok := info.Metadata()["inode"]; ok {
				if n, convErr := parseInode(inode); convErr == nil {
					rec.Inode = n
					rec.HasInode = true
				}
			}
		}

		records = append(records, rec)
	}

	return NewListing(records), nil
}

func (g *Gateway) reuseHash(prev *Listing, rel string, curr FileRecord) (map[string]string, bool) {
	if prev == nil || !g.opts.ReuseHashesFromPrior {
		return nil, false
	}
	prior, ok := prev.Get(rel)
	if !ok || prior.Size != curr.Size || !prior.HasMtime || !curr.HasMtime {
		return nil, false
	}
	if absDiff(prior.Mtime, curr.Mtime) > DefaultMtimeTolerance {
		return nil, false
	}
	if len(prior.Hashes) == 0 {
		return nil, false
	}
	return prior.Hashes, true
}

// CopyWithin implements copyTo(src, dst) for the same-side case used by
// backups: copy srcRel to dstRel within this Gateway's own backend,
// overwriting dstRel (--no-check-dest semantics).
func (g *Gateway) CopyWithin(ctx context.Context, srcRel, dstRel string) error {
	return retryOperation(ctx, retriesForMove(g.opts.Retry), func() error {
		start := time.Now()
		err := copyOne(ctx, g.backend, g.backend, path.Join(g.basePath, srcRel), path.Join(g.basePath, dstRel), g.opts.RateLimiter)
		g.logCall("copyTo", start, err)
		if err != nil {
			return newError(KindTransportError, srcRel, err)
		}
		return nil
	})
}

// MoveTo implements moveTo(srcSide, src, dst): server-side rename within a
// side when supported, else MoveTo itself copies src to dst and deletes src.
func (g *Gateway) MoveTo(ctx context.Context, srcRel, dstRel string) error {
	return retryOperation(ctx, retriesForMove(g.opts.Retry), func() error {
		start := time.Now()
		var err error
		if ext, ok := transport.AsExtended(g.backend); ok && ext.Features().Move {
			err = ext.Move(ctx, path.Join(g.basePath, srcRel), path.Join(g.basePath, dstRel))
		} else {
			err = copyOne(ctx, g.backend, g.backend, path.Join(g.basePath, srcRel), path.Join(g.basePath, dstRel), nil)
			if err == nil {
				err = g.backend.Delete(ctx, path.Join(g.basePath, srcRel))
			}
		}
		g.logCall("moveTo", start, err)
		if err != nil {
			return newError(KindTransportError, srcRel, err)
		}
		return nil
	})
}

// MoveBatch implements moveBatch(srcSide, rootDir, files): moves each file
// to destFn(file) through MoveTo, one after another, stopping at the first
// error. rootDir is not used; destFn alone decides each destination.
func (g *Gateway) MoveBatch(ctx context.Context, rootDir string, files []string, destFn func(string) string) error {
	for _, f := range files {
		if err := g.MoveTo(ctx, f, destFn(f)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBatch implements deleteBatch(side, files): bulk delete.
func (g *Gateway) DeleteBatch(ctx context.Context, files []string) error {
	for _, f := range files {
		if err := retryOperation(ctx, g.opts.Retry, func() error {
			start := time.Now()
			err := g.backend.Delete(ctx, path.Join(g.basePath, f))
			g.logCall("delete", start, err)
			if err != nil {
				return newError(KindTransportError, f, err)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// Transfer implements transfer(srcSide->dstSide, files): bulk copy across
// sides into dst, rooted at dstBasePath.
func (g *Gateway) Transfer(ctx context.Context, dst transport.Backend, dstBasePath string, files []string) error {
	for _, f := range files {
		if err := retryOperation(ctx, g.opts.Retry, func() error {
			start := time.Now()
			err := copyOne(ctx, g.backend, dst, path.Join(g.basePath, f), path.Join(dstBasePath, f), g.opts.RateLimiter)
			g.logCall("transfer", start, err)
			if err != nil {
				return newError(KindTransportError, f, err)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// FeatureQuery implements features(side).
func (g *Gateway) FeatureQuery() Features {
	f := Features{}
	if ext, ok := transport.AsExtended(g.backend); ok {
		feat := ext.Features()
		f.Move = feat.Move
		f.EmptyDirs = feat.Mkdir && feat.Rmdir
		for _, h := range feat.Hashes {
			f.CommonHashes = append(f.CommonHashes, h.String())
		}
	}
	return f
}

// RmDirs implements rmDirs(side, roots): remove empty directory trees,
// deepest-first, via the backend's recursive rmdir when supported.
func (g *Gateway) RmDirs(ctx context.Context, dirs []string) error {
	ext, ok := transport.AsExtended(g.backend)
	if !ok {
		return nil
	}
	for _, d := range dirs {
		start := time.Now()
		err := ext.Rmdir(ctx, path.Join(g.basePath, d))
		g.logCall("rmdir", start, err)
		if err != nil && !isNotFound(err) {
			return newError(KindTransportError, d, err)
		}
	}
	return nil
}

func retriesForMove(base RetryConfig) RetryConfig {
	cfg := base
	cfg.MaxRetries = 4
	return cfg
}

// copyOne performs a single read/write copy (or server-side copy when src==dst
// and the backend supports it), optionally rate-limited. Adapted from the
// teacher's copyFileSingle.
func copyOne(ctx context.Context, src, dst transport.Backend, srcPath, dstPath string, limiter *tokenBucket) error {
	if src == dst {
		if ext, ok := transport.AsExtended(src); ok && ext.Features().Copy {
			return ext.Copy(ctx, srcPath, dstPath)
		}
	}

	reader, err := src.NewReader(ctx, srcPath)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	var r io.Reader = reader
	if limiter != nil {
		r = newRateLimitedReader(reader, limiter)
	}

	var writerOpts []transport.WriterOption
	if ext, ok := transport.AsExtended(src); ok {
		if info, statErr := ext.Stat(ctx, srcPath); statErr == nil {
			if ct := info.ContentType(); ct != "" {
				writerOpts = append(writerOpts, transport.WithContentType(ct))
			}
		}
	}

	writer, err := dst.NewWriter(ctx, dstPath, writerOpts...)
	if err != nil {
		return err
	}

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func relativePath(p, basePath string) string {
	if basePath != "" && len(p) > len(basePath) && p[:len(basePath)] == basePath {
		rel := p[len(basePath):]
		if len(rel) > 0 && rel[0] == '/' {
			rel = rel[1:]
		}
		return rel
	}
	return p
}

// internalNamespace is the sentinel prefix always excluded from listings,
// regardless of filter_flags (spec.md §6 filter_flags row).
const internalNamespace = ".reconsync/"

func isInternalNamespace(rel string) bool {
	return len(rel) >= len(internalNamespace) && rel[:len(internalNamespace)] == internalNamespace
}

func hashesFromInfo(info transport.ObjectInfo) map[string]string {
	out := map[string]string{}
	for _, t := range []transport.HashType{transport.HashMD5, transport.HashSHA1, transport.HashSHA256, transport.HashCRC32C} {
		if v := info.Hash(t); v != "" {
			out[t.String()] = v
		}
	}
	return out
}

func parseInode(s string) (uint64, error) {
	var n uint64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func isNotFound(err error) bool {
	return err == transport.ErrNotFound
}
