package recon

import (
	"log/slog"
	"math"
)

// CompareMode selects the equality predicate same() uses.
type CompareMode string

const (
	CompareSize  CompareMode = "size"
	CompareMtime CompareMode = "mtime"
	CompareHash  CompareMode = "hash"
)

// HashFallback selects what same() falls back to when CompareHash is
// requested but the two records share no common hash algorithm.
type HashFallback string

const (
	FallbackSize  HashFallback = "size"
	FallbackMtime HashFallback = "mtime"
	FallbackNone  HashFallback = "none"
)

// DefaultMtimeTolerance is the default dt (seconds) for mtime equality.
const DefaultMtimeTolerance = 1.1

// comparator implements C4: same(f1, f2) parameterized by mode and
// hash-fallback, per spec.md §4.4.
type comparator struct {
	mode     CompareMode
	fallback HashFallback
	dt       float64
	logger   *slog.Logger
}

func newComparator(s Settings, logger *slog.Logger) *comparator {
	dt := s.Dt
	if dt <= 0 {
		dt = DefaultMtimeTolerance
	}
	mode := s.Compare
	if mode == "" {
		mode = CompareMtime
	}
	fallback := s.HashFailFallback
	if fallback == "" {
		fallback = FallbackNone
	}
	return &comparator{mode: mode, fallback: fallback, dt: dt, logger: logger}
}

// same reports whether f1 and f2 represent the same file content, per the
// configured mode. A missing operand is never equal to anything.
//
// Can return a non-nil *Error of KindMissingHash (fatal, when mode=hash and
// no fallback is usable) — callers must check the error.
func (c *comparator) same(f1, f2 FileRecord) (bool, error) {
	mode := c.mode

	if mode == CompareHash {
		ok, resolved, err := c.sameByHash(f1, f2)
		if err != nil {
			return false, err
		}
		if resolved {
			return ok, nil
		}
		// No common hash on either side: fall back.
		switch c.fallback {
		case FallbackSize:
			mode = CompareSize
		case FallbackMtime:
			mode = CompareMtime
		default:
			return false, newError(KindMissingHash, f1.Path, errMissingCommonHash)
		}
	}

	if f1.Size != f2.Size {
		return false, nil
	}

	if mode == CompareSize {
		return true, nil
	}

	// mtime mode (default, and the post-hash-resolution default per §4.4).
	if !f1.HasMtime || !f2.HasMtime {
		if c.logger != nil {
			c.logger.Warn("mtime missing, degrading to size-only comparison", slog.String("path", f1.Path))
		}
		return true, nil
	}

	diff := f1.Mtime - f2.Mtime
	if diff < 0 {
		diff = -diff
	}
	return diff <= c.dt, nil
}

// sameByHash compares by hash. resolved is false when neither side presents
// any common hash algorithm, signaling the caller should apply its fallback.
func (c *comparator) sameByHash(f1, f2 FileRecord) (same bool, resolved bool, err error) {
	if len(f1.Hashes) == 0 || len(f2.Hashes) == 0 {
		return false, false, nil
	}

	foundCommon := false
	for algo, v1 := range f1.Hashes {
		if v1 == "" {
			continue
		}
		v2, ok := f2.Hashes[algo]
		if !ok || v2 == "" {
			continue
		}
		foundCommon = true
		if v1 != v2 {
			return false, true, nil
		}
	}

	if !foundCommon {
		return false, false, nil
	}
	return f1.Size == f2.Size, true, nil
}

var errMissingCommonHash = errMissingCommonHashErr{}

type errMissingCommonHashErr struct{}

func (errMissingCommonHashErr) Error() string {
	return "compare=hash requested but no common hash algorithm and no usable fallback"
}

// absDiff is a small helper kept for readability at call sites that need the
// raw magnitude of an mtime skew (used by the rename detector too).
func absDiff(a, b float64) float64 {
	return math.Abs(a - b)
}
