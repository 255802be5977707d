package recon

import (
	"errors"
	"fmt"
)

// Kind classifies a reconciliation error.
type Kind int

const (
	// KindConfigError indicates an invalid option combination, surfaced pre-run.
	KindConfigError Kind = iota

	// KindTransportError wraps a non-nil error returned by the Transport Gateway.
	// Fatal to the current phase.
	KindTransportError

	// KindRemoteLocked indicates a competing run holds the lock on one or both sides.
	KindRemoteLocked

	// KindMissingHash indicates compare=hash was requested but no common hash
	// type exists between sides and no fallback is configured.
	KindMissingHash

	// KindAmbiguousRename indicates more than one rename candidate matched;
	// recovered by leaving the path as a new/delete pair.
	KindAmbiguousRename

	// KindMissingMtime indicates mtime was needed for comparison but absent;
	// recovered by degrading to size-only comparison.
	KindMissingMtime

	// KindDeleteConflict indicates a path deleted on one side while modified
	// on the other; recovered by transferring the modified version.
	KindDeleteConflict

	// KindBothModified indicates a path changed on both sides; resolved by
	// the Conflict Resolver and never fatal by itself.
	KindBothModified
)

func (k Kind) String() string {
	switch k {
	case KindConfigError:
		return "ConfigError"
	case KindTransportError:
		return "TransportError"
	case KindRemoteLocked:
		return "RemoteLocked"
	case KindMissingHash:
		return "MissingHash"
	case KindAmbiguousRename:
		return "AmbiguousRename"
	case KindMissingMtime:
		return "MissingMtime"
	case KindDeleteConflict:
		return "DeleteConflict"
	case KindBothModified:
		return "BothModified"
	default:
		return "Unknown"
	}
}

// Fatal reports whether an error of this kind should abort the run.
// AmbiguousRename, MissingMtime, DeleteConflict, and BothModified are
// recovered anomalies logged to the run log rather than surfaced as failures.
func (k Kind) Fatal() bool {
	switch k {
	case KindConfigError, KindTransportError, KindRemoteLocked, KindMissingHash:
		return true
	default:
		return false
	}
}

// Error is a reconciliation error tagged with its Kind.
type Error struct {
	Kind Kind
	Path string // empty if not path-specific
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds an *Error, optionally path-scoped.
func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// IsKind reports whether err is, or wraps, a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
