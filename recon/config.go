package recon

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/grokify/mogo/log/slogutil"
	"github.com/reconsync/reconsync/recon/filter"
)

// RenameMode selects the signal the Rename Detector uses to narrow candidates.
type RenameMode string

const (
	RenameSize  RenameMode = "size"
	RenameMtime RenameMode = "mtime"
	RenameHash  RenameMode = "hash"
	RenameNone  RenameMode = "none"
)

// ConflictMode selects the Conflict Resolver's policy for both-modified paths.
type ConflictMode string

const (
	ConflictA       ConflictMode = "A"
	ConflictB       ConflictMode = "B"
	ConflictOlder   ConflictMode = "older"
	ConflictNewer   ConflictMode = "newer"
	ConflictSmaller ConflictMode = "smaller"
	ConflictLarger  ConflictMode = "larger"
	ConflictTag     ConflictMode = "tag"
)

// CleanupMode is the tri-state for cleanup_empty_dirs{A,B}.
type CleanupMode string

const (
	CleanupAuto  CleanupMode = "auto"
	CleanupTrue  CleanupMode = "true"
	CleanupFalse CleanupMode = "false"
)

// Settings is the validated, typed configuration record the core consumes.
// It mirrors every option in spec.md §6 one field per row; the CLI / config
// file format that produces one is out of core scope.
type Settings struct {
	RemoteA, RemoteB string
	WorkdirA, WorkdirB string
	Name string

	Compare          CompareMode
	Dt               float64
	ConflictMode     ConflictMode
	TagConflict      bool
	RenamesA, RenamesB RenameMode
	ReuseHashesA, ReuseHashesB bool
	AlwaysGetMtime   bool
	HashFailFallback HashFallback

	Backup       bool
	SyncBackups  bool
	FilterFlags  *filter.Filter

	// RunLog enables the per-side NDJSON call log under <workdir>/logs.
	RunLog bool

	ActionThreads int

	CleanupEmptyDirsA, CleanupEmptyDirsB CleanupMode

	AvoidRelist bool
	SetLock     bool
	ResetState  bool

	DryRun      bool
	Interactive bool

	// ConflictPrompt, when set, is consulted by the Conflict Resolver before
	// applying ConflictMode, honoring --interactive. Return false as the
	// second result to fall through to the configured policy.
	ConflictPrompt func(ConflictCase) (Resolution, bool)

	Logger *slog.Logger
}

func (s Settings) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slogutil.Null()
}

// DefaultSettings returns Settings with the defaults spec.md implies.
func DefaultSettings() Settings {
	return Settings{
		Compare:          CompareMtime,
		Dt:               DefaultMtimeTolerance,
		ConflictMode:     ConflictNewer,
		RenamesA:         RenameSize,
		RenamesB:         RenameSize,
		HashFailFallback: FallbackNone,
		Backup:           true,
		ActionThreads:    4,
		CleanupEmptyDirsA: CleanupAuto,
		CleanupEmptyDirsB: CleanupAuto,
		SetLock:          true,
	}
}

// Validate checks the option set for internal consistency, returning a
// KindConfigError on failure. It is always run before a Run begins.
func (s Settings) Validate() error {
	if s.RemoteA == "" || s.RemoteB == "" {
		return newError(KindConfigError, "", fmt.Errorf("remoteA and remoteB are required"))
	}
	if s.Name == "" {
		return newError(KindConfigError, "", fmt.Errorf("name is required to scope snapshot/lock filenames"))
	}
	if s.ActionThreads < 1 {
		return newError(KindConfigError, "", fmt.Errorf("action_threads must be >= 1"))
	}
	switch s.Compare {
	case CompareSize, CompareMtime, CompareHash:
	default:
		return newError(KindConfigError, "", fmt.Errorf("invalid compare mode %q", s.Compare))
	}
	switch s.ConflictMode {
	case ConflictA, ConflictB, ConflictOlder, ConflictNewer, ConflictSmaller, ConflictLarger, ConflictTag:
	default:
		return newError(KindConfigError, "", fmt.Errorf("invalid conflict_mode %q", s.ConflictMode))
	}
	if err := s.ValidateWorkdir(s.WorkdirA, s.RemoteA); err != nil {
		return err
	}
	if err := s.ValidateWorkdir(s.WorkdirB, s.RemoteB); err != nil {
		return err
	}
	return nil
}

// ValidateWorkdir resolves spec.md §9's open question: workdir must either be
// a dot-prefixed sentinel directory under the synced root, or an external
// path entirely outside it. An empty workdir defaults to the sentinel
// ".reconsync/" under the synced root and always passes.
func (s Settings) ValidateWorkdir(workdir, remote string) error {
	if workdir == "" {
		return nil
	}
	root := strings.TrimSuffix(remote, "/")
	if root == "" || workdir == root || strings.HasPrefix(workdir, root+"/") {
		rel := strings.TrimPrefix(workdir, root)
		rel = strings.TrimPrefix(rel, "/")
		if !strings.HasPrefix(rel, ".") {
			return newError(KindConfigError, "", fmt.Errorf(
				"workdir %q overlaps synced root %q without being a dot-prefixed sentinel directory", workdir, remote))
		}
	}
	return nil
}

// ApplyOverride applies a single "KEY=VALUE" patch, implementing the CLI's
// --override mechanism (spec.md §6, §9: "Configuration as executable code"
// replaced by "apply key=value patches after load").
func (s *Settings) ApplyOverride(kv string) error {
	parts := strings.SplitN(kv, "=", 2)
	if len(parts) != 2 {
		return newError(KindConfigError, "", fmt.Errorf("override %q is not KEY=VALUE", kv))
	}
	key, value := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	switch strings.ToLower(key) {
	case "remotea":
		s.RemoteA = value
	case "remoteb":
		s.RemoteB = value
	case "workdira":
		s.WorkdirA = value
	case "workdirb":
		s.WorkdirB = value
	case "name":
		s.Name = value
	case "compare":
		s.Compare = CompareMode(value)
	case "dt":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("dt: %w", err))
		}
		s.Dt = f
	case "conflict_mode":
		mode, tag, deprecated := parseConflictMode(value)
		s.ConflictMode = mode
		if tag {
			s.TagConflict = true
		}
		if deprecated && s.Logger != nil {
			s.Logger.Warn("conflict_mode=newer_tag is deprecated, use conflict_mode=newer with tag_conflict=true")
		}
	case "tag_conflict":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("tag_conflict: %w", err))
		}
		s.TagConflict = b
	case "renamesa":
		s.RenamesA = RenameMode(value)
	case "renamesb":
		s.RenamesB = RenameMode(value)
	case "reuse_hashesa":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("reuse_hashesa: %w", err))
		}
		s.ReuseHashesA = b
	case "reuse_hashesb":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("reuse_hashesb: %w", err))
		}
		s.ReuseHashesB = b
	case "always_get_mtime":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("always_get_mtime: %w", err))
		}
		s.AlwaysGetMtime = b
	case "hash_fail_fallback":
		s.HashFailFallback = HashFallback(value)
	case "backup":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("backup: %w", err))
		}
		s.Backup = b
	case "sync_backups":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("sync_backups: %w", err))
		}
		s.SyncBackups = b
	case "action_threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("action_threads: %w", err))
		}
		s.ActionThreads = n
	case "avoid_relist":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("avoid_relist: %w", err))
		}
		s.AvoidRelist = b
	case "set_lock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("set_lock: %w", err))
		}
		s.SetLock = b
	case "reset_state":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("reset_state: %w", err))
		}
		s.ResetState = b
	case "run_log":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return newError(KindConfigError, "", fmt.Errorf("run_log: %w", err))
		}
		s.RunLog = b
	default:
		return newError(KindConfigError, "", fmt.Errorf("unknown override key %q", key))
	}
	return nil
}

// parseConflictMode accepts the legacy compound "newer_tag" value (spec.md
// §9) and splits it into (ConflictNewer, tagLoser=true, deprecated=true).
func parseConflictMode(value string) (mode ConflictMode, tagLoser bool, deprecated bool) {
	if strings.HasSuffix(value, "_tag") {
		return ConflictMode(strings.TrimSuffix(value, "_tag")), true, true
	}
	return ConflictMode(value), false, false
}
