package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/reconsync/reconsync/recon"
	"github.com/reconsync/reconsync/recon/filter"
	"github.com/reconsync/reconsync/transport"
)

// remoteConfig names a backend factory and its configuration for one side,
// mirroring how transport.Open(name, config) resolves a registered backend.
type remoteConfig struct {
	Backend string            `json:"backend"`
	Config  map[string]string `json:"config,omitempty"`
	Root    string            `json:"root,omitempty"`
	Workdir string            `json:"workdir,omitempty"`
}

// fileConfig is the on-disk JSON shape for <configpath>. The config file
// format itself is explicitly out of core scope (spec.md §1); JSON is this
// CLI's choice of "executable code replaced by a declarative settings
// record" (spec.md §9).
type fileConfig struct {
	Name    string       `json:"name"`
	RemoteA remoteConfig `json:"remote_a"`
	RemoteB remoteConfig `json:"remote_b"`

	Compare          string   `json:"compare,omitempty"`
	Dt               float64  `json:"dt,omitempty"`
	ConflictMode     string   `json:"conflict_mode,omitempty"`
	TagConflict      bool     `json:"tag_conflict,omitempty"`
	RenamesA         string   `json:"renames_a,omitempty"`
	RenamesB         string   `json:"renames_b,omitempty"`
	ReuseHashesA     bool     `json:"reuse_hashes_a,omitempty"`
	ReuseHashesB     bool     `json:"reuse_hashes_b,omitempty"`
	AlwaysGetMtime   bool     `json:"always_get_mtime,omitempty"`
	HashFailFallback string   `json:"hash_fail_fallback,omitempty"`
	Backup           *bool    `json:"backup,omitempty"`
	SyncBackups      bool     `json:"sync_backups,omitempty"`
	FilterFlags      []string `json:"filter_flags,omitempty"`
	RunLog           bool     `json:"run_log,omitempty"`
	ActionThreads    int      `json:"action_threads,omitempty"`
	CleanupEmptyDirsA string  `json:"cleanup_empty_dirs_a,omitempty"`
	CleanupEmptyDirsB string  `json:"cleanup_empty_dirs_b,omitempty"`
	AvoidRelist      bool     `json:"avoid_relist,omitempty"`
	SetLock          *bool    `json:"set_lock,omitempty"`
}

// templateConfig is what --new writes: a minimal, fully commented-by-naming
// skeleton using the file backend on both sides, ready to edit.
func templateConfig() fileConfig {
	return fileConfig{
		Name:    "pair1",
		RemoteA: remoteConfig{Backend: "file", Config: map[string]string{"root": "/path/to/a"}},
		RemoteB: remoteConfig{Backend: "file", Config: map[string]string{"root": "/path/to/b"}},
		Compare: "mtime",
		ConflictMode: "newer",
	}
}

func writeNewConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing config at %s", path)
	}
	b, err := json.MarshalIndent(templateConfig(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func loadConfig(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, err
	}
	var cfg fileConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// toSettings merges the file config onto recon.DefaultSettings(), only
// overriding fields the file actually set.
func (cfg fileConfig) toSettings() (recon.Settings, error) {
	s := recon.DefaultSettings()
	s.Name = cfg.Name

	if cfg.Compare != "" {
		s.Compare = recon.CompareMode(cfg.Compare)
	}
	if cfg.Dt != 0 {
		s.Dt = cfg.Dt
	}
	if cfg.ConflictMode != "" {
		s.ConflictMode = recon.ConflictMode(cfg.ConflictMode)
	}
	s.TagConflict = cfg.TagConflict
	if cfg.RenamesA != "" {
		s.RenamesA = recon.RenameMode(cfg.RenamesA)
	}
	if cfg.RenamesB != "" {
		s.RenamesB = recon.RenameMode(cfg.RenamesB)
	}
	s.ReuseHashesA = cfg.ReuseHashesA
	s.ReuseHashesB = cfg.ReuseHashesB
	s.AlwaysGetMtime = cfg.AlwaysGetMtime
	if cfg.HashFailFallback != "" {
		s.HashFailFallback = recon.HashFallback(cfg.HashFailFallback)
	}
	if cfg.Backup != nil {
		s.Backup = *cfg.Backup
	}
	s.SyncBackups = cfg.SyncBackups
	if len(cfg.FilterFlags) > 0 {
		f, err := buildFilter(cfg.FilterFlags)
		if err != nil {
			return recon.Settings{}, err
		}
		s.FilterFlags = f
	}
	s.RunLog = cfg.RunLog
	if cfg.ActionThreads > 0 {
		s.ActionThreads = cfg.ActionThreads
	}
	if cfg.CleanupEmptyDirsA != "" {
		s.CleanupEmptyDirsA = recon.CleanupMode(cfg.CleanupEmptyDirsA)
	}
	if cfg.CleanupEmptyDirsB != "" {
		s.CleanupEmptyDirsB = recon.CleanupMode(cfg.CleanupEmptyDirsB)
	}
	s.AvoidRelist = cfg.AvoidRelist
	if cfg.SetLock != nil {
		s.SetLock = *cfg.SetLock
	}

	s.WorkdirA = cfg.RemoteA.Workdir
	s.WorkdirB = cfg.RemoteB.Workdir
	s.RemoteA = cfg.RemoteA.Root
	s.RemoteB = cfg.RemoteB.Root
	if s.RemoteA == "" {
		s.RemoteA = cfg.RemoteA.Config["root"]
	}
	if s.RemoteB == "" {
		s.RemoteB = cfg.RemoteB.Config["root"]
	}

	return s, nil
}

// buildFilter mirrors filter.FromFile's "+ pattern" / "- pattern" line
// convention, but reads the patterns straight from the config's
// filter_flags array instead of a file on disk.
func buildFilter(lines []string) (*filter.Filter, error) {
	var opts []filter.Option
	for _, line := range lines {
		switch {
		case len(line) > 2 && line[:2] == "+ ":
			opts = append(opts, filter.Include(line[2:]))
		case len(line) > 2 && line[:2] == "- ":
			opts = append(opts, filter.Exclude(line[2:]))
		default:
			opts = append(opts, filter.Exclude(line))
		}
	}
	return filter.New(opts...), nil
}

// openEndpoint resolves a remoteConfig into a recon.Endpoint by looking up
// its backend in the transport registry.
func openEndpoint(rc remoteConfig) (recon.Endpoint, error) {
	backend, err := transport.Open(rc.Backend, rc.Config)
	if err != nil {
		return recon.Endpoint{}, fmt.Errorf("opening %s backend: %w", rc.Backend, err)
	}
	return recon.Endpoint{Backend: backend, Root: rc.Root, Workdir: rc.Workdir}, nil
}
