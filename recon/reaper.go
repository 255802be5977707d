package recon

import (
	"context"
	"path"
	"sort"
	"strings"
)

// reapEmptyDirs implements C11: compute dirsBefore from currX (pre-run) and
// dirsAfter from the post-state, then remove dirsBefore \ dirsAfter,
// deepest-first, for any side whose cleanup mode resolves to enabled.
func reapEmptyDirs(ctx context.Context, side *sideExecutor, before, after *Listing, mode CleanupMode) error {
	enabled := mode == CleanupTrue
	if mode == CleanupAuto {
		enabled = side.gw.FeatureQuery().EmptyDirs
	}
	if !enabled {
		return nil
	}

	dirsBefore := parentDirs(before)
	dirsAfter := parentDirs(after)

	var toRemove []string
	for d := range dirsBefore {
		if !dirsAfter[d] {
			toRemove = append(toRemove, d)
		}
	}
	if len(toRemove) == 0 {
		return nil
	}

	// Deepest-first: sort by descending path-segment depth.
	sort.Slice(toRemove, func(i, j int) bool {
		return depth(toRemove[i]) > depth(toRemove[j])
	})

	return side.gw.RmDirs(ctx, toRemove)
}

func parentDirs(l *Listing) map[string]bool {
	out := make(map[string]bool)
	for _, p := range l.Paths() {
		dir := path.Dir(p)
		for dir != "." && dir != "/" && dir != "" {
			out[dir] = true
			dir = path.Dir(dir)
		}
	}
	return out
}

func depth(p string) int {
	return strings.Count(p, "/")
}
