package recon

import "log/slog"

// detectRenames implements C6. It runs once per side after initial
// classification, promoting matched (new on X, deleted on other side) pairs
// into moves. Ground truth: syncrclone's track_moves() three-step funnel —
// size candidates, then mode-specific narrowing, then a uniqueness check.
func detectRenames(currX, prevX *Listing, newX *[]string, delOther *[]string, movesOther *[]MovePair, mode RenameMode, dt float64, logger *slog.Logger) {
	if mode == RenameNone {
		return
	}

	remaining := (*newX)[:0:0]

	for _, p := range *newX {
		curr, ok := currX.Get(p)
		if !ok {
			continue
		}

		candidates := prevX.BySize(curr.Size)
		candidates = narrowCandidates(candidates, curr, mode, dt)

		if len(candidates) == 0 {
			remaining = append(remaining, p)
			continue
		}

		if len(candidates) > 1 {
			if logger != nil {
				logger.Warn("ambiguous rename candidates, leaving as new/delete pair",
					slog.String("path", p), slog.Int("candidates", len(candidates)))
			}
			remaining = append(remaining, p)
			continue
		}

		candidate := candidates[0]
		if !containsString(*delOther, candidate.Path) {
			// Unique candidate, but its path isn't a deletion on the other
			// side: not safe to promote (spec.md §4.6 step 4).
			remaining = append(remaining, p)
			continue
		}

		// Promote to a move: remove p from new[X], remove candidate from
		// del[otherSide], append (candidate.path, p) to moves[otherSide].
		*delOther = removeString(*delOther, candidate.Path)
		*movesOther = append(*movesOther, MovePair{From: candidate.Path, To: p})
	}

	*newX = remaining
}

// narrowCandidates applies the mode-specific filter of spec.md §4.6 steps 2-3,
// plus the inode-based narrowing supplemented from the original source for
// local-to-local pairs (treated as equal confidence to a hash match when mode
// is RenameMtime and both records carry an inode).
func narrowCandidates(candidates []FileRecord, curr FileRecord, mode RenameMode, dt float64) []FileRecord {
	switch mode {
	case RenameMtime:
		var out []FileRecord
		for _, c := range candidates {
			if curr.HasInode && c.HasInode && curr.Inode == c.Inode {
				out = append(out, c)
				continue
			}
			if curr.HasMtime && c.HasMtime && absDiff(curr.Mtime, c.Mtime) <= dt {
				out = append(out, c)
			}
		}
		return out

	case RenameHash:
		var out []FileRecord
		for _, c := range candidates {
			for algo, v := range curr.Hashes {
				if v != "" && c.Hashes[algo] == v {
					out = append(out, c)
					break
				}
			}
		}
		return out

	default: // RenameSize: size match alone (already filtered by bySize).
		return candidates
	}
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func removeString(ss []string, s string) []string {
	for i, x := range ss {
		if x == s {
			return append(ss[:i], ss[i+1:]...)
		}
	}
	return ss
}
