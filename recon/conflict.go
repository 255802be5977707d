package recon

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// ConflictCase is a path present on both sides with differing content and no
// clear deletion-vs-modification story, pending a policy decision.
type ConflictCase struct {
	Path string
	A, B FileRecord
}

// Resolution is the outcome the Conflict Resolver (C7) assigns to a
// ConflictCase.
type Resolution struct {
	// Winner is "A", "B", or "" for tag-both (no single winner).
	Winner string

	// TagA, TagB: when true, that side's pre-resolution content is renamed
	// to {stem}.{runTimestamp}.{side}{ext} instead of being backed up.
	TagA, TagB bool
}

// resolveConflicts implements C7: applies Settings.ConflictMode (optionally
// overridden per-case via Settings.ConflictPrompt when Interactive is set) to
// every pending conflict, folding the outcome into the Planner's
// intermediate lists (trans/backup/tag).
func resolveConflicts(out *Intermediates, s Settings, runTimestamp string, logger *slog.Logger) error {
	for _, c := range out.Conflicts {
		res, err := resolveOne(c, s, logger)
		if err != nil {
			return err
		}
		applyResolution(out, c, res, runTimestamp)
	}
	out.Conflicts = nil
	return nil
}

func resolveOne(c ConflictCase, s Settings, logger *slog.Logger) (Resolution, error) {
	if s.Interactive && s.ConflictPrompt != nil {
		if res, handled := s.ConflictPrompt(c); handled {
			return res, nil
		}
	}

	tagBoth := Resolution{TagA: s.TagConflict, TagB: s.TagConflict}

	switch s.ConflictMode {
	case ConflictA:
		return winnerResolution("A", s.TagConflict), nil
	case ConflictB:
		return winnerResolution("B", s.TagConflict), nil

	case ConflictOlder, ConflictNewer:
		if !c.A.HasMtime || !c.B.HasMtime || c.A.Mtime == c.B.Mtime {
			return tagBoth, nil
		}
		aWins := c.A.Mtime < c.B.Mtime
		if s.ConflictMode == ConflictNewer {
			aWins = !aWins
		}
		if aWins {
			return winnerResolution("A", s.TagConflict), nil
		}
		return winnerResolution("B", s.TagConflict), nil

	case ConflictSmaller, ConflictLarger:
		if c.A.Size == c.B.Size {
			return tagBoth, nil
		}
		aWins := c.A.Size < c.B.Size
		if s.ConflictMode == ConflictLarger {
			aWins = !aWins
		}
		if aWins {
			return winnerResolution("A", s.TagConflict), nil
		}
		return winnerResolution("B", s.TagConflict), nil

	case ConflictTag:
		return Resolution{TagA: true, TagB: true}, nil

	default:
		return Resolution{}, newError(KindConfigError, c.Path, fmt.Errorf("unknown conflict_mode %q", s.ConflictMode))
	}
}

func winnerResolution(winner string, tagLoser bool) Resolution {
	res := Resolution{Winner: winner}
	if tagLoser {
		if winner == "A" {
			res.TagB = true
		} else {
			res.TagA = true
		}
	}
	return res
}

// applyResolution folds a Resolution into the Planner's intermediate lists.
func applyResolution(out *Intermediates, c ConflictCase, res Resolution, runTimestamp string) {
	switch res.Winner {
	case "A":
		out.TransA2B = append(out.TransA2B, c.Path)
		if res.TagB {
			tagPath := taggedName(c.Path, runTimestamp, "B")
			out.TagB = append(out.TagB, c.Path)
			out.MovesB = append(out.MovesB, MovePair{From: c.Path, To: tagPath})
			// The tagged loser now lives on B (MovesB just renamed it there);
			// read it from B and transfer it across to A.
			out.TransB2A = dedupAppendOnce(out.TransB2A, tagPath)
		} else {
			out.BackupB = append(out.BackupB, c.Path)
		}

	case "B":
		out.TransB2A = append(out.TransB2A, c.Path)
		if res.TagA {
			tagPath := taggedName(c.Path, runTimestamp, "A")
			out.TagA = append(out.TagA, c.Path)
			out.MovesA = append(out.MovesA, MovePair{From: c.Path, To: tagPath})
			// The tagged loser now lives on A (MovesA just renamed it there);
			// read it from A and transfer it across to B.
			out.TransA2B = dedupAppendOnce(out.TransA2B, tagPath)
		} else {
			out.BackupA = append(out.BackupA, c.Path)
		}

	default:
		// Tag-both: no winner. Both sides are tagged and the tagged names
		// cross-transfer so each side ends up with both historical versions.
		tagPathA := taggedName(c.Path, runTimestamp, "A")
		tagPathB := taggedName(c.Path, runTimestamp, "B")
		out.TagA = append(out.TagA, c.Path)
		out.TagB = append(out.TagB, c.Path)
		out.MovesA = append(out.MovesA, MovePair{From: c.Path, To: tagPathA})
		out.MovesB = append(out.MovesB, MovePair{From: c.Path, To: tagPathB})
		out.TransA2B = dedupAppendOnce(out.TransA2B, tagPathA)
		out.TransB2A = dedupAppendOnce(out.TransB2A, tagPathB)
	}
}

// taggedName renames {stem}.{ext} to {stem}.{runTimestamp}.{side}{ext}, per
// the glossary's "Tag" definition.
func taggedName(p, runTimestamp, side string) string {
	dir, base := path.Split(p)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return path.Join(dir, fmt.Sprintf("%s.%s.%s%s", stem, runTimestamp, side, ext))
}

func dedupAppendOnce(ss []string, s string) []string {
	for _, x := range ss {
		if x == s {
			return ss
		}
	}
	return append(ss, s)
}
