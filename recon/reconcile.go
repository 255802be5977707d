package recon

// Intermediates holds the per-path classification lists the Reconciler (C5)
// emits. Tags are filled in later by the Conflict Resolver (C7); renames are
// folded in by the Rename Detector (C6) before the Action Planner (C8) runs.
type Intermediates struct {
	NewA, NewB           []string
	DelA, DelB           []string
	TransA2B, TransB2A   []string
	BackupA, BackupB     []string
	TagA, TagB           []string

	// Conflicts holds both-modified paths pending resolution by C7. Populated
	// by the Reconciler; consumed and cleared by resolveConflicts.
	Conflicts []ConflictCase

	// MovesA, MovesB are filled by the Rename Detector: ordered (from, to)
	// pairs to apply as a server-side rename on that side.
	MovesA, MovesB []MovePair
}

// MovePair is an ordered rename to apply on one side.
type MovePair struct {
	From, To string
}

// reconcile implements C5: for every path in currA ∪ currB, classify exactly
// once against the prior listings, using cmp as the same() predicate.
//
// Every path present in either current listing is classified, except a path
// present on both sides whose records agree under cmp.same(), which is
// skipped here as already in sync.
func reconcile(currA, currB, prevA, prevB *Listing, cmp *comparator) (*Intermediates, error) {
	out := &Intermediates{}

	seen := make(map[string]bool)
	allPaths := append(append([]string{}, currA.Paths()...), currB.Paths()...)

	for _, p := range allPaths {
		if seen[p] {
			continue
		}
		seen[p] = true

		a, inA := currA.Get(p)
		b, inB := currB.Get(p)

		switch {
		case inA && inB:
			same, err := cmp.same(a, b)
			if err != nil {
				return nil, err
			}
			if same {
				continue // already in sync, nothing to do
			}
			if err := classifyBothPresent(out, p, a, b, prevA, prevB, cmp); err != nil {
				return nil, err
			}

		case inA && !inB:
			if err := classifyOneSided(out, p, a, prevA, prevB, cmp, true); err != nil {
				return nil, err
			}

		case inB && !inA:
			if err := classifyOneSided(out, p, b, prevB, prevA, cmp, false); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// classifyOneSided handles the "present on exactly one side" rows of the
// spec.md §4.5 table. onA is true when the present side is A.
func classifyOneSided(out *Intermediates, p string, f FileRecord, prevSide, prevOther *Listing, cmp *comparator, onA bool) error {
	prevF, hadPrev := prevSide.Get(p)

	if !hadPrev {
		// No prior record on the present side: NEW on that side.
		if onA {
			out.NewA = append(out.NewA, p)
		} else {
			out.NewB = append(out.NewB, p)
		}
		return nil
	}

	unchanged, err := cmp.same(f, prevF)
	if err != nil {
		return err
	}

	if unchanged {
		// Unchanged on the present side and absent from the other side:
		// it was deleted on the other side. Propagate that deletion to the
		// side that still holds the stale, unmodified copy.
		if onA {
			out.DelA = append(out.DelA, p)
		} else {
			out.DelB = append(out.DelB, p)
		}
		return nil
	}

	// Modified on the present side, absent on the other: a DELETE-CONFLICT.
	// The modification wins: transfer the present side's version across.
	if onA {
		out.TransA2B = append(out.TransA2B, p)
	} else {
		out.TransB2A = append(out.TransB2A, p)
	}
	return nil
}

// classifyBothPresent handles the "present on both sides but differ" rows.
func classifyBothPresent(out *Intermediates, p string, a, b FileRecord, prevA, prevB *Listing, cmp *comparator) error {
	prevAF, hadPrevA := prevA.Get(p)
	prevBF, hadPrevB := prevB.Get(p)

	var aUnchanged, bUnchanged bool
	var err error

	if hadPrevA {
		aUnchanged, err = cmp.same(a, prevAF)
		if err != nil {
			return err
		}
	}
	if hadPrevB {
		bUnchanged, err = cmp.same(b, prevBF)
		if err != nil {
			return err
		}
	}

	switch {
	case !hadPrevA && !hadPrevB:
		// Neither side has a prior record and both are currently present
		// but differ: CONFLICT (spec.md §4.5 edge policy).
		out.Conflicts = append(out.Conflicts, ConflictCase{Path: p, A: a, B: b})

	case aUnchanged && bUnchanged:
		// Both look unchanged yet differ: unexpected. Fall through to CONFLICT.
		out.Conflicts = append(out.Conflicts, ConflictCase{Path: p, A: a, B: b})

	case !aUnchanged && !bUnchanged:
		// Both modified: CONFLICT.
		out.Conflicts = append(out.Conflicts, ConflictCase{Path: p, A: a, B: b})

	case aUnchanged && !bUnchanged:
		// B modified only: transfer B->A, back up A.
		out.TransB2A = append(out.TransB2A, p)
		out.BackupA = append(out.BackupA, p)

	case !aUnchanged && bUnchanged:
		// A modified only: transfer A->B, back up B.
		out.TransA2B = append(out.TransA2B, p)
		out.BackupB = append(out.BackupB, p)
	}

	return nil
}
