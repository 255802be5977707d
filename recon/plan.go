package recon

// PlanLists is the final, ordered action plan produced by the Action
// Planner (C8), consumed exclusively by the Executor (C9). Per spec.md §3,
// plan lists exist only during a run.
type PlanLists struct {
	DelA, DelB       []string
	BackupA, BackupB []string
	MovesA, MovesB   []MovePair
	TransA2B, TransB2A []string
}

// buildPlan implements C8: translate the Reconciler/Rename-Detector/
// Conflict-Resolver intermediates into the final ordered plan. The ordering
// invariant itself (delete -> backup -> move -> transfer) is enforced by the
// Executor's phase sequencing (executor.go), not by field order here; this
// function's job is just to finalize list contents per the backup/
// sync_backups rules in spec.md §4.8.
func buildPlan(out *Intermediates, s Settings) *PlanLists {
	plan := &PlanLists{
		DelA:   append([]string{}, out.DelA...),
		DelB:   append([]string{}, out.DelB...),
		MovesA: append([]MovePair{}, out.MovesA...),
		MovesB: append([]MovePair{}, out.MovesB...),
		TransA2B: append([]string{}, out.TransA2B...),
		TransB2A: append([]string{}, out.TransB2A...),
	}

	// New files are appended to trans[X->otherSide].
	plan.TransA2B = append(plan.TransA2B, out.NewA...)
	plan.TransB2A = append(plan.TransB2A, out.NewB...)

	if !s.Backup {
		// backup disabled: backup[X] is cleared, delete proceeds without backup.
		plan.BackupA = nil
		plan.BackupB = nil
		return plan
	}

	plan.BackupA = append([]string{}, out.BackupA...)
	plan.BackupB = append([]string{}, out.BackupB...)

	if s.SyncBackups {
		// The union of deleted+backed-up files is also appended to the
		// cross-side transfer list so backup archives mirror.
		for _, p := range plan.DelA {
			plan.TransA2B = dedupAppendOnce(plan.TransA2B, p)
		}
		for _, p := range plan.BackupA {
			plan.TransA2B = dedupAppendOnce(plan.TransA2B, p)
		}
		for _, p := range plan.DelB {
			plan.TransB2A = dedupAppendOnce(plan.TransB2A, p)
		}
		for _, p := range plan.BackupB {
			plan.TransB2A = dedupAppendOnce(plan.TransB2A, p)
		}
	}

	return plan
}
