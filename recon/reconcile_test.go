package recon

import "testing"

func rec(path string, size int64, mtime float64) FileRecord {
	return FileRecord{Path: path, Size: size, HasMtime: true, Mtime: mtime}
}

func TestReconcileNewOnA(t *testing.T) {
	cmp := newComparator(Settings{Compare: CompareMtime}, nil)

	currA := NewListing([]FileRecord{rec("new.txt", 10, 100)})
	currB := NewListing(nil)
	prevA := NewListing(nil)
	prevB := NewListing(nil)

	out, err := reconcile(currA, currB, prevA, prevB, cmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.NewA) != 1 || out.NewA[0] != "new.txt" {
		t.Fatalf("NewA = %v, want [new.txt]", out.NewA)
	}
}

func TestReconcileDeletedOnOtherSide(t *testing.T) {
	cmp := newComparator(Settings{Compare: CompareMtime}, nil)

	f := rec("gone.txt", 10, 100)
	currA := NewListing([]FileRecord{f})
	currB := NewListing(nil)
	prevA := NewListing([]FileRecord{f})
	prevB := NewListing([]FileRecord{f})

	out, err := reconcile(currA, currB, prevA, prevB, cmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.DelA) != 1 || out.DelA[0] != "gone.txt" {
		t.Fatalf("DelA = %v, want [gone.txt] (unchanged on A, absent on B => delete on A)", out.DelA)
	}
}

func TestReconcileDeleteConflictModifiedOnPresentSide(t *testing.T) {
	cmp := newComparator(Settings{Compare: CompareMtime}, nil)

	prior := rec("edited.txt", 10, 100)
	modified := rec("edited.txt", 20, 200)

	currA := NewListing([]FileRecord{modified})
	currB := NewListing(nil)
	prevA := NewListing([]FileRecord{prior})
	prevB := NewListing([]FileRecord{prior})

	out, err := reconcile(currA, currB, prevA, prevB, cmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.TransA2B) != 1 || out.TransA2B[0] != "edited.txt" {
		t.Fatalf("TransA2B = %v, want [edited.txt] (modification wins over delete)", out.TransA2B)
	}
}

func TestReconcileBothModifiedIsConflict(t *testing.T) {
	cmp := newComparator(Settings{Compare: CompareMtime}, nil)

	prior := rec("both.txt", 10, 100)
	a := rec("both.txt", 20, 200)
	b := rec("both.txt", 30, 300)

	currA := NewListing([]FileRecord{a})
	currB := NewListing([]FileRecord{b})
	prevA := NewListing([]FileRecord{prior})
	prevB := NewListing([]FileRecord{prior})

	out, err := reconcile(currA, currB, prevA, prevB, cmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Conflicts) != 1 || out.Conflicts[0].Path != "both.txt" {
		t.Fatalf("Conflicts = %+v, want one conflict on both.txt", out.Conflicts)
	}
}

func TestReconcileOneSideModifiedOtherUnchanged(t *testing.T) {
	cmp := newComparator(Settings{Compare: CompareMtime}, nil)

	prior := rec("mod.txt", 10, 100)
	a := rec("mod.txt", 20, 200)

	currA := NewListing([]FileRecord{a})
	currB := NewListing([]FileRecord{prior})
	prevA := NewListing([]FileRecord{prior})
	prevB := NewListing([]FileRecord{prior})

	out, err := reconcile(currA, currB, prevA, prevB, cmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.TransA2B) != 1 || out.TransA2B[0] != "mod.txt" {
		t.Fatalf("TransA2B = %v, want [mod.txt]", out.TransA2B)
	}
	if len(out.BackupB) != 1 || out.BackupB[0] != "mod.txt" {
		t.Fatalf("BackupB = %v, want [mod.txt]", out.BackupB)
	}
}

func TestReconcileUnchangedOnBothSidesIsSkipped(t *testing.T) {
	cmp := newComparator(Settings{Compare: CompareSize}, nil)

	f := FileRecord{Path: "same.txt", Size: 10}
	currA := NewListing([]FileRecord{f})
	currB := NewListing([]FileRecord{f})
	prevA := NewListing(nil)
	prevB := NewListing(nil)

	out, err := reconcile(currA, currB, prevA, prevB, cmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.NewA)+len(out.NewB)+len(out.DelA)+len(out.DelB)+len(out.TransA2B)+len(out.TransB2A)+len(out.Conflicts) != 0 {
		t.Fatalf("expected no actions for identical files, got %+v", out)
	}
}

func TestReconcileFirstRunNoPriorBothPresentDiffer(t *testing.T) {
	cmp := newComparator(Settings{Compare: CompareMtime}, nil)

	a := rec("x.txt", 10, 100)
	b := rec("x.txt", 20, 200)

	currA := NewListing([]FileRecord{a})
	currB := NewListing([]FileRecord{b})
	prevA := NewListing(nil)
	prevB := NewListing(nil)

	out, err := reconcile(currA, currB, prevA, prevB, cmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Conflicts) != 1 {
		t.Fatalf("Conflicts = %+v, want one conflict (no prior state to disambiguate)", out.Conflicts)
	}
}
