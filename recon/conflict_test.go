package recon

import "testing"

func TestResolveOneConflictModeA(t *testing.T) {
	c := ConflictCase{Path: "x.txt", A: FileRecord{Size: 1}, B: FileRecord{Size: 2}}
	res, err := resolveOne(c, Settings{ConflictMode: ConflictA}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Winner != "A" || res.TagA || res.TagB {
		t.Fatalf("res = %+v, want Winner=A, no tags", res)
	}
}

func TestResolveOneConflictModeATagsLoserWhenTagConflictTrue(t *testing.T) {
	c := ConflictCase{Path: "x.txt"}
	res, err := resolveOne(c, Settings{ConflictMode: ConflictA, TagConflict: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Winner != "A" || !res.TagB {
		t.Fatalf("res = %+v, want Winner=A with loser B tagged", res)
	}
}

func TestResolveOneConflictNewer(t *testing.T) {
	c := ConflictCase{
		Path: "x.txt",
		A:    FileRecord{HasMtime: true, Mtime: 200},
		B:    FileRecord{HasMtime: true, Mtime: 100},
	}
	res, err := resolveOne(c, Settings{ConflictMode: ConflictNewer}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Winner != "A" {
		t.Fatalf("res.Winner = %q, want A (A is newer)", res.Winner)
	}
}

func TestResolveOneConflictOlder(t *testing.T) {
	c := ConflictCase{
		Path: "x.txt",
		A:    FileRecord{HasMtime: true, Mtime: 200},
		B:    FileRecord{HasMtime: true, Mtime: 100},
	}
	res, err := resolveOne(c, Settings{ConflictMode: ConflictOlder}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Winner != "B" {
		t.Fatalf("res.Winner = %q, want B (B is older)", res.Winner)
	}
}

func TestResolveOneConflictNewerTiesFallBackToTagBoth(t *testing.T) {
	c := ConflictCase{
		Path: "x.txt",
		A:    FileRecord{HasMtime: true, Mtime: 100},
		B:    FileRecord{HasMtime: true, Mtime: 100},
	}
	res, err := resolveOne(c, Settings{ConflictMode: ConflictNewer}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Winner != "" {
		t.Fatalf("res.Winner = %q, want tie to tag-both (no winner)", res.Winner)
	}
}

func TestResolveOneConflictLargerSmaller(t *testing.T) {
	c := ConflictCase{Path: "x.txt", A: FileRecord{Size: 100}, B: FileRecord{Size: 50}}

	res, err := resolveOne(c, Settings{ConflictMode: ConflictLarger}, nil)
	if err != nil || res.Winner != "A" {
		t.Fatalf("ConflictLarger: res = %+v, err = %v, want Winner=A", res, err)
	}

	res, err = resolveOne(c, Settings{ConflictMode: ConflictSmaller}, nil)
	if err != nil || res.Winner != "B" {
		t.Fatalf("ConflictSmaller: res = %+v, err = %v, want Winner=B", res, err)
	}
}

func TestResolveOneConflictTag(t *testing.T) {
	c := ConflictCase{Path: "x.txt"}
	res, err := resolveOne(c, Settings{ConflictMode: ConflictTag}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.TagA || !res.TagB {
		t.Fatalf("res = %+v, want both tagged", res)
	}
}

func TestResolveOneInteractivePromptOverridesPolicy(t *testing.T) {
	c := ConflictCase{Path: "x.txt"}
	s := Settings{
		ConflictMode: ConflictA,
		Interactive:  true,
		ConflictPrompt: func(ConflictCase) (Resolution, bool) {
			return Resolution{Winner: "B"}, true
		},
	}
	res, err := resolveOne(c, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Winner != "B" {
		t.Fatalf("res.Winner = %q, want B (prompt should override policy)", res.Winner)
	}
}

func TestApplyResolutionWinnerNoTag(t *testing.T) {
	out := &Intermediates{}
	c := ConflictCase{Path: "x.txt"}
	applyResolution(out, c, Resolution{Winner: "A"}, "20260101T000000Z")

	if len(out.TransA2B) != 1 || out.TransA2B[0] != "x.txt" {
		t.Fatalf("TransA2B = %v, want [x.txt]", out.TransA2B)
	}
	if len(out.BackupB) != 1 || out.BackupB[0] != "x.txt" {
		t.Fatalf("BackupB = %v, want [x.txt]", out.BackupB)
	}
}

func TestApplyResolutionWinnerWithTagLoser(t *testing.T) {
	out := &Intermediates{}
	c := ConflictCase{Path: "x.txt"}
	applyResolution(out, c, Resolution{Winner: "A", TagB: true}, "20260101T000000Z")

	if len(out.MovesB) != 1 || out.MovesB[0].From != "x.txt" {
		t.Fatalf("MovesB = %+v, want a rename off x.txt", out.MovesB)
	}
	tagged := out.MovesB[0].To
	if tagged == "x.txt" {
		t.Fatal("tagged name should differ from original path")
	}
	// The tagged loser was just renamed onto B (MovesB), so it must be read
	// from B and transferred across to A, not the other way around.
	found := false
	for _, p := range out.TransB2A {
		if p == tagged {
			found = true
		}
	}
	if !found {
		t.Fatalf("TransB2A = %v, want it to include the tagged name %q", out.TransB2A, tagged)
	}
}

func TestApplyResolutionTagBoth(t *testing.T) {
	out := &Intermediates{}
	c := ConflictCase{Path: "x.txt"}
	applyResolution(out, c, Resolution{}, "20260101T000000Z")

	if len(out.MovesA) != 1 || len(out.MovesB) != 1 {
		t.Fatalf("expected one rename per side, got MovesA=%+v MovesB=%+v", out.MovesA, out.MovesB)
	}
	if len(out.TransA2B) != 1 || len(out.TransB2A) != 1 {
		t.Fatalf("expected one cross-transfer per side, got TransA2B=%v TransB2A=%v", out.TransA2B, out.TransB2A)
	}
}

func TestTaggedNamePreservesExtension(t *testing.T) {
	got := taggedName("dir/file.txt", "20260101T000000Z", "A")
	want := "dir/file.20260101T000000Z.A.txt"
	if got != want {
		t.Fatalf("taggedName = %q, want %q", got, want)
	}
}

func TestDedupAppendOnce(t *testing.T) {
	ss := []string{"a", "b"}
	ss = dedupAppendOnce(ss, "a")
	if len(ss) != 2 {
		t.Fatalf("dedupAppendOnce should not duplicate: %v", ss)
	}
	ss = dedupAppendOnce(ss, "c")
	if len(ss) != 3 {
		t.Fatalf("dedupAppendOnce should append new values: %v", ss)
	}
}
