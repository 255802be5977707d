package recon

import "testing"

func TestDefaultSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.RemoteA, s.RemoteB, s.Name = "/a", "/b", "pair"

	if err := s.Validate(); err != nil {
		t.Fatalf("DefaultSettings() should validate once remotes/name are set, got %v", err)
	}
}

func TestValidateRequiresRemotesAndName(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for missing remotes/name")
	} else if !IsKind(err, KindConfigError) {
		t.Fatalf("error = %v, want KindConfigError", err)
	}
}

func TestValidateRejectsInvalidConflictMode(t *testing.T) {
	s := DefaultSettings()
	s.RemoteA, s.RemoteB, s.Name = "/a", "/b", "pair"
	s.ConflictMode = "bogus"

	if err := s.Validate(); err == nil || !IsKind(err, KindConfigError) {
		t.Fatalf("expected KindConfigError for invalid conflict_mode, got %v", err)
	}
}

func TestValidateWorkdirSentinelOK(t *testing.T) {
	s := Settings{}
	if err := s.ValidateWorkdir("/data/.reconsync", "/data"); err != nil {
		t.Fatalf("dot-prefixed sentinel workdir should validate, got %v", err)
	}
}

func TestValidateWorkdirOverlapWithoutSentinelFails(t *testing.T) {
	s := Settings{}
	if err := s.ValidateWorkdir("/data/state", "/data"); err == nil {
		t.Fatal("workdir overlapping the synced root without a dot-prefix should fail")
	}
}

func TestValidateWorkdirExternalOK(t *testing.T) {
	s := Settings{}
	if err := s.ValidateWorkdir("/elsewhere/state", "/data"); err != nil {
		t.Fatalf("external workdir should validate, got %v", err)
	}
}

func TestApplyOverrideRejectsMalformedKV(t *testing.T) {
	s := DefaultSettings()
	if err := s.ApplyOverride("not-a-kv-pair"); err == nil {
		t.Fatal("expected error for malformed override")
	}
}

func TestApplyOverrideSetsFields(t *testing.T) {
	s := DefaultSettings()
	for _, kv := range []string{
		"remoteA=/a",
		"remoteB=/b",
		"name=pair1",
		"dt=2.5",
		"backup=false",
		"action_threads=8",
		"reset_state=true",
	} {
		if err := s.ApplyOverride(kv); err != nil {
			t.Fatalf("ApplyOverride(%q) = %v", kv, err)
		}
	}
	if s.RemoteA != "/a" || s.RemoteB != "/b" || s.Name != "pair1" {
		t.Fatalf("remotes/name not applied: %+v", s)
	}
	if s.Dt != 2.5 || s.Backup != false || s.ActionThreads != 8 || !s.ResetState {
		t.Fatalf("fields not applied correctly: %+v", s)
	}
}

func TestApplyOverrideUnknownKeyFails(t *testing.T) {
	s := DefaultSettings()
	if err := s.ApplyOverride("bogus_key=1"); err == nil {
		t.Fatal("expected error for unknown override key")
	}
}

func TestApplyOverrideLegacyNewerTag(t *testing.T) {
	s := DefaultSettings()
	if err := s.ApplyOverride("conflict_mode=newer_tag"); err != nil {
		t.Fatal(err)
	}
	if s.ConflictMode != ConflictNewer || !s.TagConflict {
		t.Fatalf("newer_tag should map to ConflictNewer+TagConflict, got mode=%q tag=%v", s.ConflictMode, s.TagConflict)
	}
}

func TestParseConflictModePlainValue(t *testing.T) {
	mode, tag, deprecated := parseConflictMode("older")
	if mode != ConflictOlder || tag || deprecated {
		t.Fatalf("parseConflictMode(older) = %q, %v, %v, want older, false, false", mode, tag, deprecated)
	}
}
