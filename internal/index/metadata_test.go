package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMeta_NoFile(t *testing.T) {
	tmpDir := t.TempDir()

	meta, err := LoadMeta(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != nil {
		t.Fatal("expected nil meta when file doesn't exist")
	}
}

func TestSaveAndLoadMeta(t *testing.T) {
	tmpDir := t.TempDir()

	original := &ImportMeta{
		UpdatedAt:    time.Now().Truncate(time.Second),
		RunID:        "6f1c0d1e-8f7a-4d43-9a43-0d6b1c1f2e3a",
		Backend:      "git",
		Ref:          "main",
		LastRevision: "1700000000000000000:abc123def456",
		Commits:      42,
		Paths:        17,
		Duration:     "3.2s",
	}

	if err := original.Save(tmpDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path := filepath.Join(tmpDir, metadataFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("metadata file was not created")
	}

	loaded, err := LoadMeta(tmpDir)
	if err != nil {
		t.Fatalf("LoadMeta failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected metadata")
	}
	if loaded.Version != MetadataVersion {
		t.Errorf("Version = %d, want %d", loaded.Version, MetadataVersion)
	}
	if !loaded.UpdatedAt.Equal(original.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", loaded.UpdatedAt, original.UpdatedAt)
	}
	if loaded.LastRevision != original.LastRevision || loaded.Commits != 42 || loaded.RunID != original.RunID {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoadMeta_VersionMismatch(t *testing.T) {
	tmpDir := t.TempDir()

	content := `{"version": 999, "updatedAt": "2024-01-01T00:00:00Z"}`
	path := filepath.Join(tmpDir, metadataFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	meta, err := LoadMeta(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != nil {
		t.Fatal("expected nil meta for version mismatch")
	}
}

func TestLoadMeta_Corrupt(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, metadataFile), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMeta(tmpDir); err == nil {
		t.Fatal("expected an error for corrupt metadata")
	}
}

func TestCheckFreshness_NilMeta(t *testing.T) {
	var meta *ImportMeta
	result := meta.CheckFreshness("42")

	if result.Fresh {
		t.Error("nil meta should not be fresh")
	}
	if result.Reason == "" {
		t.Error("should have a reason")
	}
}

func TestCheckFreshness_Revision(t *testing.T) {
	meta := &ImportMeta{LastRevision: "41", UpdatedAt: time.Now()}

	if r := meta.CheckFreshness("41"); !r.Fresh {
		t.Errorf("same revision should be fresh: %+v", r)
	}
	r := meta.CheckFreshness("57")
	if r.Fresh {
		t.Error("older import should be stale")
	}
	if !strings.Contains(r.Reason, "41") || !strings.Contains(r.Reason, "57") || r.CurrentRevision != "57" {
		t.Errorf("result = %+v", r)
	}
}

func TestCheckFreshness_CommitHash(t *testing.T) {
	meta := &ImportMeta{LastRevision: "1700000000000000000:abc123def456"}
	if r := meta.CheckFreshness("abc123def456"); !r.Fresh {
		t.Errorf("matching head hash should be fresh: %+v", r)
	}
	if r := meta.CheckFreshness("0123abcd"); r.Fresh {
		t.Error("different head hash should be stale")
	}
}

func TestCheckFreshness_TimeBased(t *testing.T) {
	recent := &ImportMeta{UpdatedAt: time.Now().Add(-1 * time.Hour)}
	if result := recent.CheckFreshness(""); !result.Fresh {
		t.Error("recent import should be fresh when the head is unknown")
	}

	old := &ImportMeta{UpdatedAt: time.Now().Add(-48 * time.Hour)}
	result := old.CheckFreshness("")
	if result.Fresh {
		t.Error("old import should be stale when the head is unknown")
	}
	if !strings.Contains(result.Reason, "2 days") {
		t.Errorf("Reason = %q", result.Reason)
	}
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5 minutes"},
		{1 * time.Minute, "1 minute"},
		{2 * time.Hour, "2 hours"},
		{1 * time.Hour, "1 hour"},
		{48 * time.Hour, "2 days"},
		{24 * time.Hour, "1 day"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			result := humanDuration(tc.duration)
			if result != tc.expected {
				t.Errorf("humanDuration(%v) = %q, want %q", tc.duration, result, tc.expected)
			}
		})
	}
}
