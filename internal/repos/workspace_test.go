package repos

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"core", false},
		{"core-lib_2", false},
		{"", true},
		{"has space", true},
		{"dot.name", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateName(tt.name); (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestWorkspaceAddRemove(t *testing.T) {
	ws := NewWorkspace("team", "")
	dir := t.TempDir()

	entry, err := ws.AddRepo(RepoEntry{Name: "api", Backend: "git", Path: dir})
	if err != nil {
		t.Fatalf("AddRepo: %v", err)
	}
	if entry.RepoUID == "" || entry.AddedAt.IsZero() {
		t.Errorf("entry = %+v", entry)
	}

	tests := []struct {
		name  string
		entry RepoEntry
		want  string
	}{
		{"duplicate name", RepoEntry{Name: "api", Backend: "git", Path: t.TempDir()}, "already exists"},
		{"duplicate path", RepoEntry{Name: "api2", Backend: "git", Path: dir}, "already exists"},
		{"bad backend", RepoEntry{Name: "x", Backend: "cvs", Path: t.TempDir()}, "unknown backend"},
		{"no path", RepoEntry{Name: "y", Backend: "svn"}, "no path"},
		{"bad name", RepoEntry{Name: "a b", Backend: "git", Path: t.TempDir()}, "letters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ws.AddRepo(tt.entry)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("AddRepo error = %v, want %q", err, tt.want)
			}
		})
	}

	if ws.GetRepo("api") == nil {
		t.Fatal("GetRepo(api) = nil")
	}
	if err := ws.RemoveRepo("api"); err != nil {
		t.Fatalf("RemoveRepo: %v", err)
	}
	if err := ws.RemoveRepo("api"); err == nil {
		t.Error("removing a missing repo should fail")
	}
	if len(ws.Repos) != 0 {
		t.Errorf("Repos = %v", ws.Repos)
	}
}

func TestWorkspaceSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lineage.toml")

	ws := NewWorkspace("team", "all services")
	ws.Concurrency = 2
	if _, err := ws.AddRepo(RepoEntry{Name: "api", Backend: "git", Path: t.TempDir(), Ref: "main", Exclude: []string{"vendor/**"}}); err != nil {
		t.Fatal(err)
	}
	if err := ws.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadWorkspace(path)
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
	if loaded.Name != "team" || loaded.Concurrency != 2 || len(loaded.Repos) != 1 {
		t.Fatalf("loaded = %+v", loaded)
	}
	got := loaded.Repos[0]
	if got.Ref != "main" || got.RepoUID != ws.Repos[0].RepoUID || len(got.Exclude) != 1 {
		t.Errorf("repo = %+v", got)
	}
}

func TestLoadWorkspaceRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ws.toml")
	content := `name = "legacy"

[[repos]]
name = "old"
backend = "svn"
path = "old"
log_file = "logs/old.xml"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ws, err := LoadWorkspace(path)
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
	r := ws.Repos[0]
	if r.Path != filepath.Join(dir, "old") || r.LogFile != filepath.Join(dir, "logs", "old.xml") {
		t.Errorf("repo = %+v", r)
	}
}

func TestLoadWorkspaceInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `name = `},
		{"duplicate", "[[repos]]\nname = \"a\"\nbackend = \"git\"\npath = \"/a\"\n[[repos]]\nname = \"a\"\nbackend = \"git\"\npath = \"/b\"\n"},
		{"backend", "[[repos]]\nname = \"a\"\nbackend = \"hg\"\npath = \"/a\"\n"},
		{"concurrency", "concurrency = -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ws.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadWorkspace(path); err == nil {
				t.Error("LoadWorkspace succeeded")
			}
		})
	}
}
