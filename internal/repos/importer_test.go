package repos

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lineage/internal/paths"
)

func svnEntry(t *testing.T, name string, withLog bool) RepoEntry {
	t.Helper()
	dir := t.TempDir()
	logFile := filepath.Join(dir, "svn-log.xml")
	if withLog {
		if err := os.WriteFile(logFile, []byte(svnLog), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return RepoEntry{Name: name, Backend: "svn", Path: dir, LogFile: logFile}
}

func TestImportAll(t *testing.T) {
	ws := NewWorkspace("team", "")
	ws.Concurrency = 2
	for _, e := range []RepoEntry{
		svnEntry(t, "one", true),
		svnEntry(t, "two", true),
		svnEntry(t, "broken", false),
	} {
		if _, err := ws.AddRepo(e); err != nil {
			t.Fatal(err)
		}
	}

	outcomes, err := ImportAll(context.Background(), ws, ImportOptions{}, testLogger())
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes", len(outcomes))
	}
	for i, want := range []string{"one", "two", "broken"} {
		if outcomes[i].Name != want {
			t.Errorf("outcome %d is %s, want %s", i, outcomes[i].Name, want)
		}
	}
	if outcomes[0].Commits != 3 || outcomes[1].Commits != 3 || outcomes[0].Error != "" {
		t.Errorf("outcomes = %+v, %+v", outcomes[0], outcomes[1])
	}
	if outcomes[2].Error == "" {
		t.Error("broken repo reported no error")
	}
	if outcomes[0].DataDir == outcomes[1].DataDir {
		t.Error("repositories share a data directory")
	}
}

func TestImportAllOptions(t *testing.T) {
	ws := NewWorkspace("team", "")
	for _, e := range []RepoEntry{svnEntry(t, "good", true), svnEntry(t, "broken", false)} {
		if _, err := ws.AddRepo(e); err != nil {
			t.Fatal(err)
		}
	}

	outcomes, err := ImportAll(context.Background(), ws, ImportOptions{Only: []string{"good"}}, testLogger())
	if err != nil || len(outcomes) != 1 || outcomes[0].Name != "good" {
		t.Errorf("Only: outcomes = %v, err = %v", outcomes, err)
	}

	if _, err := ImportAll(context.Background(), ws, ImportOptions{Only: []string{"ghost"}}, testLogger()); err == nil {
		t.Error("Only with an unknown repo should fail")
	}

	if _, err := ImportAll(context.Background(), ws, ImportOptions{FailFast: true}, testLogger()); err == nil {
		t.Error("FailFast should return the failure")
	}
}

func TestImportAllWithoutPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv(paths.HomeEnvVar, home)

	entry := svnEntry(t, "remote", true)
	entry.Path = ""
	ws := NewWorkspace("team", "")
	if _, err := ws.AddRepo(entry); err != nil {
		t.Fatalf("AddRepo: %v", err)
	}

	target, err := TargetFromEntry(ws.Repos[0])
	if err != nil {
		t.Fatalf("TargetFromEntry: %v", err)
	}
	if !strings.HasPrefix(target.DataDir(), filepath.Join(home, paths.ReposSubdir, "remote-")) {
		t.Errorf("DataDir = %s, want one under %s", target.DataDir(), home)
	}

	outcomes, err := ImportAll(context.Background(), ws, ImportOptions{FailFast: true}, testLogger())
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if outcomes[0].Commits != 3 || outcomes[0].DataDir != target.DataDir() {
		t.Errorf("outcome = %+v", outcomes[0])
	}
}
