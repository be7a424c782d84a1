package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lineage/internal/errors"
	"lineage/internal/history"
	"lineage/internal/revision"
)

var sampleTime = time.Date(2024, 5, 17, 9, 30, 0, 123456789, time.UTC)

func setupTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := Open(tmpDir, "", logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db, tmpDir
}

func TestDatabaseInitialization(t *testing.T) {
	db, tmpDir := setupTestDB(t)

	dbPath := filepath.Join(tmpDir, DefaultDBName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("Database file was not created at %s", dbPath)
	}

	version, err := db.getSchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", currentSchemaVersion, version)
	}

	for _, table := range []string{"repositories", "runs", "commits", "change_items"} {
		var name string
		err := db.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s missing: %v", table, err)
		}
	}
}

func TestPragmas(t *testing.T) {
	db, _ := setupTestDB(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			var got string
			if err := db.conn.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
				t.Fatalf("PRAGMA %s: %v", tt.pragma, err)
			}
			if got != tt.want {
				t.Errorf("PRAGMA %s = %s, want %s", tt.pragma, got, tt.want)
			}
		})
	}
}

func TestMigrationFromV1(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := Open(tmpDir, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.conn.Exec(`DROP TABLE runs`); err != nil {
		t.Fatalf("drop runs: %v", err)
	}
	if _, err := db.conn.Exec(`UPDATE schema_version SET version = 1`); err != nil {
		t.Fatalf("downgrade: %v", err)
	}
	_ = db.Close()

	reopened, err := Open(tmpDir, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	version, err := reopened.getSchemaVersion(context.Background())
	if err != nil || version != currentSchemaVersion {
		t.Fatalf("version after migration = %d, %v", version, err)
	}
	if _, err := reopened.conn.Exec(`SELECT COUNT(*) FROM runs`); err != nil {
		t.Errorf("runs table missing after migration: %v", err)
	}
}

func TestEnsureRepository(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	first, err := db.EnsureRepository(ctx, "core", "git", "/src/core")
	if err != nil {
		t.Fatalf("EnsureRepository: %v", err)
	}
	again, err := db.EnsureRepository(ctx, "core", "git", "/src/core")
	if err != nil {
		t.Fatalf("EnsureRepository again: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("IDs differ: %d vs %d", first.ID, again.ID)
	}

	if _, err := db.EnsureRepository(ctx, "core", "svn", "/src/core"); !errors.IsCode(err, errors.ConfigInvalid) {
		t.Errorf("backend change error = %v, want CONFIG_INVALID", err)
	}
	if _, err := db.GetRepository(ctx, "missing"); !errors.IsCode(err, errors.InvalidInput) {
		t.Errorf("GetRepository(missing) error = %v", err)
	}

	if _, err := db.EnsureRepository(ctx, "alpha", "svn", "/src/alpha"); err != nil {
		t.Fatalf("EnsureRepository: %v", err)
	}
	repos, err := db.ListRepositories(ctx)
	if err != nil {
		t.Fatalf("ListRepositories: %v", err)
	}
	if len(repos) != 2 || repos[0].Name != "alpha" || repos[1].Name != "core" {
		t.Errorf("ListRepositories = %+v", repos)
	}
}

func sampleCommits() []history.Commit[revision.Linear] {
	return []history.Commit[revision.Linear]{
		{
			Revision: 1, ParentRevision: 0, HasParent: true, Author: "ann", Message: "init",
			Items: []history.ChangeItem[revision.Linear]{
				{Path: "a.c", Kind: history.Added},
				{Path: "b.c", Kind: history.Added},
			},
		},
		{
			Revision: 4, ParentRevision: 3, HasParent: true, Author: "bob", Message: "move a",
			Items: []history.ChangeItem[revision.Linear]{
				{Path: "lib/a.c", Kind: history.Added, CopyFrom: &history.CopySource[revision.Linear]{Path: "a.c", Revision: 3}},
				{Path: "a.c", Kind: history.Deleted},
			},
		},
		{
			Revision: 10, ParentRevision: 9, HasParent: true,
			Items: []history.ChangeItem[revision.Linear]{
				{Path: "b.c", Kind: history.Modified},
			},
		},
	}
}

func TestJournalAppendLoad(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	repo, err := db.EnsureRepository(ctx, "svnrepo", "svn", "file:///repo")
	if err != nil {
		t.Fatalf("EnsureRepository: %v", err)
	}
	journal := NewJournal[revision.Linear](db, repo, revision.LinearOrdering{})

	commits := sampleCommits()
	for _, c := range commits {
		if err := journal.Append(ctx, "run-1", c); err != nil {
			t.Fatalf("Append(r%d): %v", c.Revision, err)
		}
	}
	// appending a journalled revision again is harmless
	if err := journal.Append(ctx, "run-2", commits[1]); err != nil {
		t.Fatalf("repeat Append: %v", err)
	}

	loaded, err := journal.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != len(commits) {
		t.Fatalf("Load returned %d commits, want %d", len(loaded), len(commits))
	}
	for i, c := range loaded {
		want := commits[i]
		if c.Revision != want.Revision || c.ParentRevision != want.ParentRevision || !c.HasParent {
			t.Errorf("commit %d = r%d (parent %d)", i, c.Revision, c.ParentRevision)
		}
		if c.Author != want.Author || c.Message != want.Message || len(c.Items) != len(want.Items) {
			t.Errorf("commit %d = %+v", i, c)
		}
	}
	move := loaded[1].Items[0]
	if move.CopyFrom == nil || move.CopyFrom.Path != "a.c" || move.CopyFrom.Revision != 3 {
		t.Errorf("copy-from lost: %+v", move)
	}

	if err := db.FinishRun(ctx, "run-1", 3, RunComplete); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	runs, err := db.ListRuns(ctx, repo.ID)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != RunComplete || runs[0].Commits != 3 || runs[0].FinishedAt == nil {
		t.Errorf("ListRuns = %+v", runs)
	}

	if err := journal.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if loaded, _ := journal.Load(ctx); len(loaded) != 0 {
		t.Errorf("Load after Reset returned %d commits", len(loaded))
	}
}

func TestJournalCommitOrdering(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	repo, err := db.EnsureRepository(ctx, "gitrepo", "git", "/src/gitrepo")
	if err != nil {
		t.Fatalf("EnsureRepository: %v", err)
	}
	journal := NewJournal[revision.Commit](db, repo, revision.CommitOrdering{})

	root := history.Commit[revision.Commit]{
		Revision: revision.Commit{Hash: "0123456789abcdef", Time: sampleTime},
		Items:    []history.ChangeItem[revision.Commit]{{Path: "go.mod", Kind: history.Added}},
	}
	if err := journal.Append(ctx, "", root); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := journal.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].HasParent || !loaded[0].Revision.Time.Equal(sampleTime) {
		t.Errorf("Load = %+v", loaded)
	}
	if loaded[0].Revision.Hash != root.Revision.Hash {
		t.Errorf("hash = %s", loaded[0].Revision.Hash)
	}
}
