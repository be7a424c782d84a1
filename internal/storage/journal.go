package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lineage/internal/errors"
	"lineage/internal/history"
	"lineage/internal/revision"
)

// Repository is a journalled repository
type Repository struct {
	ID        int64
	Name      string
	Backend   string
	Location  string
	CreatedAt time.Time
}

// Run is one import run over a repository
type Run struct {
	ID         string
	RepoID     int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Commits    int
	Status     string
}

// Run statuses
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// EnsureRepository returns the repository called name, registering it first
// if needed. The backend of an existing repository cannot change.
func (db *DB) EnsureRepository(ctx context.Context, name, backend, location string) (*Repository, error) {
	repo, err := db.GetRepository(ctx, name)
	if err == nil {
		if repo.Backend != backend {
			return nil, errors.Newf(errors.ConfigInvalid,
				"repository %s was journalled with backend %s, not %s", name, repo.Backend, backend)
		}
		return repo, nil
	}
	if !errors.IsCode(err, errors.InvalidInput) {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO repositories (name, backend, location, created_at)
		VALUES (?, ?, ?, ?)
	`, name, backend, location, now.Format(time.RFC3339))
	if err != nil {
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to register repository")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to register repository")
	}

	db.logger.Debug("Registered repository", "name", name, "backend", backend)
	return &Repository{ID: id, Name: name, Backend: backend, Location: location, CreatedAt: now}, nil
}

// GetRepository looks a repository up by name
func (db *DB) GetRepository(ctx context.Context, name string) (*Repository, error) {
	var repo Repository
	var createdAt string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, backend, location, created_at
		FROM repositories WHERE name = ?
	`, name).Scan(&repo.ID, &repo.Name, &repo.Backend, &repo.Location, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.InvalidInput, "repository %s is not journalled", name)
	}
	if err != nil {
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to read repository")
	}
	repo.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &repo, nil
}

// ListRepositories returns every journalled repository by name
func (db *DB) ListRepositories(ctx context.Context) ([]Repository, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, backend, location, created_at
		FROM repositories ORDER BY name
	`)
	if err != nil {
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to list repositories")
	}
	defer rows.Close()

	var repos []Repository
	for rows.Next() {
		var repo Repository
		var createdAt string
		if err := rows.Scan(&repo.ID, &repo.Name, &repo.Backend, &repo.Location, &createdAt); err != nil {
			return nil, errors.Wrap(errors.StorageFailure, err, "failed to scan repository")
		}
		repo.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// FinishRun records the outcome of an import run
func (db *DB) FinishRun(ctx context.Context, runID string, commits int, status string) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, commits = ?, status = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), commits, status, runID)
	if err != nil {
		return errors.Wrap(errors.StorageFailure, err, "failed to finish run")
	}
	return nil
}

// ListRuns returns the runs of a repository, newest first
func (db *DB) ListRuns(ctx context.Context, repoID int64) ([]Run, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, repo_id, started_at, finished_at, commits, status
		FROM runs WHERE repo_id = ? ORDER BY started_at DESC, id
	`, repoID)
	if err != nil {
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&run.ID, &run.RepoID, &startedAt, &finishedAt, &run.Commits, &run.Status); err != nil {
			return nil, errors.Wrap(errors.StorageFailure, err, "failed to scan run")
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(time.RFC3339, finishedAt.String)
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Journal stores the commits of one repository in integration order.
// Revisions are kept in the ordering's text form.
type Journal[R any] struct {
	db    *DB
	repo  *Repository
	order revision.Ordering[R]
}

// NewJournal creates a journal for repo
func NewJournal[R any](db *DB, repo *Repository, order revision.Ordering[R]) *Journal[R] {
	return &Journal[R]{db: db, repo: repo, order: order}
}

// Repository returns the journalled repository
func (j *Journal[R]) Repository() *Repository {
	return j.repo
}

// Append stores commit as the newest journal entry. A revision already in
// the journal is left untouched.
func (j *Journal[R]) Append(ctx context.Context, runID string, commit history.Commit[R]) error {
	rev := j.order.Format(commit.Revision)
	var parent sql.NullString
	if commit.HasParent {
		parent = sql.NullString{String: j.order.Format(commit.ParentRevision), Valid: true}
	}
	now := time.Now().UTC().Format(time.RFC3339)

	err := j.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO commits (repo_id, seq, revision, parent, author, message, run_id, integrated_at)
			VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM commits WHERE repo_id = ?), ?, ?, ?, ?, ?, ?)
		`, j.repo.ID, j.repo.ID, rev, parent, commit.Author, commit.Message, runID, now)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		if runID != "" {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO runs (id, repo_id, started_at, status)
				VALUES (?, ?, ?, ?)
			`, runID, j.repo.ID, now, RunRunning); err != nil {
				return err
			}
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO change_items (repo_id, revision, idx, path, kind, copy_path, copy_revision)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, item := range commit.Items {
			var copyPath, copyRev sql.NullString
			if item.CopyFrom != nil {
				copyPath = sql.NullString{String: item.CopyFrom.Path, Valid: true}
				copyRev = sql.NullString{String: j.order.Format(item.CopyFrom.Revision), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, j.repo.ID, rev, i, item.Path, string(item.Kind), copyPath, copyRev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.StorageFailure, err, fmt.Sprintf("failed to journal commit %s", rev))
	}
	return nil
}

// Load reads every journalled commit in integration order
func (j *Journal[R]) Load(ctx context.Context) ([]history.Commit[R], error) {
	rows, err := j.db.conn.QueryContext(ctx, `
		SELECT revision, parent, author, message
		FROM commits WHERE repo_id = ? ORDER BY seq
	`, j.repo.ID)
	if err != nil {
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to read journal")
	}

	var commits []history.Commit[R]
	index := make(map[string]int)
	for rows.Next() {
		var rev string
		var parent sql.NullString
		var c history.Commit[R]
		if err := rows.Scan(&rev, &parent, &c.Author, &c.Message); err != nil {
			rows.Close()
			return nil, errors.Wrap(errors.StorageFailure, err, "failed to scan commit")
		}
		if c.Revision, err = j.parse(rev); err != nil {
			rows.Close()
			return nil, err
		}
		if parent.Valid {
			if c.ParentRevision, err = j.parse(parent.String); err != nil {
				rows.Close()
				return nil, err
			}
			c.HasParent = true
		}
		index[rev] = len(commits)
		commits = append(commits, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to read journal")
	}

	items, err := j.db.conn.QueryContext(ctx, `
		SELECT revision, path, kind, copy_path, copy_revision
		FROM change_items WHERE repo_id = ? ORDER BY revision, idx
	`, j.repo.ID)
	if err != nil {
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to read change items")
	}
	defer items.Close()

	for items.Next() {
		var rev, path, kind string
		var copyPath, copyRev sql.NullString
		if err := items.Scan(&rev, &path, &kind, &copyPath, &copyRev); err != nil {
			return nil, errors.Wrap(errors.StorageFailure, err, "failed to scan change item")
		}
		i, ok := index[rev]
		if !ok {
			continue
		}
		item := history.ChangeItem[R]{Path: path, Kind: history.ChangeKind(kind)}
		if copyPath.Valid {
			from, err := j.parse(copyRev.String)
			if err != nil {
				return nil, err
			}
			item.CopyFrom = &history.CopySource[R]{Path: copyPath.String, Revision: from}
		}
		commits[i].Items = append(commits[i].Items, item)
	}
	return commits, items.Err()
}

// Reset drops every journalled commit of the repository
func (j *Journal[R]) Reset(ctx context.Context) error {
	err := j.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM change_items WHERE repo_id = ?`, j.repo.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM commits WHERE repo_id = ?`, j.repo.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE repo_id = ?`, j.repo.ID)
		return err
	})
	if err != nil {
		return errors.Wrap(errors.StorageFailure, err, "failed to reset journal")
	}
	j.db.logger.Info("Journal reset", "repo", j.repo.Name)
	return nil
}

func (j *Journal[R]) parse(s string) (R, error) {
	r, err := j.order.Parse(s)
	if err != nil {
		return r, errors.Wrap(errors.InvalidRevision, err, "journal holds an unreadable revision")
	}
	return r, nil
}
