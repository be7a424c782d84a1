package repos

import (
	"context"
	stderrors "errors"
	"log/slog"
	"path/filepath"
	"time"

	"lineage/internal/backends"
	"lineage/internal/backends/git"
	"lineage/internal/backends/svn"
	"lineage/internal/config"
	"lineage/internal/errors"
	"lineage/internal/index"
	"lineage/internal/lineage"
	"lineage/internal/paths"
	"lineage/internal/revision"
	"lineage/internal/session"
	"lineage/internal/storage"
)

// Target is everything needed to import one repository
type Target struct {
	// Name identifies the repository in the journal
	Name    string
	Backend backends.BackendID
	// Root is the git worktree, and the directory whose data dir receives the
	// journal for either backend
	Root string

	Git git.Options
	Svn svn.Options

	Include []string
	Exclude []string

	CacheSize int
	Pairing   lineage.MovePairing

	// Data overrides the data directory derived from Root
	Data string

	// Journal selects the SQLite journal; without it the graph is kept as a
	// snapshot file
	Journal bool
	DBName  string
	// Reset discards the stored graph before importing
	Reset bool
}

// Outcome is the result of importing one repository
type Outcome struct {
	Name         string          `json:"name"`
	Backend      string          `json:"backend"`
	DataDir      string          `json:"dataDir"`
	Report       *session.Report `json:"report,omitempty"`
	LastRevision string          `json:"lastRevision,omitempty"`
	Commits      int             `json:"commits"`
	Paths        int             `json:"paths"`
	Moves        int             `json:"moves"`
	Error        string          `json:"error,omitempty"`
}

// TargetFromConfig builds the target of the repository at root
func TargetFromConfig(root string, cfg *config.Config) Target {
	return Target{
		Name:    filepath.Base(root),
		Backend: backends.BackendID(cfg.Backend),
		Root:    root,
		Git: git.Options{
			Ref:           cfg.Git.Ref,
			DetectRenames: cfg.Git.DetectRenames,
			MaxCommits:    cfg.Git.MaxCommits,
		},
		Svn: svn.Options{
			LogFile: resolveIn(root, cfg.Svn.LogFile),
			URL:     cfg.Svn.URL,
			Range:   cfg.Svn.Range,
		},
		Include:   cfg.Filters.Include,
		Exclude:   cfg.Filters.Exclude,
		CacheSize: cfg.Cache.Size,
		Pairing:   lineage.MovePairing(cfg.Graph.MovePairing),
		Journal:   cfg.Storage.Enabled,
		DBName:    cfg.Storage.DBName,
	}
}

// TargetFromEntry builds the target of a workspace repository. An svn entry
// without a path keeps its data under the lineage home.
func TargetFromEntry(e RepoEntry) (Target, error) {
	detect := true
	if e.DetectRenames != nil {
		detect = *e.DetectRenames
	}
	t := Target{
		Name:    e.Name,
		Backend: backends.BackendID(e.Backend),
		Root:    e.Path,
		Git: git.Options{
			Ref:           e.Ref,
			DetectRenames: detect,
			MaxCommits:    e.MaxCommits,
		},
		Svn: svn.Options{
			LogFile: e.LogFile,
			URL:     e.URL,
		},
		Include:   e.Include,
		Exclude:   e.Exclude,
		CacheSize: session.DefaultCacheSize,
		Pairing:   lineage.MovePairing(e.MovePairing),
		Journal:   true,
		DBName:    storage.DefaultDBName,
	}
	if e.Path == "" {
		dir, err := paths.GetWorkspaceRepoDir(e.Name, t.location())
		if err != nil {
			return Target{}, errors.NewLineageError(errors.StorageFailure, err.Error(), err, nil)
		}
		t.Data = dir
	}
	return t, nil
}

func resolveIn(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func (t Target) dataDir() string {
	if t.Data != "" {
		return t.Data
	}
	return paths.DataDir(t.Root)
}

// DataDir returns the directory holding the target's lineage data
func (t Target) DataDir() string {
	return t.dataDir()
}

func (t Target) location() string {
	if t.Backend == backends.BackendSVN {
		if t.Svn.URL != "" {
			return t.Svn.URL
		}
		return t.Svn.LogFile
	}
	return t.Root
}

// Import reads the target's history and integrates every commit not yet
// analyzed. Concurrent imports into one data directory are refused.
func Import(ctx context.Context, t Target, logger *slog.Logger) (*Outcome, error) {
	lock, err := index.AcquireLock(t.dataDir(), t.Name)
	if err != nil {
		lerr := errors.NewLineageError(errors.StorageFailure, err.Error(), err, nil)
		var locked *index.LockedError
		if stderrors.As(err, &locked) && locked.Info != nil {
			lerr = lerr.WithDetails(locked.Info)
		}
		return nil, lerr
	}
	defer lock.Release()

	logger = logger.With("repo", t.Name, "backend", string(t.Backend))

	switch t.Backend {
	case backends.BackendGit:
		adapter, err := git.NewGitAdapter(t.Root, t.Git, logger)
		if err != nil {
			return nil, err
		}
		return importWith[revision.Commit](ctx, t, adapter, adapter.Ordering(), logger)
	case backends.BackendSVN:
		adapter, err := svn.NewAdapter(t.Svn, logger)
		if err != nil {
			return nil, err
		}
		return importWith[revision.Linear](ctx, t, adapter, adapter.Ordering(), logger)
	}
	return nil, errors.Newf(errors.ConfigInvalid, "unknown backend %q", t.Backend)
}

func importWith[R any](ctx context.Context, t Target, src backends.HistoryBackend[R], order revision.Ordering[R], logger *slog.Logger) (*Outcome, error) {
	if !src.IsAvailable() {
		return nil, errors.Newf(errors.BackendUnavailable, "%s backend cannot read %s", src.ID(), t.location())
	}

	store, err := OpenStore(ctx, t, order, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	report, importErr := store.Session.Import(ctx, src)

	if db := store.DB(); db != nil && report != nil && report.Commits > 0 {
		status := storage.RunComplete
		if importErr != nil {
			status = storage.RunFailed
		}
		// the run is recorded even when ctx was cancelled
		if err := db.FinishRun(context.WithoutCancel(ctx), report.RunID, report.Commits, status); err != nil {
			logger.Warn("Failed to record run", "run", report.RunID, "error", err)
		}
	}
	if importErr == nil {
		importErr = store.Persist()
	}

	out := outcome(t, store, report)
	if importErr != nil {
		out.Error = importErr.Error()
		return out, importErr
	}

	meta := &index.ImportMeta{
		UpdatedAt:    time.Now().UTC(),
		RunID:        report.RunID,
		Backend:      string(t.Backend),
		LastRevision: out.LastRevision,
		Commits:      out.Commits,
		Paths:        out.Paths,
		Duration:     report.Duration.Round(time.Millisecond).String(),
	}
	if t.Backend == backends.BackendGit {
		meta.Ref = t.Git.Ref
	}
	if err := meta.Save(t.dataDir()); err != nil {
		logger.Warn("Failed to save import metadata", "error", err)
	}
	return out, nil
}

func outcome[R any](t Target, store *Store[R], report *session.Report) *Outcome {
	g := store.Session.Graph()
	stats := g.Stats()
	out := &Outcome{
		Name:    t.Name,
		Backend: string(t.Backend),
		DataDir: t.dataDir(),
		Report:  report,
		Commits: stats.Commits,
		Paths:   stats.Paths,
		Moves:   stats.Moves,
	}
	if last, ok := g.LastCommit(); ok {
		out.LastRevision = g.Ordering().Format(last)
	}
	return out
}
