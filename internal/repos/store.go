package repos

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"lineage/internal/errors"
	"lineage/internal/export"
	"lineage/internal/history"
	"lineage/internal/revision"
	"lineage/internal/session"
	"lineage/internal/storage"
)

// SnapshotFile holds the graph of a repository whose journal is disabled
const SnapshotFile = "graph" + export.Extension

// Store is a repository's session together with whatever persists it:
// the SQLite journal, or a snapshot file when the journal is disabled.
type Store[R any] struct {
	Session *session.Session[R]

	target  Target
	db      *storage.DB
	journal *storage.Journal[R]
}

// OpenStore rebuilds the session of t from its persisted state
func OpenStore[R any](ctx context.Context, t Target, order revision.Ordering[R], logger *slog.Logger) (*Store[R], error) {
	filter, err := history.NewFilter(t.Include, t.Exclude)
	if err != nil {
		return nil, err
	}
	opts := session.Options[R]{
		Filter:    filter,
		CacheSize: t.CacheSize,
		Pairing:   t.Pairing,
		Logger:    logger,
	}

	if !t.Journal {
		return openSnapshot(t, order, opts)
	}

	db, err := storage.Open(t.dataDir(), t.DBName, logger)
	if err != nil {
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to open journal")
	}
	repo, err := db.EnsureRepository(ctx, t.Name, string(t.Backend), t.location())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	journal := storage.NewJournal(db, repo, order)
	if t.Reset {
		if err := journal.Reset(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	commits, err := journal.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	opts.Journal = journal
	s, err := session.New(t.Name, order, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Replay(ctx, commits); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.StorageFailure, err, "failed to replay journal")
	}
	return &Store[R]{Session: s, target: t, db: db, journal: journal}, nil
}

func openSnapshot[R any](t Target, order revision.Ordering[R], opts session.Options[R]) (*Store[R], error) {
	path := filepath.Join(t.dataDir(), SnapshotFile)
	if t.Reset {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(errors.StorageFailure, err, "failed to remove snapshot")
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		s, err := session.New(t.Name, order, opts)
		if err != nil {
			return nil, err
		}
		return &Store[R]{Session: s, target: t}, nil
	}

	f, err := export.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if f.Header.Backend != string(t.Backend) {
		return nil, errors.Newf(errors.ConfigInvalid,
			"snapshot %s was written by backend %s, not %s", path, f.Header.Backend, t.Backend)
	}
	s, err := session.FromSnapshot(t.Name, order, f.Snapshot, f.Header.Analyzed, opts)
	if err != nil {
		return nil, err
	}
	return &Store[R]{Session: s, target: t}, nil
}

// DB returns the journal database, or nil when the journal is disabled
func (s *Store[R]) DB() *storage.DB {
	return s.db
}

// Journal returns the commit journal, or nil when it is disabled
func (s *Store[R]) Journal() *storage.Journal[R] {
	return s.journal
}

// Export renders the session's graph as an export file
func (s *Store[R]) Export() *export.File {
	return &export.File{
		Header: export.Header{
			Repo:     s.target.Name,
			Backend:  string(s.target.Backend),
			Analyzed: s.Session.Analyzed().Keys(),
		},
		Snapshot: s.Session.Graph().Snapshot(),
	}
}

// Persist writes the snapshot file when the journal is disabled. Journalled
// stores persist every commit as it is integrated.
func (s *Store[R]) Persist() error {
	if s.journal != nil {
		return nil
	}
	return export.WriteFile(filepath.Join(s.target.dataDir(), SnapshotFile), s.Export())
}

// Close releases the journal database
func (s *Store[R]) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ResolveRevision parses input as a revision. For commit revisions input may
// also be a hash prefix of at least four characters, matched against the
// integrated revisions in known.
func ResolveRevision[R any](order revision.Ordering[R], known []string, input string) (R, error) {
	rev, err := order.Parse(input)
	if err == nil {
		return rev, nil
	}
	prefix := strings.ToLower(strings.TrimSpace(input))
	if len(prefix) < 4 {
		return rev, errors.Wrap(errors.InvalidRevision, err, "unrecognized revision")
	}

	var match string
	for _, k := range known {
		_, hash, ok := strings.Cut(k, ":")
		if !ok || !strings.HasPrefix(hash, prefix) {
			continue
		}
		if match != "" && match != k {
			return rev, errors.Newf(errors.InvalidRevision, "revision %s is ambiguous", input)
		}
		match = k
	}
	if match == "" {
		return rev, errors.Newf(errors.InvalidRevision, "no imported commit matches %s", input)
	}
	return order.Parse(match)
}
