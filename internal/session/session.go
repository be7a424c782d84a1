// Package session owns the lineage graph of one repository and drives the
// commit integrator over a stream of commits.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"lineage/internal/errors"
	"lineage/internal/history"
	"lineage/internal/lineage"
	"lineage/internal/revision"
)

// DefaultCacheSize is the number of memoized latest-files answers
const DefaultCacheSize = 1024

// Source produces commits oldest first. Walk stops at the first error
// returned by fn and returns it.
type Source[R any] interface {
	Walk(ctx context.Context, fn func(history.Commit[R]) error) error
}

// Journal receives every commit the session integrates
type Journal[R any] interface {
	Append(ctx context.Context, runID string, commit history.Commit[R]) error
}

// Options configures a Session
type Options[R any] struct {
	Filter    *history.Filter
	CacheSize int
	Pairing   lineage.MovePairing
	Journal   Journal[R]
	Logger    *slog.Logger
}

// Report summarizes one import run
type Report struct {
	RunID     string        `json:"runId"`
	Repo      string        `json:"repo"`
	Commits   int           `json:"commits"`
	Skipped   int           `json:"skipped"`
	Items     int           `json:"items"`
	Copies    int           `json:"copies"`
	Moves     int           `json:"moves"`
	Deletions int           `json:"deletions"`
	Implicit  int           `json:"implicit"`
	Duration  time.Duration `json:"duration"`
}

type cacheKey struct {
	path string
	rev  string
}

// Session is the per-repository owner of a lineage graph
type Session[R any] struct {
	repo     string
	order    revision.Ordering[R]
	graph    *lineage.Graph[R]
	analyzed *AnalyzedSet
	cache    *lru.Cache[cacheKey, []lineage.FileRef[R]]
	filter   *history.Filter
	journal  Journal[R]
	logger   *slog.Logger
}

// New creates a session with an empty graph
func New[R any](repo string, order revision.Ordering[R], opts Options[R]) (*Session[R], error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	graphOpts := []lineage.Option{lineage.WithLogger(logger)}
	if opts.Pairing != "" {
		graphOpts = append(graphOpts, lineage.WithMovePairing(opts.Pairing))
	}
	return newSession(repo, order, lineage.New(order, graphOpts...), opts, logger)
}

// FromSnapshot creates a session around a restored graph
func FromSnapshot[R any](repo string, order revision.Ordering[R], snap *lineage.Snapshot, analyzed []string, opts Options[R]) (*Session[R], error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g, err := lineage.Restore(order, snap, lineage.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	s, err := newSession(repo, order, g, opts, logger)
	if err != nil {
		return nil, err
	}
	for _, k := range analyzed {
		s.analyzed.Add(k)
	}
	return s, nil
}

func newSession[R any](repo string, order revision.Ordering[R], g *lineage.Graph[R], opts Options[R], logger *slog.Logger) (*Session[R], error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, []lineage.FileRef[R]](size)
	if err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid, err, "failed to create query cache")
	}
	return &Session[R]{
		repo:     repo,
		order:    order,
		graph:    g,
		analyzed: NewAnalyzedSet(),
		cache:    cache,
		filter:   opts.Filter,
		journal:  opts.Journal,
		logger:   logger.With("repo", repo),
	}, nil
}

// Repo returns the repository name the session was created for
func (s *Session[R]) Repo() string {
	return s.repo
}

// Graph returns the session's lineage graph
func (s *Session[R]) Graph() *lineage.Graph[R] {
	return s.graph
}

// Analyzed returns the set of integrated revisions
func (s *Session[R]) Analyzed() *AnalyzedSet {
	return s.analyzed
}

// Import integrates every commit src produces that was not analyzed yet.
// Cancellation is checked between commits; a commit is never half applied.
func (s *Session[R]) Import(ctx context.Context, src Source[R]) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString(), Repo: s.repo}

	s.logger.Info("Starting import", "run", report.RunID, "analyzed", s.analyzed.Len())

	err := src.Walk(ctx, func(commit history.Commit[R]) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.integrate(ctx, report.RunID, commit, true)
		if err != nil {
			return err
		}
		if res == nil {
			report.Skipped++
			return nil
		}
		report.Commits++
		report.Items += res.Items
		report.Copies += res.Copies
		report.Moves += res.Moves
		report.Deletions += res.Deletions
		report.Implicit += res.Implicit
		return nil
	})
	report.Duration = time.Since(start)
	if err != nil {
		s.logger.Warn("Import stopped", "run", report.RunID, "commits", report.Commits, "error", err)
		return report, err
	}

	s.logger.Info("Import complete",
		"run", report.RunID,
		"commits", report.Commits,
		"skipped", report.Skipped,
		"moves", report.Moves,
		"duration", report.Duration,
	)
	return report, nil
}

// Integrate imports a slice of commits, oldest first
func (s *Session[R]) Integrate(ctx context.Context, commits []history.Commit[R]) (*Report, error) {
	return s.Import(ctx, SliceSource[R](commits))
}

// Replay integrates journalled commits without journalling them again
func (s *Session[R]) Replay(ctx context.Context, commits []history.Commit[R]) error {
	for _, c := range commits {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.integrate(ctx, "", c, false); err != nil {
			return err
		}
	}
	s.logger.Debug("Replayed journal", "commits", len(commits))
	return nil
}

// integrate applies one commit. It returns a nil result for an already
// analyzed revision.
func (s *Session[R]) integrate(ctx context.Context, runID string, commit history.Commit[R], journal bool) (*lineage.IntegrationResult, error) {
	key := s.order.Format(commit.Revision)
	if s.analyzed.Contains(key) {
		s.logger.Debug("Skipping analyzed revision", "revision", key)
		return nil, nil
	}

	filtered := history.Apply(s.filter, commit)
	res, err := s.graph.Integrate(filtered)
	if err != nil {
		return nil, err
	}

	if journal && s.journal != nil {
		if err := s.journal.Append(ctx, runID, filtered); err != nil {
			return nil, err
		}
	}
	s.analyzed.Add(key)
	s.cache.Purge()
	return res, nil
}

// LatestFiles answers a latest-files query, memoizing the result until the
// next integrated commit.
func (s *Session[R]) LatestFiles(path string, rev R) []lineage.FileRef[R] {
	key := cacheKey{path: path, rev: s.order.Format(rev)}
	if refs, ok := s.cache.Get(key); ok {
		return append([]lineage.FileRef[R](nil), refs...)
	}
	refs := s.graph.GetLatestFiles(path, rev)
	s.cache.Add(key, refs)
	return append([]lineage.FileRef[R](nil), refs...)
}

// NodeFor describes the epoch covering path at rev
func (s *Session[R]) NodeFor(path string, rev R) (*lineage.Node[R], bool) {
	return s.graph.GetNodeFor(path, rev)
}

// SliceSource is a Source over commits already in memory
type SliceSource[R any] []history.Commit[R]

// Walk implements Source
func (src SliceSource[R]) Walk(ctx context.Context, fn func(history.Commit[R]) error) error {
	for _, c := range src {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
