package repos

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ImportOptions controls a workspace import
type ImportOptions struct {
	// Only restricts the import to the named repositories
	Only []string
	// FailFast cancels the remaining imports after the first failure
	FailFast bool
}

// ImportAll imports every repository of ws concurrently, each into its own
// journal. Outcomes are returned in workspace order; a failed repository
// carries its error in Outcome.Error. The returned error is the first
// failure when FailFast is set, and nil otherwise.
func ImportAll(ctx context.Context, ws *Workspace, opts ImportOptions, logger *slog.Logger) ([]*Outcome, error) {
	entries := ws.Repos
	if len(opts.Only) > 0 {
		entries = nil
		for _, name := range opts.Only {
			e := ws.GetRepo(name)
			if e == nil {
				return nil, errNotInWorkspace(name, ws.Name)
			}
			entries = append(entries, *e)
		}
	}

	limit := ws.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	outcomes := make([]*Outcome, len(entries))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, entry := range entries {
		eg.Go(func() error {
			t, err := TargetFromEntry(entry)
			var out *Outcome
			if err == nil {
				out, err = Import(egCtx, t, logger)
			}
			if out == nil {
				out = &Outcome{Name: entry.Name, Backend: entry.Backend}
				if t.Name != "" {
					out.DataDir = t.DataDir()
				}
			}
			if err != nil {
				out.Error = err.Error()
				logger.Warn("Repository import failed", "repo", entry.Name, "error", err)
			}

			mu.Lock()
			outcomes[i] = out
			mu.Unlock()

			if opts.FailFast {
				return err
			}
			return nil
		})
	}
	err := eg.Wait()

	failed := 0
	for _, out := range outcomes {
		if out != nil && out.Error != "" {
			failed++
		}
	}
	logger.Info("Workspace import finished", "workspace", ws.Name, "repos", len(entries), "failed", failed)
	return outcomes, err
}
