package main

import (
	"context"

	"github.com/spf13/cobra"

	"lineage/internal/repos"
	"lineage/internal/revision"
)

var latestCmd = &cobra.Command{
	Use:   "latest PATH REVISION",
	Short: "Show where a file at a revision lives now",
	Long: `Follow PATH at REVISION through moves and renames to the newest known
files. A path the graph never saw is returned unchanged.

REVISION is an svn revision number ("42" or "r42"), or for git a commit
hash prefix of an imported commit.

Examples:
  lineage latest src/util.c 1200
  lineage latest internal/app/main.go 3f2a9c1`,
	Args: cobra.ExactArgs(2),
	RunE: runLatest,
}

func init() {
	rootCmd.AddCommand(latestCmd)
}

// LatestResponseCLI is the output of the latest command
type LatestResponseCLI struct {
	Path     string       `json:"path"`
	Revision string       `json:"revision"`
	Files    []FileRefCLI `json:"files"`
}

// FileRefCLI is a (path, revision) pair with the revision in text form
type FileRefCLI struct {
	Path     string `json:"path"`
	Revision string `json:"revision"`
}

func runLatest(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	target, err := env.target()
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()

	return byBackend(target.Backend,
		func() error { return latest[revision.Commit](ctx, env, target, revision.CommitOrdering{}, args[0], args[1]) },
		func() error { return latest[revision.Linear](ctx, env, target, revision.LinearOrdering{}, args[0], args[1]) },
	)
}

func latest[R any](ctx context.Context, env *cliEnv, t repos.Target, order revision.Ordering[R], path, rev string) error {
	store, err := repos.OpenStore(ctx, t, order, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	r, err := repos.ResolveRevision(order, store.Session.Analyzed().Keys(), rev)
	if err != nil {
		return err
	}
	path, err = repos.QueryPath(t, path)
	if err != nil {
		return err
	}
	refs := store.Session.LatestFiles(path, r)

	resp := &LatestResponseCLI{Path: path, Revision: order.Format(r), Files: make([]FileRefCLI, 0, len(refs))}
	for _, ref := range refs {
		resp.Files = append(resp.Files, FileRefCLI{Path: ref.Path, Revision: order.Format(ref.Revision)})
	}
	return printResponse(resp)
}
