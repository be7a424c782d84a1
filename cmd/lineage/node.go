package main

import (
	"context"

	"github.com/spf13/cobra"

	"lineage/internal/lineage"
	"lineage/internal/repos"
	"lineage/internal/revision"
)

var nodeHistory bool

var nodeCmd = &cobra.Command{
	Use:   "node PATH [REVISION]",
	Short: "Describe the lineage node of a file",
	Long: `Describe the epoch covering PATH at REVISION: how it started, how it
ended, and the copies and moves linking it to other paths.

With --history (or without REVISION) every epoch of PATH is listed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNode,
}

func init() {
	nodeCmd.Flags().BoolVar(&nodeHistory, "history", false, "List every epoch of the path")
	rootCmd.AddCommand(nodeCmd)
}

// NodeResponseCLI is the output of the node command
type NodeResponseCLI struct {
	Path  string    `json:"path"`
	Found bool      `json:"found"`
	Nodes []NodeCLI `json:"nodes"`
}

// NodeCLI is a lineage node with revisions in text form
type NodeCLI struct {
	Path         string       `json:"path"`
	Type         string       `json:"type"`
	Origin       string       `json:"origin"`
	BornAt       string       `json:"bornAt"`
	FirstSeen    string       `json:"firstSeen"`
	DiesAt       string       `json:"diesAt,omitempty"`
	LastAlive    string       `json:"lastAlive,omitempty"`
	IsCopyTarget bool         `json:"isCopyTarget"`
	CopySources  []FileRefCLI `json:"copySources,omitempty"`
	MoveSources  []FileRefCLI `json:"moveSources,omitempty"`
	MoveTargets  []FileRefCLI `json:"moveTargets,omitempty"`
	CopyTargets  []FileRefCLI `json:"copyTargets,omitempty"`
}

func runNode(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	target, err := env.target()
	if err != nil {
		return err
	}
	rev := ""
	if len(args) == 2 && !nodeHistory {
		rev = args[1]
	}
	ctx, cancel := newContext()
	defer cancel()

	return byBackend(target.Backend,
		func() error { return node[revision.Commit](ctx, env, target, revision.CommitOrdering{}, args[0], rev) },
		func() error { return node[revision.Linear](ctx, env, target, revision.LinearOrdering{}, args[0], rev) },
	)
}

func node[R any](ctx context.Context, env *cliEnv, t repos.Target, order revision.Ordering[R], path, rev string) error {
	store, err := repos.OpenStore(ctx, t, order, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	path, err = repos.QueryPath(t, path)
	if err != nil {
		return err
	}
	resp := &NodeResponseCLI{Path: path, Nodes: []NodeCLI{}}
	if rev == "" {
		for _, n := range store.Session.Graph().History(path) {
			resp.Nodes = append(resp.Nodes, convertNode(order, n))
		}
	} else {
		r, err := repos.ResolveRevision(order, store.Session.Analyzed().Keys(), rev)
		if err != nil {
			return err
		}
		if n, ok := store.Session.NodeFor(path, r); ok {
			resp.Nodes = append(resp.Nodes, convertNode(order, *n))
		}
	}
	resp.Found = len(resp.Nodes) > 0
	return printResponse(resp)
}

func convertNode[R any](order revision.Ordering[R], n lineage.Node[R]) NodeCLI {
	out := NodeCLI{
		Path:         n.Path,
		Type:         string(n.Type),
		Origin:       string(n.Origin),
		BornAt:       order.Format(n.BornAt),
		FirstSeen:    order.Format(n.FirstSeen),
		IsCopyTarget: n.IsCopyTarget,
		CopySources:  convertRefs(order, n.CopySources),
		MoveSources:  convertRefs(order, n.MoveSources),
		MoveTargets:  convertRefs(order, n.MoveTargets),
		CopyTargets:  convertRefs(order, n.CopyTargets),
	}
	if n.Closed {
		out.DiesAt = order.Format(n.DiesAt)
	}
	if n.Type == lineage.FateDeleted || n.Type == lineage.FateMovedOut {
		out.LastAlive = order.Format(n.LastAlive)
	}
	return out
}

func convertRefs[R any](order revision.Ordering[R], refs []lineage.FileRef[R]) []FileRefCLI {
	if len(refs) == 0 {
		return nil
	}
	out := make([]FileRefCLI, len(refs))
	for i, ref := range refs {
		out[i] = FileRefCLI{Path: ref.Path, Revision: order.Format(ref.Revision)}
	}
	return out
}
