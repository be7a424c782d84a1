package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lineage/internal/export"
	"lineage/internal/repos"
	"lineage/internal/revision"
)

var exportRead bool

var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write the lineage graph as a compressed snapshot",
	Long: `Write the imported lineage graph of the repository as zstd-compressed
JSON. FILE defaults to <repo>` + export.Extension + ` in the current directory.

With --read, FILE is an existing export whose header is shown instead.

Examples:
  lineage export
  lineage export /tmp/core` + export.Extension + `
  lineage export --read /tmp/core` + export.Extension,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportRead, "read", false, "Show the header of an existing export")
	rootCmd.AddCommand(exportCmd)
}

// ExportResponseCLI describes a written or inspected export
type ExportResponseCLI struct {
	File      string    `json:"file"`
	Repo      string    `json:"repo"`
	Backend   string    `json:"backend"`
	Generated time.Time `json:"generated"`
	Commits   int       `json:"commits"`
	Epochs    int       `json:"epochs"`
	Edges     int       `json:"edges"`
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportRead {
		if len(args) != 1 {
			return fmt.Errorf("--read needs the export file")
		}
		f, err := export.ReadFile(args[0])
		if err != nil {
			return err
		}
		return printResponse(exportResponse(args[0], f))
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	target, err := env.target()
	if err != nil {
		return err
	}
	out := target.Name + export.Extension
	if len(args) == 1 {
		out = args[0]
	}
	ctx, cancel := newContext()
	defer cancel()

	var file *export.File
	err = byBackend(target.Backend,
		func() error {
			file, err = snapshotOf[revision.Commit](ctx, env, target, revision.CommitOrdering{})
			return err
		},
		func() error {
			file, err = snapshotOf[revision.Linear](ctx, env, target, revision.LinearOrdering{})
			return err
		},
	)
	if err != nil {
		return err
	}
	if file.Snapshot.Commits == 0 {
		return fmt.Errorf("nothing imported yet; run lineage import first")
	}
	if err := export.WriteFile(out, file); err != nil {
		return err
	}
	env.logger.Info("Export written", "file", out, "commits", file.Snapshot.Commits)
	return printResponse(exportResponse(out, file))
}

func snapshotOf[R any](ctx context.Context, env *cliEnv, t repos.Target, order revision.Ordering[R]) (*export.File, error) {
	store, err := repos.OpenStore(ctx, t, order, env.logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Export(), nil
}

func exportResponse(path string, f *export.File) *ExportResponseCLI {
	return &ExportResponseCLI{
		File:      path,
		Repo:      f.Header.Repo,
		Backend:   f.Header.Backend,
		Generated: f.Header.Generated,
		Commits:   f.Snapshot.Commits,
		Epochs:    len(f.Snapshot.Epochs),
		Edges:     len(f.Snapshot.Edges),
	}
}
