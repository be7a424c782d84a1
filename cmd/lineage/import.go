package main

import (
	"github.com/spf13/cobra"

	"lineage/internal/repos"
)

var (
	importBackend    string
	importRef        string
	importLogFile    string
	importMaxCommits int
	importReset      bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import repository history into the lineage graph",
	Long: `Read the history of the repository through the configured backend and
integrate every commit not imported yet. With storage enabled, commits are
journalled to .lineage/lineage.db and later imports resume where the last
one stopped.

Examples:
  lineage import
  lineage import --ref main --max-commits 500
  lineage import --backend svn --log-file svn-log.xml
  lineage import --reset`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importBackend, "backend", "", "Override the configured backend (git, svn)")
	importCmd.Flags().StringVar(&importRef, "ref", "", "Git ref to walk")
	importCmd.Flags().StringVar(&importLogFile, "log-file", "", "Saved svn log --xml -v output")
	importCmd.Flags().IntVar(&importMaxCommits, "max-commits", 0, "Only import the newest N git commits")
	importCmd.Flags().BoolVar(&importReset, "reset", false, "Discard the stored graph and import from scratch")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	if importBackend != "" {
		env.cfg.Backend = importBackend
	}
	if importRef != "" {
		env.cfg.Git.Ref = importRef
	}
	if importLogFile != "" {
		env.cfg.Svn.LogFile = importLogFile
	}
	if cmd.Flags().Changed("max-commits") {
		env.cfg.Git.MaxCommits = importMaxCommits
	}

	target, err := env.target()
	if err != nil {
		return err
	}
	target.Reset = importReset
	ctx, cancel := newContext()
	defer cancel()

	out, err := repos.Import(ctx, target, env.logger)
	if err != nil {
		if out != nil {
			_ = printResponse(out)
		}
		return err
	}
	return printResponse(out)
}
