package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lineage/internal/backends"
	"lineage/internal/backends/git"
	"lineage/internal/backends/svn"
	"lineage/internal/index"
	"lineage/internal/repos"
	"lineage/internal/storage"
	"lineage/internal/version"
)

const statusMaxRuns = 5

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the import status of the repository",
	Long:  "Display the backend, the last import and whether it covers the current head",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// StatusResponseCLI contains the import status for CLI output
type StatusResponseCLI struct {
	Version      string            `json:"version"`
	Root         string            `json:"root"`
	ResolvedFrom string            `json:"resolvedFrom"`
	Backend      BackendStatusCLI  `json:"backend"`
	Import       *index.ImportMeta `json:"import,omitempty"`
	Importing    *index.LockInfo   `json:"importing,omitempty"`
	Fresh        bool              `json:"fresh"`
	Reason       string            `json:"reason,omitempty"`
	Runs         []storage.Run     `json:"runs,omitempty"`
	// Others lists journalled repositories under a different name, left
	// behind when the repository directory was renamed
	Others []string `json:"others,omitempty"`
}

// BackendStatusCLI describes the configured backend
type BackendStatusCLI struct {
	ID           string   `json:"id"`
	Available    bool     `json:"available"`
	Capabilities []string `json:"capabilities,omitempty"`
	Head         string   `json:"head,omitempty"`
	Details      string   `json:"details,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	target, err := env.target()
	if err != nil {
		return err
	}

	resp := &StatusResponseCLI{
		Version:      version.Info(),
		Root:         env.root,
		ResolvedFrom: string(env.source),
		Backend:      backendStatus(target, env),
	}

	meta, err := index.LoadMeta(target.DataDir())
	if err != nil {
		env.logger.Warn("Failed to read import metadata", "error", err)
	}
	resp.Import = meta

	if resp.Importing, err = index.ReadLock(target.DataDir()); err != nil {
		env.logger.Warn("Failed to read import lock", "error", err)
	}
	freshness := meta.CheckFreshness(resp.Backend.Head)
	resp.Fresh = freshness.Fresh
	resp.Reason = freshness.Reason

	if target.Journal {
		runs, others, err := recentRuns(target, env)
		if err != nil {
			env.logger.Warn("Failed to read import runs", "error", err)
		}
		resp.Runs, resp.Others = runs, others
	}
	return printResponse(resp)
}

func backendStatus(t repos.Target, env *cliEnv) BackendStatusCLI {
	status := BackendStatusCLI{ID: string(t.Backend)}
	switch t.Backend {
	case backends.BackendGit:
		adapter, err := git.NewGitAdapter(t.Root, t.Git, env.logger)
		if err != nil {
			status.Details = err.Error()
			return status
		}
		status.Capabilities = adapter.Capabilities()
		head, err := adapter.Head()
		if err != nil {
			status.Details = err.Error()
			return status
		}
		status.Available = true
		status.Head = head
	case backends.BackendSVN:
		adapter, err := svn.NewAdapter(t.Svn, env.logger)
		if err != nil {
			status.Details = err.Error()
			return status
		}
		status.Capabilities = adapter.Capabilities()
		status.Available = adapter.IsAvailable()
	}
	return status
}

// recentRuns reads the newest runs without creating a journal that does not
// exist, and names the other repositories the journal holds.
func recentRuns(t repos.Target, env *cliEnv) ([]storage.Run, []string, error) {
	dbName := t.DBName
	if dbName == "" {
		dbName = storage.DefaultDBName
	}
	if _, err := os.Stat(filepath.Join(t.DataDir(), dbName)); err != nil {
		return nil, nil, nil
	}
	db, err := storage.Open(t.DataDir(), dbName, env.logger)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	ctx := context.Background()
	all, err := db.ListRepositories(ctx)
	if err != nil {
		return nil, nil, err
	}
	var runs []storage.Run
	var others []string
	for _, repo := range all {
		if repo.Name != t.Name {
			others = append(others, repo.Name)
			continue
		}
		if runs, err = db.ListRuns(ctx, repo.ID); err != nil {
			return nil, nil, err
		}
	}
	if len(runs) > statusMaxRuns {
		runs = runs[:statusMaxRuns]
	}
	return runs, others, nil
}
