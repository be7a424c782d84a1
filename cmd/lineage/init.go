package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lineage/internal/config"
	"lineage/internal/paths"
	"lineage/internal/repos"
)

var (
	initBackend string
	initLogFile string
	initURL     string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration for the repository",
	Long: `Create .lineage/config.json with the default settings. The git backend is
chosen when the repository root holds a .git entry, svn otherwise.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", "", "Backend (git, svn); detected when empty")
	initCmd.Flags().StringVar(&initLogFile, "log-file", "", "Saved svn log --xml -v output")
	initCmd.Flags().StringVar(&initURL, "url", "", "Subversion repository URL")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, _, err := repos.ResolveRepoRoot(repoFlag)
	if err != nil {
		return err
	}
	path := filepath.Join(paths.DataDir(root), "config.json")
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	switch {
	case initBackend != "":
		cfg.Backend = initBackend
	case repos.FindGitRoot(root) == "":
		cfg.Backend = "svn"
	}
	cfg.Svn.LogFile = initLogFile
	cfg.Svn.URL = initURL
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(root); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (backend %s)\n", path, cfg.Backend)
	return nil
}
