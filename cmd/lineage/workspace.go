package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lineage/internal/repos"
	"lineage/internal/slogutil"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage workspaces of several repositories",
	Long: `Manage TOML workspaces: named sets of repositories imported together.

Each repository keeps its own journal in its own .lineage directory; a
workspace import runs the repositories concurrently.`,
}

var (
	wsDescription string
	wsBackend     string
	wsRef         string
	wsLogFile     string
	wsURL         string
	wsTags        string
	wsOnly        []string
	wsFailFast    bool
)

var wsInitCmd = &cobra.Command{
	Use:   "init <file> <name>",
	Short: "Create an empty workspace file",
	Args:  cobra.ExactArgs(2),
	RunE:  runWsInit,
}

var wsAddCmd = &cobra.Command{
	Use:   "add <file> <name> [path]",
	Short: "Add a repository to a workspace",
	Long: `Add a repository to a workspace.

The repository is identified by a user-chosen name and its filesystem path.
A UUID is generated and stays stable across renames. For svn repositories,
path is where the lineage data is kept and --log-file or --url says where
the history comes from. Without a path, svn data is kept under
$LINEAGE_HOME/repos.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runWsAdd,
}

var wsRemoveCmd = &cobra.Command{
	Use:   "remove <file> <name>",
	Short: "Remove a repository from a workspace",
	Args:  cobra.ExactArgs(2),
	RunE:  runWsRemove,
}

var wsListCmd = &cobra.Command{
	Use:   "list <file>",
	Short: "List the repositories of a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWsList,
}

var wsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import every repository of a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWsImport,
}

func init() {
	wsInitCmd.Flags().StringVar(&wsDescription, "description", "", "Workspace description")

	wsAddCmd.Flags().StringVar(&wsBackend, "backend", "git", "Backend (git, svn)")
	wsAddCmd.Flags().StringVar(&wsRef, "ref", "", "Git ref to walk")
	wsAddCmd.Flags().StringVar(&wsLogFile, "log-file", "", "Saved svn log --xml -v output")
	wsAddCmd.Flags().StringVar(&wsURL, "url", "", "Subversion repository URL")
	wsAddCmd.Flags().StringVar(&wsTags, "tags", "", "Comma-separated tags")

	wsImportCmd.Flags().StringSliceVar(&wsOnly, "only", nil, "Import only these repositories")
	wsImportCmd.Flags().BoolVar(&wsFailFast, "fail-fast", false, "Stop at the first failing repository")

	workspaceCmd.AddCommand(wsInitCmd, wsAddCmd, wsRemoveCmd, wsListCmd, wsImportCmd)
	rootCmd.AddCommand(workspaceCmd)
}

// WorkspaceImportResponseCLI is the output of workspace import
type WorkspaceImportResponseCLI struct {
	Workspace string           `json:"workspace"`
	Repos     []*repos.Outcome `json:"repos"`
	Failed    int              `json:"failed"`
}

func runWsInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(args[0]); err == nil {
		return fmt.Errorf("workspace file %s already exists", args[0])
	}
	ws := repos.NewWorkspace(args[1], wsDescription)
	if err := ws.Save(args[0]); err != nil {
		return err
	}
	fmt.Printf("Created workspace %s in %s\n", ws.Name, args[0])
	return nil
}

func runWsAdd(cmd *cobra.Command, args []string) error {
	ws, err := repos.LoadWorkspace(args[0])
	if err != nil {
		return err
	}
	entry := repos.RepoEntry{
		Name:    args[1],
		Backend: wsBackend,
		Ref:     wsRef,
		LogFile: wsLogFile,
		URL:     wsURL,
	}
	if len(args) == 3 {
		entry.Path = args[2]
	}
	if entry.LogFile != "" {
		if entry.LogFile, err = filepath.Abs(entry.LogFile); err != nil {
			return err
		}
	}
	if wsTags != "" {
		for _, tag := range strings.Split(wsTags, ",") {
			entry.Tags = append(entry.Tags, strings.TrimSpace(tag))
		}
	}
	added, err := ws.AddRepo(entry)
	if err != nil {
		return err
	}
	if err := ws.Save(args[0]); err != nil {
		return err
	}
	fmt.Printf("Added %s (%s) to workspace %s\n", added.Name, added.RepoUID, ws.Name)
	return nil
}

func runWsRemove(cmd *cobra.Command, args []string) error {
	ws, err := repos.LoadWorkspace(args[0])
	if err != nil {
		return err
	}
	if err := ws.RemoveRepo(args[1]); err != nil {
		return err
	}
	if err := ws.Save(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s from workspace %s\n", args[1], ws.Name)
	return nil
}

func runWsList(cmd *cobra.Command, args []string) error {
	ws, err := repos.LoadWorkspace(args[0])
	if err != nil {
		return err
	}
	if formatFlag == string(FormatJSON) {
		return printResponse(ws)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBACKEND\tPATH\tTAGS")
	for _, r := range ws.Repos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Backend, r.Path, strings.Join(r.Tags, ","))
	}
	return w.Flush()
}

func runWsImport(cmd *cobra.Command, args []string) error {
	ws, err := repos.LoadWorkspace(args[0])
	if err != nil {
		return err
	}
	logger := workspaceLogger(cmd)
	ctx, cancel := newContext()
	defer cancel()

	outcomes, err := repos.ImportAll(ctx, ws, repos.ImportOptions{Only: wsOnly, FailFast: wsFailFast}, logger)
	if outcomes == nil && err != nil {
		return err
	}
	resp := &WorkspaceImportResponseCLI{Workspace: ws.Name, Repos: outcomes}
	for _, out := range outcomes {
		if out.Error != "" {
			resp.Failed++
		}
	}
	if perr := printResponse(resp); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}
	if resp.Failed > 0 {
		return fmt.Errorf("%d of %d repositories failed to import", resp.Failed, len(outcomes))
	}
	return nil
}

// workspaceLogger logs to stderr; workspaces have no repository config
func workspaceLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Flags().Changed("verbose") || cmd.Flags().Changed("quiet") {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	if formatFlag == string(FormatJSON) {
		return slogutil.NewJSONLogger(os.Stderr, level)
	}
	return slogutil.NewLogger(os.Stderr, level)
}
