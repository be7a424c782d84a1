package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"lineage/internal/backends"
	"lineage/internal/config"
	"lineage/internal/repos"
	"lineage/internal/slogutil"
	"lineage/internal/version"
)

var (
	repoFlag   string
	formatFlag string
	verbosity  int
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "lineage",
	Short: "lineage - file lineage across copies, moves and deletions",
	Long: `lineage reads the history of a Git or Subversion repository and answers
where a file at a given revision ended up: through renames, moves,
directory reorganizations and copies.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("lineage version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "",
		"Repository root (default: $"+repos.RepoEnvVar+", then the enclosing repository)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", string(FormatHuman), "Output format (json, human)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all logs")
}

// cliEnv is the resolved repository, its config and a logger
type cliEnv struct {
	root    string
	source  repos.ResolutionSource
	cfg     *config.Config
	logger  *slog.Logger
	factory *slogutil.LoggerFactory
}

// setup resolves the repository and builds the logger. Precedence for the
// log level: -v/-q > LINEAGE_LOG_LEVEL > config.
func setup(cmd *cobra.Command) (*cliEnv, error) {
	if _, err := parseFormat(formatFlag); err != nil {
		return nil, err
	}
	root, source, err := repos.ResolveRepoRoot(repoFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository: %w", err)
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, err
	}

	factory := slogutil.NewLoggerFactory(root, cfg.Logging)
	flags := cmd.Flags()
	if flags.Changed("verbose") || flags.Changed("quiet") {
		factory.WithCLILevel(slogutil.LevelFromVerbosity(verbosity, quiet))
	}
	logger, err := factory.Logger(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	logger.Debug("Resolved repository", "root", root, "source", string(source))

	return &cliEnv{root: root, source: source, cfg: cfg, logger: logger, factory: factory}, nil
}

func (e *cliEnv) close() {
	_ = e.factory.Close()
}

// target builds the import target after validating the config
func (e *cliEnv) target() (repos.Target, error) {
	if err := e.cfg.Validate(); err != nil {
		return repos.Target{}, err
	}
	return repos.TargetFromConfig(e.root, e.cfg), nil
}

// newContext returns a context cancelled on interrupt
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// byBackend runs the variant of a command matching the backend's revision type
func byBackend(id backends.BackendID, git, svn func() error) error {
	switch id {
	case backends.BackendGit:
		return git()
	case backends.BackendSVN:
		return svn()
	}
	return fmt.Errorf("unknown backend %q", id)
}

// printResponse writes resp to stdout in the selected format
func printResponse(resp interface{}) error {
	format, err := parseFormat(formatFlag)
	if err != nil {
		return err
	}
	output, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	fmt.Println(output)
	return nil
}
