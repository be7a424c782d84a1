package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lineage/internal/history"
	"lineage/internal/lineage"
	"lineage/internal/revision"
	"lineage/internal/session"
)

var replayPairing string

var replayCmd = &cobra.Command{
	Use:   "replay SCRIPT.yaml",
	Short: "Integrate a scripted commit log and run its queries",
	Long: `Replay a YAML commit script with linear revisions into an empty graph and
answer its latest-files queries. Queries that state an expectation are
checked; any mismatch makes the command fail.

Example script:
  commits:
    - revision: 1
      changes:
        - {path: a, kind: added}
    - revision: 2
      changes:
        - {path: b, kind: added, from: a}
        - {path: a, kind: deleted}
  queries:
    - {path: a, revision: 1, expect: ["b@2"]}`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayPairing, "pairing", "", "Move pairing rule (parent, same-epoch); default from config")
	rootCmd.AddCommand(replayCmd)
}

// ReplayResponseCLI is the output of the replay command
type ReplayResponseCLI struct {
	Script  string           `json:"script"`
	Report  *session.Report  `json:"report"`
	Stats   lineage.Stats    `json:"stats"`
	Queries []QueryResultCLI `json:"queries"`
	Failed  int              `json:"failed"`
}

// QueryResultCLI is one answered script query
type QueryResultCLI struct {
	Path     string   `json:"path"`
	Revision int64    `json:"revision"`
	Files    []string `json:"files"`
	Expect   []string `json:"expect,omitempty"`
	OK       bool     `json:"ok"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	script, err := history.LoadScript(f)
	f.Close()
	if err != nil {
		return err
	}
	commits, err := script.Build()
	if err != nil {
		return err
	}

	pairing := env.cfg.Graph.MovePairing
	if replayPairing != "" {
		pairing = replayPairing
	}
	order := revision.LinearOrdering{}
	s, err := session.New[revision.Linear](script.Name, order, session.Options[revision.Linear]{
		Pairing: lineage.MovePairing(pairing),
		Logger:  env.logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()
	report, err := s.Integrate(ctx, commits)
	if err != nil {
		return err
	}

	resp := &ReplayResponseCLI{
		Script:  args[0],
		Report:  report,
		Stats:   s.Graph().Stats(),
		Queries: make([]QueryResultCLI, 0, len(script.Queries)),
	}
	for _, q := range script.Queries {
		refs := s.LatestFiles(q.Path, revision.Linear(q.Revision))
		files := make([]string, len(refs))
		for i, ref := range refs {
			files[i] = ref.Path + "@" + order.Format(ref.Revision)
		}
		ok := q.Expect == nil || strings.Join(files, ",") == strings.Join(q.Expect, ",")
		if !ok {
			resp.Failed++
		}
		resp.Queries = append(resp.Queries, QueryResultCLI{
			Path:     q.Path,
			Revision: q.Revision,
			Files:    files,
			Expect:   q.Expect,
			OK:       ok,
		})
	}

	if err := printResponse(resp); err != nil {
		return err
	}
	if resp.Failed > 0 {
		return fmt.Errorf("%d of %d queries did not match their expectation", resp.Failed, len(resp.Queries))
	}
	return nil
}
