package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lineage/internal/repos"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

func parseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatJSON, FormatHuman:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unsupported format: %s (want json or human)", s)
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *LatestResponseCLI:
		return formatLatestHuman(v), nil
	case *NodeResponseCLI:
		return formatNodeHuman(v), nil
	case *repos.Outcome:
		return formatOutcomeHuman(v), nil
	case *WorkspaceImportResponseCLI:
		return formatWorkspaceImportHuman(v), nil
	case *ReplayResponseCLI:
		return formatReplayHuman(v), nil
	case *ExportResponseCLI:
		return formatExportHuman(v), nil
	case *StatusResponseCLI:
		return formatStatusHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

// displayRevision shortens commit revisions ("<nanos>:<hash>") to their hash
func displayRevision(rev string) string {
	if _, hash, ok := strings.Cut(rev, ":"); ok {
		if len(hash) > 8 {
			return hash[:8]
		}
		return hash
	}
	return rev
}

func formatRef(ref FileRefCLI) string {
	return ref.Path + "@" + displayRevision(ref.Revision)
}

func formatLatestHuman(resp *LatestResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s\n", resp.Path, displayRevision(resp.Revision))
	if len(resp.Files) == 0 {
		b.WriteString("  (no files)\n")
	}
	for _, f := range resp.Files {
		fmt.Fprintf(&b, "  -> %s\n", formatRef(f))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatNodeHuman(resp *NodeResponseCLI) string {
	if !resp.Found {
		return fmt.Sprintf("%s: no lineage node", resp.Path)
	}
	var b strings.Builder
	for i, n := range resp.Nodes {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s [%s, %s]\n", n.Path, n.Origin, n.Type)
		fmt.Fprintf(&b, "  born:       %s (first seen %s)\n", displayRevision(n.BornAt), displayRevision(n.FirstSeen))
		if n.DiesAt != "" {
			fmt.Fprintf(&b, "  dies:       %s\n", displayRevision(n.DiesAt))
		}
		if n.LastAlive != "" {
			fmt.Fprintf(&b, "  last alive: %s\n", displayRevision(n.LastAlive))
		}
		writeRefs(&b, "copied from", n.CopySources)
		writeRefs(&b, "moved from", n.MoveSources)
		writeRefs(&b, "moved to", n.MoveTargets)
		writeRefs(&b, "copied to", n.CopyTargets)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRefs(b *strings.Builder, label string, refs []FileRefCLI) {
	if len(refs) == 0 {
		return
	}
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = formatRef(ref)
	}
	fmt.Fprintf(b, "  %-11s %s\n", label+":", strings.Join(parts, ", "))
}

func formatOutcomeHuman(out *repos.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", out.Name, out.Backend)
	if out.Report != nil {
		fmt.Fprintf(&b, "  imported: %d commits (%d skipped) in %s\n",
			out.Report.Commits, out.Report.Skipped, out.Report.Duration.Round(time.Millisecond))
		fmt.Fprintf(&b, "  changes:  %d items, %d copies, %d moves, %d deletions\n",
			out.Report.Items, out.Report.Copies, out.Report.Moves, out.Report.Deletions)
	}
	fmt.Fprintf(&b, "  graph:    %d commits, %d paths, %d moves", out.Commits, out.Paths, out.Moves)
	if out.LastRevision != "" {
		fmt.Fprintf(&b, ", last %s", displayRevision(out.LastRevision))
	}
	if out.Error != "" {
		fmt.Fprintf(&b, "\n  error:    %s", out.Error)
	}
	return b.String()
}

func formatWorkspaceImportHuman(resp *WorkspaceImportResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Workspace %s: %d repositories, %d failed\n", resp.Workspace, len(resp.Repos), resp.Failed)
	for _, out := range resp.Repos {
		b.WriteString("\n")
		b.WriteString(formatOutcomeHuman(out))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatReplayHuman(resp *ReplayResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Replayed %s: %d commits, %d paths, %d moves\n",
		resp.Script, resp.Report.Commits, resp.Stats.Paths, resp.Stats.Moves)
	for _, q := range resp.Queries {
		mark := "ok"
		if !q.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "  [%s] %s@%d -> %s", mark, q.Path, q.Revision, strings.Join(q.Files, ", "))
		if !q.OK {
			fmt.Fprintf(&b, " (want %s)", strings.Join(q.Expect, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatExportHuman(resp *ExportResponseCLI) string {
	return fmt.Sprintf("%s: %s (%s), %d commits, %d epochs, %d edges, generated %s",
		resp.File, resp.Repo, resp.Backend, resp.Commits, resp.Epochs, resp.Edges,
		resp.Generated.Format("2006-01-02 15:04:05"))
}

func formatStatusHuman(resp *StatusResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "lineage %s\n", resp.Version)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Repository: %s (from %s)\n", resp.Root, resp.ResolvedFrom)

	avail := "unavailable"
	if resp.Backend.Available {
		avail = "available"
	}
	fmt.Fprintf(&b, "Backend:    %s, %s", resp.Backend.ID, avail)
	if len(resp.Backend.Capabilities) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(resp.Backend.Capabilities, ", "))
	}
	b.WriteString("\n")
	if resp.Backend.Head != "" {
		fmt.Fprintf(&b, "Head:       %s\n", displayRevision(":"+resp.Backend.Head))
	}
	if resp.Backend.Details != "" {
		fmt.Fprintf(&b, "Details:    %s\n", resp.Backend.Details)
	}

	b.WriteString("\n")
	if resp.Import == nil {
		b.WriteString("Import:     never\n")
	} else {
		fmt.Fprintf(&b, "Import:     %s, %d commits, %d paths, last %s\n",
			resp.Import.UpdatedAt.Format("2006-01-02 15:04:05"), resp.Import.Commits, resp.Import.Paths,
			displayRevision(resp.Import.LastRevision))
	}
	if resp.Importing != nil {
		fmt.Fprintf(&b, "Importing:  PID %d since %s\n",
			resp.Importing.PID, resp.Importing.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if resp.Fresh {
		b.WriteString("Fresh:      yes\n")
	} else {
		fmt.Fprintf(&b, "Fresh:      no (%s)\n", resp.Reason)
	}

	if len(resp.Runs) > 0 {
		b.WriteString("\nRecent runs:\n")
		for _, run := range resp.Runs {
			fmt.Fprintf(&b, "  %s  %-8s  %d commits  %s\n",
				run.StartedAt.Format("2006-01-02 15:04:05"), run.Status, run.Commits, run.ID)
		}
	}
	if len(resp.Others) > 0 {
		fmt.Fprintf(&b, "\nThe journal also holds: %s\n", strings.Join(resp.Others, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
