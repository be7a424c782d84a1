package svn

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"lineage/internal/backends"
	"lineage/internal/errors"
	"lineage/internal/history"
	"lineage/internal/paths"
	"lineage/internal/revision"
)

const (
	// BackendID is the unique identifier for the Subversion backend
	BackendID = backends.BackendSVN

	// DefaultRange is the revision range read from a live repository
	DefaultRange = "1:HEAD"
)

// Options selects where the log comes from. LogFile wins over URL.
type Options struct {
	// LogFile holds saved `svn log --xml -v` output
	LogFile string
	// URL is passed to the svn client when no log file is given
	URL string
	// Range is the -r argument for the svn client; DefaultRange when empty
	Range string
}

// Adapter turns Subversion log output into commits with linear revisions
type Adapter struct {
	opts   Options
	logger *slog.Logger
}

// NewAdapter creates a Subversion adapter
func NewAdapter(opts Options, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		return nil, errors.Newf(errors.InternalError, "logger is required for the svn adapter")
	}
	if opts.LogFile == "" && opts.URL == "" {
		return nil, errors.NewLineageError(
			errors.ConfigInvalid,
			"svn backend needs a log file or a repository URL",
			nil,
			[]errors.FixAction{
				{
					Type:        errors.RunCommand,
					Command:     "svn log --xml -v -r 1:HEAD > svn-log.xml",
					Safe:        true,
					Description: "Save the repository log and set svn.logFile",
				},
			},
		)
	}
	if opts.Range == "" {
		opts.Range = DefaultRange
	}
	return &Adapter{opts: opts, logger: logger}, nil
}

// ID returns the backend identifier
func (a *Adapter) ID() backends.BackendID {
	return BackendID
}

// IsAvailable reports whether the log can be read
func (a *Adapter) IsAvailable() bool {
	if a.opts.LogFile != "" {
		_, err := os.Stat(a.opts.LogFile)
		return err == nil
	}
	_, err := exec.LookPath("svn")
	return err == nil
}

// Capabilities returns the list of capabilities this backend supports
func (a *Adapter) Capabilities() []string {
	return []string{backends.CapCommitWalk, backends.CapNativeCopies, backends.CapAuthorMessage}
}

// Ordering returns the revision ordering of the commits Walk emits
func (a *Adapter) Ordering() revision.Ordering[revision.Linear] {
	return revision.LinearOrdering{}
}

func (a *Adapter) read(ctx context.Context) ([]LogEntry, error) {
	if a.opts.LogFile != "" {
		f, err := os.Open(a.opts.LogFile)
		if err != nil {
			return nil, errors.Wrap(errors.BackendUnavailable, err, "cannot open svn log")
		}
		defer f.Close()
		return ParseLog(f)
	}

	cmd := exec.CommandContext(ctx, "svn", "log", "--xml", "-v", "--non-interactive", "-r", a.opts.Range, a.opts.URL)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.BackendUnavailable, err,
			fmt.Sprintf("svn log failed: %s", strings.TrimSpace(stderr.String())))
	}
	return ParseLog(bytes.NewReader(out))
}

// Walk emits every logged revision oldest first
func (a *Adapter) Walk(ctx context.Context, fn func(history.Commit[revision.Linear]) error) error {
	entries, err := a.read(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Read svn log", "entries", len(entries))

	t := newTree()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		commit, err := convert(t, e)
		if err != nil {
			return err
		}
		a.logger.Debug("Read revision", "revision", e.Revision, "items", len(commit.Items))
		if err := fn(commit); err != nil {
			return err
		}
	}
	return nil
}

// pending is a change item under construction; expanded items come from a
// directory operation rather than from the log itself
type pending struct {
	item     history.ChangeItem[revision.Linear]
	expanded bool
}

// convert turns a log entry into a commit and advances t past it.
// Directory deletions and copies are expanded into one item per file, using
// the files t knows to have existed.
func convert(t *tree, e LogEntry) (history.Commit[revision.Linear], error) {
	rev := e.Revision
	parent := rev - 1
	items := make(map[string]*pending)

	logged := make([]LogPath, 0, len(e.Paths))
	for _, p := range e.Paths {
		p.Path = paths.NormalizePath(p.Path)
		if p.CopyFromPath != "" {
			p.CopyFromPath = paths.NormalizePath(p.CopyFromPath)
		}
		logged = append(logged, p)
	}
	sort.SliceStable(logged, func(i, j int) bool { return logged[i].Path < logged[j].Path })

	isDir := func(p LogPath) bool {
		return p.IsDir() || (p.Kind == "" && t.isDir(p.Path, parent))
	}

	var files []LogPath
	for _, p := range logged {
		if !isDir(p) {
			files = append(files, p)
			continue
		}
		if p.Action == "D" || p.Action == "R" {
			for _, f := range t.under(p.Path, parent) {
				items[f] = &pending{item: history.ChangeItem[revision.Linear]{Path: f, Kind: history.Deleted}, expanded: true}
			}
		}
		if p.Action != "A" && p.Action != "R" {
			continue
		}
		from, ok, err := p.copyRevision()
		if err != nil {
			return history.Commit[revision.Linear]{}, err
		}
		if !ok {
			continue
		}
		for _, src := range t.under(p.CopyFromPath, from) {
			dst := p.Path + strings.TrimPrefix(src, p.CopyFromPath)
			kind := history.Added
			if prev, ok := items[dst]; ok && prev.item.Kind == history.Deleted {
				kind = history.Replaced
			}
			items[dst] = &pending{
				item: history.ChangeItem[revision.Linear]{
					Path:     dst,
					Kind:     kind,
					CopyFrom: &history.CopySource[revision.Linear]{Path: src, Revision: revision.Linear(from)},
				},
				expanded: true,
			}
		}
	}

	for _, p := range files {
		kind, err := history.ParseChangeKind(p.Action)
		if err != nil {
			return history.Commit[revision.Linear]{}, errors.Wrap(errors.InvalidInput, err, fmt.Sprintf("r%d %s", rev, p.Path))
		}
		item := history.ChangeItem[revision.Linear]{Path: p.Path, Kind: kind}
		from, ok, err := p.copyRevision()
		if err != nil {
			return history.Commit[revision.Linear]{}, err
		}
		if ok {
			item.CopyFrom = &history.CopySource[revision.Linear]{Path: p.CopyFromPath, Revision: revision.Linear(from)}
		}

		prev, seen := items[p.Path]
		switch {
		case !seen || !prev.expanded:
			items[p.Path] = &pending{item: item}
		case kind == history.Modified && prev.item.Kind != history.Deleted:
			// an edited file inside a copied directory is still the copy
		case kind == history.Deleted && prev.item.Kind == history.Added:
			// copied in and removed again within the revision
			delete(items, p.Path)
		case kind == history.Deleted && prev.item.Kind == history.Replaced:
			prev.item = item
			prev.expanded = false
		default:
			items[p.Path] = &pending{item: item}
		}
	}

	commit := history.Commit[revision.Linear]{
		Revision:       revision.Linear(rev),
		ParentRevision: revision.Linear(parent),
		HasParent:      parent >= 0,
		Author:         e.Author,
		Message:        e.Message,
		Items:          make([]history.ChangeItem[revision.Linear], 0, len(items)),
	}
	for _, p := range items {
		commit.Items = append(commit.Items, p.item)
	}
	sort.Slice(commit.Items, func(i, j int) bool { return commit.Items[i].Path < commit.Items[j].Path })

	for _, item := range commit.Items {
		switch item.Kind {
		case history.Deleted:
			t.remove(item.Path, rev)
		case history.Replaced:
			t.remove(item.Path, rev)
			t.add(item.Path, rev)
		default:
			t.add(item.Path, rev)
		}
	}

	if err := commit.Validate(); err != nil {
		return history.Commit[revision.Linear]{}, err
	}
	return commit, nil
}
