package git

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"lineage/internal/backends"
	"lineage/internal/errors"
	"lineage/internal/history"
	"lineage/internal/paths"
	"lineage/internal/revision"
)

const (
	// BackendID is the unique identifier for the Git backend
	BackendID = backends.BackendGit

	// DefaultRef is walked when no ref is configured
	DefaultRef = "HEAD"
)

// Options controls how history is read
type Options struct {
	// Ref is a branch, tag or commit hash; DefaultRef when empty
	Ref string
	// DetectRenames pairs deleted and added files with similar content
	DetectRenames bool
	// MaxCommits limits the walk to the newest N first-parent commits; 0 is unlimited
	MaxCommits int
}

// GitAdapter reads first-parent history from a Git repository
type GitAdapter struct {
	repoRoot string
	repo     *gogit.Repository
	opts     Options
	logger   *slog.Logger
}

// NewGitAdapter opens the repository at repoRoot
func NewGitAdapter(repoRoot string, opts Options, logger *slog.Logger) (*GitAdapter, error) {
	if logger == nil {
		return nil, errors.Newf(errors.InternalError, "logger is required for GitAdapter")
	}
	if opts.Ref == "" {
		opts.Ref = DefaultRef
	}

	repo, err := gogit.PlainOpenWithOptions(repoRoot, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.NewLineageError(
			errors.BackendUnavailable,
			fmt.Sprintf("%s is not a git repository", repoRoot),
			err,
			[]errors.FixAction{
				{
					Type:        errors.RunCommand,
					Command:     "git status",
					Safe:        true,
					Description: "Verify you're in a git repository",
				},
			},
		)
	}

	logger.Info("Git adapter initialized",
		"backend", BackendID,
		"repoRoot", repoRoot,
		"ref", opts.Ref,
		"detectRenames", opts.DetectRenames,
	)

	return &GitAdapter{repoRoot: repoRoot, repo: repo, opts: opts, logger: logger}, nil
}

// ID returns the backend identifier
func (g *GitAdapter) ID() backends.BackendID {
	return BackendID
}

// IsAvailable reports whether the configured ref resolves
func (g *GitAdapter) IsAvailable() bool {
	_, err := g.resolve()
	return err == nil
}

// Capabilities returns the list of capabilities this backend supports
func (g *GitAdapter) Capabilities() []string {
	caps := []string{backends.CapCommitWalk, backends.CapAuthorMessage}
	if g.opts.DetectRenames {
		caps = append(caps, backends.CapRenameInfer)
	}
	return caps
}

// Ordering returns the revision ordering of the commits Walk emits
func (g *GitAdapter) Ordering() revision.Ordering[revision.Commit] {
	return revision.CommitOrdering{}
}

// Head returns the hash the configured ref points at
func (g *GitAdapter) Head() (string, error) {
	commit, err := g.resolve()
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

func (g *GitAdapter) resolve() (*object.Commit, error) {
	hash, err := g.repo.ResolveRevision(plumbing.Revision(g.opts.Ref))
	if err != nil {
		return nil, errors.Wrap(errors.InvalidRevision, err, fmt.Sprintf("cannot resolve %s", g.opts.Ref))
	}
	commit, err := g.repo.CommitObject(*hash)
	if err != nil {
		return nil, errors.Wrap(errors.BackendUnavailable, err, "getting commit")
	}
	return commit, nil
}

// firstParents returns the first-parent chain ending at head, oldest first
func (g *GitAdapter) firstParents(ctx context.Context, head *object.Commit) ([]*object.Commit, error) {
	var chain []*object.Commit
	for c := head; c != nil; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chain = append(chain, c)
		if g.opts.MaxCommits > 0 && len(chain) == g.opts.MaxCommits {
			break
		}
		if c.NumParents() == 0 {
			break
		}
		parent, err := g.repo.CommitObject(c.ParentHashes[0])
		if err != nil {
			return nil, errors.Wrap(errors.BackendUnavailable, err, "getting parent commit")
		}
		c = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Walk emits the first-parent history of the configured ref, oldest first.
// Merges are diffed against their first parent. Committer times are made
// strictly increasing so the emitted revisions are totally ordered.
func (g *GitAdapter) Walk(ctx context.Context, fn func(history.Commit[revision.Commit]) error) error {
	head, err := g.resolve()
	if err != nil {
		return err
	}
	chain, err := g.firstParents(ctx, head)
	if err != nil {
		return err
	}

	var (
		prev     revision.Commit
		hasPrev  bool
		prevTree *object.Tree
	)

	// a truncated walk still diffs its oldest commit against the real parent
	if first := chain[0]; first.NumParents() > 0 {
		parent, err := g.repo.CommitObject(first.ParentHashes[0])
		if err != nil {
			return errors.Wrap(errors.BackendUnavailable, err, "getting parent commit")
		}
		if prevTree, err = parent.Tree(); err != nil {
			return errors.Wrap(errors.BackendUnavailable, err, "getting parent tree")
		}
		when := parent.Committer.When.UTC()
		if !when.Before(first.Committer.When) {
			when = first.Committer.When.UTC().Add(-time.Millisecond)
		}
		prev = revision.Commit{Hash: parent.Hash.String(), Time: when}
		hasPrev = true
	}

	for _, c := range chain {
		if err := ctx.Err(); err != nil {
			return err
		}

		rev := revision.Commit{Hash: c.Hash.String(), Time: c.Committer.When.UTC()}
		if hasPrev && !rev.Time.After(prev.Time) {
			rev.Time = prev.Time.Add(time.Millisecond)
		}

		tree, err := c.Tree()
		if err != nil {
			return errors.Wrap(errors.BackendUnavailable, err, "getting tree")
		}
		items, err := g.changes(ctx, prevTree, tree, prev)
		if err != nil {
			return err
		}

		commit := history.Commit[revision.Commit]{
			Revision:       rev,
			ParentRevision: prev,
			HasParent:      hasPrev,
			Items:          items,
			Author:         c.Author.Name,
			Message:        firstLine(c.Message),
		}
		g.logger.Debug("Read commit", "hash", rev.ShortHash(), "items", len(items))
		if err := fn(commit); err != nil {
			return err
		}

		prev, hasPrev, prevTree = rev, true, tree
	}
	return nil
}

// changes lists the difference between two trees as change items. Detected
// renames become a copy plus a deletion of the old path; a path that is both
// vacated and refilled in one commit becomes a replacement.
func (g *GitAdapter) changes(ctx context.Context, from, to *object.Tree, parent revision.Commit) ([]history.ChangeItem[revision.Commit], error) {
	if from == nil {
		var items []history.ChangeItem[revision.Commit]
		err := to.Files().ForEach(func(f *object.File) error {
			items = append(items, history.ChangeItem[revision.Commit]{Path: paths.NormalizePath(f.Name), Kind: history.Added})
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(errors.BackendUnavailable, err, "listing tree")
		}
		return items, nil
	}

	opts := *object.DefaultDiffTreeOptions
	opts.DetectRenames = g.opts.DetectRenames
	changes, err := object.DiffTreeWithOptions(ctx, from, to, &opts)
	if err != nil {
		return nil, errors.Wrap(errors.BackendUnavailable, err, "computing diff")
	}

	byPath := make(map[string]history.ChangeItem[revision.Commit])
	put := func(item history.ChangeItem[revision.Commit]) {
		existing, ok := byPath[item.Path]
		if !ok {
			byPath[item.Path] = item
			return
		}
		// one side deleted the path, the other refilled it
		if item.Kind == history.Deleted {
			item = existing
		}
		item.Kind = history.Replaced
		byPath[item.Path] = item
	}

	for _, change := range changes {
		src := paths.NormalizePath(change.From.Name)
		dst := paths.NormalizePath(change.To.Name)
		switch {
		case change.From.Name == "":
			put(history.ChangeItem[revision.Commit]{Path: dst, Kind: history.Added})
		case change.To.Name == "":
			put(history.ChangeItem[revision.Commit]{Path: src, Kind: history.Deleted})
		case src != dst:
			put(history.ChangeItem[revision.Commit]{
				Path:     dst,
				Kind:     history.Added,
				CopyFrom: &history.CopySource[revision.Commit]{Path: src, Revision: parent},
			})
			put(history.ChangeItem[revision.Commit]{Path: src, Kind: history.Deleted})
		default:
			put(history.ChangeItem[revision.Commit]{Path: dst, Kind: history.Modified})
		}
	}

	items := make([]history.ChangeItem[revision.Commit], 0, len(byPath))
	for _, item := range byPath {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

func firstLine(msg string) string {
	msg = strings.TrimSpace(msg)
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return strings.TrimSpace(msg[:i])
	}
	return msg
}
