// Package history defines the per-commit change stream that repository
// adapters hand to the lineage graph.
package history

import (
	"fmt"
	"strings"

	"lineage/internal/errors"
)

// ChangeKind classifies a change item within one commit
type ChangeKind string

const (
	// Added means the path did not exist before this commit
	Added ChangeKind = "added"
	// Modified means the path's content changed in place
	Modified ChangeKind = "modified"
	// Deleted means the path no longer exists after this commit
	Deleted ChangeKind = "deleted"
	// Replaced means the path was deleted and re-added in the same commit
	Replaced ChangeKind = "replaced"
)

// ParseChangeKind accepts both the long names and the single-letter
// action codes used by version-control logs (A, M, D, R).
func ParseChangeKind(s string) (ChangeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "add", "added":
		return Added, nil
	case "m", "modify", "modified", "changed":
		return Modified, nil
	case "d", "delete", "deleted":
		return Deleted, nil
	case "r", "replace", "replaced":
		return Replaced, nil
	}
	return "", errors.Newf(errors.InvalidInput, "unknown change kind %q", s)
}

// IsDeletion reports whether the kind removes the previous content of the path
func (k ChangeKind) IsDeletion() bool {
	return k == Deleted || k == Replaced
}

// IsAddition reports whether the kind leaves content at the path after the commit
func (k ChangeKind) IsAddition() bool {
	return k != Deleted
}

// CopySource names the (path, revision) a change item was copied from
type CopySource[R any] struct {
	Path     string `json:"path" yaml:"path"`
	Revision R      `json:"revision" yaml:"revision"`
}

// ChangeItem is one path touched by a commit
type ChangeItem[R any] struct {
	Path     string         `json:"path"`
	Kind     ChangeKind     `json:"kind"`
	CopyFrom *CopySource[R] `json:"copyFrom,omitempty"`
}

// IsCopy reports whether the item carries copy-from information
func (c ChangeItem[R]) IsCopy() bool {
	return c.CopyFrom != nil
}

func (c ChangeItem[R]) String() string {
	if c.CopyFrom != nil {
		return fmt.Sprintf("%s %s (from %s@%v)", c.Kind, c.Path, c.CopyFrom.Path, c.CopyFrom.Revision)
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Path)
}

// Commit is everything an adapter reports about one revision
type Commit[R any] struct {
	Revision       R
	ParentRevision R
	// HasParent is false for a root commit; ParentRevision is then meaningless.
	HasParent bool
	Items     []ChangeItem[R]

	Author  string
	Message string
}

// Validate checks the structural well-formedness of the commit's items.
func (c *Commit[R]) Validate() error {
	for i, item := range c.Items {
		if item.Path == "" {
			return errors.Newf(errors.InvalidInput, "change item %d has an empty path", i).
				WithDetails(map[string]interface{}{"item": i})
		}
		switch item.Kind {
		case Added, Modified, Deleted, Replaced:
		default:
			return errors.Newf(errors.InvalidInput, "change item %q has unknown kind %q", item.Path, item.Kind)
		}
		if item.IsCopy() {
			if item.Kind == Deleted {
				return errors.Newf(errors.InvalidInput, "deleted item %q cannot carry copy-from", item.Path)
			}
			if item.CopyFrom.Path == "" {
				return errors.Newf(errors.InvalidInput, "change item %q has an empty copy-from path", item.Path)
			}
		}
	}
	return nil
}

// Paths returns the paths touched by the commit, in item order
func (c *Commit[R]) Paths() []string {
	paths := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		paths = append(paths, item.Path)
	}
	return paths
}
