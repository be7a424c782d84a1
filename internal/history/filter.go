package history

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"lineage/internal/errors"
)

// Filter selects the paths that take part in lineage tracking.
// An empty Include list means "everything"; Exclude always wins.
type Filter struct {
	Include []string
	Exclude []string
}

// NewFilter validates the glob patterns and returns a Filter.
func NewFilter(include, exclude []string) (*Filter, error) {
	for _, pattern := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Newf(errors.ConfigInvalid, "invalid path pattern %q", pattern)
		}
	}
	return &Filter{Include: include, Exclude: exclude}, nil
}

// Match reports whether path passes the filter
func (f *Filter) Match(path string) bool {
	if f == nil {
		return true
	}
	path = strings.TrimPrefix(path, "/")

	for _, pattern := range f.Exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, pattern := range f.Include {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the filter lets every path through
func (f *Filter) IsEmpty() bool {
	return f == nil || (len(f.Include) == 0 && len(f.Exclude) == 0)
}

// Apply returns a copy of commit without the items the filter rejects.
// Copy-from references to rejected paths are kept; the graph treats them as
// sources with no recorded history.
func Apply[R any](f *Filter, commit Commit[R]) Commit[R] {
	if f.IsEmpty() {
		return commit
	}
	kept := make([]ChangeItem[R], 0, len(commit.Items))
	for _, item := range commit.Items {
		if f.Match(item.Path) {
			kept = append(kept, item)
		}
	}
	commit.Items = kept
	return commit
}
