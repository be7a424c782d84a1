package backends

import (
	"context"

	"lineage/internal/history"
)

// BackendID uniquely identifies a backend type
type BackendID string

const (
	// BackendGit reads history from a Git repository
	BackendGit BackendID = "git"
	// BackendSVN reads history from Subversion log output
	BackendSVN BackendID = "svn"
)

// Capability identifiers
const (
	CapCommitWalk    = "commit-walk"
	CapNativeCopies  = "native-copies"
	CapRenameInfer   = "rename-inference"
	CapAuthorMessage = "author-message"
)

// Backend is the base interface that all history backends implement
type Backend interface {
	// ID returns the unique identifier for this backend
	ID() BackendID

	// IsAvailable checks if this backend can read its repository
	IsAvailable() bool

	// Capabilities returns a list of capability identifiers this backend supports
	Capabilities() []string
}

// HistoryBackend walks a repository's commits oldest first. Walk stops at
// the first error fn returns and passes it through.
type HistoryBackend[R any] interface {
	Backend
	Walk(ctx context.Context, fn func(history.Commit[R]) error) error
}

// Parse turns a configured backend name into a BackendID
func Parse(name string) (BackendID, bool) {
	switch BackendID(name) {
	case BackendGit, BackendSVN:
		return BackendID(name), true
	}
	return "", false
}
