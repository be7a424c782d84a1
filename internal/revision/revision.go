// Package revision provides the orderings the lineage graph uses to compare
// backend-supplied revision identifiers.
//
// The graph never interprets a revision itself. Everything it needs is
// injected through an Ordering: a three-way comparison, an optional step back
// to the preceding revision, and a stable textual form used for storage,
// snapshots and cache keys.
package revision

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Ordering is the capability the graph needs from a revision type.
type Ordering[R any] interface {
	// Compare returns a negative number when a < b, zero when a = b and a
	// positive number when a > b.
	Compare(a, b R) int

	// Previous returns the revision immediately before r. The second result
	// is false when the ordering cannot step back (e.g. commit DAGs).
	Previous(r R) (R, bool)

	// Format renders r in a form Parse accepts.
	Format(r R) string

	// Parse is the inverse of Format.
	Parse(s string) (R, error)
}

// ParseError reports a revision string that could not be parsed
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid revision %q: %s", e.Input, e.Reason)
}

// Linear is a monotonically increasing revision counter (SVN style).
type Linear int64

// LinearOrdering orders Linear revisions numerically.
type LinearOrdering struct{}

// Compare implements Ordering.
func (LinearOrdering) Compare(a, b Linear) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Previous implements Ordering. Revision 0 has no predecessor.
func (LinearOrdering) Previous(r Linear) (Linear, bool) {
	if r <= 0 {
		return 0, false
	}
	return r - 1, true
}

// Format implements Ordering.
func (LinearOrdering) Format(r Linear) string {
	return strconv.FormatInt(int64(r), 10)
}

// Parse implements Ordering. A leading "r" is accepted ("r42").
func (LinearOrdering) Parse(s string) (Linear, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "r")
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, &ParseError{Input: s, Reason: "not a revision number"}
	}
	if n < 0 {
		return 0, &ParseError{Input: s, Reason: "negative revision number"}
	}
	return Linear(n), nil
}

// Commit identifies a commit in a DAG-shaped history (Git style).
// Commits are ordered by commit time, ties broken by hash.
type Commit struct {
	Hash string
	Time time.Time
}

// ShortHash returns the abbreviated hash used in human output
func (c Commit) ShortHash() string {
	if len(c.Hash) > 8 {
		return c.Hash[:8]
	}
	return c.Hash
}

// CommitOrdering orders Commit revisions by time, then hash.
type CommitOrdering struct{}

// Compare implements Ordering.
func (CommitOrdering) Compare(a, b Commit) int {
	switch {
	case a.Time.Before(b.Time):
		return -1
	case a.Time.After(b.Time):
		return 1
	}
	return strings.Compare(a.Hash, b.Hash)
}

// Previous implements Ordering. The predecessor of a commit is not derivable
// from the commit itself; callers pass the parent explicitly instead.
func (CommitOrdering) Previous(Commit) (Commit, bool) {
	return Commit{}, false
}

// Format implements Ordering as "<unix-nanos>:<hash>".
func (CommitOrdering) Format(c Commit) string {
	return strconv.FormatInt(c.Time.UnixNano(), 10) + ":" + c.Hash
}

// Parse implements Ordering.
func (CommitOrdering) Parse(s string) (Commit, error) {
	nanos, hash, ok := strings.Cut(s, ":")
	if !ok || hash == "" {
		return Commit{}, &ParseError{Input: s, Reason: "expected <unix-nanos>:<hash>"}
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Commit{}, &ParseError{Input: s, Reason: "bad commit time"}
	}
	return Commit{Hash: hash, Time: time.Unix(0, n).UTC()}, nil
}

// Max returns the later of a and b under o.
func Max[R any](o Ordering[R], a, b R) R {
	if o.Compare(a, b) < 0 {
		return b
	}
	return a
}
