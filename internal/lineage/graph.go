// Package lineage maintains the file-lineage graph: for every path, a chain
// of epochs (continuous pieces of content), linked across paths by copy and
// move edges. The graph is fed one commit at a time and answers where a
// (path, revision) pair ended up.
//
// A Graph has a single writer and any number of readers. Mutations take the
// write lock, queries the read lock. Nothing is ever removed from a graph.
package lineage

import (
	"io"
	"log/slog"
	"sort"
	"sync"

	"lineage/internal/errors"
	"lineage/internal/revision"
)

// Graph is the lineage node store for one repository
type Graph[R any] struct {
	mu      sync.RWMutex
	order   revision.Ordering[R]
	logger  *slog.Logger
	pairing MovePairing

	epochs []epoch[R]
	edges  []edge[R]
	byPath map[string][]epochID

	lastCommit R
	hasCommit  bool
	commits    int
}

// Option configures a Graph
type Option func(*options)

type options struct {
	logger  *slog.Logger
	pairing MovePairing
}

// MovePairing decides which copies a deletion in the same commit turns into moves
type MovePairing string

const (
	// PairParent pairs a deletion of p with copies from p at the commit's parent revision
	PairParent MovePairing = "parent"
	// PairSameEpoch also pairs copies from any revision of the content being
	// deleted. Subversion working copies often record an older copy-from
	// revision than the parent.
	PairSameEpoch MovePairing = "same-epoch"
)

// WithLogger sets the logger used for debug output during integration
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMovePairing selects the move pairing rule; the default is PairParent
func WithMovePairing(p MovePairing) Option {
	return func(o *options) {
		o.pairing = p
	}
}

// New creates an empty graph ordered by order
func New[R any](order revision.Ordering[R], opts ...Option) *Graph[R] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.pairing == "" {
		o.pairing = PairParent
	}
	return &Graph[R]{
		order:   order,
		logger:  o.logger,
		pairing: o.pairing,
		byPath:  make(map[string][]epochID),
	}
}

// Ordering returns the revision ordering the graph was built with
func (g *Graph[R]) Ordering() revision.Ordering[R] {
	return g.order
}

// Paths returns every path the graph has seen, sorted
func (g *Graph[R]) Paths() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	paths := make([]string, 0, len(g.byPath))
	for p := range g.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// LastCommit returns the revision of the newest integrated commit
func (g *Graph[R]) LastCommit() (R, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastCommit, g.hasCommit
}

// Stats returns counters describing the graph
func (g *Graph[R]) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		Paths:   len(g.byPath),
		Epochs:  len(g.epochs),
		Copies:  len(g.edges),
		Commits: g.commits,
	}
	for i := range g.epochs {
		switch g.epochs[i].fate {
		case FateOpen:
			s.Open++
		case FateSuperseded:
			s.Superseded++
		case FateDeleted:
			s.Deleted++
		case FateMovedOut:
			s.MovedOut++
		}
	}
	for i := range g.edges {
		if g.edges[i].move {
			s.Moves++
		}
	}
	return s
}

func (g *Graph[R]) cmp(a, b R) int {
	return g.order.Compare(a, b)
}

// lastEpoch returns the newest epoch on path
func (g *Graph[R]) lastEpoch(path string) (*epoch[R], bool) {
	chain := g.byPath[path]
	if len(chain) == 0 {
		return nil, false
	}
	return &g.epochs[chain[len(chain)-1]], true
}

// openEpoch returns the open epoch on path, if any
func (g *Graph[R]) openEpoch(path string) (*epoch[R], bool) {
	last, ok := g.lastEpoch(path)
	if !ok || last.closed {
		return nil, false
	}
	return last, true
}

// locate finds the epoch on path that covers rev. When rev is exactly the
// boundary between two epochs, the closing (earlier) one is returned.
func (g *Graph[R]) locate(path string, rev R) (epochID, bool) {
	chain := g.byPath[path]
	if len(chain) == 0 {
		return noEpoch, false
	}

	// last epoch born at or before rev
	i := sort.Search(len(chain), func(i int) bool {
		return g.cmp(g.epochs[chain[i]].bornAt, rev) > 0
	}) - 1
	if i < 0 {
		return noEpoch, false
	}

	for i > 0 {
		prev := &g.epochs[chain[i-1]]
		if !prev.closed || g.cmp(prev.diesAt, rev) != 0 {
			break
		}
		i--
	}

	e := &g.epochs[chain[i]]
	if e.closed && g.cmp(rev, e.diesAt) > 0 {
		// rev falls in a gap after a deletion
		return noEpoch, false
	}
	return e.id, true
}

// newEpoch appends an open epoch to the arena and to the end of its path chain
func (g *Graph[R]) newEpoch(path string, bornAt, firstSeen R, origin Origin) *epoch[R] {
	id := epochID(len(g.epochs))
	g.epochs = append(g.epochs, epoch[R]{
		id:        id,
		path:      path,
		bornAt:    bornAt,
		firstSeen: firstSeen,
		fate:      FateOpen,
		origin:    origin,
		next:      noEpoch,
	})
	g.byPath[path] = append(g.byPath[path], id)
	return &g.epochs[id]
}

// insertImplicit records a copy source the graph never saw, born at rev.
// It is placed in chain order; if a later epoch exists on the path the
// implicit epoch is closed against it.
func (g *Graph[R]) insertImplicit(path string, rev R) epochID {
	id := epochID(len(g.epochs))
	e := epoch[R]{
		id:        id,
		path:      path,
		bornAt:    rev,
		firstSeen: rev,
		fate:      FateOpen,
		origin:    OriginImplicit,
		next:      noEpoch,
	}

	chain := g.byPath[path]
	pos := sort.Search(len(chain), func(i int) bool {
		return g.cmp(g.epochs[chain[i]].bornAt, rev) > 0
	})
	if pos < len(chain) {
		following := chain[pos]
		e.closed = true
		e.diesAt = g.epochs[following].bornAt
		e.fate = FateSuperseded
		e.next = following
	}

	g.epochs = append(g.epochs, e)
	newChain := make([]epochID, 0, len(chain)+1)
	newChain = append(newChain, chain[:pos]...)
	newChain = append(newChain, id)
	newChain = append(newChain, chain[pos:]...)
	g.byPath[path] = newChain
	return id
}

// supersede closes epoch id at rev in favour of successor
func (g *Graph[R]) supersede(id epochID, rev R, successor epochID) {
	e := &g.epochs[id]
	e.closed = true
	e.diesAt = rev
	e.fate = FateSuperseded
	e.next = successor
}

// addEdge records a copy edge unless an identical one exists
func (g *Graph[R]) addEdge(from, to epochID, fromRevision R) int {
	for _, idx := range g.epochs[to].in {
		if g.edges[idx].from == from {
			return idx
		}
	}
	idx := len(g.edges)
	g.edges = append(g.edges, edge[R]{from: from, to: to, fromRevision: fromRevision})
	g.epochs[from].out = append(g.epochs[from].out, idx)
	g.epochs[to].in = append(g.epochs[to].in, idx)
	return idx
}

// closeTerminal closes epoch id at rev as deleted, or as moved-out when moves
// is not empty; moves are indices of edges out of the epoch.
func (g *Graph[R]) closeTerminal(id epochID, rev, lastAlive R, moves []int) {
	e := &g.epochs[id]
	e.closed = true
	e.diesAt = rev
	e.lastAlive = lastAlive
	e.fate = FateDeleted
	g.markMoves(id, moves)
}

func (g *Graph[R]) markMoves(id epochID, moves []int) {
	if len(moves) == 0 {
		return
	}
	g.epochs[id].fate = FateMovedOut
	for _, idx := range moves {
		g.edges[idx].move = true
	}
}

// lastAliveBefore derives the last living revision of e when it is deleted at rev
func (g *Graph[R]) lastAliveBefore(e *epoch[R], rev R) R {
	if prev, ok := g.order.Previous(rev); ok {
		return revision.Max(g.order, prev, e.bornAt)
	}
	return e.firstSeen
}

func (g *Graph[R]) violation(format string, args ...interface{}) error {
	return errors.Newf(errors.InvariantViolation, format, args...)
}

func (g *Graph[R]) format(r R) string {
	return g.order.Format(r)
}
