package lineage

import (
	"lineage/internal/errors"
	"lineage/internal/revision"
)

// SnapshotVersion is bumped whenever the snapshot layout changes
const SnapshotVersion = 1

// Snapshot is a serializable copy of a graph. Revisions are stored in the
// ordering's text form so one layout serves every revision type.
type Snapshot struct {
	Version    int              `json:"version"`
	Pairing    MovePairing      `json:"pairing"`
	LastCommit string           `json:"lastCommit,omitempty"`
	Commits    int              `json:"commits"`
	Epochs     []SnapshotEpoch  `json:"epochs"`
	Edges      []SnapshotEdge   `json:"edges"`
	Chains     map[string][]int `json:"chains"`
}

// SnapshotEpoch is one epoch of a Snapshot; Next is -1 when unset
type SnapshotEpoch struct {
	Path      string `json:"path"`
	BornAt    string `json:"bornAt"`
	FirstSeen string `json:"firstSeen"`
	DiesAt    string `json:"diesAt,omitempty"`
	LastAlive string `json:"lastAlive,omitempty"`
	Fate      Fate   `json:"fate"`
	Origin    Origin `json:"origin"`
	Next      int    `json:"next"`
}

// SnapshotEdge is one copy edge of a Snapshot
type SnapshotEdge struct {
	From         int    `json:"from"`
	To           int    `json:"to"`
	FromRevision string `json:"fromRevision"`
	Move         bool   `json:"move,omitempty"`
}

// Snapshot captures the full state of the graph
func (g *Graph[R]) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := &Snapshot{
		Version: SnapshotVersion,
		Pairing: g.pairing,
		Commits: g.commits,
		Epochs:  make([]SnapshotEpoch, len(g.epochs)),
		Edges:   make([]SnapshotEdge, len(g.edges)),
		Chains:  make(map[string][]int, len(g.byPath)),
	}
	if g.hasCommit {
		s.LastCommit = g.format(g.lastCommit)
	}

	for i := range g.epochs {
		e := &g.epochs[i]
		se := SnapshotEpoch{
			Path:      e.path,
			BornAt:    g.format(e.bornAt),
			FirstSeen: g.format(e.firstSeen),
			Fate:      e.fate,
			Origin:    e.origin,
			Next:      int(e.next),
		}
		if e.closed {
			se.DiesAt = g.format(e.diesAt)
			if e.fate != FateSuperseded {
				se.LastAlive = g.format(e.lastAlive)
			}
		}
		s.Epochs[i] = se
	}
	for i := range g.edges {
		ed := &g.edges[i]
		s.Edges[i] = SnapshotEdge{
			From:         int(ed.from),
			To:           int(ed.to),
			FromRevision: g.format(ed.fromRevision),
			Move:         ed.move,
		}
	}
	for path, chain := range g.byPath {
		ids := make([]int, len(chain))
		for i, id := range chain {
			ids[i] = int(id)
		}
		s.Chains[path] = ids
	}
	return s
}

// Restore rebuilds a graph from a snapshot taken with the same ordering
func Restore[R any](order revision.Ordering[R], s *Snapshot, opts ...Option) (*Graph[R], error) {
	if s == nil {
		return nil, errors.Newf(errors.InvalidInput, "no snapshot to restore")
	}
	if s.Version != SnapshotVersion {
		return nil, errors.Newf(errors.InvalidInput, "unsupported snapshot version %d", s.Version)
	}

	if s.Pairing != "" {
		opts = append([]Option{WithMovePairing(s.Pairing)}, opts...)
	}
	g := New(order, opts...)
	g.commits = s.Commits

	parse := func(field, v string) (R, error) {
		r, err := order.Parse(v)
		if err != nil {
			return r, errors.Wrap(errors.InvalidRevision, err, "snapshot "+field)
		}
		return r, nil
	}
	valid := func(id int) bool {
		return id >= 0 && id < len(s.Epochs)
	}

	if s.LastCommit != "" {
		r, err := parse("lastCommit", s.LastCommit)
		if err != nil {
			return nil, err
		}
		g.lastCommit = r
		g.hasCommit = true
	}

	g.epochs = make([]epoch[R], len(s.Epochs))
	for i, se := range s.Epochs {
		e := epoch[R]{
			id:     epochID(i),
			path:   se.Path,
			fate:   se.Fate,
			origin: se.Origin,
			next:   epochID(se.Next),
			closed: se.Fate != FateOpen,
		}
		if se.Next != int(noEpoch) && !valid(se.Next) {
			return nil, errors.Newf(errors.InvalidInput, "epoch %d has invalid successor %d", i, se.Next)
		}
		var err error
		if e.bornAt, err = parse("bornAt", se.BornAt); err != nil {
			return nil, err
		}
		if e.firstSeen, err = parse("firstSeen", se.FirstSeen); err != nil {
			return nil, err
		}
		if e.closed {
			if e.diesAt, err = parse("diesAt", se.DiesAt); err != nil {
				return nil, err
			}
			if se.LastAlive != "" {
				if e.lastAlive, err = parse("lastAlive", se.LastAlive); err != nil {
					return nil, err
				}
			}
		}
		g.epochs[i] = e
	}

	g.edges = make([]edge[R], len(s.Edges))
	for i, se := range s.Edges {
		if !valid(se.From) || !valid(se.To) {
			return nil, errors.Newf(errors.InvalidInput, "edge %d references an unknown epoch", i)
		}
		r, err := parse("fromRevision", se.FromRevision)
		if err != nil {
			return nil, err
		}
		g.edges[i] = edge[R]{from: epochID(se.From), to: epochID(se.To), fromRevision: r, move: se.Move}
		g.epochs[se.From].out = append(g.epochs[se.From].out, i)
		g.epochs[se.To].in = append(g.epochs[se.To].in, i)
	}

	for path, ids := range s.Chains {
		chain := make([]epochID, len(ids))
		for i, id := range ids {
			if !valid(id) || g.epochs[id].path != path {
				return nil, errors.Newf(errors.InvalidInput, "chain of %s references epoch %d of another path", path, id)
			}
			if i > 0 && g.cmp(g.epochs[ids[i-1]].bornAt, g.epochs[id].bornAt) > 0 {
				return nil, errors.Newf(errors.InvalidInput, "chain of %s is out of order at epoch %d", path, id)
			}
			chain[i] = epochID(id)
		}
		g.byPath[path] = chain
	}
	return g, nil
}
