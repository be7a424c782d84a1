package lineage

import "sort"

// GetLatestFiles returns where the content of path at rev lives as of the
// newest integrated commit, sorted by path then revision.
//
// A path or revision the graph knows nothing about is returned unchanged, as
// is a query landing exactly on the revision that deleted or moved the path.
// Superseded epochs lead to their same-path successor and moved-out epochs
// to every move target; plain copies are never followed. A deleted branch
// reports the last revision its content existed at.
func (g *Graph[R]) GetLatestFiles(path string, rev R) []FileRef[R] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.latest(path, rev)
}

func (g *Graph[R]) latest(path string, rev R) []FileRef[R] {
	identity := []FileRef[R]{{Path: path, Revision: rev}}

	anchor, ok := g.locate(path, rev)
	if !ok {
		return identity
	}
	if a := &g.epochs[anchor]; a.closed && a.fate != FateSuperseded && g.cmp(rev, a.diesAt) == 0 {
		return identity
	}

	var results []FileRef[R]
	visited := make(map[epochID]bool)
	stack := []epochID{anchor}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		e := &g.epochs[id]
		switch e.fate {
		case FateSuperseded:
			if e.next != noEpoch {
				stack = append(stack, e.next)
				continue
			}
		case FateMovedOut:
			targets := 0
			for _, idx := range e.out {
				if g.edges[idx].move {
					stack = append(stack, g.edges[idx].to)
					targets++
				}
			}
			if targets > 0 {
				continue
			}
		}

		// terminal
		switch {
		case e.closed:
			results = append(results, FileRef[R]{Path: e.path, Revision: e.lastAlive})
		case id == anchor && g.cmp(rev, e.firstSeen) >= 0:
			results = append(results, FileRef[R]{Path: e.path, Revision: rev})
		default:
			results = append(results, FileRef[R]{Path: e.path, Revision: e.firstSeen})
		}
	}
	return g.sortRefs(results)
}

// sortRefs orders refs by path then revision and drops duplicates
func (g *Graph[R]) sortRefs(refs []FileRef[R]) []FileRef[R] {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Path != refs[j].Path {
			return refs[i].Path < refs[j].Path
		}
		return g.cmp(refs[i].Revision, refs[j].Revision) < 0
	})
	out := refs[:0]
	for i, r := range refs {
		if i > 0 && r.Path == refs[i-1].Path && g.cmp(r.Revision, refs[i-1].Revision) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GetNodeFor describes the epoch covering path at rev
func (g *Graph[R]) GetNodeFor(path string, rev R) (*Node[R], bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.locate(path, rev)
	if !ok {
		return nil, false
	}
	n := g.node(id)
	return &n, true
}

// History returns every epoch recorded for path, oldest first
func (g *Graph[R]) History(path string) []Node[R] {
	g.mu.RLock()
	defer g.mu.RUnlock()

	chain := g.byPath[path]
	nodes := make([]Node[R], 0, len(chain))
	for _, id := range chain {
		nodes = append(nodes, g.node(id))
	}
	return nodes
}

func (g *Graph[R]) node(id epochID) Node[R] {
	e := &g.epochs[id]
	n := Node[R]{
		Path:         e.path,
		BornAt:       e.bornAt,
		FirstSeen:    e.firstSeen,
		Closed:       e.closed,
		Type:         e.fate,
		Origin:       e.origin,
		IsCopyTarget: len(e.in) > 0,
	}
	if e.closed {
		n.DiesAt = e.diesAt
		n.LastAlive = e.lastAlive
	}

	for _, idx := range e.in {
		ed := &g.edges[idx]
		ref := FileRef[R]{Path: g.epochs[ed.from].path, Revision: ed.fromRevision}
		if ed.move {
			n.MoveSources = append(n.MoveSources, ref)
		} else {
			n.CopySources = append(n.CopySources, ref)
		}
	}
	for _, idx := range e.out {
		ed := &g.edges[idx]
		target := &g.epochs[ed.to]
		ref := FileRef[R]{Path: target.path, Revision: target.bornAt}
		if ed.move {
			n.MoveTargets = append(n.MoveTargets, ref)
		} else {
			n.CopyTargets = append(n.CopyTargets, ref)
		}
	}
	n.CopySources = g.sortRefs(n.CopySources)
	n.MoveSources = g.sortRefs(n.MoveSources)
	n.MoveTargets = g.sortRefs(n.MoveTargets)
	n.CopyTargets = g.sortRefs(n.CopyTargets)
	return n
}
