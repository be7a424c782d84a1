package lineage

// RegisterChange records that path was modified in the commit that took it
// from revision from to revision to. The open epoch on path is superseded at
// from and a new epoch born at from opens; to is kept as the revision the new
// content was first observed at. Repeating a change is a no-op.
func (g *Graph[R]) RegisterChange(path string, from, to R) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cmp(from, to) > 0 {
		return g.violation("change of %s from %s to %s goes back in time", path, g.format(from), g.format(to))
	}
	if g.hasChange(path, from, to) {
		return nil
	}
	if err := g.checkOpen(path, from); err != nil {
		return err
	}
	g.applyChange(path, from, to, OriginChanged)
	return nil
}

// RegisterCopy records that dst was created at dstRev as a copy of src as it
// was at srcRev. A source the graph never saw gets an implicit epoch.
func (g *Graph[R]) RegisterCopy(src, dst string, srcRev, dstRev R) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cmp(srcRev, dstRev) > 0 {
		return g.violation("copy of %s@%s into %s@%s goes back in time", src, g.format(srcRev), dst, g.format(dstRev))
	}
	if src == dst && g.cmp(srcRev, dstRev) == 0 {
		return g.violation("copy of %s@%s onto itself", src, g.format(srcRev))
	}
	if g.hasCopy(src, dst, srcRev, dstRev) {
		return nil
	}
	if err := g.checkOpen(dst, dstRev); err != nil {
		return err
	}

	srcID, _ := g.resolveSource(src, srcRev)
	g.applyCopy(srcID, srcRev, dst, dstRev)
	return nil
}

// RegisterDeletion records that path ceased to exist at rev. Copies out of
// the deleted epoch made at rev turn the deletion into a move. Deleting an
// unknown or already deleted path is a no-op.
func (g *Graph[R]) RegisterDeletion(path string, rev R) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	open, ok := g.openEpoch(path)
	if !ok {
		return nil
	}
	if g.cmp(rev, open.bornAt) < 0 {
		return g.violation("deletion of %s at %s precedes its epoch born at %s", path, g.format(rev), g.format(open.bornAt))
	}

	var moves []int
	for _, idx := range open.out {
		if g.cmp(g.epochs[g.edges[idx].to].bornAt, rev) == 0 {
			moves = append(moves, idx)
		}
	}
	g.closeTerminal(open.id, rev, g.lastAliveBefore(open, rev), moves)
	return nil
}

// hasChange reports whether path already has an epoch born at from and first
// seen at to
func (g *Graph[R]) hasChange(path string, from, to R) bool {
	chain := g.byPath[path]
	for i := len(chain) - 1; i >= 0; i-- {
		e := &g.epochs[chain[i]]
		c := g.cmp(e.bornAt, from)
		if c < 0 {
			break
		}
		if c == 0 && g.cmp(e.firstSeen, to) == 0 {
			return true
		}
	}
	return false
}

// hasCopy reports whether the copy of src@srcRev into dst@dstRev is recorded
func (g *Graph[R]) hasCopy(src, dst string, srcRev, dstRev R) bool {
	chain := g.byPath[dst]
	for i := len(chain) - 1; i >= 0; i-- {
		e := &g.epochs[chain[i]]
		c := g.cmp(e.bornAt, dstRev)
		if c < 0 {
			break
		}
		if c > 0 {
			continue
		}
		for _, idx := range e.in {
			ed := &g.edges[idx]
			if g.epochs[ed.from].path == src && g.cmp(ed.fromRevision, srcRev) == 0 {
				return true
			}
		}
	}
	return false
}

// checkOpen rejects opening a new epoch on path at rev when the path already
// has history past rev.
func (g *Graph[R]) checkOpen(path string, rev R) error {
	last, ok := g.lastEpoch(path)
	if !ok {
		return nil
	}
	if !last.closed {
		if g.cmp(rev, last.bornAt) < 0 {
			return g.violation("%s at %s precedes its current epoch born at %s", path, g.format(rev), g.format(last.bornAt))
		}
		return nil
	}
	if g.cmp(rev, last.diesAt) < 0 {
		return g.violation("%s at %s precedes its deletion at %s", path, g.format(rev), g.format(last.diesAt))
	}
	return nil
}

// applyChange opens an epoch on path born at bornAt. An open epoch is
// superseded; without one the new epoch counts as created.
func (g *Graph[R]) applyChange(path string, bornAt, firstSeen R, origin Origin) (epochID, bool) {
	open, ok := g.openEpoch(path)
	if !ok {
		if origin == OriginChanged {
			origin = OriginCreated
		}
		return g.newEpoch(path, bornAt, firstSeen, origin).id, true
	}
	if g.cmp(open.bornAt, bornAt) == 0 && g.cmp(open.firstSeen, firstSeen) == 0 {
		// already recorded
		return open.id, false
	}

	prev := open.id
	id := g.newEpoch(path, bornAt, firstSeen, origin).id
	g.supersede(prev, bornAt, id)
	return id, true
}

// resolveSource finds the epoch a copy reads from, creating an implicit one
// when the graph has no record of the source.
func (g *Graph[R]) resolveSource(path string, rev R) (epochID, bool) {
	if id, ok := g.locate(path, rev); ok {
		return id, false
	}
	g.logger.Debug("Copy source has no recorded history",
		"path", path,
		"revision", g.format(rev),
	)
	return g.insertImplicit(path, rev), true
}

// applyCopy opens the copy target dst at dstRev and links it to srcID. When
// the open epoch on dst was born at dstRev the edge is added to it instead.
// It returns the target epoch, the edge index and whether an epoch was opened.
func (g *Graph[R]) applyCopy(srcID epochID, srcRev R, dst string, dstRev R) (epochID, int, bool) {
	var target epochID
	opened := true

	open, ok := g.openEpoch(dst)
	switch {
	case ok && open.id != srcID && g.cmp(open.bornAt, dstRev) == 0:
		target = open.id
		opened = false
	case ok:
		prev := open.id
		target = g.newEpoch(dst, dstRev, dstRev, OriginCopied).id
		g.supersede(prev, dstRev, target)
	default:
		target = g.newEpoch(dst, dstRev, dstRev, OriginCopied).id
	}
	return target, g.addEdge(srcID, target, srcRev), opened
}
