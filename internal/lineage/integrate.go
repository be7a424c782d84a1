package lineage

import (
	"sort"

	"lineage/internal/errors"
	"lineage/internal/history"
	"lineage/internal/revision"
)

// IntegrationResult summarizes what one commit did to the graph
type IntegrationResult struct {
	Revision  string `json:"revision"`
	Items     int    `json:"items"`
	Opened    int    `json:"opened"`
	Copies    int    `json:"copies"`
	Moves     int    `json:"moves"`
	Deletions int    `json:"deletions"`
	Implicit  int    `json:"implicit"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Integrate applies one commit to the graph.
//
// Copy sources are resolved against the state before the commit, then
// replaced paths are closed, additions opened, and deletions closed last so
// that a deletion can see the copies made from it in the same commit. A
// deletion of p paired with copies from p becomes a move.
//
// Commits must arrive in revision order. Integrating the newest commit
// again leaves the graph unchanged. Nothing is modified when an error is
// returned.
func (g *Graph[R]) Integrate(commit history.Commit[R]) (*IntegrationResult, error) {
	if err := commit.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	rev := commit.Revision
	if g.hasCommit && g.cmp(rev, g.lastCommit) < 0 {
		return nil, errors.Newf(errors.OutOfOrderCommit,
			"commit %s precedes already integrated commit %s", g.format(rev), g.format(g.lastCommit))
	}
	from := rev
	if commit.HasParent {
		if g.cmp(commit.ParentRevision, rev) > 0 {
			return nil, errors.Newf(errors.OutOfOrderCommit,
				"commit %s has a later parent %s", g.format(rev), g.format(commit.ParentRevision))
		}
		from = commit.ParentRevision
	}

	items := make([]history.ChangeItem[R], len(commit.Items))
	copy(items, commit.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Path < items[j].Path
	})

	if err := g.precheck(items, rev, from); err != nil {
		return nil, err
	}

	res := &IntegrationResult{
		Revision:  g.format(rev),
		Items:     len(items),
		Duplicate: g.hasCommit && g.cmp(rev, g.lastCommit) == 0,
	}
	pairs := g.pairMoves(items, commit)

	// copy sources, as they were before this commit
	sources := make(map[int]epochID)
	for i, item := range items {
		if item.CopyFrom == nil {
			continue
		}
		if _, paired := pairs[i]; paired {
			if open, ok := g.openEpoch(item.CopyFrom.Path); ok && g.cmp(open.bornAt, item.CopyFrom.Revision) <= 0 {
				sources[i] = open.id
				continue
			}
		}
		id, implicit := g.resolveSource(item.CopyFrom.Path, item.CopyFrom.Revision)
		sources[i] = id
		if implicit {
			res.Implicit++
		}
	}

	// replaced content goes away before the new content arrives
	replaced := make(map[string]epochID)
	for _, item := range items {
		if item.Kind != history.Replaced {
			continue
		}
		open, ok := g.openEpoch(item.Path)
		if !ok || g.cmp(open.bornAt, rev) == 0 {
			continue
		}
		id := open.id
		g.closeTerminal(id, rev, g.lastAliveAt(open, commit), nil)
		replaced[item.Path] = id
		res.Deletions++
	}

	edgeOf := make(map[int]int)
	for i, item := range items {
		if !item.Kind.IsAddition() {
			continue
		}
		var opened bool
		switch {
		case item.CopyFrom != nil:
			var idx int
			_, idx, opened = g.applyCopy(sources[i], item.CopyFrom.Revision, item.Path, rev)
			edgeOf[i] = idx
			res.Copies++
		case item.Kind == history.Modified:
			if _, ok := g.openEpoch(item.Path); ok {
				_, opened = g.applyChange(item.Path, from, rev, OriginChanged)
			} else {
				// modified after a deletion or with no recorded history
				_, opened = g.applyChange(item.Path, rev, rev, OriginCreated)
			}
		default:
			_, opened = g.applyChange(item.Path, rev, rev, OriginCreated)
		}
		if opened {
			res.Opened++
		}
	}

	moves := make(map[string][]int)
	for i, path := range pairs {
		moves[path] = append(moves[path], edgeOf[i])
	}

	for _, item := range items {
		if !item.Kind.IsDeletion() {
			continue
		}
		if item.Kind == history.Replaced {
			if id, ok := replaced[item.Path]; ok {
				own := g.ownEdges(id, moves[item.Path])
				g.markMoves(id, own)
				res.Moves += len(own)
			}
			continue
		}

		open, ok := g.openEpoch(item.Path)
		if !ok {
			continue
		}
		id := open.id
		own := g.ownEdges(id, moves[item.Path])
		g.closeTerminal(id, rev, g.lastAliveAt(open, commit), own)
		res.Deletions++
		res.Moves += len(own)
	}

	if !res.Duplicate {
		g.commits++
	}
	g.lastCommit = rev
	g.hasCommit = true

	g.logger.Debug("Integrated commit",
		"revision", res.Revision,
		"items", res.Items,
		"opened", res.Opened,
		"copies", res.Copies,
		"moves", res.Moves,
		"deletions", res.Deletions,
	)
	return res, nil
}

// precheck rejects commits that would rewrite history already in the graph
func (g *Graph[R]) precheck(items []history.ChangeItem[R], rev, from R) error {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item.Path] {
			return errors.Newf(errors.InvalidInput, "path %s appears twice in commit %s", item.Path, g.format(rev))
		}
		seen[item.Path] = true

		if item.CopyFrom != nil && g.cmp(item.CopyFrom.Revision, rev) > 0 {
			return errors.Newf(errors.OutOfOrderCommit, "%s in commit %s is copied from later revision %s",
				item.Path, g.format(rev), g.format(item.CopyFrom.Revision))
		}

		last, ok := g.lastEpoch(item.Path)
		if !ok {
			continue
		}
		if last.closed {
			if g.cmp(last.diesAt, rev) > 0 {
				return errors.Newf(errors.OutOfOrderCommit, "%s in commit %s was already closed at %s",
					item.Path, g.format(rev), g.format(last.diesAt))
			}
			continue
		}
		limit := rev
		if item.Kind == history.Modified {
			limit = from
		}
		if g.cmp(last.bornAt, limit) > 0 {
			return errors.Newf(errors.OutOfOrderCommit, "%s in commit %s already has an epoch born at %s",
				item.Path, g.format(rev), g.format(last.bornAt))
		}
	}
	return nil
}

// pairMoves maps the index of every addition that pairs with a deletion in
// the same commit to the deleted path.
func (g *Graph[R]) pairMoves(items []history.ChangeItem[R], commit history.Commit[R]) map[int]string {
	deleted := make(map[string]bool)
	for _, item := range items {
		if item.Kind.IsDeletion() {
			deleted[item.Path] = true
		}
	}

	pairs := make(map[int]string)
	for i, item := range items {
		src := item.CopyFrom
		if src == nil || src.Path == item.Path || !deleted[src.Path] {
			continue
		}
		if commit.HasParent && g.cmp(src.Revision, commit.ParentRevision) == 0 {
			pairs[i] = src.Path
			continue
		}
		if g.pairing == PairSameEpoch {
			if open, ok := g.openEpoch(src.Path); ok && g.cmp(open.bornAt, src.Revision) <= 0 {
				pairs[i] = src.Path
			}
		}
	}
	return pairs
}

// ownEdges keeps the edges that leave epoch id
func (g *Graph[R]) ownEdges(id epochID, edges []int) []int {
	var own []int
	for _, idx := range edges {
		if g.edges[idx].from == id {
			own = append(own, idx)
		}
	}
	return own
}

// lastAliveAt is the last revision e existed at when closed by commit
func (g *Graph[R]) lastAliveAt(e *epoch[R], commit history.Commit[R]) R {
	if commit.HasParent {
		return revision.Max(g.order, commit.ParentRevision, e.bornAt)
	}
	return g.lastAliveBefore(e, commit.Revision)
}
