package lineage

import "fmt"

// Fate is the terminal classification of an epoch
type Fate string

const (
	// FateOpen means the epoch is the newest known state of its path
	FateOpen Fate = "open"
	// FateSuperseded means a later epoch on the same path took over
	FateSuperseded Fate = "superseded"
	// FateDeleted means the path ceased to exist with no successor
	FateDeleted Fate = "deleted"
	// FateMovedOut means the path was deleted in the same commit that copied it elsewhere
	FateMovedOut Fate = "moved-out"
)

// Origin describes how an epoch came into existence
type Origin string

const (
	// OriginCreated is a path seen for the first time (or re-added after a deletion)
	OriginCreated Origin = "created"
	// OriginChanged is an in-place modification of a previous epoch
	OriginChanged Origin = "changed"
	// OriginCopied is the target of a copy or move
	OriginCopied Origin = "copied"
	// OriginImplicit is a copy source the graph had no record of
	OriginImplicit Origin = "implicit"
)

type epochID int

const noEpoch epochID = -1

// epoch is one continuous piece of content on one path.
// Covered revisions are [bornAt, diesAt]; a revision equal to diesAt belongs
// to this epoch rather than to its successor.
type epoch[R any] struct {
	id        epochID
	path      string
	bornAt    R
	firstSeen R
	diesAt    R
	lastAlive R
	closed    bool
	fate      Fate
	origin    Origin

	// next is the same-path successor of a superseded epoch
	next epochID

	in  []int // indices into Graph.edges
	out []int
}

// edge is a copy edge; move marks it as paired with the source's deletion
type edge[R any] struct {
	from         epochID
	to           epochID
	fromRevision R
	move         bool
}

// FileRef is a (path, revision) pair
type FileRef[R any] struct {
	Path     string `json:"path"`
	Revision R      `json:"revision"`
}

func (f FileRef[R]) String() string {
	return fmt.Sprintf("%s@%v", f.Path, f.Revision)
}

// Node is a read-only description of one epoch, for diagnostics and tests
type Node[R any] struct {
	Path      string `json:"path"`
	BornAt    R      `json:"bornAt"`
	FirstSeen R      `json:"firstSeen"`
	DiesAt    R      `json:"diesAt"`
	Closed    bool   `json:"closed"`
	// LastAlive is the last revision the content demonstrably existed at (deleted epochs only)
	LastAlive R      `json:"lastAlive"`
	Type      Fate   `json:"type"`
	Origin    Origin `json:"origin"`

	IsCopyTarget bool         `json:"isCopyTarget"`
	CopySources  []FileRef[R] `json:"copySources,omitempty"`
	MoveSources  []FileRef[R] `json:"moveSources,omitempty"`
	MoveTargets  []FileRef[R] `json:"moveTargets,omitempty"`
	CopyTargets  []FileRef[R] `json:"copyTargets,omitempty"`
}

// Stats summarizes the size of a graph
type Stats struct {
	Paths      int `json:"paths"`
	Epochs     int `json:"epochs"`
	Open       int `json:"open"`
	Superseded int `json:"superseded"`
	Deleted    int `json:"deleted"`
	MovedOut   int `json:"movedOut"`
	Copies     int `json:"copies"`
	Moves      int `json:"moves"`
	Commits    int `json:"commits"`
}
