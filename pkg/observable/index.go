package observable

import (
	"slices"
	"sync"
	"weak"

	"github.com/vango-dev/statetree/pkg/weakindex"
)

// deps maps every (node, key) cell to the subscribers that read it. Entries
// disappear with their node.
var deps = weakindex.New[Node, *cell]()

type reactionEdge struct {
	reaction weak.Pointer[Reaction]
	gen      uint64
}

type computationEdge struct {
	computation weak.Pointer[Computation]
	gen         uint64
}

// cell is the dependency index entry for one (node, key). Edges are weak so a
// subscriber nobody holds is collected and its edges pruned on next use.
type cell struct {
	mu           sync.Mutex
	reactions    map[uint64]reactionEdge
	computations map[uint64]computationEdge
}

func newCell() *cell {
	return &cell{
		reactions:    make(map[uint64]reactionEdge),
		computations: make(map[uint64]computationEdge),
	}
}

// cellOf returns the index entry of (n, key), creating it on first use.
func cellOf(n *Node, key string) *cell {
	return deps.Upsert(n, key, newCell)
}

// lookupCell returns the entry of (n, key) without creating one.
func lookupCell(n *Node, key string) *cell {
	c, _ := deps.Get(n, key)
	return c
}

func (c *cell) addReaction(r *Reaction) {
	c.mu.Lock()
	c.reactions[r.id] = reactionEdge{reaction: weak.Make(r), gen: r.gen}
	c.mu.Unlock()
}

func (c *cell) addComputation(comp *Computation) {
	c.mu.Lock()
	c.computations[comp.id] = computationEdge{computation: weak.Make(comp), gen: comp.gen}
	c.mu.Unlock()
}

func (c *cell) removeReaction(id uint64) {
	c.mu.Lock()
	delete(c.reactions, id)
	c.mu.Unlock()
}

func (c *cell) removeComputation(id uint64) {
	c.mu.Lock()
	delete(c.computations, id)
	c.mu.Unlock()
}

type computationRef struct {
	id   uint64
	edge computationEdge
}

type reactionRef struct {
	id   uint64
	edge reactionEdge
}

// snapshot copies the edges in id order, so propagation is deterministic and
// may mutate the cell while walking.
func (c *cell) snapshot() ([]computationRef, []reactionRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	comps := make([]computationRef, 0, len(c.computations))
	for id, e := range c.computations {
		comps = append(comps, computationRef{id: id, edge: e})
	}
	reacts := make([]reactionRef, 0, len(c.reactions))
	for id, e := range c.reactions {
		reacts = append(reacts, reactionRef{id: id, edge: e})
	}

	slices.SortFunc(comps, func(a, b computationRef) int { return cmpID(a.id, b.id) })
	slices.SortFunc(reacts, func(a, b reactionRef) int { return cmpID(a.id, b.id) })
	return comps, reacts
}

// size reports the number of edges, for tests.
func (c *cell) size() (computations, reactions int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.computations), len(c.reactions)
}

func cmpID(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
