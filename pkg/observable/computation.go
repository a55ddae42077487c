package observable

import (
	"fmt"

	"github.com/vango-dev/statetree/pkg/schema"
)

// Computation is the cached value of one computed property. It is created on
// first read and lives as long as its node.
//
// A computation is lazy: invalidation only marks it stale, and the derivation
// runs again on the next read. Reads made by the derivation are registered
// against the computation with the round and evaluation they were made in,
// so edges it stops reading are recognised as orphaned and pruned.
type Computation struct {
	id    uint64
	owner *Node
	key   string
	fn    schema.ComputeFunc

	round      uint64
	gen        uint64
	stale      bool
	value      any
	evaluating bool
}

// ID returns the computation's identity.
func (c *Computation) ID() uint64 { return c.id }

// Key returns the computed property this computation caches.
func (c *Computation) Key() string { return c.key }

// Stale reports whether the cached value must be recomputed before use.
func (c *Computation) Stale() bool { return c.stale }

// Round returns the round the computation was last evaluated in.
func (c *Computation) Round() uint64 { return c.round }

// Computation returns the computation behind the computed property key, or
// nil if key is not computed. The computation is created, stale, if it has
// never been read.
func (n *Node) Computation(key string) *Computation {
	d := n.declared(key, false)
	if d == nil || d.Kind() != schema.KindComputed {
		return nil
	}
	return n.computation(key, d)
}

func (n *Node) computation(key string, d *schema.Descriptor) *Computation {
	if c, ok := n.computations[key]; ok {
		return c
	}
	if n.computations == nil {
		n.computations = make(map[string]*Computation)
	}
	c := &Computation{
		id:    nextID(),
		owner: n,
		key:   key,
		fn:    d.Compute(),
		stale: true,
	}
	n.computations[key] = c
	return c
}

// get returns the cached value, evaluating first when stale. A failed
// evaluation leaves the computation stale.
func (c *Computation) get() (any, error) {
	if !c.stale {
		return c.value, nil
	}
	if c.evaluating {
		return nil, ErrCircularComputation
	}
	if c.fn == nil {
		return nil, fmt.Errorf("%w: computed property has no derivation", ErrUnrecognizedKind)
	}

	c.evaluating = true
	defer func() { c.evaluating = false }()

	// Nested evaluations stack: the outer computation is restored afterwards.
	// The active reaction and any Untracked scope are masked so the
	// derivation's reads land on this computation only.
	ctx := getTrackingContext()
	prevComputation, prevReaction, prevUntracked := ctx.computation, ctx.reaction, ctx.untracked
	ctx.computation, ctx.reaction, ctx.untracked = c, nil, 0
	defer func() {
		ctx.computation, ctx.reaction, ctx.untracked = prevComputation, prevReaction, prevUntracked
	}()

	c.round = CurrentRound()
	c.gen++
	v, err := c.fn(c.owner)
	if err != nil {
		return nil, err
	}
	c.value = v
	c.stale = false
	return v, nil
}
