package observable

import "log/slog"

// invalidate walks the subscribers of (n, key) after it changed.
//
// Computation edges recorded by an earlier evaluation than the computation's
// latest one are orphaned and pruned. Live computations that are not yet stale are marked
// stale and the walk recurses into their own cell, which is how dirtiness
// reaches chains of computed properties and the reactions reading them.
// Computations already stale stop the walk, so every computation is visited
// at most once per change and cyclic graphs terminate.
//
// Reaction edges follow the same orphan rule; live ones are scheduled.
func invalidate(n *Node, key string) {
	c := lookupCell(n, key)
	if c == nil {
		return
	}
	h := currentHooks()
	comps, reacts := c.snapshot()

	for _, ref := range comps {
		comp := ref.edge.computation.Value()
		if comp == nil || comp.gen != ref.edge.gen {
			c.removeComputation(ref.id)
			pruned(h, n, key, ref.id)
			continue
		}
		if comp.stale {
			continue
		}
		comp.stale = true
		if h.Stale != nil {
			h.Stale(comp.owner, comp.key)
		}
		invalidate(comp.owner, comp.key)
	}

	for _, ref := range reacts {
		r := ref.edge.reaction.Value()
		if r == nil || r.gen != ref.edge.gen {
			c.removeReaction(ref.id)
			pruned(h, n, key, ref.id)
			continue
		}
		if h.Scheduled != nil {
			h.Scheduled(r)
		}
		schedule(r)
	}
}

func pruned(h *Hooks, n *Node, key string, id uint64) {
	if h.Pruned != nil {
		h.Pruned(n, key, id)
	}
	if debugEnabled() {
		log().Debug("pruned orphaned edge",
			slog.Any("path", n.childPath(key)),
			slog.Uint64("subscriber", id))
	}
}
