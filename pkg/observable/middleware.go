package observable

// Write operations seen by middleware.
const (
	WriteSet           = "set"
	WriteDelete        = "delete"
	WriteApplySnapshot = "applySnapshot"
)

// Write describes one validated write about to be applied.
type Write struct {
	// Op is WriteSet, WriteDelete or WriteApplySnapshot.
	Op string

	// Node is the node being written.
	Node *Node

	// Key is the written key. It is empty for WriteApplySnapshot.
	Key string

	// Value is the value as given by the caller. It is nil for WriteDelete.
	Value any
}

// Path returns the path of the written cell.
func (w *Write) Path() []string {
	if w.Key == "" {
		return w.Node.Path()
	}
	return w.Node.childPath(w.Key)
}

// Middleware wraps writes. It must call next to let the write through and
// may return an error instead to veto it; a vetoed write changes nothing.
// Middleware runs after the write passed validation and inside the action.
type Middleware func(w *Write, next func() error) error

type middlewareEntry struct {
	id uint64
	mw Middleware
}

// Use registers mw for writes to n and its descendants. Middleware of
// ancestors wraps middleware of descendants, and on one node the first
// registered is outermost. The returned function unregisters mw.
func (n *Node) Use(mw Middleware) (remove func()) {
	id := nextID()
	n.middleware = append(n.middleware, middlewareEntry{id: id, mw: mw})
	return func() {
		for i, e := range n.middleware {
			if e.id == id {
				n.middleware = append(n.middleware[:i:i], n.middleware[i+1:]...)
				return
			}
		}
	}
}

// intercept runs apply wrapped in the middleware chain of n.
func (n *Node) intercept(w *Write, apply func() error) error {
	var chain []Middleware
	for cur := n; cur != nil; cur = cur.Parent() {
		for i := len(cur.middleware) - 1; i >= 0; i-- {
			chain = append(chain, cur.middleware[i].mw)
		}
	}
	if len(chain) == 0 {
		return apply()
	}

	// chain runs innermost first; wrap from the inside out.
	call := apply
	for _, mw := range chain {
		next := call
		call = func() error { return mw(w, next) }
	}
	return call()
}
