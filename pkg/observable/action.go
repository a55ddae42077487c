package observable

import "log/slog"

// ActionScope is an open action on one tree. Writes to any node of the tree
// are permitted while at least one scope is open. Scopes nest: only the
// outermost End closes the gate.
type ActionScope struct {
	tree  *tree
	ended bool
}

// BeginAction opens an action on the node's tree. The caller must End the
// scope on every path, typically with defer.
//
// Example:
//
//	scope := user.BeginAction()
//	defer scope.End()
//	_ = user.Set("name", "Ada")
func (n *Node) BeginAction() *ActionScope {
	n.tree.actionDepth++
	return &ActionScope{tree: n.tree}
}

// End closes the scope. Calling End more than once has no further effect.
func (s *ActionScope) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.tree.actionDepth--
}

// InAction reports whether an action is open on the node's tree.
func (n *Node) InAction() bool {
	return n.tree.actionDepth > 0
}

// Run executes fn inside an action on the node's tree. The action is closed
// even if fn panics.
func (n *Node) Run(fn func() error) error {
	scope := n.BeginAction()
	defer scope.End()
	return fn()
}

// RunNamed is Run with a name recorded in debug logs.
//
// Example:
//
//	err := cart.RunNamed("Cart:AddItem", func() error {
//	    return cart.Child("items").Push(item)
//	})
func (n *Node) RunNamed(name string, fn func() error) error {
	if !debugEnabled() {
		return n.Run(fn)
	}
	log().Debug("action begin", slog.String("action", name), slog.Int("depth", n.tree.actionDepth))
	err := n.Run(fn)
	log().Debug("action end", slog.String("action", name), slog.Any("err", err))
	return err
}
