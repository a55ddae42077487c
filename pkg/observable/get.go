package observable

import (
	"fmt"
	"strconv"

	"github.com/vango-dev/statetree/pkg/schema"
)

// Get reads key.
//
// Introspection keys return node metadata: KeyObservable reports true,
// KeyParent the parent node (nil at the root) and KeyPath the node's path.
// Virtual operation names return bound functions (see OpGetSnapshot and
// friends). Action and method properties return a
// func(args ...any) (any, error); an action's function runs inside an action
// on the tree. Computed properties return their cached value, evaluating it
// first when stale.
//
// Every other read is registered against the active computation and reaction
// before the stored value is returned. Absent optional properties, map
// entries and array indexes read as nil.
func (n *Node) Get(key string) (any, error) {
	switch key {
	case KeyObservable:
		return true, nil
	case KeyParent:
		if p := n.Parent(); p != nil {
			return p, nil
		}
		return nil, nil
	case KeyPath:
		return n.Path(), nil
	}
	if fn, ok := n.virtual(key); ok {
		return fn, nil
	}

	d := n.declared(key, false)
	if d == nil {
		if n.desc.Kind() == schema.KindObject {
			return nil, &Error{Op: "get", Path: n.childPath(key), Err: ErrUndeclaredProperty}
		}
		track(n, key)
		return nil, nil
	}

	switch d.Kind() {
	case schema.KindAction, schema.KindMethod:
		fn, _ := n.bound(key, d)
		return fn, nil

	case schema.KindComputed:
		track(n, key)
		v, err := n.computation(key, d).get()
		if err != nil {
			return nil, fail("compute", n.childPath(key), err)
		}
		return v, nil
	}

	if !d.Kind().Valid() {
		return nil, &Error{Op: "get", Path: n.childPath(key), Err: ErrUnrecognizedKind}
	}
	track(n, key)
	v, _ := n.raw(key)
	return v, nil
}

// virtual returns the bound virtual operation named key.
func (n *Node) virtual(key string) (any, bool) {
	switch key {
	case OpGetSnapshot:
		return n.Snapshot, true
	case OpApplySnapshot:
		return n.ApplySnapshot, true
	case OpApplyDiffs:
		return n.ApplyDiffs, true
	case OpUse:
		return n.Use, true
	case OpGetRoot:
		return n.Root, true
	}
	return nil, false
}

// Has reports whether key holds a value. Absence is tracked like a read.
func (n *Node) Has(key string) bool {
	if n.declared(key, false) == nil && n.desc.Kind() == schema.KindObject {
		return false
	}
	track(n, key)
	_, ok := n.raw(key)
	return ok
}

// Keys returns the keys holding a value: declared order for objects, index
// order for arrays, sorted order for maps. The read depends on the set of
// keys, not on their values.
func (n *Node) Keys() []string {
	track(n, structureKey)
	return n.presentKeys()
}

// Len returns the number of keys holding a value.
func (n *Node) Len() int {
	track(n, structureKey)
	if n.desc.Kind() == schema.KindArrayOf {
		return len(n.items)
	}
	return len(n.presentKeys())
}

// At reads element i of an array node.
func (n *Node) At(i int) (any, error) {
	return n.Get(strconv.Itoa(i))
}

// Child returns the node stored under key, or nil if key does not hold a
// structured value.
func (n *Node) Child(key string) *Node {
	v, err := n.Get(key)
	if err != nil {
		return nil
	}
	child, _ := v.(*Node)
	return child
}

// GetString reads a string property. A nil value reads as "".
func (n *Node) GetString(key string) (string, error) {
	v, err := n.Get(key)
	if err != nil || v == nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &Error{Op: "get", Path: n.childPath(key), Err: fmt.Errorf("%w: %T is not a string", ErrKindMismatch, v)}
	}
	return s, nil
}

// GetNumber reads a number property. A nil value reads as 0.
func (n *Node) GetNumber(key string) (float64, error) {
	v, err := n.Get(key)
	if err != nil || v == nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, &Error{Op: "get", Path: n.childPath(key), Err: fmt.Errorf("%w: %T is not a number", ErrKindMismatch, v)}
	}
	return f, nil
}

// GetBool reads a boolean property. A nil value reads as false.
func (n *Node) GetBool(key string) (bool, error) {
	v, err := n.Get(key)
	if err != nil || v == nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &Error{Op: "get", Path: n.childPath(key), Err: fmt.Errorf("%w: %T is not a boolean", ErrKindMismatch, v)}
	}
	return b, nil
}
