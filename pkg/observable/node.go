package observable

import (
	"fmt"
	"strconv"
	"weak"

	"github.com/vango-dev/statetree/pkg/schema"
)

// Introspection keys answered by Get without descriptor lookup.
const (
	KeyObservable = "@@observable"
	KeyParent     = "@@parent"
	KeyPath       = "@@path"
)

// structureKey is the cell that Keys, Len and snapshots of containers read.
// It is invalidated whenever the set of present keys changes.
const structureKey = "@@structure"

// Reserved virtual operation names. They cannot be written even when a
// descriptor declares them.
const (
	OpGetSnapshot   = "getSnapshot"
	OpApplySnapshot = "applySnapshot"
	OpApplyDiffs    = "applyDiffs"
	OpUse           = "use"
	OpGetRoot       = "getRoot"
)

func isReserved(key string) bool {
	switch key {
	case OpGetSnapshot, OpApplySnapshot, OpApplyDiffs, OpUse, OpGetRoot:
		return true
	}
	return false
}

func isIntrospection(key string) bool {
	return len(key) >= 2 && key[0] == '@' && key[1] == '@'
}

type undefined struct{}

// Undefined is the "no value" sentinel. Writing it always fails with
// ErrInvalidBottomValue; use nil for an explicit empty value.
var Undefined any = undefined{}

func isUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// tree is the state shared by every node under one root.
type tree struct {
	root *Node

	// actionDepth is the reentrant action gate. Writes are allowed while it
	// is above zero.
	actionDepth int

	capture  capture
	diffs    []Diff
	diffSubs []diffSub
}

// Node is an observable wrapper around one structured value: an object, an
// array or a map, as described by its descriptor.
//
// Nodes own their children by containment. The parent link is weak and the
// path records how the node was reached from the root when it was attached.
// A Node is not safe for concurrent use; keep each tree on one goroutine.
type Node struct {
	desc   *schema.Descriptor
	tree   *tree
	parent weak.Pointer[Node]
	path   []string

	fields map[string]any
	items  []any

	computations map[string]*Computation
	middleware   []middlewareEntry
}

// New creates the root of a tree described by desc and initialised from
// value. desc must be an object, arrayOf or mapOf descriptor.
//
// Initialisation validates value exactly like attaching it to a property:
// extraneous and missing required properties are rejected, nested values are
// wrapped recursively, and readonly properties may be set. No action scope is
// needed and no diffs are recorded.
func New(desc *schema.Descriptor, value any) (*Node, error) {
	if !desc.Kind().Structured() {
		return nil, &Error{Op: "new", Err: fmt.Errorf("%w: root must be an object, array or map, not %s",
			ErrNonObjectAssigned, desc.Kind())}
	}

	t := &tree{}
	n := newNode(desc, t, nil, nil)
	t.root = n

	t.actionDepth++
	t.capture.depth++
	defer func() {
		t.capture.depth--
		t.actionDepth--
	}()

	if err := n.attach(value, false); err != nil {
		return nil, fail("new", nil, err)
	}
	return n, nil
}

// MustNew is like New but panics on error. It is meant for tests and package
// level fixtures.
func MustNew(desc *schema.Descriptor, value any) *Node {
	n, err := New(desc, value)
	if err != nil {
		panic(err)
	}
	return n
}

func newNode(desc *schema.Descriptor, t *tree, parent *Node, path []string) *Node {
	n := &Node{
		desc: desc,
		tree: t,
		path: path,
	}
	if parent != nil {
		n.parent = weak.Make(parent)
	}
	switch desc.Kind() {
	case schema.KindObject, schema.KindMapOf:
		n.fields = make(map[string]any)
	}
	return n
}

// Descriptor returns the descriptor this node was attached with.
func (n *Node) Descriptor() *schema.Descriptor { return n.desc }

// IsObservable reports true. It exists so generic code holding an `any` can
// ask the same question Get(KeyObservable) answers.
func (n *Node) IsObservable() bool { return true }

// Parent returns the node this one was attached under, or nil for the root
// and for parents that are no longer reachable.
func (n *Node) Parent() *Node { return n.parent.Value() }

// Path returns the keys leading from the root to this node.
func (n *Node) Path() []string { return append([]string(nil), n.path...) }

// Root returns the root of the node's tree.
func (n *Node) Root() *Node { return n.tree.root }

func (n *Node) childPath(key string) []string {
	p := make([]string, len(n.path)+1)
	copy(p, n.path)
	p[len(n.path)] = key
	return p
}

// arrayIndex parses a canonical decimal index key.
func arrayIndex(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || strconv.Itoa(i) != key {
		return 0, false
	}
	return i, true
}

// declared returns the descriptor governing key, or nil if key is not a
// property of this node. For arrays, writable reports whether the index may
// be written (an index equal to the length appends).
func (n *Node) declared(key string, writable bool) *schema.Descriptor {
	switch n.desc.Kind() {
	case schema.KindObject:
		return n.desc.Property(key)
	case schema.KindMapOf:
		return n.desc.Elem()
	case schema.KindArrayOf:
		i, ok := arrayIndex(key)
		if !ok {
			return nil
		}
		if i < len(n.items) || (writable && i == len(n.items)) {
			return n.desc.Elem()
		}
	}
	return nil
}

// raw returns the stored value of key without tracking.
func (n *Node) raw(key string) (any, bool) {
	if n.desc.Kind() == schema.KindArrayOf {
		i, ok := arrayIndex(key)
		if !ok || i >= len(n.items) {
			return nil, false
		}
		return n.items[i], true
	}
	v, ok := n.fields[key]
	return v, ok
}

// store puts v under key. changed reports whether the cell now holds a
// different value; structural reports whether the set of present keys grew.
func (n *Node) store(key string, v any) (changed, structural bool) {
	old, had := n.raw(key)

	if n.desc.Kind() == schema.KindArrayOf {
		i, _ := arrayIndex(key)
		if i == len(n.items) {
			n.items = append(n.items, v)
		} else {
			n.items[i] = v
		}
	} else {
		n.fields[key] = v
	}

	if !had {
		return true, true
	}
	return !sameValue(old, v), false
}

// remove deletes key. For arrays only the last index is removable.
func (n *Node) remove(key string) bool {
	if _, had := n.raw(key); !had {
		return false
	}
	if n.desc.Kind() == schema.KindArrayOf {
		n.items[len(n.items)-1] = nil
		n.items = n.items[:len(n.items)-1]
		return true
	}
	delete(n.fields, key)
	return true
}

// presentKeys lists stored keys in a stable order: declaration order for
// objects, index order for arrays, sorted order for maps.
func (n *Node) presentKeys() []string {
	switch n.desc.Kind() {
	case schema.KindArrayOf:
		keys := make([]string, len(n.items))
		for i := range n.items {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	case schema.KindObject:
		var keys []string
		for _, name := range n.desc.Names() {
			if _, ok := n.fields[name]; ok {
				keys = append(keys, name)
			}
		}
		return keys
	default:
		return sortedKeys(n.fields)
	}
}
