package observable

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/vango-dev/statetree/pkg/schema"
)

type snapshotOptions struct {
	asJSON   bool
	asString bool
}

// SnapshotOption configures Snapshot and ApplySnapshot.
type SnapshotOption func(*snapshotOptions)

// AsJSON converts complex values with their codec, so the snapshot contains
// JSON-compatible values only. For ApplySnapshot it means complex values are
// given in serialized form.
func AsJSON() SnapshotOption {
	return func(o *snapshotOptions) { o.asJSON = true }
}

// AsString renders the snapshot as JSON text. It implies AsJSON. For
// ApplySnapshot the input must be a JSON string.
func AsString() SnapshotOption {
	return func(o *snapshotOptions) {
		o.asJSON = true
		o.asString = true
	}
}

func buildSnapshotOptions(opts []SnapshotOption) snapshotOptions {
	var o snapshotOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Snapshot reads the node's data properties recursively into plain values:
// map[string]any for objects and maps, []any for arrays. Computed, action
// and method properties are skipped. Reads are tracked, so a computation or
// reaction taking a snapshot depends on the whole subtree.
func (n *Node) Snapshot(opts ...SnapshotOption) (any, error) {
	o := buildSnapshotOptions(opts)
	v, err := n.snapshot(o.asJSON)
	if err != nil {
		return nil, err
	}
	if !o.asString {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fail(OpGetSnapshot, n.path, err)
	}
	return string(data), nil
}

func (n *Node) snapshot(asJSON bool) (any, error) {
	track(n, structureKey)
	keys := n.presentKeys()

	if n.desc.Kind() == schema.KindArrayOf {
		out := make([]any, len(keys))
		for i, key := range keys {
			track(n, key)
			v, err := n.snapshotValue(key, n.items[i], asJSON)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		track(n, key)
		v, err := n.snapshotValue(key, n.fields[key], asJSON)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// snapshotValue converts one stored value.
func (n *Node) snapshotValue(key string, v any, asJSON bool) (any, error) {
	if child, ok := v.(*Node); ok {
		return child.snapshot(asJSON)
	}
	if !asJSON || v == nil {
		return v, nil
	}
	d := n.declared(key, false)
	if d == nil {
		return v, nil
	}
	return serializeComplex(d, v, n.childPath(key))
}

// serializeComplex applies the codec of d, or of the first complex
// alternative accepting v for oneOf descriptors. Other values pass through.
func serializeComplex(d *schema.Descriptor, v any, path []string) (any, error) {
	switch d.Kind() {
	case schema.KindComplex:
		codec, err := codecOf(d)
		if err != nil {
			return nil, &Error{Op: OpGetSnapshot, Path: path, Err: err}
		}
		out, err := codec.Serialize(v)
		if err != nil {
			return nil, &Error{Op: OpGetSnapshot, Path: path, Err: fmt.Errorf("%w: %v", ErrKindMismatch, err)}
		}
		return out, nil
	case schema.KindOneOf:
		for _, alt := range d.Alternatives() {
			if alt.Kind() != schema.KindComplex {
				continue
			}
			codec, err := codecOf(alt)
			if err != nil {
				continue
			}
			if out, err := codec.Serialize(v); err == nil {
				return out, nil
			}
		}
	}
	return v, nil
}

// rawSnapshot copies a node's stored values without tracking, keeping
// complex values in domain form.
func (n *Node) rawSnapshot() any {
	var v any
	Untracked(func() {
		v, _ = n.snapshot(false)
	})
	return v
}

// ApplySnapshot replaces the node's data with snapshot, inside an action.
//
// The whole snapshot is validated and converted before anything is
// committed, so a failing snapshot leaves the node unchanged. Properties
// missing from the snapshot are deleted when optional; map entries and array
// elements missing from it are removed. Readonly properties are replaced like
// any other. Every changed key is recorded as a diff.
func (n *Node) ApplySnapshot(snapshot any, opts ...SnapshotOption) error {
	o := buildSnapshotOptions(opts)
	if o.asString {
		text, ok := snapshot.(string)
		if !ok {
			return &Error{Op: OpApplySnapshot, Path: n.Path(),
				Err: fmt.Errorf("%w: expected JSON text, got %T", ErrNonObjectAssigned, snapshot)}
		}
		if err := json.Unmarshal([]byte(text), &snapshot); err != nil {
			return &Error{Op: OpApplySnapshot, Path: n.Path(), Err: fmt.Errorf("%w: %v", ErrNonObjectAssigned, err)}
		}
	}
	if isUndefined(snapshot) {
		return &Error{Op: OpApplySnapshot, Path: n.Path(), Err: ErrInvalidBottomValue}
	}
	if computing() {
		return &Error{Op: OpApplySnapshot, Path: n.Path(), Err: ErrMutationDuringComputation}
	}

	return n.RunNamed(OpApplySnapshot, func() error {
		w := &Write{Op: WriteApplySnapshot, Node: n, Value: snapshot}
		return n.intercept(w, func() error {
			return n.applySnapshot(snapshot, o.asJSON)
		})
	})
}

type staged struct {
	key   string
	value any
}

func (n *Node) applySnapshot(snapshot any, fromJSON bool) error {
	t := n.tree

	// Stage with capture silenced; the staging writes go to fresh child
	// nodes and must not produce diffs of their own.
	t.capture.depth++
	entries, keep, err := n.stage(snapshot, fromJSON)
	t.capture.depth--
	if err != nil {
		return fail(OpApplySnapshot, n.path, err)
	}

	for _, e := range entries {
		n.commit(e.key, e.value)
	}

	present := n.presentKeys()
	for i := len(present) - 1; i >= 0; i-- {
		if !keep[present[i]] {
			n.removeKey(present[i])
		}
	}
	return nil
}

// stage converts every entry of snapshot without committing any of them.
func (n *Node) stage(snapshot any, fromJSON bool) ([]staged, map[string]bool, error) {
	if other, ok := snapshot.(*Node); ok {
		snapshot = other.rawSnapshot()
	}
	keep := make(map[string]bool)
	var entries []staged

	switch n.desc.Kind() {
	case schema.KindArrayOf:
		items, err := toSlice(snapshot)
		if err != nil {
			return nil, nil, err
		}
		elem := n.desc.Elem()
		for i, item := range items {
			key := strconv.Itoa(i)
			v, err := n.convert(key, elem, item, fromJSON)
			if err != nil {
				return nil, nil, fail(OpApplySnapshot, n.childPath(key), err)
			}
			entries = append(entries, staged{key: key, value: v})
			keep[key] = true
		}

	case schema.KindObject:
		fields, err := toStringMap(snapshot)
		if err != nil {
			return nil, nil, err
		}
		if err := n.checkExtraneous(fields); err != nil {
			return nil, nil, err
		}
		for _, name := range n.desc.Names() {
			d := n.desc.Property(name)
			if d.Kind().Callable() {
				continue
			}
			value, ok := fields[name]
			if !ok {
				if !d.IsOptional() {
					return nil, nil, &Error{Op: OpApplySnapshot, Path: n.childPath(name), Err: ErrRequiredPropertyMissing}
				}
				continue
			}
			v, err := n.convert(name, d, value, fromJSON)
			if err != nil {
				return nil, nil, fail(OpApplySnapshot, n.childPath(name), err)
			}
			entries = append(entries, staged{key: name, value: v})
			keep[name] = true
		}

	case schema.KindMapOf:
		fields, err := toStringMap(snapshot)
		if err != nil {
			return nil, nil, err
		}
		elem := n.desc.Elem()
		for _, key := range sortedKeys(fields) {
			if err := checkMapKey(key); err != nil {
				return nil, nil, &Error{Op: OpApplySnapshot, Path: n.childPath(key), Err: err}
			}
			v, err := n.convert(key, elem, fields[key], fromJSON)
			if err != nil {
				return nil, nil, fail(OpApplySnapshot, n.childPath(key), err)
			}
			entries = append(entries, staged{key: key, value: v})
			keep[key] = true
		}
	}
	return entries, keep, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
