package observable

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Diff records one change of one cell. Path leads from the root to the
// changed key. Added means the key was absent before (From is meaningless);
// Removed means it is absent after (To is meaningless).
//
// On the wire a diff is {"path": [...], "from": v, "to": v}; an absent side is
// omitted, which is distinct from an explicit null.
type Diff struct {
	Path    []string
	From    any
	To      any
	Added   bool
	Removed bool
}

// MarshalJSON implements json.Marshaler.
func (d Diff) MarshalJSON() ([]byte, error) {
	out := map[string]any{"path": d.Path}
	if d.Path == nil {
		out["path"] = []string{}
	}
	if !d.Added {
		out["from"] = d.From
	}
	if !d.Removed {
		out["to"] = d.To
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Path elements must be strings.
func (d *Diff) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var path []any
	if p, ok := raw["path"]; ok {
		if err := json.Unmarshal(p, &path); err != nil {
			return fmt.Errorf("%w: path: %v", ErrInvalidPath, err)
		}
	}
	keys, err := PathKeys(path)
	if err != nil {
		return err
	}

	*d = Diff{Path: keys}
	from, hasFrom := raw["from"]
	to, hasTo := raw["to"]
	d.Added = !hasFrom
	d.Removed = !hasTo
	if hasFrom {
		if d.From, err = decodeJSONValue(from); err != nil {
			return err
		}
	}
	if hasTo {
		if d.To, err = decodeJSONValue(to); err != nil {
			return err
		}
	}
	return nil
}

// PathKeys converts a decoded path into keys, rejecting elements that are not
// strings.
func PathKeys(path []any) ([]string, error) {
	keys := make([]string, len(path))
	for i, p := range path {
		s, ok := p.(string)
		if !ok {
			return nil, fmt.Errorf("%w: path element %d is %T", ErrNonStringKey, i, p)
		}
		keys[i] = s
	}
	return keys, nil
}

func decodeJSONValue(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type capture struct {
	depth  int
	node   *Node
	key    string
	before any
	had    bool
}

// captureScope brackets one write. Only the outermost scope of a tree takes
// the before/after snapshots; nested writes share its record.
type captureScope struct {
	n    *Node
	done bool
}

// beginCapture opens a capture on (n, key). The outermost capture also starts
// a new round.
func (n *Node) beginCapture(key string) *captureScope {
	t := n.tree
	t.capture.depth++
	if t.capture.depth == 1 {
		nextRound()
		before, had := n.cellSnapshot(key)
		t.capture.node, t.capture.key = n, key
		t.capture.before, t.capture.had = before, had
	}
	return &captureScope{n: n}
}

// end closes the capture. The outermost end records a diff when the write
// reported a change and the cell's serialized value actually differs. Calling
// end again is a no-op, so it can also be deferred for error paths.
func (s *captureScope) end(changed bool) {
	if s.done {
		return
	}
	s.done = true

	t := s.n.tree
	t.capture.depth--
	if t.capture.depth > 0 {
		return
	}
	c := t.capture
	t.capture = capture{}
	if !changed {
		return
	}

	after, has := c.node.cellSnapshot(c.key)
	if c.had == has && reflect.DeepEqual(c.before, after) {
		return
	}
	t.record(Diff{
		Path:    c.node.childPath(c.key),
		From:    c.before,
		To:      after,
		Added:   !c.had,
		Removed: !has,
	})
}

// cellSnapshot reads the JSON form of one stored cell without tracking.
func (n *Node) cellSnapshot(key string) (v any, ok bool) {
	Untracked(func() {
		var raw any
		raw, ok = n.raw(key)
		if !ok {
			return
		}
		v, _ = n.snapshotValue(key, raw, true)
	})
	return v, ok
}

type diffSub struct {
	id uint64
	fn func(Diff)
}

func (t *tree) record(d Diff) {
	t.diffs = append(t.diffs, d)
	for _, s := range append([]diffSub(nil), t.diffSubs...) {
		s.fn(d)
	}
	if h := currentHooks(); h.Diff != nil {
		h.Diff(t.root, d)
	}
}

// Diffs returns the diffs recorded on the node's tree since the last
// ClearDiffs, oldest first.
func (n *Node) Diffs() []Diff {
	return append([]Diff(nil), n.tree.diffs...)
}

// ClearDiffs empties the tree's diff buffer.
func (n *Node) ClearDiffs() {
	n.tree.diffs = nil
}

// OnDiff calls fn for every diff recorded on the node's tree from now on.
// The returned function removes the subscription.
func (n *Node) OnDiff(fn func(Diff)) (remove func()) {
	t := n.tree
	id := nextID()
	t.diffSubs = append(t.diffSubs, diffSub{id: id, fn: fn})
	return func() {
		for i, s := range t.diffSubs {
			if s.id == id {
				t.diffSubs = append(t.diffSubs[:i:i], t.diffSubs[i+1:]...)
				return
			}
		}
	}
}

// ApplyDiffs replays diffs in order through the validated write path, inside
// an action. Paths are relative to n. Replay is last-writer-wins: From is not
// compared with the current value. The first failing diff stops the replay;
// diffs before it stay applied.
func (n *Node) ApplyDiffs(diffs []Diff) error {
	return n.RunNamed(OpApplyDiffs, func() error {
		for i, d := range diffs {
			if err := n.applyDiff(d); err != nil {
				return fmt.Errorf("diff %d: %w", i, err)
			}
		}
		return nil
	})
}

func (n *Node) applyDiff(d Diff) error {
	if len(d.Path) == 0 {
		return &Error{Op: "applyDiffs", Err: fmt.Errorf("%w: empty path", ErrInvalidPath)}
	}
	target, err := n.resolve(d.Path[:len(d.Path)-1])
	if err != nil {
		return err
	}
	key := d.Path[len(d.Path)-1]
	if d.Removed {
		return target.Delete(key)
	}
	return target.write("applyDiffs", key, d.To, true)
}

// resolve walks path from n through stored child nodes.
func (n *Node) resolve(path []string) (*Node, error) {
	cur := n
	for i, key := range path {
		v, ok := cur.raw(key)
		child, isNode := v.(*Node)
		if !ok || !isNode {
			return nil, &Error{Op: "resolve", Path: path[:i+1], Err: ErrInvalidPath}
		}
		cur = child
	}
	return cur, nil
}
