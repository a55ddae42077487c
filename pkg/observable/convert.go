package observable

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/vango-dev/statetree/pkg/schema"
)

// convert validates value against d and returns what is stored for it.
// Structured values become fresh child nodes of n under key; nothing is
// committed to n itself.
func (n *Node) convert(key string, d *schema.Descriptor, value any, fromJSON bool) (any, error) {
	if isUndefined(value) {
		return nil, ErrInvalidBottomValue
	}

	kind := d.Kind()
	switch kind {
	case schema.KindComputed, schema.KindAction, schema.KindMethod:
		return nil, ErrMethodReassignment
	}
	if value == nil {
		if !kind.Valid() {
			return nil, ErrUnrecognizedKind
		}
		return nil, nil
	}

	switch kind {
	case schema.KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected string, got %T", ErrKindMismatch, value)
		}
		return s, nil

	case schema.KindNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("%w: expected number, got %T", ErrKindMismatch, value)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v is not a JSON number", ErrKindMismatch, f)
		}
		return f, nil

	case schema.KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: expected boolean, got %T", ErrKindMismatch, value)
		}
		return b, nil

	case schema.KindObject, schema.KindArrayOf, schema.KindMapOf:
		child := newNode(d, n.tree, n, n.childPath(key))
		if err := child.attach(value, fromJSON); err != nil {
			return nil, err
		}
		return child, nil

	case schema.KindOneOf:
		for _, alt := range d.Alternatives() {
			if v, err := n.convert(key, alt, value, fromJSON); err == nil {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%w: %T", ErrNoMatchingAlternative, value)

	case schema.KindComplex:
		codec, err := codecOf(d)
		if err != nil {
			return nil, err
		}
		if fromJSON {
			v, err := codec.Deserialize(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrKindMismatch, err)
			}
			return v, nil
		}
		if _, err := codec.Serialize(value); err == nil {
			return value, nil
		}
		v, err := codec.Deserialize(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKindMismatch, err)
		}
		return v, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnrecognizedKind, kind)
}

// codecOf returns the codec of a complex descriptor. Descriptors built
// without one, or with a half-filled one, have nothing to convert with.
func codecOf(d *schema.Descriptor) (schema.Codec, error) {
	codec, ok := d.Codec()
	if !ok || codec.Serialize == nil || codec.Deserialize == nil {
		return schema.Codec{}, fmt.Errorf("%w: complex property has no codec", ErrUnrecognizedKind)
	}
	return codec, nil
}

// attach fills a fresh node from value. Extraneous and missing required
// properties are rejected before any property is written. Each present
// property goes through put, which wraps nested structured values in turn.
func (n *Node) attach(value any, fromJSON bool) error {
	if other, ok := value.(*Node); ok {
		value = other.rawSnapshot()
	}

	switch n.desc.Kind() {
	case schema.KindObject:
		fields, err := toStringMap(value)
		if err != nil {
			return fail("attach", n.path, err)
		}
		if err := n.checkExtraneous(fields); err != nil {
			return err
		}
		for _, name := range n.desc.Names() {
			d := n.desc.Property(name)
			v, ok := fields[name]
			if !ok {
				if !d.IsOptional() && !d.Kind().Callable() {
					return &Error{Op: "attach", Path: n.childPath(name), Err: ErrRequiredPropertyMissing}
				}
				continue
			}
			if err := n.put(name, d, v, fromJSON); err != nil {
				return fail("attach", n.childPath(name), err)
			}
		}

	case schema.KindArrayOf:
		items, err := toSlice(value)
		if err != nil {
			return fail("attach", n.path, err)
		}
		for i, item := range items {
			key := strconv.Itoa(i)
			if err := n.put(key, n.desc.Elem(), item, fromJSON); err != nil {
				return fail("attach", n.childPath(key), err)
			}
		}

	case schema.KindMapOf:
		fields, err := toStringMap(value)
		if err != nil {
			return fail("attach", n.path, err)
		}
		for _, key := range sortedKeys(fields) {
			if err := checkMapKey(key); err != nil {
				return &Error{Op: "attach", Path: n.childPath(key), Err: err}
			}
			if err := n.put(key, n.desc.Elem(), fields[key], fromJSON); err != nil {
				return fail("attach", n.childPath(key), err)
			}
		}

	default:
		return &Error{Op: "attach", Path: n.path, Err: ErrUnrecognizedKind}
	}
	return nil
}

// checkExtraneous rejects keys of fields that n's object descriptor does not
// declare.
func (n *Node) checkExtraneous(fields map[string]any) error {
	for _, key := range sortedKeys(fields) {
		if isIntrospection(key) {
			return &Error{Op: "attach", Path: n.childPath(key), Err: ErrSymbolKeyForbidden}
		}
		if n.desc.Property(key) == nil {
			return &Error{Op: "attach", Path: n.childPath(key), Err: ErrExtraneousProperty}
		}
	}
	return nil
}

func checkMapKey(key string) error {
	switch {
	case isIntrospection(key):
		return ErrSymbolKeyForbidden
	case isReserved(key):
		return ErrReservedKey
	}
	return nil
}

// toStringMap accepts map[string]any and any other map keyed by a string
// type.
func toStringMap(value any) (map[string]any, error) {
	if m, ok := value.(map[string]any); ok {
		return m, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("%w: got %T", ErrNonObjectAssigned, value)
	}
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: %T", ErrSymbolKeyForbidden, value)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, nil
}

// toSlice accepts []any and any other slice or array.
func toSlice(value any) ([]any, error) {
	if s, ok := value.([]any); ok {
		return s, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: got %T", ErrNonObjectAssigned, value)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// sameValue reports whether a write of b over a leaves the cell unchanged.
// Nodes are compared by identity: attaching always produces a new node.
func sameValue(a, b any) bool {
	if an, ok := a.(*Node); ok {
		bn, ok := b.(*Node)
		return ok && an == bn
	}
	if _, ok := b.(*Node); ok {
		return false
	}
	return reflect.DeepEqual(a, b)
}
