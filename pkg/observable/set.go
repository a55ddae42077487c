package observable

import (
	"fmt"
	"strconv"

	"github.com/vango-dev/statetree/pkg/schema"
)

// Set writes value to key. The write is validated in a fixed order and the
// first violation is returned:
//
//  1. value is Undefined (ErrInvalidBottomValue)
//  2. a computed property is being evaluated (ErrMutationDuringComputation)
//  3. key is a computed, action or method property (ErrMethodReassignment)
//  4. the property kind is unknown (ErrUnrecognizedKind)
//  5. key is not declared (ErrUndeclaredProperty)
//  6. key is a virtual operation name (ErrReservedKey)
//  7. the property is readonly (ErrReadonlyViolation)
//  8. key is an introspection key (ErrNonStringKey)
//  9. no action is open on the tree (ErrMutationOutsideAction)
//
// Middleware registered with Use then wraps the write. Structured values are
// validated and wrapped completely before anything is stored, so a failed
// Set leaves the node unchanged. A change is recorded as a diff and
// invalidates the computations and reactions that read the cell.
func (n *Node) Set(key string, value any) error {
	return n.write("set", key, value, false)
}

// write is Set with the value optionally in serialized (JSON) form.
func (n *Node) write(op, key string, value any, fromJSON bool) error {
	if isUndefined(value) {
		return &Error{Op: op, Path: n.childPath(key), Err: ErrInvalidBottomValue}
	}
	if computing() {
		return &Error{Op: op, Path: n.childPath(key), Err: ErrMutationDuringComputation}
	}

	d := n.declared(key, true)
	switch {
	case d != nil && d.Kind().Callable():
		return &Error{Op: op, Path: n.childPath(key), Err: ErrMethodReassignment}
	case d != nil && !d.Kind().Valid():
		return &Error{Op: op, Path: n.childPath(key), Err: ErrUnrecognizedKind}
	case d == nil:
		return &Error{Op: op, Path: n.childPath(key), Err: ErrUndeclaredProperty}
	case isReserved(key):
		return &Error{Op: op, Path: n.childPath(key), Err: ErrReservedKey}
	case d.IsReadonly():
		return &Error{Op: op, Path: n.childPath(key), Err: ErrReadonlyViolation}
	case isIntrospection(key):
		return &Error{Op: op, Path: n.childPath(key), Err: ErrNonStringKey}
	case !n.InAction():
		return &Error{Op: op, Path: n.childPath(key), Err: ErrMutationOutsideAction}
	}

	w := &Write{Op: WriteSet, Node: n, Key: key, Value: value}
	return n.intercept(w, func() error {
		if err := n.put(key, d, value, fromJSON); err != nil {
			return fail(op, n.childPath(key), err)
		}
		return nil
	})
}

// put converts and stores value under key with diff capture and
// invalidation. It skips the gate checks, which is how attachment fills
// readonly properties.
func (n *Node) put(key string, d *schema.Descriptor, value any, fromJSON bool) error {
	if isUndefined(value) {
		return ErrInvalidBottomValue
	}
	if d.Kind().Callable() {
		return ErrMethodReassignment
	}
	if !d.Kind().Valid() {
		return ErrUnrecognizedKind
	}

	scope := n.beginCapture(key)
	defer scope.end(false)

	v, err := n.convert(key, d, value, fromJSON)
	if err != nil {
		return err
	}
	changed, structural := n.store(key, v)
	scope.end(changed)

	if changed {
		invalidate(n, key)
	}
	if structural {
		invalidate(n, structureKey)
	}
	return nil
}

// commit stores an already converted value.
func (n *Node) commit(key string, v any) {
	scope := n.beginCapture(key)
	defer scope.end(false)

	changed, structural := n.store(key, v)
	scope.end(changed)

	if changed {
		invalidate(n, key)
	}
	if structural {
		invalidate(n, structureKey)
	}
}

// removeKey deletes key with diff capture and invalidation.
func (n *Node) removeKey(key string) {
	scope := n.beginCapture(key)
	defer scope.end(false)

	removed := n.remove(key)
	scope.end(removed)

	if removed {
		invalidate(n, key)
		invalidate(n, structureKey)
	}
}

// Delete removes key. Object properties must be optional and not readonly.
// Arrays only allow removing the last element. Map entries may always be
// removed unless their element descriptor is readonly. Deleting an absent
// key succeeds without effect.
func (n *Node) Delete(key string) error {
	path := n.childPath(key)
	if computing() {
		return &Error{Op: "delete", Path: path, Err: ErrMutationDuringComputation}
	}

	d := n.declared(key, false)
	if d == nil {
		if n.desc.Kind() == schema.KindObject {
			return &Error{Op: "delete", Path: path, Err: ErrUndeclaredProperty}
		}
		return nil
	}
	if d.Kind().Callable() {
		return &Error{Op: "delete", Path: path, Err: ErrMethodReassignment}
	}

	switch n.desc.Kind() {
	case schema.KindObject:
		if !d.IsOptional() {
			return &Error{Op: "delete", Path: path,
				Err: fmt.Errorf("%w: only optional properties can be deleted", ErrReadonlyViolation)}
		}
	case schema.KindArrayOf:
		if i, _ := arrayIndex(key); i != len(n.items)-1 {
			return &Error{Op: "delete", Path: path,
				Err: fmt.Errorf("%w: only the last element can be removed", ErrReadonlyViolation)}
		}
	}
	if d.IsReadonly() {
		return &Error{Op: "delete", Path: path, Err: ErrReadonlyViolation}
	}
	if !n.InAction() {
		return &Error{Op: "delete", Path: path, Err: ErrMutationOutsideAction}
	}

	w := &Write{Op: WriteDelete, Node: n, Key: key}
	return n.intercept(w, func() error {
		n.removeKey(key)
		return nil
	})
}

// Push appends value to an array node.
func (n *Node) Push(value any) error {
	if n.desc.Kind() != schema.KindArrayOf {
		return &Error{Op: "push", Path: n.path, Err: fmt.Errorf("%w: push on %s", ErrKindMismatch, n.desc.Kind())}
	}
	return n.Set(strconv.Itoa(len(n.items)), value)
}

// Pop removes the last element of an array node and returns it.
func (n *Node) Pop() (any, error) {
	if n.desc.Kind() != schema.KindArrayOf {
		return nil, &Error{Op: "pop", Path: n.path, Err: fmt.Errorf("%w: pop on %s", ErrKindMismatch, n.desc.Kind())}
	}
	if len(n.items) == 0 {
		return nil, nil
	}
	key := strconv.Itoa(len(n.items) - 1)
	last := n.items[len(n.items)-1]
	if err := n.Delete(key); err != nil {
		return nil, err
	}
	return last, nil
}

// Call invokes an action or method property with args. Actions run inside an
// action on the node's tree; methods do not.
func (n *Node) Call(key string, args ...any) (any, error) {
	d := n.declared(key, false)
	if d == nil {
		return nil, &Error{Op: "call", Path: n.childPath(key), Err: ErrUndeclaredProperty}
	}
	switch d.Kind() {
	case schema.KindAction, schema.KindMethod:
	default:
		return nil, &Error{Op: "call", Path: n.childPath(key), Err: ErrNotCallable}
	}
	fn, _ := n.bound(key, d)
	return fn(args...)
}

// bound returns the function value of an action or method property.
func (n *Node) bound(key string, d *schema.Descriptor) (func(args ...any) (any, error), bool) {
	fn := d.Func()
	if fn == nil {
		return func(...any) (any, error) {
			return nil, &Error{Op: "call", Path: n.childPath(key), Err: ErrNotCallable}
		}, false
	}
	if d.Kind() == schema.KindMethod {
		return func(args ...any) (any, error) { return fn(n, args...) }, true
	}
	return func(args ...any) (out any, err error) {
		err = n.RunNamed(key, func() error {
			out, err = fn(n, args...)
			return err
		})
		return out, err
	}, true
}
