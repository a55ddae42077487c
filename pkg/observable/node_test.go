package observable

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vango-dev/statetree/pkg/schema"
)

func personSchema() *schema.Descriptor {
	return schema.Object(schema.Props{
		"name": schema.String(),
		"age":  schema.Number(),
	})
}

func profileSchema() *schema.Descriptor {
	return schema.Object(schema.Props{
		"id":       schema.Readonly(schema.String()),
		"name":     schema.String(),
		"age":      schema.Number(),
		"admin":    schema.Boolean(),
		"nickname": schema.Optional(schema.String()),
		"address": schema.Optional(schema.Object(schema.Props{
			"street": schema.String(),
			"zip":    schema.Optional(schema.String()),
		})),
		"tags": schema.ArrayOf(schema.String()),
		"greeting": schema.Computed(func(self schema.Target) (any, error) {
			name, err := self.Get("name")
			if err != nil {
				return nil, err
			}
			return "Hello, " + name.(string), nil
		}),
		"birthday": schema.Action(func(self schema.Target, args ...any) (any, error) {
			age, err := self.Get("age")
			if err != nil {
				return nil, err
			}
			return age.(float64) + 1, self.Set("age", age.(float64)+1)
		}),
		"rename": schema.Method(func(self schema.Target, args ...any) (any, error) {
			return nil, self.Set("name", args[0])
		}),
	})
}

func newProfile(t *testing.T) *Node {
	t.Helper()
	n, err := New(profileSchema(), map[string]any{
		"id":       "u1",
		"name":     "Ada",
		"age":      36,
		"admin":    false,
		"nickname": "Countess",
		"tags":     []string{"math"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func mustRun(t *testing.T, n *Node, fn func() error) {
	t.Helper()
	if err := n.Run(fn); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	n := newProfile(t)

	tests := []struct {
		key   string
		value any
	}{
		{"name", "Grace"},
		{"name", ""},
		{"age", 85.5},
		{"age", 0.0},
		{"admin", true},
		{"nickname", "Amazing Grace"},
	}

	for _, tt := range tests {
		mustRun(t, n, func() error { return n.Set(tt.key, tt.value) })
		got, err := n.Get(tt.key)
		if err != nil {
			t.Fatalf("Get(%q): %v", tt.key, err)
		}
		if got != tt.value {
			t.Errorf("Get(%q) = %v, want %v", tt.key, got, tt.value)
		}
	}
}

func TestNumbersAreNormalized(t *testing.T) {
	n := newProfile(t)
	mustRun(t, n, func() error { return n.Set("age", int64(40)) })

	got, _ := n.GetNumber("age")
	if got != 40 {
		t.Errorf("age = %v, want 40", got)
	}
}

func TestUndefinedIsRejectedForEveryKind(t *testing.T) {
	n := newProfile(t)

	// Checked first, so the action gate and key kind do not matter.
	for _, key := range []string{"id", "name", "age", "admin", "nickname", "address", "tags", "greeting", "birthday", "missing"} {
		err := n.Set(key, Undefined)
		if !errors.Is(err, ErrInvalidBottomValue) {
			t.Errorf("Set(%q, Undefined) = %v, want ErrInvalidBottomValue", key, err)
		}
	}
}

func TestNullIsAValidBottomValue(t *testing.T) {
	n := newProfile(t)
	mustRun(t, n, func() error { return n.Set("name", nil) })

	if v, _ := n.Get("name"); v != nil {
		t.Errorf("name = %v, want nil", v)
	}
	snap, _ := n.Snapshot()
	if _, ok := snap.(map[string]any)["name"]; !ok {
		t.Error("null property missing from snapshot")
	}
}

func TestSetCheckOrder(t *testing.T) {
	weird := schema.Optional(schema.New(schema.Kind(99)))
	d := schema.Object(schema.Props{
		"id":    schema.Readonly(schema.String()),
		"name":  schema.String(),
		"use":   schema.String(),
		"weird": weird,
		"calc": schema.Computed(func(self schema.Target) (any, error) {
			return nil, self.Set("name", "side effect")
		}),
	})
	n, err := New(d, map[string]any{"id": "x", "name": "Ada", "use": "y"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"method", "calc", ErrMethodReassignment},
		{"unknown kind", "weird", ErrUnrecognizedKind},
		{"undeclared", "missing", ErrUndeclaredProperty},
		{"reserved", "use", ErrReservedKey},
		{"readonly", "id", ErrReadonlyViolation},
		{"outside action", "name", ErrMutationOutsideAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.Set(tt.key, "v")
			if !errors.Is(err, tt.want) {
				t.Errorf("Set(%q) = %v, want %v", tt.key, err, tt.want)
			}
		})
	}

	t.Run("inside computation", func(t *testing.T) {
		_, err := n.Get("calc")
		if !errors.Is(err, ErrMutationDuringComputation) {
			t.Errorf("Get(calc) = %v, want ErrMutationDuringComputation", err)
		}
	})
}

func TestIntrospectionKeyCannotBeWritten(t *testing.T) {
	n := MustNew(schema.MapOf(schema.String()), map[string]any{})
	err := n.Run(func() error { return n.Set(KeyPath, "x") })
	if !errors.Is(err, ErrNonStringKey) {
		t.Errorf("Set(KeyPath) = %v, want ErrNonStringKey", err)
	}
}

func TestMutationRequiresAction(t *testing.T) {
	n := newProfile(t)

	if err := n.Set("name", "Grace"); !errors.Is(err, ErrMutationOutsideAction) {
		t.Fatalf("Set outside action = %v, want ErrMutationOutsideAction", err)
	}

	scope := n.BeginAction()
	if err := n.Set("name", "Grace"); err != nil {
		t.Fatalf("Set inside action: %v", err)
	}

	// Nested scopes are transparent.
	inner := n.BeginAction()
	inner.End()
	inner.End()
	if !n.InAction() {
		t.Fatal("inner End closed the outer action")
	}

	scope.End()
	if n.InAction() {
		t.Fatal("action still open after outermost End")
	}
	if err := n.Set("name", "Ada"); !errors.Is(err, ErrMutationOutsideAction) {
		t.Errorf("Set after End = %v, want ErrMutationOutsideAction", err)
	}
}

func TestActionScopeIsSharedByTheTree(t *testing.T) {
	n := newProfile(t)
	mustRun(t, n, func() error {
		return n.Set("address", map[string]any{"street": "St James's Square"})
	})
	addr := n.Child("address")

	err := addr.Run(func() error { return n.Set("name", "Grace") })
	if err != nil {
		t.Errorf("action opened on a child does not cover the root: %v", err)
	}
}

func TestAttachValidation(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  error
	}{
		{"missing required", map[string]any{"name": "Ada"}, ErrRequiredPropertyMissing},
		{"extraneous", map[string]any{"name": "Ada", "age": 1, "email": "a@b"}, ErrExtraneousProperty},
		{"not a container", "Ada", ErrNonObjectAssigned},
		{"non-string keys", map[int]any{1: "Ada"}, ErrSymbolKeyForbidden},
		{"introspection key", map[string]any{"name": "Ada", "age": 1, KeyParent: nil}, ErrSymbolKeyForbidden},
		{"kind mismatch", map[string]any{"name": 1, "age": 1}, ErrKindMismatch},
		{"not a number", map[string]any{"name": "Ada", "age": "old"}, ErrKindMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(personSchema(), tt.value)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestErrorCarriesPath(t *testing.T) {
	n := newProfile(t)
	err := n.Run(func() error {
		return n.Set("address", map[string]any{"street": 7})
	})

	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("error %v is not an *Error", err)
	}
	if !reflect.DeepEqual(pe.Path, []string{"address", "street"}) {
		t.Errorf("path = %v, want [address street]", pe.Path)
	}
}

func TestFailedStructuredWriteChangesNothing(t *testing.T) {
	n := newProfile(t)
	mustRun(t, n, func() error {
		return n.Set("address", map[string]any{"street": "Marylebone"})
	})
	before := n.Child("address")
	n.ClearDiffs()

	err := n.Run(func() error {
		return n.Set("address", map[string]any{"street": "Baker Street", "zip": 221})
	})
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("Set = %v, want ErrKindMismatch", err)
	}
	if n.Child("address") != before {
		t.Error("address was replaced by a failed write")
	}
	if len(n.Diffs()) != 0 {
		t.Errorf("failed write recorded diffs: %v", n.Diffs())
	}
}

func TestNestedNodesKnowTheirPlace(t *testing.T) {
	n := newProfile(t)
	mustRun(t, n, func() error {
		return n.Set("address", map[string]any{"street": "Marylebone"})
	})
	addr := n.Child("address")

	if obs, _ := addr.Get(KeyObservable); obs != true {
		t.Error("KeyObservable is not true")
	}
	if parent, _ := addr.Get(KeyParent); parent != n {
		t.Errorf("KeyParent = %v, want root", parent)
	}
	if path, _ := addr.Get(KeyPath); !reflect.DeepEqual(path, []string{"address"}) {
		t.Errorf("KeyPath = %v, want [address]", path)
	}
	if addr.Root() != n {
		t.Error("Root() is not the root")
	}
	if p, _ := n.Get(KeyParent); p != nil {
		t.Errorf("root parent = %v, want nil", p)
	}
}

func TestAssignNodeCopiesIt(t *testing.T) {
	n := newProfile(t)
	other := newProfile(t)
	mustRun(t, other, func() error {
		return other.Set("address", map[string]any{"street": "Piccadilly"})
	})

	mustRun(t, n, func() error { return n.Set("address", other.Child("address")) })

	if n.Child("address") == other.Child("address") {
		t.Fatal("node was shared instead of copied")
	}
	street, _ := n.Child("address").GetString("street")
	if street != "Piccadilly" {
		t.Errorf("street = %q", street)
	}
}

func TestDeleteOptional(t *testing.T) {
	n := newProfile(t)

	if err := n.Run(func() error { return n.Delete("name") }); !errors.Is(err, ErrReadonlyViolation) {
		t.Errorf("Delete(name) = %v, want ErrReadonlyViolation", err)
	}
	if err := n.Delete("nickname"); !errors.Is(err, ErrMutationOutsideAction) {
		t.Errorf("Delete outside action = %v, want ErrMutationOutsideAction", err)
	}

	mustRun(t, n, func() error { return n.Delete("nickname") })

	if n.Has("nickname") {
		t.Error("nickname still present")
	}
	want := []Diff{{Path: []string{"nickname"}, From: "Countess", Removed: true}}
	if got := n.Diffs(); !reflect.DeepEqual(got, want) {
		t.Errorf("diffs = %#v, want %#v", got, want)
	}
}

func TestAdaScenario(t *testing.T) {
	n := MustNew(personSchema(), map[string]any{"name": "", "age": 0})

	mustRun(t, n, func() error {
		if err := n.Set("name", "Ada"); err != nil {
			return err
		}
		return n.Set("age", 36)
	})

	snap, err := n.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if want := map[string]any{"name": "Ada", "age": 36.0}; !reflect.DeepEqual(snap, want) {
		t.Errorf("snapshot = %v, want %v", snap, want)
	}

	n.ClearDiffs()
	mustRun(t, n, func() error { return n.Set("age", 37) })

	want := []Diff{{Path: []string{"age"}, From: 36.0, To: 37.0}}
	if got := n.Diffs(); !reflect.DeepEqual(got, want) {
		t.Errorf("diffs = %#v, want %#v", got, want)
	}
}

func TestUnchangedWriteRecordsNoDiff(t *testing.T) {
	n := MustNew(personSchema(), map[string]any{"name": "Ada", "age": 36})
	mustRun(t, n, func() error { return n.Set("age", 36) })
	if d := n.Diffs(); len(d) != 0 {
		t.Errorf("diffs = %v, want none", d)
	}
}

func TestNestedWriteRecordsOneDiff(t *testing.T) {
	n := newProfile(t)
	mustRun(t, n, func() error {
		return n.Set("address", map[string]any{"street": "Marylebone", "zip": "NW1"})
	})

	diffs := n.Diffs()
	if len(diffs) != 1 {
		t.Fatalf("diffs = %v, want exactly one", diffs)
	}
	d := diffs[0]
	if !d.Added || !reflect.DeepEqual(d.Path, []string{"address"}) {
		t.Errorf("diff = %#v", d)
	}
	if want := map[string]any{"street": "Marylebone", "zip": "NW1"}; !reflect.DeepEqual(d.To, want) {
		t.Errorf("to = %v, want %v", d.To, want)
	}
}

func TestOnDiff(t *testing.T) {
	n := MustNew(personSchema(), map[string]any{"name": "Ada", "age": 36})

	var got []Diff
	remove := n.OnDiff(func(d Diff) { got = append(got, d) })
	mustRun(t, n, func() error { return n.Set("age", 37) })
	remove()
	mustRun(t, n, func() error { return n.Set("age", 38) })

	if len(got) != 1 {
		t.Errorf("OnDiff saw %d diffs, want 1", len(got))
	}
	if len(n.Diffs()) != 2 {
		t.Errorf("buffer has %d diffs, want 2", len(n.Diffs()))
	}
}

func TestActionsAndMethods(t *testing.T) {
	n := newProfile(t)

	out, err := n.Call("birthday")
	if err != nil {
		t.Fatalf("birthday: %v", err)
	}
	if out != 37.0 {
		t.Errorf("birthday returned %v", out)
	}

	fn, _ := n.Get("birthday")
	if _, err := fn.(func(...any) (any, error))(); err != nil {
		t.Fatalf("bound birthday: %v", err)
	}
	if age, _ := n.GetNumber("age"); age != 38 {
		t.Errorf("age = %v, want 38", age)
	}

	if _, err := n.Call("rename", "Grace"); !errors.Is(err, ErrMutationOutsideAction) {
		t.Errorf("method outside action = %v, want ErrMutationOutsideAction", err)
	}
	err = n.Run(func() error {
		_, err := n.Call("rename", "Grace")
		return err
	})
	if err != nil {
		t.Errorf("method inside action: %v", err)
	}

	if _, err := n.Call("name"); !errors.Is(err, ErrNotCallable) {
		t.Errorf("Call(name) = %v, want ErrNotCallable", err)
	}
}

func TestVirtualOperations(t *testing.T) {
	n := newProfile(t)

	v, _ := n.Get(OpGetSnapshot)
	snap, err := v.(func(...SnapshotOption) (any, error))(AsString())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.(string); !ok {
		t.Errorf("AsString snapshot is %T", snap)
	}

	v, _ = n.Get(OpGetRoot)
	if v.(func() *Node)() != n {
		t.Error("getRoot did not return the root")
	}
	v, _ = n.Get(OpUse)
	if _, ok := v.(func(Middleware) func()); !ok {
		t.Errorf("use is %T", v)
	}
}

func TestArrays(t *testing.T) {
	n := newProfile(t)
	tags := n.Child("tags")

	mustRun(t, n, func() error {
		if err := tags.Push("logic"); err != nil {
			return err
		}
		return tags.Set("2", "poetry")
	})
	if got := tags.Keys(); !reflect.DeepEqual(got, []string{"0", "1", "2"}) {
		t.Errorf("keys = %v", got)
	}
	if v, _ := tags.At(1); v != "logic" {
		t.Errorf("At(1) = %v", v)
	}
	if v, _ := tags.At(9); v != nil {
		t.Errorf("At(9) = %v, want nil", v)
	}

	err := n.Run(func() error { return tags.Set("7", "gap") })
	if !errors.Is(err, ErrUndeclaredProperty) {
		t.Errorf("Set past end = %v, want ErrUndeclaredProperty", err)
	}
	err = n.Run(func() error { return tags.Delete("0") })
	if !errors.Is(err, ErrReadonlyViolation) {
		t.Errorf("Delete(0) = %v, want ErrReadonlyViolation", err)
	}

	var last any
	mustRun(t, n, func() error {
		var err error
		last, err = tags.Pop()
		return err
	})
	if last != "poetry" || tags.Len() != 2 {
		t.Errorf("Pop = %v, len %d", last, tags.Len())
	}
}

func TestMaps(t *testing.T) {
	n := MustNew(schema.MapOf(schema.Number()), map[string]float64{"b": 2})

	mustRun(t, n, func() error { return n.Set("a", 1) })
	if got := n.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("keys = %v", got)
	}

	want := []Diff{{Path: []string{"a"}, To: 1.0, Added: true}}
	if got := n.Diffs(); !reflect.DeepEqual(got, want) {
		t.Errorf("diffs = %#v, want %#v", got, want)
	}

	mustRun(t, n, func() error { return n.Delete("b") })
	if n.Has("b") || n.Len() != 1 {
		t.Errorf("b still present, len %d", n.Len())
	}

	_, err := New(schema.MapOf(schema.Number()), map[string]any{OpApplyDiffs: 1})
	if !errors.Is(err, ErrReservedKey) {
		t.Errorf("reserved map key = %v, want ErrReservedKey", err)
	}
}

func TestOneOf(t *testing.T) {
	d := schema.Object(schema.Props{"id": schema.OneOf(schema.String(), schema.Number())})
	n := MustNew(d, map[string]any{"id": "a"})

	mustRun(t, n, func() error { return n.Set("id", 5) })
	if v, _ := n.Get("id"); v != 5.0 {
		t.Errorf("id = %v, want 5", v)
	}

	err := n.Run(func() error { return n.Set("id", true) })
	if !errors.Is(err, ErrNoMatchingAlternative) {
		t.Errorf("Set(id, true) = %v, want ErrNoMatchingAlternative", err)
	}
}

func TestComplexValues(t *testing.T) {
	d := schema.Object(schema.Props{"born": schema.Complex(schema.TimeCodec)})
	born := time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)
	n := MustNew(d, map[string]any{"born": born})

	snap, _ := n.Snapshot()
	if got := snap.(map[string]any)["born"]; got != born {
		t.Errorf("raw snapshot born = %v", got)
	}
	snap, _ = n.Snapshot(AsJSON())
	if got := snap.(map[string]any)["born"]; got != "1815-12-10T00:00:00Z" {
		t.Errorf("JSON snapshot born = %v", got)
	}

	err := n.ApplySnapshot(map[string]any{"born": "1852-11-27T00:00:00Z"}, AsJSON())
	if err != nil {
		t.Fatal(err)
	}
	v, _ := n.Get("born")
	if got, ok := v.(time.Time); !ok || got.Year() != 1852 {
		t.Errorf("born = %v", v)
	}

	err = n.Run(func() error { return n.Set("born", 42) })
	if !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Set(born, 42) = %v, want ErrKindMismatch", err)
	}
}

func TestComplexWithoutCodec(t *testing.T) {
	half := schema.Codec{Serialize: func(v any) (any, error) { return v, nil }}
	d := schema.Object(schema.Props{
		"when": schema.Optional(schema.New(schema.KindComplex)),
		"half": schema.Optional(schema.Complex(half)),
	})
	n := MustNew(d, map[string]any{})

	for _, key := range []string{"when", "half"} {
		err := n.Run(func() error { return n.Set(key, "x") })
		if !errors.Is(err, ErrUnrecognizedKind) {
			t.Errorf("Set(%s) = %v, want ErrUnrecognizedKind", key, err)
		}
	}
	if _, err := New(d, map[string]any{"when": "x"}); !errors.Is(err, ErrUnrecognizedKind) {
		t.Errorf("New = %v, want ErrUnrecognizedKind", err)
	}
	if _, err := n.Snapshot(AsJSON()); err != nil {
		t.Errorf("Snapshot: %v", err)
	}
}

func TestRecursiveSchema(t *testing.T) {
	var person *schema.Descriptor
	person = schema.Object(schema.Props{
		"name":   schema.String(),
		"mentor": schema.Optional(schema.Ref(func() *schema.Descriptor { return person })),
	})

	n, err := New(person, map[string]any{
		"name":   "Ada",
		"mentor": map[string]any{"name": "Mary", "mentor": map[string]any{"name": "Augustus"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	name, _ := n.Child("mentor").Child("mentor").GetString("name")
	if name != "Augustus" {
		t.Errorf("name = %q", name)
	}
}
