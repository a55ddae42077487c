package observable

import (
	"encoding/json"
	"errors"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

func TestDiffJSON(t *testing.T) {
	tests := []struct {
		name string
		diff Diff
		want string
	}{
		{"change", Diff{Path: []string{"age"}, From: 36.0, To: 37.0}, `{"from":36,"path":["age"],"to":37}`},
		{"added", Diff{Path: []string{"a"}, To: 1.0, Added: true}, `{"path":["a"],"to":1}`},
		{"removed", Diff{Path: []string{"nickname"}, From: "Countess", Removed: true}, `{"from":"Countess","path":["nickname"]}`},
		{"to null", Diff{Path: []string{"name"}, From: "Ada", To: nil}, `{"from":"Ada","path":["name"],"to":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.diff)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal = %s, want %s", data, tt.want)
			}

			var back Diff
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(back, tt.diff) {
				t.Errorf("Unmarshal = %#v, want %#v", back, tt.diff)
			}
		})
	}
}

func TestDiffPathMustBeStrings(t *testing.T) {
	var d Diff
	err := json.Unmarshal([]byte(`{"path":["tags",0],"to":"x"}`), &d)
	if !errors.Is(err, ErrNonStringKey) {
		t.Errorf("Unmarshal = %v, want ErrNonStringKey", err)
	}
}

func TestApplyDiffsReplaysHistory(t *testing.T) {
	src := newProfile(t)
	dst := newProfile(t)

	mustRun(t, src, func() error {
		if err := src.Set("name", "Grace"); err != nil {
			return err
		}
		if err := src.Set("address", map[string]any{"street": "Arlington"}); err != nil {
			return err
		}
		if err := src.Child("address").Set("zip", "22201"); err != nil {
			return err
		}
		if err := src.Child("tags").Push("navy"); err != nil {
			return err
		}
		return src.Delete("nickname")
	})

	// Through the wire format and back.
	data, err := json.Marshal(src.Diffs())
	if err != nil {
		t.Fatal(err)
	}
	var diffs []Diff
	if err := json.Unmarshal(data, &diffs); err != nil {
		t.Fatal(err)
	}

	if err := dst.ApplyDiffs(diffs); err != nil {
		t.Fatalf("ApplyDiffs: %v", err)
	}

	want, _ := src.Snapshot()
	got, _ := dst.Snapshot()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("replayed snapshot = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(dst.Diffs(), src.Diffs()) {
		t.Errorf("replay recorded %v, want %v", dst.Diffs(), src.Diffs())
	}
}

func TestApplyDiffsStopsAtFirstFailure(t *testing.T) {
	n := MustNew(personSchema(), map[string]any{"name": "Ada", "age": 36})

	err := n.ApplyDiffs([]Diff{
		{Path: []string{"name"}, To: "Grace"},
		{Path: []string{"age"}, To: "old"},
		{Path: []string{"name"}, To: "Hopper"},
	})
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("ApplyDiffs = %v, want ErrKindMismatch", err)
	}
	if !strings.Contains(err.Error(), "diff 1") {
		t.Errorf("error %q does not name the failing diff", err)
	}
	if name, _ := n.GetString("name"); name != "Grace" {
		t.Errorf("name = %q, want the first diff applied", name)
	}
	if n.InAction() {
		t.Error("action left open")
	}
}

func TestApplyDiffsValidatesPaths(t *testing.T) {
	n := newProfile(t)

	tests := []struct {
		name string
		diff Diff
		want error
	}{
		{"empty", Diff{To: 1.0}, ErrInvalidPath},
		{"through a leaf", Diff{Path: []string{"name", "first"}, To: "A"}, ErrInvalidPath},
		{"undeclared", Diff{Path: []string{"email"}, To: "a@b"}, ErrUndeclaredProperty},
		{"readonly", Diff{Path: []string{"id"}, To: "u2"}, ErrReadonlyViolation},
		{"required removal", Diff{Path: []string{"name"}, Removed: true}, ErrReadonlyViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.ApplyDiffs([]Diff{tt.diff})
			if !errors.Is(err, tt.want) {
				t.Errorf("ApplyDiffs = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApplySnapshot(t *testing.T) {
	n := newProfile(t)

	err := n.ApplySnapshot(map[string]any{
		"id":      "u2",
		"name":    "Grace",
		"age":     85,
		"admin":   true,
		"address": map[string]any{"street": "Arlington"},
		"tags":    []any{"navy", "cobol"},
	})
	if err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	got, _ := n.Snapshot()
	want := map[string]any{
		"id":      "u2",
		"name":    "Grace",
		"age":     85.0,
		"admin":   true,
		"address": map[string]any{"street": "Arlington"},
		"tags":    []any{"navy", "cobol"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("snapshot = %v, want %v", got, want)
	}

	// One diff per changed key; nickname was removed.
	paths := make(map[string]bool)
	for _, d := range n.Diffs() {
		paths[strings.Join(d.Path, ".")] = true
	}
	for _, p := range []string{"id", "name", "age", "admin", "address", "tags", "nickname"} {
		if !paths[p] {
			t.Errorf("no diff for %s in %v", p, n.Diffs())
		}
	}
}

func TestApplySnapshotIsAtomic(t *testing.T) {
	n := newProfile(t)
	before, _ := n.Snapshot()

	err := n.ApplySnapshot(map[string]any{
		"id":    "u1",
		"name":  "Grace",
		"age":   "eighty-five",
		"admin": true,
		"tags":  []any{},
	})
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("ApplySnapshot = %v, want ErrKindMismatch", err)
	}

	after, _ := n.Snapshot()
	if !reflect.DeepEqual(after, before) {
		t.Errorf("failed snapshot changed state: %v", after)
	}
	if len(n.Diffs()) != 0 {
		t.Errorf("failed snapshot recorded %v", n.Diffs())
	}
}

func TestApplySnapshotAsString(t *testing.T) {
	src := newProfile(t)
	dst := MustNew(profileSchema(), map[string]any{
		"id": "u9", "name": "", "age": 0, "admin": false, "tags": []any{},
	})

	text, err := src.Snapshot(AsString())
	if err != nil {
		t.Fatal(err)
	}
	if err := dst.ApplySnapshot(text, AsString()); err != nil {
		t.Fatal(err)
	}

	want, _ := src.Snapshot()
	got, _ := dst.Snapshot()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("snapshot = %v, want %v", got, want)
	}

	err = dst.ApplySnapshot(map[string]any{}, AsString())
	if !errors.Is(err, ErrNonObjectAssigned) {
		t.Errorf("ApplySnapshot(map, AsString) = %v, want ErrNonObjectAssigned", err)
	}
}

func TestSnapshotTracksSubtree(t *testing.T) {
	q := withQueue(t)
	n := newProfile(t)
	mustRun(t, n, func() error {
		return n.Set("address", map[string]any{"street": "Marylebone"})
	})

	r := NewReaction("persist", func() { _, _ = n.Snapshot() })
	r.Run()

	mustRun(t, n, func() error { return n.Child("address").Set("street", "Baker Street") })
	if q.Len() != 1 {
		t.Errorf("nested write did not schedule the snapshot reaction")
	}
	runtime.KeepAlive(r)
}
