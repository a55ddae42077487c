package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/statetree/pkg/codec"
	"github.com/vango-dev/statetree/pkg/observable"
	"github.com/vango-dev/statetree/pkg/schema"
)

func init() {
	DisableColors()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{"write", "S009", "Mutation outside of an action", CategoryWrite},
		{"attach", "S011", "Required property missing", CategoryAttach},
		{"codec", "C003", "Unknown wire format", CategoryCodec},
		{"unknown", "S999", "Unknown error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.wantMsg, err.Message)
			assert.Equal(t, tt.wantCat, err.Category)
		})
	}
}

func TestEverySentinelIsRegistered(t *testing.T) {
	for _, s := range sentinels {
		_, ok := GetTemplate(s.code)
		assert.True(t, ok, "sentinel %v maps to unregistered code %s", s.err, s.code)
	}
	// Configuration codes have no sentinel.
	assert.Len(t, GetAllCodes(), len(sentinels)+3)
}

func TestFromErrorObservable(t *testing.T) {
	d := schema.Object(schema.Props{
		"id":   schema.Readonly(schema.String()),
		"name": schema.String(),
	})
	n, err := observable.New(d, map[string]any{"id": "u1", "name": "Ada"})
	require.NoError(t, err)

	err = n.Run(func() error { return n.Set("id", "u2") })
	require.Error(t, err)

	se := FromError(err, CategoryCLI)
	assert.Equal(t, "S007", se.Code)
	assert.Equal(t, CategoryWrite, se.Category)
	assert.Equal(t, []string{"id"}, se.Path)
	assert.True(t, stderrors.Is(se, observable.ErrReadonlyViolation))

	err = n.Set("name", "Grace")
	assert.Equal(t, "S009", CodeOf(err))
}

func TestFromErrorWrapped(t *testing.T) {
	err := fmt.Errorf("diff 3: %w", &observable.Error{
		Op:   "applyDiffs",
		Path: []string{"address", "zip"},
		Err:  observable.ErrInvalidPath,
	})
	se := FromError(err, CategoryCLI)
	assert.Equal(t, "S016", se.Code)
	assert.Equal(t, CategoryReplay, se.Category)
	assert.Equal(t, "address.zip", se.PathString())

	_, err = codec.ParseFormat("xml")
	assert.Equal(t, CategoryCodec, CategoryOf(err))

	_, err = schema.Load([]byte("kind: bogus"))
	assert.Equal(t, "C001", CodeOf(err))
}

func TestFromErrorPassThrough(t *testing.T) {
	assert.Nil(t, FromError(nil, CategoryCLI))

	se := New("S001")
	assert.Same(t, se, FromError(fmt.Errorf("outer: %w", se), CategoryCLI))

	plain := FromError(stderrors.New("disk full"), CategoryCLI)
	assert.Empty(t, plain.Code)
	assert.Equal(t, CategoryCLI, plain.Category)
	assert.Equal(t, "disk full", plain.Error())
}

func TestRegister(t *testing.T) {
	errQuota := stderrors.New("quota exceeded")
	Register("X100", ErrorTemplate{Category: CategoryCLI, Message: "Quota exceeded"}, errQuota)
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "X100")
		sentinels = sentinels[:len(sentinels)-1]
		registryMu.Unlock()
	})

	assert.Equal(t, "X100", CodeOf(fmt.Errorf("write: %w", errQuota)))
}

func TestFormat(t *testing.T) {
	err := New("S009").WithPath([]string{"tags", "0"}).Wrap(observable.ErrMutationOutsideAction)
	out := err.Format()

	assert.Contains(t, out, "ERROR S009: Mutation outside of an action")
	assert.Contains(t, out, "at tags.0")
	assert.Contains(t, out, "Hint: Wrap the write in node.Run")
	assert.Contains(t, out, "cause: observable: cannot mutate state outside of an action")
	assert.NotContains(t, out, "\x1b[")
}

func TestFormatCompact(t *testing.T) {
	assert.Equal(t, "name: S007: Readonly property written", New("S007").WithPath([]string{"name"}).FormatCompact())
	assert.Equal(t, "S001: Undefined written", New("S001").FormatCompact())
	assert.Equal(t, "boom", Newf(CategoryCLI, "boom").FormatCompact())
}

func TestFormatJSON(t *testing.T) {
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(New("S016").WithPath([]string{"a"}).FormatJSON()), &got))
	assert.Equal(t, "S016", got["code"])
	assert.Equal(t, "replay", got["category"])
	assert.Equal(t, []any{"a"}, got["path"])
	assert.NotContains(t, got, "cause")
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 20)
	}
	assert.Nil(t, wrapText("", 10))
}
