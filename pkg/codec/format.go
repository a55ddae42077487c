package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vango-dev/statetree/pkg/observable"
)

// Format selects a wire encoding.
type Format uint8

const (
	FormatJSON Format = iota
	FormatCBOR
)

// ErrUnknownFormat is returned for format names ParseFormat does not know.
var ErrUnknownFormat = errors.New("codec: unknown format")

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("unknown(%d)", f)
	}
}

// ParseFormat parses a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json":
		return FormatJSON, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// EncodeSnapshot encodes a JSON-compatible snapshot, as returned by
// Node.Snapshot with observable.AsJSON.
func EncodeSnapshot(f Format, snapshot any) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.Marshal(snapshot)
	case FormatCBOR:
		return Marshal(snapshot)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// DecodeSnapshot decodes a snapshot. Numbers decode as float64, objects as
// map[string]any and arrays as []any in both formats.
func DecodeSnapshot(f Format, data []byte) (any, error) {
	var v any
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("codec: decode json snapshot: %w", err)
		}
		return v, nil
	case FormatCBOR:
		if err := Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("codec: decode cbor snapshot: %w", err)
		}
		return normalize(v)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// EncodeDiffs encodes diff records in order.
func EncodeDiffs(f Format, diffs []observable.Diff) ([]byte, error) {
	switch f {
	case FormatJSON:
		if diffs == nil {
			diffs = []observable.Diff{}
		}
		return json.Marshal(diffs)
	case FormatCBOR:
		records := make([]map[string]any, len(diffs))
		for i, d := range diffs {
			records[i] = diffRecord(d)
		}
		return Marshal(records)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// DecodeDiffs decodes diff records. A path element that is not a string
// fails with observable.ErrNonStringKey.
func DecodeDiffs(f Format, data []byte) ([]observable.Diff, error) {
	switch f {
	case FormatJSON:
		var diffs []observable.Diff
		if err := json.Unmarshal(data, &diffs); err != nil {
			return nil, fmt.Errorf("codec: decode json diffs: %w", err)
		}
		return diffs, nil

	case FormatCBOR:
		var records []map[string]any
		if err := Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("codec: decode cbor diffs: %w", err)
		}
		diffs := make([]observable.Diff, len(records))
		for i, r := range records {
			d, err := fromRecord(r)
			if err != nil {
				return nil, fmt.Errorf("codec: diff %d: %w", i, err)
			}
			diffs[i] = d
		}
		return diffs, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// diffRecord builds the wire map of d: absent sides are omitted.
func diffRecord(d observable.Diff) map[string]any {
	path := d.Path
	if path == nil {
		path = []string{}
	}
	r := map[string]any{"path": path}
	if !d.Added {
		r["from"] = d.From
	}
	if !d.Removed {
		r["to"] = d.To
	}
	return r
}

func fromRecord(r map[string]any) (observable.Diff, error) {
	raw, _ := r["path"].([]any)
	path, err := observable.PathKeys(raw)
	if err != nil {
		return observable.Diff{}, err
	}

	d := observable.Diff{Path: path}
	from, hasFrom := r["from"]
	to, hasTo := r["to"]
	d.Added, d.Removed = !hasFrom, !hasTo
	if d.From, err = normalize(from); err != nil {
		return observable.Diff{}, err
	}
	if d.To, err = normalize(to); err != nil {
		return observable.Diff{}, err
	}
	return d, nil
}

// normalize converts CBOR-decoded integers to float64 and rejects maps with
// non-string keys, so CBOR and JSON decode to the same values.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case uint64:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case map[string]any:
		for k, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			x[k] = n
		}
		return x, nil
	case map[any]any:
		return nil, fmt.Errorf("%w: map with non-string keys", observable.ErrSymbolKeyForbidden)
	case []any:
		for i, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			x[i] = n
		}
		return x, nil
	}
	return v, nil
}
