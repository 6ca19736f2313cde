package artifact

import (
	"bytes"
	"encoding/json"
	"sort"
)

// CanonicalJSON renders v as JSON with map keys sorted recursively, so the
// same logical value always produces byte-identical output regardless of
// Go's randomized map iteration order. Exported so other boundary-crossing
// packages (replay diagnostics, checkpoint hashing) can hash over the same
// canonical form artifact identity relies on.
func CanonicalJSON(v any) ([]byte, error) {
	return canonicalJSON(v)
}

func canonicalJSON(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// normalize round-trips v through JSON to collapse it into
// map[string]any/[]any/primitives, then wraps maps in an orderedMap so
// json.Marshal emits sorted keys.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return wrap(generic), nil
}

func wrap(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return orderedMap{keys: keys, values: t}
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = wrap(elem)
		}
		return out
	default:
		return t
	}
}

// orderedMap implements json.Marshaler to emit its keys in a fixed,
// pre-sorted order instead of relying on encoding/json's own (also sorted,
// but only for map[string]T, not for arbitrary nesting we've already
// unwrapped) key ordering.
type orderedMap struct {
	keys   []string
	values map[string]any
}

func (o orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(wrap(o.values[k]))
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
