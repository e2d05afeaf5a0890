package store

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// ServerValue is a placeholder the backend resolves at write time. It encodes
// to the Firebase wire form so it can be sent to Firebase untouched.
type ServerValue struct {
	op    string
	delta int64
}

// ServerTimestamp resolves to the write time in epoch milliseconds.
var ServerTimestamp = ServerValue{op: "timestamp"}

// Increment adds delta to the number stored at the written path. A missing or
// non-numeric value counts as zero.
func Increment(delta int64) ServerValue {
	return ServerValue{op: "increment", delta: delta}
}

func (v ServerValue) MarshalJSON() ([]byte, error) {
	if v.op == "increment" {
		return []byte(`{".sv":{"increment":` + strconv.FormatInt(v.delta, 10) + `}}`), nil
	}
	return []byte(`{".sv":"timestamp"}`), nil
}

// normalize converts v into the JSON shape stored in the tree. Arrays become
// index-keyed objects and empty objects disappear.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("store: decode value: %w", err)
	}
	return prune(out), nil
}

func prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if p := prune(child); p == nil {
				delete(t, k)
			} else {
				t[k] = p
			}
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		m := make(map[string]any, len(t))
		for i, child := range t {
			m[strconv.Itoa(i)] = child
		}
		return prune(m)
	default:
		return v
	}
}

// serverValue recognises the encoded {".sv": ...} form.
func serverValue(v any) (ServerValue, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return ServerValue{}, false
	}
	sv, ok := m[".sv"]
	if !ok {
		return ServerValue{}, false
	}
	switch t := sv.(type) {
	case string:
		if t == "timestamp" {
			return ServerTimestamp, true
		}
	case map[string]any:
		if d, ok := t["increment"].(float64); ok {
			return Increment(int64(d)), true
		}
	}
	return ServerValue{}, false
}

type lookupFunc func(segs []string) (any, error)

// resolve replaces server values under segs. lookup reads the current value
// at a path and is only called for increments.
func resolve(v any, segs []string, lookup lookupFunc, now float64) (any, error) {
	if sv, ok := serverValue(v); ok {
		if sv.op == "timestamp" {
			return now, nil
		}
		cur, err := lookup(segs)
		if err != nil {
			return nil, err
		}
		base, _ := cur.(float64)
		return base + float64(sv.delta), nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	for k, child := range m {
		r, err := resolve(child, append(segs[:len(segs):len(segs)], k), lookup, now)
		if err != nil {
			return nil, err
		}
		m[k] = r
	}
	return m, nil
}
