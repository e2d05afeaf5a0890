package store

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Snapshot is an immutable read of one path.
type Snapshot struct {
	Key   string
	Value any

	// order is set for query results and overrides key order.
	order []string
}

// Exists reports whether the path holds a value.
func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Child returns the snapshot of a direct child.
func (s Snapshot) Child(key string) Snapshot {
	m, _ := s.Value.(map[string]any)
	return Snapshot{Key: key, Value: m[key]}
}

// Keys lists child keys in delivery order.
func (s Snapshot) Keys() []string {
	if s.order != nil {
		return slices.Clone(s.order)
	}
	m, ok := s.Value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Children returns the child snapshots in delivery order.
func (s Snapshot) Children() []Snapshot {
	keys := s.Keys()
	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.Child(k))
	}
	return out
}

func (s Snapshot) NumChildren() int {
	if s.order != nil {
		return len(s.order)
	}
	m, _ := s.Value.(map[string]any)
	return len(m)
}

// Unmarshal decodes the value into v.
func (s Snapshot) Unmarshal(v any) error {
	b, err := json.Marshal(s.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// fingerprint identifies the content and order of a snapshot for change
// detection.
func (s Snapshot) fingerprint() []byte {
	b, _ := json.Marshal(struct {
		Order []string `json:"o"`
		Value any      `json:"v"`
	}{s.Keys(), s.Value})
	return b
}

// compareKeys orders 32-bit integer keys numerically before all other keys,
// which compare lexicographically.
func compareKeys(a, b string) int {
	ai, aok := intKey(a)
	bi, bok := intKey(b)
	switch {
	case aok && bok:
		return cmp.Compare(ai, bi)
	case aok:
		return -1
	case bok:
		return 1
	}
	return strings.Compare(a, b)
}

func intKey(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || strconv.FormatInt(n, 10) != s {
		return 0, false
	}
	return n, true
}

func valueRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

// compareValues orders missing < booleans < numbers < strings < objects.
func compareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	}
	return 0
}

// apply orders and limits the children of value.
func (q Query) apply(key string, value any) Snapshot {
	if q.isZero() {
		return Snapshot{Key: key, Value: value}
	}
	m, ok := value.(map[string]any)
	if !ok {
		return Snapshot{Key: key, Value: value, order: []string{}}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	if q.OrderByChild == "" {
		slices.SortFunc(keys, compareKeys)
	} else {
		childSegs := strings.Split(strings.Trim(q.OrderByChild, "/"), "/")
		slices.SortFunc(keys, func(a, b string) int {
			if c := compareValues(getAt(m[a], childSegs), getAt(m[b], childSegs)); c != 0 {
				return c
			}
			return compareKeys(a, b)
		})
	}

	if q.LimitToFirst > 0 && len(keys) > q.LimitToFirst {
		keys = keys[:q.LimitToFirst]
	}
	if q.LimitToLast > 0 && len(keys) > q.LimitToLast {
		keys = keys[len(keys)-q.LimitToLast:]
	}

	selected := make(map[string]any, len(keys))
	for _, k := range keys {
		selected[k] = m[k]
	}
	var out any = selected
	if len(selected) == 0 {
		out = nil
	}
	return Snapshot{Key: key, Value: out, order: keys}
}
