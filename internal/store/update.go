package store

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type write struct {
	segs  []string
	value any
}

func (w write) path() string {
	return joinPath(w.segs)
}

// prepare validates and normalizes a multi-path update. Writes come back in
// path order; none is an ancestor of another.
func prepare(updates map[string]any) ([]write, error) {
	writes := make([]write, 0, len(updates))
	seen := make(map[string]struct{}, len(updates))
	for p, v := range updates {
		segs, err := splitPath(p)
		if err != nil {
			return nil, err
		}
		key := joinPath(segs)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %q given twice", ErrOverlappingPaths, key)
		}
		seen[key] = struct{}{}

		val, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("store: value for %q: %w", key, err)
		}
		writes = append(writes, write{segs: segs, value: val})
	}

	for _, w := range writes {
		if len(w.segs) == 0 && len(writes) > 1 {
			return nil, fmt.Errorf("%w: root written together with other paths", ErrOverlappingPaths)
		}
		for _, anc := range ancestors(w.segs) {
			if _, ok := seen[anc]; ok {
				return nil, fmt.Errorf("%w: %q is an ancestor of %q", ErrOverlappingPaths, anc, w.path())
			}
		}
	}

	slices.SortFunc(writes, func(a, b write) int {
		return strings.Compare(a.path(), b.path())
	})
	return writes, nil
}

func nowMillis() float64 {
	return float64(time.Now().UnixMilli())
}

// resolveAll resolves server values for every write before anything is
// applied, so a lookup failure leaves the store untouched.
func resolveAll(writes []write, lookup lookupFunc) ([]any, error) {
	now := nowMillis()
	out := make([]any, len(writes))
	for i, w := range writes {
		v, err := resolve(w.value, w.segs, lookup, now)
		if err != nil {
			return nil, fmt.Errorf("store: resolve %q: %w", w.path(), err)
		}
		out[i] = v
	}
	return out, nil
}

func writtenPaths(writes []write) [][]string {
	out := make([][]string, len(writes))
	for i, w := range writes {
		out[i] = w.segs
	}
	return out
}
