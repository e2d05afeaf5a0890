package store

import "sort"

func getAt(root any, segs []string) any {
	cur := root
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[s]
	}
	return cur
}

// setAt writes v at segs and returns the new root. Parents left empty by a
// delete are removed.
func setAt(root any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	m, ok := root.(map[string]any)
	if !ok {
		if v == nil {
			return root
		}
		m = map[string]any{}
	}
	child := setAt(m[segs[0]], segs[1:], v)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func deepCopy(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, child := range m {
		out[k] = deepCopy(child)
	}
	return out
}

type leaf struct {
	path  string
	value any
}

// flatten lists the scalar leaves of v rooted at segs.
func flatten(segs []string, v any) []leaf {
	var out []leaf
	var walk func(segs []string, v any)
	walk = func(segs []string, v any) {
		switch t := v.(type) {
		case nil:
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(append(segs[:len(segs):len(segs)], k), t[k])
			}
		default:
			out = append(out, leaf{path: joinPath(segs), value: t})
		}
	}
	walk(segs, v)
	return out
}
