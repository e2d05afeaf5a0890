package store

import (
	"fmt"
	"strings"
)

// Join builds a store path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func splitPath(p string) ([]string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil, nil
	}
	segs := strings.Split(p, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, p)
		}
		if strings.ContainsAny(s, ".#$[]") {
			return nil, fmt.Errorf("%w: %q contains a reserved character", ErrInvalidPath, p)
		}
	}
	return segs, nil
}

func joinPath(segs []string) string {
	return strings.Join(segs, "/")
}

func lastSegment(segs []string) string {
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

func hasPrefix(segs, prefix []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i := range prefix {
		if segs[i] != prefix[i] {
			return false
		}
	}
	return true
}

// overlaps reports whether one path is an ancestor of (or equal to) the other.
func overlaps(a, b []string) bool {
	return hasPrefix(a, b) || hasPrefix(b, a)
}

// ancestors lists the proper ancestors of segs, nearest to the root first.
func ancestors(segs []string) []string {
	out := make([]string, 0, len(segs))
	for i := 1; i < len(segs); i++ {
		out = append(out, joinPath(segs[:i]))
	}
	return out
}
