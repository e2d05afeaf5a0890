// Package engagement tracks caller-scoped engagement state: whether the
// caller upvoted a post or follows a user, and how many upvotes a post has.
// Authoritative state only changes when a store snapshot arrives.
package engagement

import "github.com/anonto42/nano-feed/backend/internal/repositories"

// State of a boolean engagement.
type State int8

const (
	Unknown State = iota
	Off
	On
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case On:
		return "on"
	default:
		return "unknown"
	}
}

// Flag is a snapshot-driven boolean with a separate display-only intent.
type Flag struct {
	state   State
	pending *bool
}

// Observe applies a snapshot value and clears any pending intent.
func (f *Flag) Observe(v any) {
	if repositories.Truthy(v) {
		f.state = On
	} else {
		f.state = Off
	}
	f.pending = nil
}

// Intend records what the caller just asked for. It changes Display only.
func (f *Flag) Intend(on bool) {
	f.pending = &on
}

// CancelIntent drops the pending intent so Display falls back to the
// confirmed state.
func (f *Flag) CancelIntent() {
	f.pending = nil
}

func (f Flag) State() State { return f.state }

func (f Flag) Known() bool { return f.state != Unknown }

func (f Flag) Pending() bool { return f.pending != nil }

// Display is the value to render: the pending intent if any, else the
// confirmed state.
func (f Flag) Display() bool {
	if f.pending != nil {
		return *f.pending
	}
	return f.state == On
}

// Count is a snapshot-driven counter. Zero is a valid count.
type Count struct {
	value int64
	known bool
}

// Observe applies a snapshot value. A nil value leaves the count as it was.
func (c *Count) Observe(v any) {
	if v == nil {
		return
	}
	switch n := v.(type) {
	case float64:
		c.value = int64(n)
	case int64:
		c.value = n
	case int:
		c.value = int64(n)
	default:
		return
	}
	c.known = true
}

func (c Count) Value() int64 { return c.value }

func (c Count) Known() bool { return c.known }
