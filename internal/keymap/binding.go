// Package keymap turns the declarative key configuration into KeyBinding values.
//
// A configuration is a generic attribute tree (see Attributes). Validate derives
// the components a configuration depends on without touching any device, and
// Build translates validated attributes into the KeyMap that gets rendered and
// dispatched.
package keymap

import "slices"

// KeyBinding describes one physical key: what its face shows and what pressing it does.
// Values are never mutated after construction.
type KeyBinding struct {
	// Index is the physical key slot. Indexes need not be contiguous.
	Index int
	// Caption is the text rendered on the key face.
	Caption string
	// Background is the face color name, "black" when unset.
	Background string
	// TextColor is the caption color name, "white" when unset.
	TextColor string
	// Component is the short name of the target dependency.
	Component string
	// Method is the operation invoked on the component.
	Method string
	// Args is forwarded to the component verbatim.
	Args any
}

// KeyMap is the ordered set of bindings built from one configuration.
// The zero value is an empty KeyMap.
type KeyMap struct {
	bindings []KeyBinding
}

// NewKeyMap returns a KeyMap holding a copy of bindings in declaration order.
func NewKeyMap(bindings ...KeyBinding) KeyMap {
	return KeyMap{bindings: slices.Clone(bindings)}
}

// Len returns the number of declared bindings, duplicates included.
func (m KeyMap) Len() int {
	return len(m.bindings)
}

// Bindings returns the bindings in declaration order.
func (m KeyMap) Bindings() []KeyBinding {
	return slices.Clone(m.bindings)
}

// Lookup returns the binding reachable for index. When several bindings share an
// index the last declared one wins, matching the face left on the key after rendering.
func (m KeyMap) Lookup(index int) (KeyBinding, bool) {
	for i := len(m.bindings) - 1; i >= 0; i-- {
		if m.bindings[i].Index == index {
			return m.bindings[i], true
		}
	}
	return KeyBinding{}, false
}

// Indexes returns the distinct key indexes in order of first appearance.
func (m KeyMap) Indexes() []int {
	out := make([]int, 0, len(m.bindings))
	for _, b := range m.bindings {
		if !slices.Contains(out, b.Index) {
			out = append(out, b.Index)
		}
	}
	return out
}

// RequiredComponents returns each distinct component name once, in order of first appearance.
func (m KeyMap) RequiredComponents() []string {
	return appendComponents([]string{}, m)
}

func appendComponents(dst []string, m KeyMap) []string {
	for _, b := range m.bindings {
		if !slices.Contains(dst, b.Component) {
			dst = append(dst, b.Component)
		}
	}
	return dst
}

// With returns a copy of m in which b is the only binding for b.Index. It takes the
// place of the first binding that had that index, or is appended when none did.
func (m KeyMap) With(b KeyBinding) KeyMap {
	out := make([]KeyBinding, 0, len(m.bindings)+1)
	placed := false
	for _, cur := range m.bindings {
		if cur.Index != b.Index {
			out = append(out, cur)
			continue
		}
		if !placed {
			out = append(out, b)
			placed = true
		}
	}
	if !placed {
		out = append(out, b)
	}
	return KeyMap{bindings: out}
}
