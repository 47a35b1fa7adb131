package dispatch

import (
	"errors"
	"fmt"

	"github.com/ensigniasec/deck-bridge/internal/keymap"
)

// Per-event outcomes that drop a press. They are logged, never returned to the event source.
var (
	ErrUnmappedKey          = errors.New("no mapping for key")
	ErrDependencyUnresolved = errors.New("could not find dependency")
)

// Table is a key map paired with the dependency handles it dispatches to.
// A Table is never modified after NewTable returns.
type Table struct {
	keys keymap.KeyMap
	deps Dependencies
	ids  []string
}

// Target is the outcome of a successful lookup.
type Target struct {
	Binding      keymap.KeyBinding
	DependencyID string
	Handle       Invocable
}

// NewTable snapshots keys and deps into a Table. Later changes to deps are not visible.
func NewTable(keys keymap.KeyMap, deps Dependencies) *Table {
	snapshot := deps.Clone()
	return &Table{
		keys: keys,
		deps: snapshot,
		ids:  snapshot.IDs(),
	}
}

// KeyMap returns the table's key map.
func (t *Table) KeyMap() keymap.KeyMap {
	return t.keys
}

// Resolve searches the table's dependencies for the component name. Identifiers are
// scanned in sorted order and the first match wins.
func (t *Table) Resolve(component string) (string, Invocable, bool) {
	for _, id := range t.ids {
		if MatchesComponent(id, component) {
			return id, t.deps[id], true
		}
	}
	return "", nil, false
}

// Unresolved returns the components of the key map with no matching dependency.
func (t *Table) Unresolved() []string {
	var out []string
	for _, name := range t.keys.RequiredComponents() {
		if _, _, ok := t.Resolve(name); !ok {
			out = append(out, name)
		}
	}
	return out
}

// Target decides what a press of index invokes. Resolution happens here, at
// dispatch time, rather than when the table is built.
func (t *Table) Target(index int) (Target, error) {
	b, ok := t.keys.Lookup(index)
	if !ok {
		return Target{}, fmt.Errorf("%w %d", ErrUnmappedKey, index)
	}
	id, h, ok := t.Resolve(b.Component)
	if !ok {
		return Target{Binding: b}, fmt.Errorf("%w for %s", ErrDependencyUnresolved, b.Component)
	}
	return Target{Binding: b, DependencyID: id, Handle: h}, nil
}
