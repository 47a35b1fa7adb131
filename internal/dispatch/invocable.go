// Package dispatch routes key presses to the components bound to them.
//
// The reconfiguration path builds an immutable Table and installs it on the
// Dispatcher in one pointer swap; the event path only ever reads the installed
// Table, so it never observes a key map paired with another configuration's
// dependencies.
package dispatch

import (
	"context"
	"slices"
	"strings"
)

// Invocable is the one capability a dependency needs to be a dispatch target.
type Invocable interface {
	Invoke(ctx context.Context, method string, args any) (any, error)
}

// InvocableFunc adapts a function to Invocable.
type InvocableFunc func(ctx context.Context, method string, args any) (any, error)

// Invoke calls f.
func (f InvocableFunc) Invoke(ctx context.Context, method string, args any) (any, error) {
	return f(ctx, method, args)
}

// Dependencies maps fully-qualified dependency identifiers (e.g. "org/foo") to handles.
type Dependencies map[string]Invocable

// Clone returns a shallow copy of d.
func (d Dependencies) Clone() Dependencies {
	out := make(Dependencies, len(d))
	for id, h := range d {
		out[id] = h
	}
	return out
}

// IDs returns the identifiers in d, sorted.
func (d Dependencies) IDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MatchesComponent reports whether a dependency identifier refers to the short
// component name: the identifier ends with "/"+name or equals name.
func MatchesComponent(id, name string) bool {
	if name == "" {
		return false
	}
	return id == name || strings.HasSuffix(id, "/"+name)
}
