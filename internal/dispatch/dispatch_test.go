package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ensigniasec/deck-bridge/internal/keymap"
)

type call struct {
	Method string
	Args   any
}

// recorder is an Invocable that remembers every call.
type recorder struct {
	mu    sync.Mutex
	calls []call
	res   any
	err   error
}

func (r *recorder) Invoke(_ context.Context, method string, args any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{Method: method, Args: args})
	return r.res, r.err
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func scenarioKeyMap() keymap.KeyMap {
	return keymap.NewKeyMap(
		keymap.KeyBinding{Index: 0, Caption: "foo", Component: "foo", Method: "doThing", Args: map[string]any{}},
		keymap.KeyBinding{Index: 8, Caption: "bar", Component: "bar", Method: "doThing", Args: map[string]any{}},
	)
}

func TestMatchesComponent(t *testing.T) {
	tests := []struct {
		id, name string
		want     bool
	}{
		{"org/foo", "foo", true},
		{"a/b/foo", "foo", true},
		{"foo", "foo", true},
		{"org/xfoo", "foo", false},
		{"org/foo/bar", "foo", false},
		{"org/foo", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesComponent(tt.id, tt.name), "%s vs %s", tt.id, tt.name)
	}
}

func TestTable_Scenario(t *testing.T) {
	h1, h2 := &recorder{}, &recorder{}
	d := NewDispatcher(context.Background())
	d.Install(NewTable(scenarioKeyMap(), Dependencies{"org/foo": h1, "org/bar": h2}))

	d.OnKeyEvent(0, true)
	d.OnKeyEvent(8, true)
	d.OnKeyEvent(3, true)
	d.Wait()

	assert.Equal(t, []call{{Method: "doThing", Args: map[string]any{}}}, h1.Calls())
	assert.Equal(t, []call{{Method: "doThing", Args: map[string]any{}}}, h2.Calls())
}

func TestTable_MissingDependency(t *testing.T) {
	h1 := &recorder{}
	d := NewDispatcher(context.Background())
	table := NewTable(scenarioKeyMap(), Dependencies{"org/foo": h1})
	d.Install(table)

	_, err := table.Target(8)
	require.ErrorIs(t, err, ErrDependencyUnresolved)
	assert.Equal(t, []string{"bar"}, table.Unresolved())

	d.OnKeyEvent(8, true)
	d.OnKeyEvent(0, true)
	d.Wait()

	assert.Len(t, h1.Calls(), 1)
}

func TestTable_UnmappedKey(t *testing.T) {
	table := NewTable(scenarioKeyMap(), Dependencies{})
	_, err := table.Target(3)
	require.ErrorIs(t, err, ErrUnmappedKey)
}

func TestTable_FirstSortedMatchWins(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	table := NewTable(scenarioKeyMap(), Dependencies{"zeta/foo": b, "alpha/foo": a})

	for range 10 {
		target, err := table.Target(0)
		require.NoError(t, err)
		assert.Equal(t, "alpha/foo", target.DependencyID)
		assert.Same(t, a, target.Handle)
	}
}

func TestTable_SnapshotsDependencies(t *testing.T) {
	deps := Dependencies{"org/foo": &recorder{}}
	table := NewTable(scenarioKeyMap(), deps)
	deps["org/bar"] = &recorder{}

	_, err := table.Target(8)
	require.ErrorIs(t, err, ErrDependencyUnresolved)
}

func TestDispatcher_ReleaseNeverInvokes(t *testing.T) {
	h1, h2 := &recorder{}, &recorder{}
	d := NewDispatcher(context.Background())
	d.Install(NewTable(scenarioKeyMap(), Dependencies{"org/foo": h1, "org/bar": h2}))

	for k := -1; k < 16; k++ {
		d.OnKeyEvent(k, false)
	}
	d.Wait()

	assert.Empty(t, h1.Calls())
	assert.Empty(t, h2.Calls())
}

func TestDispatcher_NoTableInstalled(t *testing.T) {
	d := NewDispatcher(nil) //nolint:staticcheck // nil context falls back to Background.
	assert.Nil(t, d.Table())
	assert.NotPanics(t, func() { d.OnKeyEvent(0, true) })
	d.Wait()
}

func TestDispatcher_DoesNotBlockOnInvocation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan int, 2)
	slow := InvocableFunc(func(ctx context.Context, method string, args any) (any, error) {
		started <- args.(int)
		<-release
		return nil, nil
	})

	km := keymap.NewKeyMap(
		keymap.KeyBinding{Index: 0, Component: "slow", Method: "wait", Args: 0},
		keymap.KeyBinding{Index: 1, Component: "slow", Method: "wait", Args: 1},
	)
	d := NewDispatcher(context.Background())
	d.Install(NewTable(km, Dependencies{"org/slow": slow}))

	returned := make(chan struct{})
	go func() {
		d.OnKeyEvent(0, true)
		d.OnKeyEvent(1, true)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("event delivery blocked on an in-flight invocation")
	}

	got := map[int]bool{}
	for range 2 {
		select {
		case k := <-started:
			got[k] = true
		case <-time.After(2 * time.Second):
			t.Fatal("invocations did not run concurrently")
		}
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, got)

	close(release)
	d.Wait()
}

func TestDispatcher_InvocationFailureIsAbsorbed(t *testing.T) {
	failing := &recorder{err: errors.New("boom")}
	ok := &recorder{res: "done"}
	d := NewDispatcher(context.Background())
	d.Install(NewTable(scenarioKeyMap(), Dependencies{"org/foo": failing, "org/bar": ok}))

	d.OnKeyEvent(0, true)
	d.OnKeyEvent(8, true)
	d.OnKeyEvent(0, true)
	d.Wait()

	assert.Len(t, failing.Calls(), 2)
	assert.Len(t, ok.Calls(), 1)
}

func TestDispatcher_PanickingHandleIsAbsorbed(t *testing.T) {
	d := NewDispatcher(context.Background())
	d.Install(NewTable(scenarioKeyMap(), Dependencies{
		"org/foo": InvocableFunc(func(context.Context, string, any) (any, error) { panic("bad component") }),
	}))

	assert.NotPanics(t, func() {
		d.OnKeyEvent(0, true)
		d.Wait()
	})
}

func TestDispatcher_InstallSwapsWholeTable(t *testing.T) {
	oldFoo, newFoo, newBaz := &recorder{}, &recorder{}, &recorder{}
	d := NewDispatcher(context.Background())

	first := NewTable(scenarioKeyMap(), Dependencies{"org/foo": oldFoo})
	assert.Nil(t, d.Install(first))

	second := NewTable(keymap.NewKeyMap(
		keymap.KeyBinding{Index: 0, Component: "baz", Method: "other"},
	), Dependencies{"org/foo": newFoo, "org/baz": newBaz})
	assert.Same(t, first, d.Install(second))
	assert.Same(t, second, d.Table())

	d.OnKeyEvent(0, true)
	d.OnKeyEvent(8, true)
	d.Wait()

	assert.Empty(t, oldFoo.Calls())
	assert.Empty(t, newFoo.Calls())
	assert.Equal(t, []call{{Method: "other"}}, newBaz.Calls())
}

func TestDispatcher_ConcurrentInstallAndEvents(t *testing.T) {
	// Every table binds key 0 to a component that only exists in that table's
	// dependency map, so a mixed view would surface as an unresolved dependency.
	var invoked sync.WaitGroup
	counts := make([]int, 8)
	var mu sync.Mutex
	tables := make([]*Table, len(counts))
	for i := range tables {
		name := string(rune('a' + i))
		tables[i] = NewTable(
			keymap.NewKeyMap(keymap.KeyBinding{Index: 0, Component: name, Method: "m"}),
			Dependencies{"org/" + name: InvocableFunc(func(context.Context, string, any) (any, error) {
				mu.Lock()
				counts[i]++
				mu.Unlock()
				invoked.Done()
				return nil, nil
			})},
		)
	}

	d := NewDispatcher(context.Background())
	d.Install(tables[0])

	const presses = 400
	invoked.Add(presses)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range presses {
			d.Install(tables[i%len(tables)])
		}
	}()
	for range presses {
		target, err := d.Table().Target(0)
		require.NoError(t, err)
		require.NotNil(t, target.Handle)
		d.OnKeyEvent(0, true)
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		invoked.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("not every press produced exactly one invocation")
	}
	d.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, presses, total)
}

func TestDispatcher_ClosedDropsEvents(t *testing.T) {
	h := &recorder{}
	d := NewDispatcher(context.Background())
	d.Install(NewTable(scenarioKeyMap(), Dependencies{"org/foo": h}))
	d.Close()
	assert.True(t, d.Closed())

	d.OnKeyEvent(0, true)
	d.Wait()
	assert.Empty(t, h.Calls())
}

func TestDispatcher_Determinism(t *testing.T) {
	h1 := &recorder{}
	table := NewTable(scenarioKeyMap(), Dependencies{"org/foo": h1, "other/foo": &recorder{}})
	first, err := table.Target(0)
	require.NoError(t, err)
	for range 20 {
		again, err := table.Target(0)
		require.NoError(t, err)
		assert.Equal(t, first.Binding, again.Binding)
		assert.Same(t, first.Handle.(*recorder), again.Handle.(*recorder))
	}
}
