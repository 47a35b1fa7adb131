package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dispatcher turns key events into invocations on the currently installed Table.
//
// OnKeyEvent is meant to be the surface's key callback: it never blocks on an
// invocation. Each press runs its invocation on its own goroutine, so presses can
// complete out of order.
type Dispatcher struct {
	ctx context.Context

	table    atomic.Pointer[Table]
	closed   atomic.Bool
	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher with no table installed. Invocations run with ctx;
// a nil ctx means context.Background().
func NewDispatcher(ctx context.Context) *Dispatcher {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Dispatcher{ctx: ctx}
}

// Install publishes t to the event path and returns the table it replaces.
// In-flight invocations keep using the table they started with.
func (d *Dispatcher) Install(t *Table) *Table {
	return d.table.Swap(t)
}

// Table returns the installed table, or nil before the first Install.
func (d *Dispatcher) Table() *Table {
	return d.table.Load()
}

// OnKeyEvent handles one key transition. Releases are ignored; a press looks up the
// binding in the installed table and starts the invocation without waiting for it.
func (d *Dispatcher) OnKeyEvent(index int, pressed bool) {
	if !pressed || d.closed.Load() {
		return
	}

	t := d.table.Load()
	if t == nil {
		logrus.WithField("key", index).Debug("key pressed before any key map was installed")
		return
	}

	target, err := t.Target(index)
	switch {
	case errors.Is(err, ErrUnmappedKey):
		logrus.WithField("key", index).Debug("no mapping for key")
		return
	case errors.Is(err, ErrDependencyUnresolved):
		logrus.WithFields(logrus.Fields{
			"key":       index,
			"component": target.Binding.Component,
		}).Warnf("could not find dependency for %s", target.Binding.Component)
		return
	case err != nil:
		logrus.WithField("key", index).Errorf("dispatch failed: %v", err)
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.invoke(target)
	}()
}

// invoke runs one invocation and logs its outcome.
func (d *Dispatcher) invoke(target Target) {
	b := target.Binding
	log := logrus.WithFields(logrus.Fields{
		"invocation": uuid.NewString(),
		"key":        b.Index,
		"component":  b.Component,
		"dependency": target.DependencyID,
		"method":     b.Method,
	})

	log.Debug("invoking")
	start := time.Now()
	res, err := safeInvoke(d.ctx, target.Handle, b.Method, b.Args)
	log = log.WithField("elapsed", time.Since(start).Round(time.Millisecond))
	if err != nil {
		log.WithError(err).Error("invocation failed")
		return
	}
	log.Infof("invocation result: %v", res)
}

func safeInvoke(ctx context.Context, h Invocable, method string, args any) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invocation panicked: %v", r)
		}
	}()
	return h.Invoke(ctx, method, args)
}

// Wait blocks until every invocation started so far has returned.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Close stops accepting events. In-flight invocations are left to finish on their own.
func (d *Dispatcher) Close() {
	d.closed.Store(true)
}

// Closed reports whether Close has been called.
func (d *Dispatcher) Closed() bool {
	return d.closed.Load()
}
