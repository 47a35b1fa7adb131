// Package deck owns one key surface: it attaches the device, applies configurations
// to it and feeds its key events to a dispatcher.
package deck

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ensigniasec/deck-bridge/internal/dispatch"
	"github.com/ensigniasec/deck-bridge/internal/keymap"
	"github.com/ensigniasec/deck-bridge/internal/surface"
)

var (
	ErrClosed         = errors.New("deck is closed")
	ErrNotReady       = errors.New("deck has no configuration installed")
	ErrUnknownPage    = errors.New("unknown page")
	ErrUnknownCommand = errors.New("unknown command")
)

// Deck is the bridge between a surface and the components its keys invoke.
//
// Reconfigure, page changes and Close run on the control path and are serialized
// by mu. Key events never take mu: they go straight to the dispatcher, which only
// reads the installed table.
type Deck struct {
	name       string
	discover   surface.Discoverer
	renderer   *surface.Renderer
	dispatcher *dispatch.Dispatcher

	mu         sync.Mutex
	state      State
	dev        surface.Surface
	layout     *keymap.Layout
	page       string
	deps       dispatch.Dependencies
	brightness int
}

// New returns an Unbound deck. name is the deck's own component name: bindings
// whose component equals it target the deck itself. Invocations run with ctx.
func New(ctx context.Context, name string, d surface.Discoverer) *Deck {
	return &Deck{
		name:       name,
		discover:   d,
		renderer:   surface.NewRenderer(),
		dispatcher: dispatch.NewDispatcher(ctx),
		brightness: keymap.DefaultBrightness,
	}
}

func (d *Deck) Name() string { return d.name }

// Dispatcher returns the dispatcher fed by the device's key callback.
func (d *Deck) Dispatcher() *dispatch.Dispatcher { return d.dispatcher }

func (d *Deck) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Device returns the attached surface, or nil while Unbound.
func (d *Deck) Device() surface.Surface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev
}

// Page returns the page shown, or "" when the configuration has no pages.
func (d *Deck) Page() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

// Brightness returns the brightness last applied.
func (d *Deck) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

// Reconfigure applies a configuration. It validates attrs first: an invalid
// configuration returns a keymap.ValidationError and leaves the installed table,
// faces and brightness untouched. An Unbound deck attaches the first visual device;
// when there is none, the error matches surface.ErrDeviceNotFound and the deck
// stays Unbound so a later Reconfigure can retry.
//
// The page shown stays put when the new configuration still has it; otherwise
// the configuration's initial page is shown.
//
// Components that deps cannot satisfy do not fail the call. Their keys get a
// crossed-out face and stay unreachable until a reconfiguration supplies them.
func (d *Deck) Reconfigure(ctx context.Context, attrs keymap.Attributes, deps dispatch.Dependencies) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == Closed {
		return ErrClosed
	}

	layout, err := keymap.Parse(attrs)
	if err != nil {
		return err
	}

	if d.state == Unbound {
		if err := d.attach(ctx); err != nil {
			return err
		}
	}

	d.layout = layout
	d.deps = d.withSelf(deps)
	km := layout.Initial()
	if page, ok := layout.Page(d.page); ok {
		km = page
	} else {
		d.page = layout.InitialPage
	}

	d.applyBrightness(layout.Brightness)
	t := d.show(km)
	d.state = Ready

	if missing := t.Unresolved(); len(missing) > 0 {
		logrus.WithField("components", missing).Warn("some components are not available yet; their keys do nothing until they are")
	}
	logrus.WithFields(logrus.Fields{
		"keys":       t.KeyMap().Len(),
		"page":       d.page,
		"brightness": layout.Brightness,
	}).Info("configuration applied")
	return nil
}

// attach moves Unbound to Bound.
func (d *Deck) attach(ctx context.Context) error {
	dev, err := surface.FirstVisual(ctx, d.discover)
	if err != nil {
		return err
	}
	info := dev.Info()
	if err := dev.Open(); err != nil {
		return fmt.Errorf("opening %s %s: %w", info.Type, info.Serial, err)
	}
	if err := dev.Reset(); err != nil {
		return errors.Join(fmt.Errorf("resetting %s %s: %w", info.Type, info.Serial, err), dev.Close())
	}
	dev.SetKeyCallback(func(_ surface.Surface, index int, pressed bool) {
		d.dispatcher.OnKeyEvent(index, pressed)
	})

	logrus.WithFields(logrus.Fields{
		"type":     info.Type,
		"serial":   info.Serial,
		"firmware": info.Firmware,
		"keys":     info.Keys,
	}).Info("surface attached")

	d.dev = dev
	d.state = Bound
	return nil
}

// withSelf copies deps and adds the deck under its own name unless something
// already claims that identifier.
func (d *Deck) withSelf(deps dispatch.Dependencies) dispatch.Dependencies {
	out := deps.Clone()
	if d.name != "" {
		if _, ok := out[d.name]; !ok {
			out[d.name] = d
		}
	}
	return out
}

func (d *Deck) applyBrightness(percent int) {
	if err := surface.ApplyBrightness(d.dev, percent); err != nil {
		logrus.Warnf("failed to apply brightness: %v", err)
		return
	}
	d.brightness = percent
}

// show paints km, blanking the faces the previous table used, then installs it.
func (d *Deck) show(km keymap.KeyMap) *dispatch.Table {
	var prev keymap.KeyMap
	if t := d.dispatcher.Table(); t != nil {
		prev = t.KeyMap()
	}
	t := dispatch.NewTable(km, d.deps)
	if report := d.renderer.Render(d.dev, prev, km, unresolvedIn(t)); !report.OK() {
		logrus.Warnf("%d of %d keys failed to render", len(report.Failed), km.Len())
	}
	d.dispatcher.Install(t)
	return t
}

func (d *Deck) install(km keymap.KeyMap) *dispatch.Table {
	t := dispatch.NewTable(km, d.deps)
	d.dispatcher.Install(t)
	return t
}

func unresolvedIn(t *dispatch.Table) surface.Unresolved {
	return func(component string) bool {
		_, _, ok := t.Resolve(component)
		return !ok
	}
}

// SetPage shows the named page, keeping the current dependencies.
func (d *Deck) SetPage(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	km, ok := d.layout.Page(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownPage, name)
	}
	d.page = name
	d.show(km)
	logrus.WithField("page", name).Info("page changed")
	return nil
}

// SetBrightness applies percent, clamped to 0..100, until the next reconfiguration.
func (d *Deck) SetBrightness(percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	return d.setBrightness(percent)
}

func (d *Deck) setBrightness(percent int) error {
	percent = max(0, min(100, percent))
	if err := surface.ApplyBrightness(d.dev, percent); err != nil {
		return err
	}
	d.brightness = percent
	return nil
}

func (d *Deck) usable() error {
	switch d.state {
	case Closed:
		return ErrClosed
	case Ready:
		return nil
	}
	return ErrNotReady
}

// Close stops dispatching, blanks the device and releases it. In-flight
// invocations are left to finish. Closing twice is a no-op.
func (d *Deck) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == Closed {
		return nil
	}
	d.dispatcher.Close()
	d.state = Closed

	if d.dev == nil {
		return nil
	}
	dev := d.dev
	d.dev = nil
	dev.SetKeyCallback(nil)
	err := errors.Join(dev.Reset(), dev.Close())
	if err != nil {
		return fmt.Errorf("closing surface: %w", err)
	}
	logrus.WithField("serial", dev.Info().Serial).Info("surface released")
	return nil
}
