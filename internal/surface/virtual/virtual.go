// Package virtual provides an in-memory key surface. It backs the headless run
// mode and the tests.
package virtual

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ensigniasec/deck-bridge/internal/surface"
)

// Default geometry matches a 15-key deck with 72px faces.
const (
	DefaultKeys    = 15
	DefaultColumns = 5
	DefaultKeySize = 72
)

var (
	ErrNotOpen     = errors.New("device not open")
	ErrKeyOutRange = errors.New("key index out of range")
)

// Deck is an in-memory surface. All methods are safe for concurrent use.
type Deck struct {
	mu         sync.Mutex
	info       surface.DeviceInfo
	visual     bool
	size       image.Point
	open       bool
	closed     bool
	resets     int
	brightness int
	images     map[int]surface.NativeImage
	failKeys   map[int]error
	cb         surface.KeyCallback
}

// Option configures a Deck.
type Option func(*Deck)

// WithGeometry sets the key count and grid columns.
func WithGeometry(keys, columns int) Option {
	return func(d *Deck) {
		d.info.Keys = keys
		d.info.Columns = columns
	}
}

// WithKeySize sets the per-key canvas size.
func WithKeySize(w, h int) Option {
	return func(d *Deck) { d.size = image.Pt(w, h) }
}

// WithSerial sets the reported serial number.
func WithSerial(serial string) Option {
	return func(d *Deck) { d.info.Serial = serial }
}

// NonVisual makes the deck report no displays, so discovery skips it.
func NonVisual() Option {
	return func(d *Deck) { d.visual = false }
}

// FailKey makes SetKeyImage for index return err.
func FailKey(index int, err error) Option {
	return func(d *Deck) { d.failKeys[index] = err }
}

// New returns a closed virtual deck.
func New(opts ...Option) *Deck {
	d := &Deck{
		info: surface.DeviceInfo{
			Type:     "Virtual Deck",
			Serial:   "VIRTUAL0001",
			Firmware: "0.0.0",
			Keys:     DefaultKeys,
			Columns:  DefaultColumns,
		},
		visual:   true,
		size:     image.Pt(DefaultKeySize, DefaultKeySize),
		images:   map[int]surface.NativeImage{},
		failKeys: map[int]error{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discoverer reports decks as the attached devices.
func Discoverer(decks ...*Deck) surface.Discoverer {
	return surface.DiscovererFunc(func(context.Context) ([]surface.Surface, error) {
		out := make([]surface.Surface, len(decks))
		for i, d := range decks {
			out[i] = d
		}
		return out, nil
	})
}

func (d *Deck) Info() surface.DeviceInfo { return d.info }

func (d *Deck) Visual() bool { return d.visual }

func (d *Deck) KeyImageSize() image.Point { return d.size }

func (d *Deck) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("device already closed")
	}
	d.open = true
	return nil
}

func (d *Deck) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrNotOpen
	}
	d.resets++
	d.images = map[int]surface.NativeImage{}
	return nil
}

func (d *Deck) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.closed = true
	d.cb = nil
	return nil
}

func (d *Deck) SetBrightness(percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrNotOpen
	}
	d.brightness = percent
	return nil
}

func (d *Deck) SetKeyCallback(cb surface.KeyCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cb = cb
}

func (d *Deck) CreateKeyImage(background color.Color) draw.Image {
	return surface.NewCanvas(d.size, background)
}

func (d *Deck) ConvertToNative(img image.Image) (surface.NativeImage, error) {
	return surface.EncodeRGB(img, d.size)
}

func (d *Deck) SetKeyImage(index int, img surface.NativeImage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrNotOpen
	}
	if index < 0 || index >= d.info.Keys {
		return fmt.Errorf("%w: %d", ErrKeyOutRange, index)
	}
	if err := d.failKeys[index]; err != nil {
		return err
	}
	d.images[index] = img
	return nil
}

// Press delivers a key-down event to the installed callback.
func (d *Deck) Press(index int) { d.emit(index, true) }

// Release delivers a key-up event.
func (d *Deck) Release(index int) { d.emit(index, false) }

// Tap presses and releases index.
func (d *Deck) Tap(index int) {
	d.Press(index)
	d.Release(index)
}

func (d *Deck) emit(index int, pressed bool) {
	d.mu.Lock()
	cb, open := d.cb, d.open
	d.mu.Unlock()
	if cb == nil || !open {
		return
	}
	cb(d, index, pressed)
}

// Image decodes the face last pushed to index.
func (d *Deck) Image(index int) (*image.RGBA, bool) {
	d.mu.Lock()
	data, ok := d.images[index]
	d.mu.Unlock()
	if !ok {
		return nil, false
	}
	img, err := surface.DecodeRGB(data, d.size)
	if err != nil {
		return nil, false
	}
	return img, true
}

// Brightness returns the last applied brightness.
func (d *Deck) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

// IsOpen reports whether the deck is open.
func (d *Deck) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Resets counts Reset calls.
func (d *Deck) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Feed taps one key per line of r until EOF or ctx is done. Blank lines and lines
// starting with '#' are skipped; anything else that is not a key index is logged.
func (d *Deck) Feed(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx, err := strconv.Atoi(line)
		if err != nil {
			logrus.Warnf("ignoring input %q: not a key index", line)
			continue
		}
		d.Tap(idx)
	}
	return sc.Err()
}
