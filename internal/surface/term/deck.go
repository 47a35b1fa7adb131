// Package term renders a key surface in the terminal with Bubble Tea. Each key face
// is drawn with half-block cells and pressed with a keyboard shortcut.
package term

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ensigniasec/deck-bridge/internal/surface"
)

// Faces are 28x14 pixels: four caption characters wide, one text line high,
// drawn as 28 columns by 7 rows of half blocks.
const (
	faceWidth  = 28
	faceHeight = 14
)

// shortcuts lists the keyboard key for each face, in key index order.
const shortcuts = "1234567890qwertyuiopasdfghjklzxcvbnm"

var ErrNotOpen = errors.New("terminal deck not open")

// Deck is a surface rendered by a Bubble Tea program. The program reads faces
// under mu; the bridge writes them from its control path.
type Deck struct {
	mu         sync.Mutex
	info       surface.DeviceInfo
	open       bool
	brightness int
	faces      map[int]surface.NativeImage
	cb         surface.KeyCallback
	program    *tea.Program
	logOut     io.Writer
}

// New returns a terminal deck with keys faces laid out in rows of columns.
// Keys beyond the available shortcuts cannot be pressed.
func New(keys, columns int) *Deck {
	if columns <= 0 {
		columns = 5
	}
	return &Deck{
		info: surface.DeviceInfo{
			Type:     "Terminal Deck",
			Serial:   "TERM0001",
			Firmware: "tui",
			Keys:     keys,
			Columns:  columns,
		},
		brightness: 100,
		faces:      map[int]surface.NativeImage{},
		logOut:     io.Discard,
	}
}

// WithLogOutput sets where log output goes while the program owns the terminal.
func (d *Deck) WithLogOutput(w io.Writer) *Deck {
	if w != nil {
		d.logOut = w
	}
	return d
}

// Discoverer reports d as the only attached device.
func (d *Deck) Discoverer() surface.Discoverer {
	return surface.DiscovererFunc(func(_ context.Context) ([]surface.Surface, error) {
		return []surface.Surface{d}, nil
	})
}

func (d *Deck) Info() surface.DeviceInfo { return d.info }

func (d *Deck) Visual() bool { return true }

func (d *Deck) KeyImageSize() image.Point { return image.Pt(faceWidth, faceHeight) }

func (d *Deck) Open() error {
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	return nil
}

func (d *Deck) Reset() error {
	d.mu.Lock()
	d.faces = map[int]surface.NativeImage{}
	d.mu.Unlock()
	d.refresh()
	return nil
}

func (d *Deck) Close() error {
	d.mu.Lock()
	d.open = false
	d.cb = nil
	p := d.program
	d.mu.Unlock()
	if p != nil {
		p.Quit()
	}
	return nil
}

func (d *Deck) SetBrightness(percent int) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	d.brightness = percent
	d.mu.Unlock()
	d.refresh()
	return nil
}

func (d *Deck) SetKeyCallback(cb surface.KeyCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

func (d *Deck) CreateKeyImage(background color.Color) draw.Image {
	return surface.NewCanvas(d.KeyImageSize(), background)
}

func (d *Deck) ConvertToNative(img image.Image) (surface.NativeImage, error) {
	return surface.EncodeRGB(img, d.KeyImageSize())
}

func (d *Deck) SetKeyImage(index int, img surface.NativeImage) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	if index < 0 || index >= d.info.Keys {
		d.mu.Unlock()
		return fmt.Errorf("key %d outside 0..%d", index, d.info.Keys-1)
	}
	d.faces[index] = img
	d.mu.Unlock()
	d.refresh()
	return nil
}

// press reports a full key stroke; terminals do not deliver key-up events.
func (d *Deck) press(index int) {
	d.mu.Lock()
	cb, open := d.cb, d.open
	d.mu.Unlock()
	if cb == nil || !open {
		return
	}
	cb(d, index, true)
	cb(d, index, false)
}

// snapshot copies what the view needs.
func (d *Deck) snapshot() (map[int]surface.NativeImage, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	faces := make(map[int]surface.NativeImage, len(d.faces))
	for k, v := range d.faces {
		faces[k] = v
	}
	return faces, d.brightness
}

// refresh asks a running program to redraw. Send blocks until the program reads
// it, so it runs on its own goroutine.
func (d *Deck) refresh() {
	d.mu.Lock()
	p := d.program
	d.mu.Unlock()
	if p != nil {
		go p.Send(refreshMsg{})
	}
}
