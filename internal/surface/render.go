package surface

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ensigniasec/deck-bridge/internal/keymap"
	"github.com/ensigniasec/deck-bridge/internal/palette"
)

// Renderer paints key maps onto a surface.
type Renderer struct {
	face font.Face
}

// NewRenderer returns a renderer using the built-in 7x13 bitmap face.
func NewRenderer() *Renderer {
	return &Renderer{face: basicfont.Face7x13}
}

// RenderReport summarizes one Render call.
type RenderReport struct {
	Rendered []int
	Cleared  []int
	Failed   map[int]error
}

// OK reports whether every key rendered.
func (r RenderReport) OK() bool {
	return len(r.Failed) == 0
}

// Unresolved reports whether a component has no dependency to dispatch to.
// A nil Unresolved treats every component as resolved.
type Unresolved func(component string) bool

// Marker face colors for keys whose component is unresolved.
const (
	markerBackground = "lightgray"
	markerCross      = "darkred"
	markerText       = "black"
)

// Render draws every binding of next, in declaration order, and blanks keys that
// prev bound but next does not. Keys bound to an unresolved component get the
// marker face. A failing key is logged and skipped; it never stops the remaining keys.
func (r *Renderer) Render(s Surface, prev, next keymap.KeyMap, unresolved Unresolved) RenderReport {
	report := RenderReport{Failed: map[int]error{}}

	keep := next.Indexes()
	for _, idx := range prev.Indexes() {
		if slices.Contains(keep, idx) {
			continue
		}
		if err := r.Blank(s, idx); err != nil {
			logrus.WithField("key", idx).Errorf("failed to clear key: %v", err)
			report.Failed[idx] = err
			continue
		}
		report.Cleared = append(report.Cleared, idx)
	}

	for _, b := range next.Bindings() {
		if err := r.RenderBinding(s, b, unresolved); err != nil {
			logrus.WithFields(logrus.Fields{"key": b.Index, "text": b.Caption}).Errorf("failed to render key: %v", err)
			report.Failed[b.Index] = err
			continue
		}
		delete(report.Failed, b.Index)
		report.Rendered = append(report.Rendered, b.Index)
	}
	return report
}

// RenderBinding draws b, or the marker face when its component is unresolved.
func (r *Renderer) RenderBinding(s Surface, b keymap.KeyBinding, unresolved Unresolved) error {
	if unresolved != nil && unresolved(b.Component) {
		return r.RenderUnresolved(s, b)
	}
	return r.RenderKey(s, b)
}

// RenderUnresolved draws a crossed-out face captioned with the missing component's name.
func (r *Renderer) RenderUnresolved(s Surface, b keymap.KeyBinding) error {
	canvas := s.CreateKeyImage(palette.MustParse(markerBackground))
	drawCross(canvas, palette.MustParse(markerCross))
	r.drawCaption(canvas, b.Component, markerText)
	return push(s, b.Index, canvas)
}

// drawCross strokes both diagonals of dst, two pixels wide.
func drawCross(dst draw.Image, c color.Color) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}
	for x := 0; x < w; x++ {
		y := x * h / w
		for _, dy := range []int{0, 1} {
			if y+dy < h {
				dst.Set(b.Min.X+x, b.Min.Y+y+dy, c)
				dst.Set(b.Max.X-1-x, b.Min.Y+y+dy, c)
			}
		}
	}
}

// RenderKey draws one binding's face and pushes it to its key.
func (r *Renderer) RenderKey(s Surface, b keymap.KeyBinding) error {
	bg, err := palette.Parse(b.Background)
	if err != nil {
		return err
	}
	canvas := s.CreateKeyImage(bg)
	r.drawCaption(canvas, b.Caption, b.TextColor)
	return push(s, b.Index, canvas)
}

// Blank paints a key plain black.
func (r *Renderer) Blank(s Surface, index int) error {
	return push(s, index, s.CreateKeyImage(palette.MustParse(palette.DefaultBackground)))
}

func push(s Surface, index int, canvas image.Image) error {
	native, err := s.ConvertToNative(canvas)
	if err != nil {
		return fmt.Errorf("converting key %d: %w", index, err)
	}
	if err := s.SetKeyImage(index, native); err != nil {
		return fmt.Errorf("setting key %d: %w", index, err)
	}
	return nil
}

// drawCaption centers caption on dst, one line per "\n".
func (r *Renderer) drawCaption(dst draw.Image, caption, textColor string) {
	if caption == "" {
		return
	}
	lines := strings.Split(caption, "\n")
	m := r.face.Metrics()
	lineHeight := m.Height.Ceil()
	bounds := dst.Bounds()
	top := bounds.Min.Y + (bounds.Dy()-lineHeight*len(lines))/2

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(palette.OrDefault(textColor, palette.DefaultText)),
		Face: r.face,
	}
	for i, line := range lines {
		width := d.MeasureString(line).Ceil()
		x := bounds.Min.X + (bounds.Dx()-width)/2
		y := top + i*lineHeight + m.Ascent.Ceil()
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
	}
}

// ApplyBrightness clamps percent to 0..100 and applies it.
func ApplyBrightness(s Surface, percent int) error {
	percent = max(0, min(100, percent))
	if err := s.SetBrightness(percent); err != nil {
		return fmt.Errorf("setting brightness %d: %w", percent, err)
	}
	return nil
}
