// Package palette resolves the color names used in key-map configuration.
//
// Colors are either CSS/SVG names ("black", "steelblue") or hex triplets
// ("#1e90ff", "#fff").
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Default colors applied when a key entry leaves them unset.
const (
	DefaultBackground = "black"
	DefaultText       = "white"
)

// ErrUnknownColor is returned for names that are neither a known color name nor a hex value.
var ErrUnknownColor = errors.New("unknown color")

// Parse resolves name to a color. Matching of names is case-insensitive.
func Parse(name string) (color.Color, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownColor)
	}
	if c, ok := colornames.Map[n]; ok {
		return c, nil
	}
	if strings.HasPrefix(n, "#") {
		c, err := colorful.Hex(n)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrUnknownColor, name, err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownColor, name)
}

// Known reports whether name parses.
func Known(name string) bool {
	_, err := Parse(name)
	return err == nil
}

// MustParse is Parse for package-level defaults; it panics on unknown names.
func MustParse(name string) color.Color {
	c, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return c
}

// OrDefault parses name, falling back to def when name is empty or unknown.
func OrDefault(name, def string) color.Color {
	if c, err := Parse(name); err == nil {
		return c
	}
	return MustParse(def)
}
