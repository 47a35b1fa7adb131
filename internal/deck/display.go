package deck

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"

	"github.com/ensigniasec/deck-bridge/internal/keymap"
	"github.com/ensigniasec/deck-bridge/internal/palette"
)

// ErrNoUpdates is returned by UpdateDisplay when the request changes nothing.
var ErrNoUpdates = errors.New("no display updates provided")

// displayUpdate is the update_display request. Keys are indexed by key number.
type displayUpdate struct {
	Brightness *int                      `mapstructure:"brightness"`
	Keys       map[string]map[string]any `mapstructure:"keys"`
}

// keyUpdate holds the fields of one key that an update overrides. Unset fields
// keep the key's current value.
type keyUpdate struct {
	Text      *string `mapstructure:"text"`
	Color     *string `mapstructure:"color"`
	TextColor *string `mapstructure:"text_color"`
	Component *string `mapstructure:"component"`
	Method    *string `mapstructure:"method"`
	Args      any     `mapstructure:"args"`
}

func decodeUpdate(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// UpdateDisplay changes the faces or bindings of individual keys on the page shown,
// and optionally the brightness, without a reconfiguration:
//
//	{"brightness": 80, "keys": {"3": {"text": "on", "color": "green"}}}
//
// Every key is validated before anything changes, so a bad entry leaves the display
// and the installed table as they were. A key that is not bound yet needs at least a
// component and a method. The update lasts until the next reconfiguration.
func (d *Deck) UpdateDisplay(args any) (map[string]any, error) {
	var req displayUpdate
	if err := decodeUpdate(args, &req); err != nil {
		return nil, fmt.Errorf("%s: %w", MethodUpdateDisplay, err)
	}
	if req.Brightness == nil && len(req.Keys) == 0 {
		return nil, ErrNoUpdates
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return nil, err
	}

	current := d.dispatcher.Table().KeyMap()
	changed, err := pendingBindings(current, req.Keys)
	if err != nil {
		return nil, err
	}

	if req.Brightness != nil {
		if err := d.setBrightness(*req.Brightness); err != nil {
			return nil, err
		}
	}

	indexes := make([]int, 0, len(changed))
	if len(changed) > 0 {
		km := current
		for _, b := range changed {
			km = km.With(b)
			indexes = append(indexes, b.Index)
		}
		t := d.install(km)
		unresolved := unresolvedIn(t)
		for _, b := range changed {
			if err := d.renderer.RenderBinding(d.dev, b, unresolved); err != nil {
				logrus.WithFields(logrus.Fields{"key": b.Index, "text": b.Caption}).Errorf("failed to render key: %v", err)
			}
		}
		d.layout = d.layout.WithKeys(d.page, km)
	}

	logrus.WithFields(logrus.Fields{
		"keys":       indexes,
		"brightness": d.brightness,
	}).Info("display updated")
	return map[string]any{"brightness": d.brightness, "keys": indexes}, nil
}

// pendingBindings merges each key update onto the key's current binding, in key order.
func pendingBindings(current keymap.KeyMap, updates map[string]map[string]any) ([]keymap.KeyBinding, error) {
	type pending struct {
		index  int
		fields map[string]any
	}
	list := make([]pending, 0, len(updates))
	for raw, fields := range updates {
		index, ok := keymap.IntValue(raw)
		if !ok || index < 0 {
			return nil, keymap.ValidationError{
				Field: keymap.FieldKey, Entry: -1, Err: keymap.ErrInvalidKeyIndex,
				Detail: fmt.Sprintf("cannot use %q as a key index", raw),
			}
		}
		list = append(list, pending{index: index, fields: fields})
	}
	slices.SortFunc(list, func(a, b pending) int { return a.index - b.index })

	out := make([]keymap.KeyBinding, 0, len(list))
	for _, p := range list {
		var u keyUpdate
		if err := decodeUpdate(p.fields, &u); err != nil {
			return nil, fmt.Errorf("key %d: %w", p.index, err)
		}
		b, ok := current.Lookup(p.index)
		if !ok {
			b = keymap.KeyBinding{
				Index:      p.index,
				Background: palette.DefaultBackground,
				TextColor:  palette.DefaultText,
			}
		}
		if u.Text != nil {
			b.Caption = *u.Text
		}
		if u.Color != nil {
			b.Background = *u.Color
		}
		if u.TextColor != nil {
			b.TextColor = *u.TextColor
		}
		if u.Component != nil {
			b.Component = *u.Component
		}
		if u.Method != nil {
			b.Method = *u.Method
		}
		if _, ok := p.fields[keymap.FieldArgs]; ok {
			b.Args = u.Args
		}
		if err := keymap.CheckBinding(b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
