package deck

import (
	"context"
	"fmt"

	"github.com/ensigniasec/deck-bridge/internal/keymap"
)

// Methods a key bound to the deck itself can invoke.
const (
	MethodSetPage       = "set_page"
	MethodSetBrightness = "set_brightness"
	MethodDoCommand     = "do_command"
	MethodUpdateDisplay = "update_display"
)

// Invoke makes the deck a dispatch target.
//
//	set_page        {"page": "name"} or "name"
//	set_brightness  {"brightness": 80} or 80
//	update_display  {"brightness": 80, "keys": {"3": {"text": "on", "color": "green"}}}
//	do_command      {"brightness": 80, "set_page": "name", "update_display": {...}}, each key optional
func (d *Deck) Invoke(_ context.Context, method string, args any) (any, error) {
	switch method {
	case MethodSetPage:
		page, err := stringArg(args, "page")
		if err != nil {
			return nil, err
		}
		if err := d.SetPage(page); err != nil {
			return nil, err
		}
		return map[string]any{"page": page}, nil

	case MethodSetBrightness:
		b, err := intArg(args, "brightness")
		if err != nil {
			return nil, err
		}
		if err := d.SetBrightness(b); err != nil {
			return nil, err
		}
		return map[string]any{"brightness": d.Brightness()}, nil

	case MethodUpdateDisplay:
		return d.UpdateDisplay(args)

	case MethodDoCommand:
		return d.doCommand(args)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownCommand, method)
}

func (d *Deck) doCommand(args any) (any, error) {
	cmd, ok := keymap.MapValue(args)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects an object, got %T", ErrUnknownCommand, MethodDoCommand, args)
	}
	out := map[string]any{}
	if raw, ok := cmd["brightness"]; ok {
		b, ok := keymap.IntValue(raw)
		if !ok {
			return nil, fmt.Errorf("brightness: expected integer, got %T", raw)
		}
		if err := d.SetBrightness(b); err != nil {
			return nil, err
		}
		out["brightness"] = d.Brightness()
	}
	if raw, ok := cmd[MethodSetPage]; ok {
		page, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string, got %T", MethodSetPage, raw)
		}
		if err := d.SetPage(page); err != nil {
			return nil, err
		}
		out["page"] = page
	}
	if raw, ok := cmd[MethodUpdateDisplay]; ok {
		res, err := d.UpdateDisplay(raw)
		if err != nil {
			return nil, err
		}
		out[MethodUpdateDisplay] = res
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s has none of brightness, %s or %s", ErrUnknownCommand, MethodDoCommand, MethodSetPage, MethodUpdateDisplay)
	}
	return out, nil
}

func stringArg(args any, key string) (string, error) {
	if s, ok := args.(string); ok {
		return s, nil
	}
	if m, ok := keymap.MapValue(args); ok {
		if s, ok := m[key].(string); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("expected %q argument, got %v", key, args)
}

func intArg(args any, key string) (int, error) {
	if n, ok := keymap.IntValue(args); ok {
		return n, nil
	}
	if m, ok := keymap.MapValue(args); ok {
		if n, ok := keymap.IntValue(m[key]); ok {
			return n, nil
		}
	}
	return 0, fmt.Errorf("expected %q argument, got %v", key, args)
}
