package keymap

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Attributes is the generic attribute tree produced by parsing a configuration file.
type Attributes = map[string]any

// Recognized attribute names.
const (
	AttrBrightness  = "brightness"
	AttrKeys        = "keys"
	AttrPages       = "pages"
	AttrInitialPage = "initial_page"

	FieldKey       = "key"
	FieldText      = "text"
	FieldComponent = "component"
	FieldMethod    = "method"
	FieldArgs      = "args"
	FieldColor     = "color"
	FieldTextColor = "text_color"
)

// DefaultBrightness applies when the configuration has no brightness attribute.
const DefaultBrightness = 50

// requiredFields lists the key entry fields that must be present, in reporting order.
//
//nolint:gochecknoglobals // read-only table.
var requiredFields = []string{FieldComponent, FieldKey, FieldText, FieldMethod, FieldArgs}

// asInt accepts the integer shapes the JSON, YAML and TOML decoders produce,
// plus decimal strings.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return int(f), true
}

// asText renders scalar caption values; YAML happily turns `text: 1` into an int.
func asText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case nil:
		return "", true
	case bool, int, int64, uint64, float64, json.Number:
		return fmt.Sprint(s), true
	}
	return "", false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	}
	return nil, false
}

// IntValue reads an integer attribute value in any of the shapes accepted for key indexes.
func IntValue(v any) (int, bool) {
	return asInt(v)
}

// MapValue reads an object attribute value.
func MapValue(v any) (map[string]any, bool) {
	return asMap(v)
}
