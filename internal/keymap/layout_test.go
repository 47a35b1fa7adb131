package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(key any, component string) map[string]any {
	return map[string]any{
		"key":       key,
		"text":      component,
		"component": component,
		"method":    "doThing",
		"args":      map[string]any{},
	}
}

func scenarioAttrs() Attributes {
	return Attributes{
		"brightness": 100,
		"keys": []any{
			entry(0, "foo"),
			entry(8, "bar"),
		},
	}
}

func TestValidate_NoKeys(t *testing.T) {
	for _, attrs := range []Attributes{nil, {}, {"brightness": 20}, {"keys": nil}} {
		comps, caps, err := Validate(attrs)
		require.NoError(t, err)
		assert.Empty(t, comps)
		assert.NotNil(t, comps)
		assert.Empty(t, caps)
	}
}

func TestValidate_Scenario(t *testing.T) {
	comps, caps, err := Validate(scenarioAttrs())
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar"}, comps)
	assert.Empty(t, caps)
}

func TestValidate_MissingRequiredField(t *testing.T) {
	for _, field := range []string{"component", "key", "text", "method", "args"} {
		t.Run(field, func(t *testing.T) {
			bad := entry(3, "baz")
			delete(bad, field)
			attrs := Attributes{"keys": []any{entry(0, "foo"), bad}}

			_, _, err := Validate(attrs)
			require.ErrorIs(t, err, ErrMissingField)

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
			assert.Equal(t, 1, verr.Entry)
			assert.Contains(t, err.Error(), "keys[1]")
		})
	}
}

func TestValidate_KeyIndex(t *testing.T) {
	tests := []struct {
		name    string
		key     any
		wantErr bool
	}{
		{name: "int", key: 4},
		{name: "int64 from toml", key: int64(4)},
		{name: "float64 from json", key: float64(4)},
		{name: "numeric string", key: " 4 "},
		{name: "word", key: "four", wantErr: true},
		{name: "fraction", key: 4.5, wantErr: true},
		{name: "negative", key: -1, wantErr: true},
		{name: "list", key: []any{1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Validate(Attributes{"keys": []any{entry(tt.key, "foo")}})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, 4, Build(Attributes{"keys": []any{entry(tt.key, "foo")}}).Bindings()[0].Index)
				return
			}
			require.ErrorIs(t, err, ErrInvalidKeyIndex)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "key", verr.Field)
		})
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	withField := func(k string, v any) Attributes {
		e := entry(1, "foo")
		e[k] = v
		return Attributes{"keys": []any{e}}
	}

	tests := []struct {
		name      string
		attrs     Attributes
		wantField string
		wantErr   error
	}{
		{name: "brightness too high", attrs: Attributes{"brightness": 101}, wantField: "brightness", wantErr: ErrInvalidValue},
		{name: "brightness not a number", attrs: Attributes{"brightness": "loud"}, wantField: "brightness", wantErr: ErrInvalidValue},
		{name: "keys not a list", attrs: Attributes{"keys": "nope"}, wantField: "keys", wantErr: ErrInvalidValue},
		{name: "entry not an object", attrs: Attributes{"keys": []any{"nope"}}, wantField: "keys", wantErr: ErrInvalidValue},
		{name: "component with separator", attrs: withField("component", "org/foo"), wantField: "component", wantErr: ErrInvalidValue},
		{name: "empty method", attrs: withField("method", ""), wantField: "method", wantErr: ErrMissingField},
		{name: "method not a string", attrs: withField("method", 3), wantField: "method", wantErr: ErrInvalidValue},
		{name: "unknown color", attrs: withField("color", "blurple"), wantField: "color", wantErr: ErrInvalidValue},
		{name: "unknown text color", attrs: withField("text_color", "#xyz"), wantField: "text_color", wantErr: ErrInvalidValue},
		{name: "text not scalar", attrs: withField("text", []any{"a"}), wantField: "text", wantErr: ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Validate(tt.attrs)
			require.ErrorIs(t, err, tt.wantErr)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestValidate_Idempotent(t *testing.T) {
	attrs := scenarioAttrs()
	c1, p1, e1 := Validate(attrs)
	c2, p2, e2 := Validate(attrs)
	assert.Equal(t, c1, c2)
	assert.Equal(t, p1, p2)
	assert.Equal(t, e1, e2)

	bad := Attributes{"keys": []any{map[string]any{"key": 1}}}
	_, _, e1 = Validate(bad)
	_, _, e2 = Validate(bad)
	assert.Equal(t, e1, e2)
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	attrs := scenarioAttrs()
	before := len(attrs["keys"].([]any))
	_, _, err := Validate(attrs)
	require.NoError(t, err)
	assert.Len(t, attrs["keys"], before)
	_, hasColor := attrs["keys"].([]any)[0].(map[string]any)["color"]
	assert.False(t, hasColor)
}

func TestBuild_AppliesDefaults(t *testing.T) {
	e := entry("2", "foo")
	e["args"] = []any{map[string]any{"x": 1.0}}
	km := Build(Attributes{"keys": []any{e}})

	require.Equal(t, 1, km.Len())
	b := km.Bindings()[0]
	assert.Equal(t, KeyBinding{
		Index:      2,
		Caption:    "foo",
		Background: "black",
		TextColor:  "white",
		Component:  "foo",
		Method:     "doThing",
		Args:       []any{map[string]any{"x": 1.0}},
	}, b)
}

func TestBuild_KeepsExplicitColors(t *testing.T) {
	e := entry(0, "foo")
	e["color"] = "navy"
	e["text_color"] = "#ffcc00"
	b := Build(Attributes{"keys": []any{e}}).Bindings()[0]
	assert.Equal(t, "navy", b.Background)
	assert.Equal(t, "#ffcc00", b.TextColor)
}

func TestBuild_InvalidAttributesYieldEmptyKeyMap(t *testing.T) {
	km := Build(Attributes{"keys": []any{map[string]any{"key": 0}}})
	assert.Zero(t, km.Len())
}

func TestBuild_ScalarCaptions(t *testing.T) {
	e := entry(0, "foo")
	e["text"] = 42
	assert.Equal(t, "42", Build(Attributes{"keys": []any{e}}).Bindings()[0].Caption)
}

func TestBrightness(t *testing.T) {
	assert.Equal(t, DefaultBrightness, Brightness(Attributes{}))
	assert.Equal(t, 100, Brightness(scenarioAttrs()))
	assert.Equal(t, 0, Brightness(Attributes{"brightness": 0.0}))
}

func TestParse_Pages(t *testing.T) {
	attrs := Attributes{
		"pages": map[string]any{
			"main":  []any{entry(0, "foo"), entry(1, "deck")},
			"extra": []any{entry(0, "baz"), entry(1, "foo")},
		},
		"initial_page": "main",
	}

	l, err := Parse(attrs)
	require.NoError(t, err)
	assert.Equal(t, []string{"extra", "main"}, l.PageNames())
	assert.Equal(t, "main", l.InitialPage)
	assert.Equal(t, []string{"baz", "foo", "deck"}, l.RequiredComponents())

	b, ok := l.Initial().Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "deck", b.Component)

	extra, ok := l.Page("extra")
	require.True(t, ok)
	assert.Equal(t, 2, extra.Len())

	assert.Equal(t, l.Initial(), Build(attrs))
}

func TestParse_PageErrors(t *testing.T) {
	tests := []struct {
		name      string
		attrs     Attributes
		wantField string
		wantErr   error
	}{
		{
			name:      "keys and pages",
			attrs:     Attributes{"keys": []any{}, "pages": map[string]any{"a": []any{}}, "initial_page": "a"},
			wantField: "pages",
			wantErr:   ErrInvalidValue,
		},
		{
			name:      "missing initial page",
			attrs:     Attributes{"pages": map[string]any{"a": []any{}}},
			wantField: "initial_page",
			wantErr:   ErrMissingField,
		},
		{
			name:      "unknown initial page",
			attrs:     Attributes{"pages": map[string]any{"a": []any{}}, "initial_page": "b"},
			wantField: "initial_page",
			wantErr:   ErrInvalidValue,
		},
		{
			name:      "empty page name",
			attrs:     Attributes{"pages": map[string]any{"": []any{}}, "initial_page": ""},
			wantField: "pages",
			wantErr:   ErrInvalidValue,
		},
		{
			name:      "bad entry in page",
			attrs:     Attributes{"pages": map[string]any{"a": []any{map[string]any{"key": 1}}}, "initial_page": "a"},
			wantField: "component",
			wantErr:   ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.attrs)
			require.ErrorIs(t, err, tt.wantErr)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := ValidationError{Field: "method", Entry: 2, Page: "main", Err: ErrMissingField}
	assert.Equal(t, `pages.main[2]: missing required field "method"`, err.Error())

	err = ValidationError{Field: "brightness", Entry: -1, Err: ErrInvalidValue, Detail: "101 is outside 0..100"}
	assert.Equal(t, `invalid value "brightness": 101 is outside 0..100`, err.Error())
}

func TestParse_YAMLStyleMaps(t *testing.T) {
	attrs := Attributes{"keys": []any{map[any]any{
		"key": 1, "text": "x", "component": "foo", "method": "m", "args": nil,
	}}}
	comps, _, err := Validate(attrs)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, comps)
}

func TestParse_TOMLTableArrays(t *testing.T) {
	attrs := Attributes{"keys": []map[string]any{entry(int64(1), "foo")}}
	comps, _, err := Validate(attrs)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, comps)
}

func TestLayout_WithKeys(t *testing.T) {
	l := &Layout{
		Pages:       map[string]KeyMap{"main": NewKeyMap(KeyBinding{Index: 0}), "tools": {}},
		InitialPage: "main",
	}
	km := NewKeyMap(KeyBinding{Index: 5})

	next := l.WithKeys("tools", km)
	assert.Equal(t, []int{5}, next.Pages["tools"].Indexes())
	assert.Equal(t, 0, l.Pages["tools"].Len(), "receiver is unchanged")
	assert.Equal(t, []int{0}, next.Pages["main"].Indexes())

	flat := (&Layout{}).WithKeys("", km)
	assert.Equal(t, []int{5}, flat.Keys.Indexes())
}

func TestCheckBinding(t *testing.T) {
	ok := KeyBinding{Index: 2, Caption: "x", Background: "red", TextColor: "#fff", Component: "foo", Method: "doThing"}
	require.NoError(t, CheckBinding(ok))

	tests := []struct {
		name  string
		edit  func(*KeyBinding)
		field string
		cause error
	}{
		{"negative index", func(b *KeyBinding) { b.Index = -1 }, FieldKey, ErrInvalidKeyIndex},
		{"no component", func(b *KeyBinding) { b.Component = "" }, FieldComponent, ErrMissingField},
		{"qualified component", func(b *KeyBinding) { b.Component = "org/foo" }, FieldComponent, ErrInvalidValue},
		{"no method", func(b *KeyBinding) { b.Method = "" }, FieldMethod, ErrMissingField},
		{"bad color", func(b *KeyBinding) { b.Background = "notacolor" }, FieldColor, ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ok
			tt.edit(&b)
			err := CheckBinding(b)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			require.ErrorIs(t, err, tt.cause)
		})
	}
}
