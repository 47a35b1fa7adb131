package keymap

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/ensigniasec/deck-bridge/internal/palette"
	"github.com/ensigniasec/deck-bridge/internal/validate"
)

// Layout is everything a configuration says about the surface: brightness and
// either a single key map or a set of named pages.
type Layout struct {
	Brightness  int
	Keys        KeyMap
	Pages       map[string]KeyMap
	InitialPage string
}

// entryFields carries a key entry through the struct validator.
type entryFields struct {
	Key       int    `json:"key" validate:"gte=0"`
	Component string `json:"component" validate:"required,excludes=/"`
	Method    string `json:"method" validate:"required"`
	Color     string `json:"color" validate:"omitempty,deckcolor"`
	TextColor string `json:"text_color" validate:"omitempty,deckcolor"`
}

// Validate derives the component names a configuration depends on. It has no side
// effects and needs no device, so the hosting framework can call it before resolving
// anything. The second result is reserved for non-dependency requirements and is
// always empty.
func Validate(attrs Attributes) ([]string, []string, error) {
	l, err := Parse(attrs)
	if err != nil {
		return nil, nil, err
	}
	return l.RequiredComponents(), []string{}, nil
}

// Build translates validated attributes into the KeyMap that is shown first: the
// keys list, or the initial page when pages are configured. Attributes that fail
// validation yield an empty KeyMap.
func Build(attrs Attributes) KeyMap {
	l, err := Parse(attrs)
	if err != nil {
		logrus.Debugf("building key map from invalid attributes: %v", err)
		return KeyMap{}
	}
	return l.Initial()
}

// Brightness returns the configured brightness, or DefaultBrightness.
func Brightness(attrs Attributes) int {
	l, err := Parse(attrs)
	if err != nil {
		return DefaultBrightness
	}
	return l.Brightness
}

// Parse validates attrs and returns the layout they describe.
func Parse(attrs Attributes) (*Layout, error) {
	l := &Layout{Brightness: DefaultBrightness}

	if raw, ok := attrs[AttrBrightness]; ok && raw != nil {
		b, ok := asInt(raw)
		if !ok {
			return nil, topLevelError(AttrBrightness, ErrInvalidValue, fmt.Sprintf("expected integer, got %T", raw))
		}
		if err := validate.Var(b, "min=0,max=100"); err != nil {
			return nil, topLevelError(AttrBrightness, ErrInvalidValue, fmt.Sprintf("%d is outside 0..100", b))
		}
		l.Brightness = b
	}

	rawKeys, hasKeys := attrs[AttrKeys]
	rawPages, hasPages := attrs[AttrPages]
	if hasKeys && hasPages {
		return nil, topLevelError(AttrPages, ErrInvalidValue, "cannot be combined with keys")
	}

	if hasKeys && rawKeys != nil {
		km, err := parseEntries(rawKeys, "")
		if err != nil {
			return nil, err
		}
		l.Keys = km
	}

	if hasPages {
		if err := l.parsePages(rawPages, attrs[AttrInitialPage]); err != nil {
			return nil, err
		}
	}

	return l, nil
}

func (l *Layout) parsePages(rawPages, rawInitial any) error {
	pages, ok := asMap(rawPages)
	if !ok {
		return topLevelError(AttrPages, ErrInvalidValue, fmt.Sprintf("expected object, got %T", rawPages))
	}
	l.Pages = make(map[string]KeyMap, len(pages))
	for _, name := range sortedKeys(pages) {
		if name == "" {
			return topLevelError(AttrPages, ErrInvalidValue, "page name cannot be empty")
		}
		km, err := parseEntries(pages[name], name)
		if err != nil {
			return err
		}
		l.Pages[name] = km
	}

	initial, _ := rawInitial.(string)
	if initial == "" {
		return topLevelError(AttrInitialPage, ErrMissingField, "required when pages are configured")
	}
	if _, ok := l.Pages[initial]; !ok {
		return topLevelError(AttrInitialPage, ErrInvalidValue, fmt.Sprintf("page %q not found", initial))
	}
	l.InitialPage = initial
	return nil
}

func parseEntries(raw any, page string) (KeyMap, error) {
	list, ok := asList(raw)
	if !ok {
		field := AttrKeys
		if page != "" {
			field = AttrPages + "." + page
		}
		return KeyMap{}, topLevelError(field, ErrInvalidValue, fmt.Sprintf("expected list, got %T", raw))
	}
	bindings := make([]KeyBinding, 0, len(list))
	for i, item := range list {
		b, err := parseEntry(i, item, page)
		if err != nil {
			return KeyMap{}, err
		}
		bindings = append(bindings, b)
	}
	return KeyMap{bindings: bindings}, nil
}

func parseEntry(i int, raw any, page string) (KeyBinding, error) {
	fail := func(field string, cause error, detail string) (KeyBinding, error) {
		return KeyBinding{}, ValidationError{Field: field, Entry: i, Page: page, Err: cause, Detail: detail}
	}

	entry, ok := asMap(raw)
	if !ok {
		return fail(AttrKeys, ErrInvalidValue, fmt.Sprintf("expected object, got %T", raw))
	}
	for _, f := range requiredFields {
		if _, ok := entry[f]; !ok {
			return fail(f, ErrMissingField, "")
		}
	}

	index, ok := asInt(entry[FieldKey])
	if !ok {
		return fail(FieldKey, ErrInvalidKeyIndex, fmt.Sprintf("cannot parse %v as integer", entry[FieldKey]))
	}
	caption, ok := asText(entry[FieldText])
	if !ok {
		return fail(FieldText, ErrInvalidValue, fmt.Sprintf("expected string, got %T", entry[FieldText]))
	}
	fields := entryFields{Key: index}
	for _, sf := range []struct {
		name string
		dst  *string
	}{
		{FieldComponent, &fields.Component},
		{FieldMethod, &fields.Method},
		{FieldColor, &fields.Color},
		{FieldTextColor, &fields.TextColor},
	} {
		name, dst := sf.name, sf.dst
		v, present := entry[name]
		if !present || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fail(name, ErrInvalidValue, fmt.Sprintf("expected string, got %T", v))
		}
		*dst = s
	}

	if err := validate.Struct(fields); err != nil {
		field, detail, cause := constraintFailure(err)
		return fail(field, cause, detail)
	}

	b := KeyBinding{
		Index:      index,
		Caption:    caption,
		Background: fields.Color,
		TextColor:  fields.TextColor,
		Component:  fields.Component,
		Method:     fields.Method,
		Args:       entry[FieldArgs],
	}
	if b.Background == "" {
		b.Background = palette.DefaultBackground
	}
	if b.TextColor == "" {
		b.TextColor = palette.DefaultText
	}
	return b, nil
}

func constraintFailure(err error) (field, detail string, cause error) {
	field, tag, _ := validate.FirstField(err)
	switch {
	case field == FieldKey:
		return field, "must not be negative", ErrInvalidKeyIndex
	case tag == "required":
		return field, "must not be empty", ErrMissingField
	default:
		return field, fmt.Sprintf("failed %q constraint", tag), ErrInvalidValue
	}
}

// CheckBinding applies the key entry constraints to a binding assembled at runtime.
func CheckBinding(b KeyBinding) error {
	fields := entryFields{
		Key:       b.Index,
		Component: b.Component,
		Method:    b.Method,
		Color:     b.Background,
		TextColor: b.TextColor,
	}
	if err := validate.Struct(fields); err != nil {
		field, detail, cause := constraintFailure(err)
		return ValidationError{Field: field, Entry: -1, Err: cause, Detail: fmt.Sprintf("key %d: %s", b.Index, detail)}
	}
	return nil
}

// Initial returns the key map shown after a reconfiguration.
func (l *Layout) Initial() KeyMap {
	if l.InitialPage != "" {
		return l.Pages[l.InitialPage]
	}
	return l.Keys
}

// Page returns the named page's key map.
func (l *Layout) Page(name string) (KeyMap, bool) {
	km, ok := l.Pages[name]
	return km, ok
}

// PageNames returns the configured page names, sorted.
func (l *Layout) PageNames() []string {
	return sortedKeys(l.Pages)
}

// RequiredComponents lists distinct component names across the keys list and every
// page (pages in name order), in order of first appearance.
func (l *Layout) RequiredComponents() []string {
	out := appendComponents([]string{}, l.Keys)
	for _, name := range l.PageNames() {
		out = appendComponents(out, l.Pages[name])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// WithKeys returns a copy of l whose named page, or keys list when page is "",
// is replaced by km.
func (l *Layout) WithKeys(page string, km KeyMap) *Layout {
	out := *l
	if page == "" {
		out.Keys = km
		return &out
	}
	out.Pages = make(map[string]KeyMap, len(l.Pages))
	for name, keys := range l.Pages {
		out.Pages[name] = keys
	}
	out.Pages[page] = km
	return &out
}
