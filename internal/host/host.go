// Package host supplies the dependency map a deck dispatches to. Components are
// declared next to the key map, under "components".
package host

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"

	"github.com/ensigniasec/deck-bridge/internal/dispatch"
	"github.com/ensigniasec/deck-bridge/internal/keymap"
	"github.com/ensigniasec/deck-bridge/internal/validate"
)

// AttrComponents is the configuration section this package reads.
const AttrComponents = "components"

// Component kinds.
const (
	TypeLog  = "log"
	TypeExec = "exec"
)

var (
	ErrDuplicateComponent = errors.New("duplicate component")
	ErrInvalidComponent   = errors.New("invalid component")
)

// ComponentSpec declares one component.
type ComponentSpec struct {
	Name    string        `json:"name" mapstructure:"name" validate:"required"`
	Type    string        `json:"type" mapstructure:"type" validate:"required,oneof=log exec"`
	Command []string      `json:"command" mapstructure:"command"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" validate:"gte=0"`
}

// Specs decodes the components section of attrs. A missing section yields none.
func Specs(attrs keymap.Attributes) ([]ComponentSpec, error) {
	raw, ok := attrs[AttrComponents]
	if !ok || raw == nil {
		return nil, nil
	}

	var specs []ComponentSpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.ComposeDecodeHookFunc(secondsHook, mapstructure.StringToTimeDurationHookFunc()),
		ErrorUnused: true,
		Result:      &specs,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidComponent, err)
	}

	seen := make(map[string]struct{}, len(specs))
	for i, s := range specs {
		if err := validate.Struct(s); err != nil {
			field, tag, _ := validate.FirstField(err)
			return nil, fmt.Errorf("%w: %s[%d].%s failed %q", ErrInvalidComponent, AttrComponents, i, field, tag)
		}
		if s.Type == TypeExec && len(s.Command) == 0 {
			return nil, fmt.Errorf("%w: %s[%d] %q: exec components need a command", ErrInvalidComponent, AttrComponents, i, s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%w %q", ErrDuplicateComponent, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return specs, nil
}

// secondsHook lets timeouts be written as a plain number of seconds.
func secondsHook(from, to reflect.Type, data any) (any, error) {
	durationType := reflect.TypeOf(time.Duration(0))
	if to != durationType || from == durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
	case reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
	}
	return data, nil
}

// Build creates a handle for every declared component.
func Build(attrs keymap.Attributes) (dispatch.Dependencies, error) {
	specs, err := Specs(attrs)
	if err != nil {
		return nil, err
	}
	deps := make(dispatch.Dependencies, len(specs))
	for _, s := range specs {
		deps[s.Name] = NewHandle(s)
	}
	logrus.Debugf("built %d component handles", len(deps))
	return deps, nil
}

// NewHandle returns the handle for s. s is assumed valid.
func NewHandle(s ComponentSpec) dispatch.Invocable { //nolint:ireturn
	if s.Type == TypeExec {
		return &ExecHandle{name: s.Name, command: s.Command, timeout: s.Timeout}
	}
	return &LogHandle{name: s.Name}
}
