package validate

// This package adds struct and field validation as a thin wrapper around the go-playground/validator package.
//
// e.g. internal/keymap/layout.go
//   type entryFields struct {
//       Key       int    `json:"key" validate:"gte=0"`
//       Component string `json:"component" validate:"required,excludes=/"`
//       Color     string `json:"color" validate:"omitempty,deckcolor"`
//   }
//
// Field errors report the json tag name so callers can surface the same
// field name the user wrote in the config file.

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ensigniasec/deck-bridge/internal/palette"
)

// validatorInstance is a shared validator for the application.
// It is initialized once and reused to avoid repeated allocations.
//
//nolint:gochecknoglobals // Shared validator singleton.
var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

// get returns a process-wide singleton of the validator.
func get() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New(validator.WithRequiredStructEnabled())
		validatorInst.RegisterTagNameFunc(jsonTagName)
		// deckcolor accepts CSS color names and hex triplets.
		_ = validatorInst.RegisterValidation("deckcolor", func(fl validator.FieldLevel) bool {
			return palette.Known(fl.Field().String())
		})
	})
	return validatorInst
}

func jsonTagName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// Struct validates a struct using the shared validator instance.
func Struct(v any) error {
	return get().Struct(v)
}

// Var validates a single variable against the provided tag constraints.
func Var(field any, tag string) error {
	return get().Var(field, tag)
}

// FirstField returns the json name and failing tag of the first field error in err.
// ok is false when err does not carry field errors.
func FirstField(err error) (field string, tag string, ok bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", "", false
	}
	return verrs[0].Field(), verrs[0].Tag(), true
}
