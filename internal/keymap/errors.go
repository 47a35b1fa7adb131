package keymap

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by ValidationError.
var (
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidKeyIndex = errors.New("invalid key index")
	ErrInvalidValue    = errors.New("invalid value")
)

// ValidationError reports a malformed configuration.
type ValidationError struct {
	// Field is the attribute or key entry field at fault.
	Field string
	// Entry is the position of the key entry in its list, -1 for top-level attributes.
	Entry int
	// Page names the page holding the entry, empty for the top-level keys list.
	Page string
	// Err is one of ErrMissingField, ErrInvalidKeyIndex or ErrInvalidValue.
	Err error
	// Detail optionally explains the failure.
	Detail string
}

func (e ValidationError) Error() string {
	msg := fmt.Sprintf("%s %q", e.Err, e.Field)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	switch {
	case e.Entry < 0:
		return msg
	case e.Page != "":
		return fmt.Sprintf("%s.%s[%d]: %s", AttrPages, e.Page, e.Entry, msg)
	default:
		return fmt.Sprintf("%s[%d]: %s", AttrKeys, e.Entry, msg)
	}
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

func topLevelError(field string, cause error, detail string) ValidationError {
	return ValidationError{Field: field, Entry: -1, Err: cause, Detail: detail}
}
