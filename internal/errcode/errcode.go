package errcode

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Numeric codes carried by task notifications:
// - 0: no error
// - 4xxx: recoverable, the caller can fix the input
// - 5xxx: system or upstream failure
const (
	OK              = 0
	InvalidInput    = 4022
	ResourceMissing = 4004
	ResourceExists  = 4009
	UpstreamFailure = 5002
	SystemError     = 5000
)

// Kind classifies an application error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUpstream
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Code maps the kind onto the numeric notification code.
func (k Kind) Code() int {
	switch k {
	case KindValidation:
		return InvalidInput
	case KindNotFound:
		return ResourceMissing
	case KindConflict:
		return ResourceExists
	case KindUpstream, KindParse:
		return UpstreamFailure
	default:
		return SystemError
	}
}

// Error is the single error type crossing package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Kind == KindValidation && len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, FieldErrors(e.Fields).summary())
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a validation error carrying the per-field messages.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: "The given data was invalid.", Fields: fields}
}

// Invalid is a shorthand for a validation error on a single field.
func Invalid(field, message string) *Error {
	return Validation(map[string][]string{field: {message}})
}

// NotFound reports a missing entity, e.g. NotFound("Job match").
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func Parse(message string, err error) *Error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsUpstream(err error) bool   { return KindOf(err) == KindUpstream }
func IsParse(err error) bool      { return KindOf(err) == KindParse }

// FieldErrors accumulates validation messages keyed by field name.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

func (f FieldErrors) Has(field string) bool {
	return len(f[field]) > 0
}

// Err returns nil when no field failed.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return Validation(map[string][]string(f))
}

func (f FieldErrors) summary() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(f[k], "; "))
	}
	return strings.Join(parts, ", ")
}
