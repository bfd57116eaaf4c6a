package ply

import (
	"errors"
	"fmt"
)

var (
	// ErrBadMagic is returned when the first line is not "ply".
	ErrBadMagic = errors.New("magic number mismatch")

	// ErrUnsupportedFormat is returned for anything but binary little-endian 1.0.
	ErrUnsupportedFormat = errors.New("unsupported data format")

	// ErrMalformedElement is returned for an element line without a valid count.
	ErrMalformedElement = errors.New("malformed element declaration")

	// ErrMalformedProperty is returned for a property line missing its type or name.
	ErrMalformedProperty = errors.New("malformed property declaration")

	// ErrTypeMismatch is returned when a reserved property name is declared
	// with a storage width it cannot hold.
	ErrTypeMismatch = errors.New("property type mismatch")

	// ErrUnsupportedPropertyType is returned for non-scalar or unknown type tokens.
	ErrUnsupportedPropertyType = errors.New("unsupported property type")

	// ErrTruncatedHeader is returned when the input ends before end_header.
	ErrTruncatedHeader = errors.New("truncated header")

	// ErrTruncatedBody is returned when the input ends before every vertex is read.
	ErrTruncatedBody = errors.New("truncated body")

	// ErrTooManyVertices is returned when a header declares more vertices
	// than the caller allows.
	ErrTooManyVertices = errors.New("too many vertices")
)

// FormatError describes why a frame could not be decoded. Kind is one of the
// sentinel errors above, so callers can use errors.Is.
type FormatError struct {
	Kind   error
	Line   int    // 1-based header line, 0 for body errors
	Detail string // offending header line or decode position
	Err    error  // underlying I/O or conversion error, if any
}

func (e *FormatError) Error() string {
	msg := e.Kind.Error()
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at header line %d", msg, e.Line)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%q)", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is reports whether target is the sentinel kind of this error.
func (e *FormatError) Is(target error) bool {
	return e.Kind == target
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// KindName returns a short label for err suitable for metrics, or "other"
// when err is not a FormatError.
func KindName(err error) string {
	var fe *FormatError
	if !errors.As(err, &fe) {
		return "other"
	}
	switch fe.Kind {
	case ErrBadMagic:
		return "bad_magic"
	case ErrUnsupportedFormat:
		return "unsupported_format"
	case ErrMalformedElement:
		return "malformed_element"
	case ErrMalformedProperty:
		return "malformed_property"
	case ErrTypeMismatch:
		return "type_mismatch"
	case ErrUnsupportedPropertyType:
		return "unsupported_property_type"
	case ErrTruncatedHeader:
		return "truncated_header"
	case ErrTruncatedBody:
		return "truncated_body"
	case ErrTooManyVertices:
		return "too_many_vertices"
	}
	return "other"
}

func headerError(kind error, line int, text string, err error) *FormatError {
	return &FormatError{Kind: kind, Line: line, Detail: text, Err: err}
}
