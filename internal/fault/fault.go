package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorises a failure.
type Kind string

const (
	KindUnrecognizedModel      Kind = "unrecognized_model"
	KindEncodingFailure        Kind = "encoding_failure"
	KindScoringFailure         Kind = "scoring_failure"
	KindInvalidBanding         Kind = "invalid_banding"
	KindDecodeFailure          Kind = "decode_failure"
	KindUnrecognizedStateCount Kind = "unrecognized_state_count"
	KindInvalidArgument        Kind = "invalid_argument"
)

// Error is the structured error returned across package boundaries.
type Error struct {
	Kind   Kind
	Op     string // operation, e.g. "mapping.Align"
	ReadID string
	Detail string
	Cause  error
}

// Sentinels for errors.Is. Only Kind is compared.
var (
	ErrUnrecognizedModel      = &Error{Kind: KindUnrecognizedModel}
	ErrEncodingFailure        = &Error{Kind: KindEncodingFailure}
	ErrScoringFailure         = &Error{Kind: KindScoringFailure}
	ErrInvalidBanding         = &Error{Kind: KindInvalidBanding}
	ErrDecodeFailure          = &Error{Kind: KindDecodeFailure}
	ErrUnrecognizedStateCount = &Error{Kind: KindUnrecognizedStateCount}
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteByte(']')

	if e.Op != "" {
		b.WriteByte(' ')
		b.WriteString(e.Op)
	}
	if e.ReadID != "" {
		b.WriteString(" read=")
		b.WriteString(e.ReadID)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind for operation op.
func New(kind Kind, op, format string, args ...any) *Error {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Wrapf wraps cause as an error of the given kind.
func Wrapf(kind Kind, op string, cause error, format string, args ...any) *Error {
	e := New(kind, op, format, args...)
	e.Cause = cause
	return e
}

// KindOf returns the Kind of the first *Error in err's chain. Untyped
// errors are reported as decode failures.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindDecodeFailure
}

// WithRead tags err with the read it belongs to. The Kind of err is kept so
// errors.Is continues to match the original sentinel.
func WithRead(err error, readID string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), ReadID: readID, Cause: err}
}

// ReadOf returns the read identifier attached to err, if any.
func ReadOf(err error) string {
	var fe *Error
	for errors.As(err, &fe) {
		if fe.ReadID != "" {
			return fe.ReadID
		}
		err = fe.Cause
	}
	return ""
}
