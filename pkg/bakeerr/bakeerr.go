// Package bakeerr defines the error kinds reported by the bundle baking pipeline.
//
// Every kind is fatal: callers wrap and propagate, nothing is retried.
package bakeerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindIO
	KindDecode
	KindCompression
	KindShaderCompile
	KindUnsupportedFormat
	KindInvariantViolation
)

// String returns the kind name used in log lines.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "IoError"
	case KindDecode:
		return "DecodeError"
	case KindCompression:
		return "CompressionError"
	case KindShaderCompile:
		return "ShaderCompileError"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindInvariantViolation:
		return "InvariantViolation"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Sentinels for errors.Is matching.
var (
	ErrIO                 = &Error{Kind: KindIO}
	ErrDecode             = &Error{Kind: KindDecode}
	ErrCompression        = &Error{Kind: KindCompression}
	ErrShaderCompile      = &Error{Kind: KindShaderCompile}
	ErrUnsupportedFormat  = &Error{Kind: KindUnsupportedFormat}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
)

// Error is a classified pipeline error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with a formatted operation description.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
