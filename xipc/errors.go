package xipc

import "errors"

// Code is a stable, comparable identifier for the error conditions a
// session can surface to callers (spec §6.4).
type Code string

const (
	CodeWouldBlock        Code = "would_block"
	CodeClosed            Code = "closed"
	CodeBrokenPipe        Code = "broken_pipe"
	CodeInterrupted       Code = "interrupted"
	CodeNotFound          Code = "not_found"
	CodeAlreadyExists     Code = "already_exists"
	CodeMalformed         Code = "malformed"
	CodeInvalidArgument   Code = "invalid_argument"
	CodePermissionDenied  Code = "permission_denied"
	CodeResourceExhausted Code = "resource_exhausted"
)

// Error wraps a Code with the operation and session name it occurred on,
// plus an optional underlying cause.
type Error struct {
	Op   string
	Name string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	s := e.Op
	if e.Name != "" {
		s += " " + e.Name
	}
	s += ": " + string(e.Code)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports equality by Code, so errors.Is(err, xipc.ErrWouldBlock) works
// regardless of the Op/Name/Err the concrete error carries.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(op, name string, code Code, err error) *Error {
	return &Error{Op: op, Name: name, Code: code, Err: err}
}

// Sentinel values for errors.Is comparisons; only Code is significant.
var (
	ErrWouldBlock        = &Error{Code: CodeWouldBlock}
	ErrClosed            = &Error{Code: CodeClosed}
	ErrBrokenPipe        = &Error{Code: CodeBrokenPipe}
	ErrInterrupted       = &Error{Code: CodeInterrupted}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists}
	ErrMalformed         = &Error{Code: CodeMalformed}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied}
	ErrResourceExhausted = &Error{Code: CodeResourceExhausted}
)

// CodeOf extracts the Code from an error produced by this package,
// defaulting to "" when err is nil or foreign.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
