package script

import (
	"errors"
	"fmt"
)

// The script layer distinguishes three failure families, per the error
// taxonomy for scripted scenarios:
//
//   - ParseError: the literal text is malformed. A script-authoring error.
//   - ResolveError: the literal parsed, but its references do not resolve
//     against scenario state (unknown handle, unloadable version, unbound
//     staged package). Also a script-authoring error, reported with the
//     offending handle, identity, or name.
//   - InvariantError: the parser or resolver itself produced an impossible
//     shape (a reference nested where only plain values are legal, a mixed
//     object vector). These indicate a bug in this package, not in the
//     script, and abort the operation.
//
// None of these are retried; the scenario driver decides whether a failing
// command ends the scenario or is itself the assertion under test.

// ParseErrorCode categorizes parse failures.
type ParseErrorCode string

const (
	// ErrCodeBadLiteral is a malformed token or literal.
	ErrCodeBadLiteral ParseErrorCode = "BAD_LITERAL"
	// ErrCodeUnexpectedToken is a structurally wrong token sequence.
	ErrCodeUnexpectedToken ParseErrorCode = "UNEXPECTED_TOKEN"
	// ErrCodeHandleTooLarge is an enumerated handle whose first component
	// exceeds 64 bits.
	ErrCodeHandleTooLarge ParseErrorCode = "OBJECT_ID_TOO_LARGE"
)

// ParseError reports a malformed value literal.
type ParseError struct {
	Code    ParseErrorCode
	Literal string
	Message string
}

func (e *ParseError) Error() string {
	if e.Literal != "" {
		return fmt.Sprintf("%s: %s (in %q)", e.Code, e.Message, e.Literal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newParseError(code ParseErrorCode, literal, message string) *ParseError {
	return &ParseError{Code: code, Literal: literal, Message: message}
}

// IsParseError reports whether err is a ParseError, unwrapping as needed.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ResolveErrorCode categorizes resolution failures.
type ResolveErrorCode string

const (
	// ErrCodeUnknownObject means the handle is absent from the handle table.
	ErrCodeUnknownObject ResolveErrorCode = "UNKNOWN_OBJECT"
	// ErrCodeObjectLoad means the handle resolved but the requested object
	// version could not be loaded.
	ErrCodeObjectLoad ResolveErrorCode = "OBJECT_LOAD"
	// ErrCodeUnboundPackage means no package is staged under the name.
	ErrCodeUnboundPackage ResolveErrorCode = "UNBOUND_PACKAGE"
	// ErrCodeVectorAsInput means an object vector was used where a single
	// transaction input is required.
	ErrCodeVectorAsInput ResolveErrorCode = "VECTOR_AS_INPUT"
)

// ResolveError reports a symbolic value that does not resolve against
// scenario state. It names the offending handle, identity, or package so a
// test author can pinpoint the statement.
type ResolveError struct {
	Code    ResolveErrorCode
	Message string

	Handle  string // offending handle, if any
	Object  string // resolved real identity, if any
	Package string // staged-package name, if any
}

func (e *ResolveError) Error() string {
	switch {
	case e.Handle != "":
		return fmt.Sprintf("%s: %s: object(%s)", e.Code, e.Message, e.Handle)
	case e.Object != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Object)
	case e.Package != "":
		return fmt.Sprintf("%s: %s: %q", e.Code, e.Message, e.Package)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsUnknownObject reports whether err is an unknown-handle resolution error.
func IsUnknownObject(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Code == ErrCodeUnknownObject
}

// IsUnboundPackage reports whether err is an unbound staged-package error.
func IsUnboundPackage(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Code == ErrCodeUnboundPackage
}

// InvariantError reports an impossible value shape produced by the parser
// or resolver. Got and Want name the value kinds involved.
type InvariantError struct {
	Message string
	Got     string
	Want    string
}

func (e *InvariantError) Error() string {
	if e.Got != "" {
		return fmt.Sprintf("internal: %s (got %s, want %s)", e.Message, e.Got, e.Want)
	}
	return "internal: " + e.Message
}

// IsInvariant reports whether err is an internal invariant violation. The
// driver treats these as fatal: they indicate a bug here, not in the script.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
