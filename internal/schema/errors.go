package schema

import "fmt"

// ErrorCode categorizes normalizer failures.
type ErrorCode string

const (
	// SyntaxError means the text does not parse as JSON or YAML at all.
	SyntaxError ErrorCode = "SyntaxError"
	// StructureError means the text parsed but is not a name -> definition mapping.
	StructureError ErrorCode = "StructureError"
)

// Error is the structured error returned by Normalize.
type Error struct {
	Code    ErrorCode
	Format  Format
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema: %s (%s): %s", e.Code, e.Format, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func syntaxErr(format Format, cause error) *Error {
	return &Error{Code: SyntaxError, Format: format, Message: cause.Error(), Cause: cause}
}

func structureErr(format Format, msg string) *Error {
	return &Error{Code: StructureError, Format: format, Message: msg}
}
