package template

import "errors"

// Sentinel errors for template processing. Callers can distinguish malformed
// templates from templates that reference values missing from the context.
var (
	// ErrSyntax indicates a malformed template: an unterminated placeholder,
	// an unclosed block, or a closer that does not match the innermost open
	// block.
	ErrSyntax = errors.New("template syntax error")

	// ErrResolution indicates a well-formed template that references a path
	// the context cannot satisfy, or applies an operation to a value of the
	// wrong kind.
	ErrResolution = errors.New("template resolution error")
)
