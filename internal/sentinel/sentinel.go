package sentinel

// Compile-time check that Error implements the error interface.
var _ error = Error("")

// Error is an error type backed by a string constant. Declaring sentinel
// errors as const Error values (instead of errors.New vars) makes them
// immutable: nothing can reassign them at runtime.
//
// Error is comparable, so errors.Is matches it through wrapped error
// chains using plain == comparison.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}
