// Package sentinel provides a const-able error type for sentinel errors.
//
// Use it to declare package-level error constants that callers match with
// errors.Is:
//
//	const ErrArchiveNotFound = sentinel.Error("no archive for platform")
package sentinel
