package pgenv

import (
	"log/slog"

	"github.com/pgenv/pgenv/internal/core"
)

// SetLogger replaces the package-level logger used by pgenv.
// This allows applications to integrate pgenv logging with their own
// logging infrastructure. The provided logger should already have any
// desired attributes; pgenv will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with
// "component" attribute, re-derived on the next use and then cached.
// Call SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// Thread safety: SetLogger is safe to call concurrently with other pgenv
// operations. Both the custom logger and the cached default are stored as
// atomic pointers, so loads and stores are data-race-free. A concurrent
// log call during SetLogger may briefly use the previous logger until
// both atomic stores complete. For a strict happens-before guarantee,
// call SetLogger before starting instances (e.g., in TestMain before
// m.Run).
//
// Example:
//
//	pgenv.SetLogger(myLogger.With("component", "pgenv"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
