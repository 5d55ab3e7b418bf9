package pgenv

import (
	"github.com/pgenv/pgenv/internal/archive"
	"github.com/pgenv/pgenv/internal/command"
	"github.com/pgenv/pgenv/internal/core"
	"github.com/pgenv/pgenv/internal/postmaster"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrArchiveNotFound is returned by Start when the platform archive
	// (postgresql-<os>-<arch>.tar.gz) is missing from the runtime directory.
	ErrArchiveNotFound = archive.ErrNotFound

	// ErrCommandFailed is returned when an external command (extraction,
	// initdb, pg_ctl) exits nonzero. The wrapping error carries the exit
	// code and the tail of the command's combined output.
	ErrCommandFailed = command.ErrFailed

	// ErrCommandTimeout is returned when an external command exceeds its
	// wall-clock budget and is killed.
	ErrCommandTimeout = command.ErrTimeout

	// ErrStartupTimeout is returned by Start when the server does not
	// answer the readiness probe within the startup timeout. The wrapping
	// error carries the last probe failure as the likely cause.
	ErrStartupTimeout = postmaster.ErrStartupTimeout

	// ErrEarlyExit is returned by Start when the server process exits
	// before ever becoming ready.
	ErrEarlyExit = postmaster.ErrEarlyExit

	// ErrClosed is returned by AdminConn after Close.
	ErrClosed = core.ErrClosed
)
