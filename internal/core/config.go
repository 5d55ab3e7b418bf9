package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/pgenv/pgenv/internal/postmaster"
)

// Config holds configuration for one Instance.
//
// All fields are immutable after NewInstance; the instance and its probe
// goroutine read them without synchronization.
type Config struct {
	// RuntimeDir is the directory holding the platform binary archives
	// (postgresql-<platform>.tar.gz).
	RuntimeDir string

	// CacheDir optionally enables the shared extraction cache: the archive
	// is extracted once per machine under a file lock and copied into each
	// instance's working directory. Empty means extract directly.
	CacheDir string

	// BaseDir is the parent directory for instance working directories.
	BaseDir string

	// Superuser is the name of the bootstrap superuser created by initdb
	// with trust authentication.
	Superuser string

	// AdminDatabase is the default administrative database used by the
	// readiness probe and AdminConn.
	AdminDatabase string

	// ServerSettings are configuration overrides applied as one batch of
	// -c flags at server start.
	ServerSettings map[string]string

	// StartupTimeout bounds the readiness polling loop.
	StartupTimeout time.Duration

	// ProbeInterval is the fixed delay between readiness probe attempts.
	ProbeInterval time.Duration

	// CommandTimeout is the wall-clock budget for each external command
	// invocation (extraction, initdb, pg_ctl).
	CommandTimeout time.Duration

	// StopWait is how long pg_ctl waits for a fast shutdown.
	StopWait time.Duration

	// ReadyProbe overrides the default SELECT-based readiness probe.
	// Nil means probe with a real client connection. Tests running against
	// scripted stand-in binaries inject their own probe here.
	ReadyProbe postmaster.ProbeFunc
}

// Validate checks all Config invariants and returns an error describing
// every violation found, using errors.Join so callers can fix all problems
// in one pass.
func (c Config) Validate() error {
	var errs []error

	if c.RuntimeDir == "" {
		errs = append(errs, errors.New("runtime directory must not be empty"))
	}
	if c.BaseDir == "" {
		errs = append(errs, errors.New("base directory must not be empty"))
	}
	if c.Superuser == "" {
		errs = append(errs, errors.New("superuser name must not be empty"))
	}
	if c.AdminDatabase == "" {
		errs = append(errs, errors.New("admin database name must not be empty"))
	}
	if c.StartupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("startup timeout must be greater than 0, got %s", c.StartupTimeout))
	}
	if c.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("probe interval must be greater than 0, got %s", c.ProbeInterval))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("command timeout must be greater than 0, got %s", c.CommandTimeout))
	}
	if c.StopWait < time.Second {
		errs = append(errs, fmt.Errorf("stop wait must be at least 1s, got %s", c.StopWait))
	}

	return errors.Join(errs...)
}
