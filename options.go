package pgenv

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pgenv/pgenv/internal/core"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive(name string, v time.Duration) {
	if v <= 0 {
		panic(fmt.Sprintf("pgenv: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("pgenv: %s must not be empty", name))
	}
}

// Option configures an instance during construction via Start.
// Each With* function returns an Option that sets a specific field.
//
// Several With* functions panic on invalid input (empty paths,
// non-positive durations). These panics are intentional: option values are
// typically compile-time constants or package-level variables, so an invalid
// value indicates a programmer error rather than a runtime condition. The
// pattern mirrors [regexp.MustCompile]: fail fast during initialization
// instead of returning errors that would be universally fatal anyway.
type Option func(*config)

// config wraps core.Config so the core type stays out of the public API.
type config struct {
	core.Config
}

// defaultConfig returns a config populated with all default values. Both
// Start and test helpers use this to avoid duplicating the default field
// assignments. RuntimeDir is left empty and resolved by Start.
func defaultConfig() config {
	return config{core.Config{
		BaseDir:        filepath.Join(os.TempDir(), DefaultBaseDirName),
		Superuser:      DefaultSuperuser,
		AdminDatabase:  DefaultAdminDatabase,
		ServerSettings: DefaultServerSettings(),
		StartupTimeout: DefaultStartupTimeout,
		ProbeInterval:  DefaultProbeInterval,
		CommandTimeout: DefaultCommandTimeout,
		StopWait:       DefaultStopWait,
	}}
}

// WithRuntimeDir sets the directory holding the platform binary archives
// (postgresql-<os>-<arch>.tar.gz). Without this option the directory is
// resolved from the PGENV_RUNTIME_DIR environment variable, falling back
// to the current working directory.
//
// Panics if dir is empty.
func WithRuntimeDir(dir string) Option {
	requireNonEmpty("runtime directory", dir)
	return func(c *config) {
		c.RuntimeDir = dir
	}
}

// WithCacheDir enables the shared extraction cache. The archive is
// extracted once into the cache directory, guarded by a file lock so
// concurrent processes on the same machine cooperate, and each instance
// receives a copy of the cached tree instead of re-extracting. Useful
// when many instances start in quick succession.
//
// Without this option every instance extracts the archive itself.
//
// Panics if dir is empty.
func WithCacheDir(dir string) Option {
	requireNonEmpty("cache directory", dir)
	return func(c *config) {
		c.CacheDir = dir
	}
}

// WithBaseDir sets the parent directory for instance working directories.
// Useful in CI environments where multiple projects start instances
// simultaneously and need isolated trees to prevent conflicts.
// If not set, defaults to a pgenv directory under the system temp
// directory.
//
// Panics if dir is empty.
func WithBaseDir(dir string) Option {
	requireNonEmpty("base directory", dir)
	return func(c *config) {
		c.BaseDir = dir
	}
}

// WithStartupTimeout sets how long Start waits for the server to answer
// the readiness probe after the process is launched. Extraction and
// initdb are not counted against this budget.
//
// Default: 10 seconds.
//
// Panics if d <= 0.
func WithStartupTimeout(d time.Duration) Option {
	requirePositive("startup timeout", d)
	return func(c *config) {
		c.StartupTimeout = d
	}
}

// WithCommandTimeout sets the wall-clock budget for each external command
// invocation: archive extraction, initdb, and pg_ctl. A command exceeding
// the budget is killed and Start (or Close) observes ErrCommandTimeout.
//
// Default: 30 seconds.
//
// Panics if d <= 0.
func WithCommandTimeout(d time.Duration) Option {
	requirePositive("command timeout", d)
	return func(c *config) {
		c.CommandTimeout = d
	}
}

// WithServerSetting adds one configuration override passed to the server
// as a -c key=value flag at start. Repeated options accumulate; setting a
// key already present in DefaultServerSettings replaces the default value.
//
// Panics if key is empty.
func WithServerSetting(key, value string) Option {
	requireNonEmpty("server setting key", key)
	return func(c *config) {
		c.ServerSettings[key] = value
	}
}
