package pgenv

import "time"

// Default configuration values for Start.
// These constants are exported so callers can reference the defaults
// when building custom configurations relative to them (e.g.,
// 2 * DefaultStartupTimeout).
const (
	// DefaultSuperuser is the bootstrap superuser created by initdb with
	// trust authentication.
	DefaultSuperuser = "postgres"

	// DefaultAdminDatabase is the administrative database used by the
	// readiness probe and AdminConn.
	DefaultAdminDatabase = "postgres"

	// DefaultStartupTimeout bounds the readiness polling loop after the
	// server process is launched.
	DefaultStartupTimeout = 10 * time.Second

	// DefaultCommandTimeout is the wall-clock budget for each external
	// command invocation (archive extraction, initdb, pg_ctl).
	DefaultCommandTimeout = 30 * time.Second

	// DefaultProbeInterval is the fixed delay between readiness probe
	// attempts during startup.
	DefaultProbeInterval = 10 * time.Millisecond

	// DefaultStopWait is how long pg_ctl waits for the fast shutdown to
	// complete before Stop falls back to killing the process.
	DefaultStopWait = 5 * time.Second

	// DefaultBaseDirName is the directory name under the system temp
	// directory where instance working directories are created. The full
	// path is computed as filepath.Join(os.TempDir(), DefaultBaseDirName).
	DefaultBaseDirName = "pgenv"

	// RuntimeDirEnv is the environment variable consulted for the runtime
	// directory when WithRuntimeDir is not given.
	RuntimeDirEnv = "PGENV_RUNTIME_DIR"
)

// DefaultServerSettings returns the configuration overrides applied to
// every server unless replaced via WithServerSetting. The values favor
// test throughput over durability: ephemeral clusters are deleted on
// Close, so losing a transaction to a crash costs nothing.
//
// A fresh map is returned on each call; callers may mutate it freely.
func DefaultServerSettings() map[string]string {
	return map[string]string{
		"timezone":           "UTC",
		"synchronous_commit": "off",
		"max_connections":    "300",
	}
}
