package pgenv

import (
	"context"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/pgenv/pgenv/internal/command"
	"github.com/pgenv/pgenv/internal/core"
	"github.com/pgenv/pgenv/internal/netutil"
)

// Process-wide state shared by all instances: the port registry that keeps
// concurrently started instances on distinct ports, and the command runner
// that bounds how many external commands run at once.
//
// Both are created lazily on the first Start so they pick up a logger
// installed via SetLogger beforehand.
var (
	sharedMu     sync.Mutex
	sharedPorts  *netutil.PortRegistry
	sharedRunner *command.Runner
)

// Compile-time interface satisfaction check.
var _ Instance = (*instanceWrapper)(nil)

// Instance is a running disposable PostgreSQL server.
//
// All methods except Close are read-only and safe for concurrent use.
// Close is idempotent and safe to call concurrently; the teardown runs
// exactly once.
type Instance interface {
	// Port returns the TCP port the server listens on. The port is owned
	// by this instance until Close.
	Port() int

	// ConnectionURL builds a connection string for the given username and
	// database on this instance, in the form
	// postgres://localhost:<port>/<database>?user=<user>.
	ConnectionURL(user, database string) string

	// AdminConn opens a new connection as the superuser to the
	// administrative database. Every call opens a fresh connection that
	// the caller owns and must close. Returns ErrClosed after Close.
	AdminConn(ctx context.Context) (*pgx.Conn, error)

	// WorkDir returns the instance's private working directory, holding
	// the extracted distribution and the cluster data. The directory is
	// deleted by Close.
	WorkDir() string

	// Close stops the server and deletes the working directory. Safe to
	// call multiple times and from multiple goroutines; only the first
	// call has any effect. Close never fails: a stubborn server process
	// is killed, and cleanup errors are logged and ignored.
	Close()
}

// instanceWrapper wraps core.Instance to implement the Instance interface.
//
// The core.Instance is stored as a named (unexported) field rather than
// embedded to prevent callers from using type assertions to access
// internal methods that are not part of the public Instance interface.
type instanceWrapper struct {
	inst *core.Instance
}

func (w *instanceWrapper) Port() int { return w.inst.Port() }

func (w *instanceWrapper) ConnectionURL(user, database string) string {
	return w.inst.ConnectionURL(user, database)
}

func (w *instanceWrapper) AdminConn(ctx context.Context) (*pgx.Conn, error) {
	return w.inst.AdminConn(ctx)
}

func (w *instanceWrapper) WorkDir() string { return w.inst.WorkDir() }

func (w *instanceWrapper) Close() { w.inst.Close() }

// sharedDeps returns the process-wide port registry and command runner,
// creating them on first use.
func sharedDeps() (*netutil.PortRegistry, *command.Runner) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedPorts == nil {
		sharedPorts = netutil.NewPortRegistry(core.Logger())
		sharedRunner = command.NewRunner(command.DefaultMaxConcurrent, core.Logger())
	}
	return sharedPorts, sharedRunner
}

// runtimeDir resolves the default runtime directory: the PGENV_RUNTIME_DIR
// environment variable if set, otherwise the current working directory.
func runtimeDir() string {
	if dir := os.Getenv(RuntimeDirEnv); dir != "" {
		return dir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// Start launches a new disposable server and blocks until it accepts
// connections and answers queries, or until construction definitively
// fails. On failure everything already created (process, port, working
// directory) is torn down before the error is returned.
//
// Instances are independent; Start may be called concurrently and each
// call yields its own server on its own port.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // Instance is the public contract; the concrete type is internal.
func Start(ctx context.Context, opts ...Option) (Instance, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RuntimeDir == "" {
		cfg.RuntimeDir = runtimeDir()
	}

	ports, runner := sharedDeps()
	inst, err := core.NewInstance(ctx, cfg.Config, ports, runner)
	if err != nil {
		return nil, err
	}
	return &instanceWrapper{inst: inst}, nil
}
