package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5"

	"github.com/pgenv/pgenv/internal/archive"
	"github.com/pgenv/pgenv/internal/command"
	"github.com/pgenv/pgenv/internal/fileutil"
	"github.com/pgenv/pgenv/internal/netutil"
	"github.com/pgenv/pgenv/internal/postmaster"
	"github.com/pgenv/pgenv/internal/sentinel"
)

// ErrClosed is returned by AdminConn after Close.
const ErrClosed = sentinel.Error("instance is closed")

// connectionURLFormat is the exact connection string shape exposed to
// callers. The port/database/user ordering is a compatibility contract;
// do not reorder the verbs.
const connectionURLFormat = "postgres://localhost:%d/%s?user=%s"

// dataDirName is the cluster data directory created by initdb inside the
// instance's working directory.
const dataDirName = "data"

// Instance is one ephemeral server: a private working directory holding
// the extracted distribution and the cluster data, a port owned for the
// instance's lifetime, and the supervised server process.
//
// An Instance is constructed once and may then be shared read-only by many
// goroutines for connection info. Close is safe to call concurrently and
// repeatedly; the teardown sequence executes exactly once, guarded by an
// atomic closed flag, and every later call is a no-op.
type Instance struct {
	cfg Config
	log *slog.Logger

	workDir string
	dataDir string
	port    int

	ports  *netutil.PortRegistry
	runner *command.Runner
	server *postmaster.Process

	closed atomic.Bool
}

// NewInstance builds and starts an instance: allocate a port, extract the
// platform archive into a fresh working directory, initialize the cluster,
// start the server, and block until the readiness probe succeeds. It does
// not return until the instance is usable or has definitively failed.
//
// On any failure the same teardown path as Close runs before the error
// propagates, so a partial setup never leaks a process or a directory.
//
// Panics if ports or runner is nil; these are wired by the package-level
// constructor and a nil here is a programmer error.
func NewInstance(ctx context.Context, cfg Config, ports *netutil.PortRegistry, runner *command.Runner) (*Instance, error) {
	if ports == nil {
		panic("pgenv: instance port registry must not be nil")
	}
	if runner == nil {
		panic("pgenv: instance command runner must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instance config: %w", err)
	}

	if err := fileutil.EnsureDir(cfg.BaseDir); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(cfg.BaseDir, "pgenv-")
	if err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	inst := &Instance{
		cfg:     cfg,
		log:     Logger().With("workdir", filepath.Base(workDir)),
		workDir: workDir,
		dataDir: filepath.Join(workDir, dataDirName),
		ports:   ports,
		runner:  runner,
	}

	if err := inst.setup(ctx); err != nil {
		inst.Close()
		return nil, err
	}
	return inst, nil
}

// setup runs the construction sequence on the calling goroutine. Only the
// readiness wait blocks for any significant time.
func (i *Instance) setup(ctx context.Context) error {
	port, err := i.ports.Allocate()
	if err != nil {
		return fmt.Errorf("allocate port: %w", err)
	}
	i.port = port

	extractor := archive.NewExtractor(i.runner, i.cfg.CommandTimeout, i.log)
	if err := extractor.Provision(ctx, i.cfg.RuntimeDir, i.cfg.CacheDir, i.workDir); err != nil {
		return err
	}

	if err := i.logServerVersion(ctx); err != nil {
		return err
	}
	if err := i.initdb(ctx); err != nil {
		return err
	}

	server, err := postmaster.New(postmaster.Config{
		BinDir:         filepath.Join(i.workDir, "bin"),
		DataDir:        i.dataDir,
		Port:           i.port,
		Settings:       i.cfg.ServerSettings,
		Runner:         i.runner,
		CommandTimeout: i.cfg.CommandTimeout,
		StopWait:       i.cfg.StopWait,
		Logger:         i.log,
	})
	if err != nil {
		return err
	}
	i.server = server

	if err := server.Start(); err != nil {
		return err
	}

	probe := i.cfg.ReadyProbe
	if probe == nil {
		probe = defaultProbe(i.ConnectionURL(i.cfg.Superuser, i.cfg.AdminDatabase))
	}
	i.log.Info("waiting for server startup", "port", i.port, "timeout", i.cfg.StartupTimeout)
	if err := server.WaitReady(ctx, i.cfg.StartupTimeout, i.cfg.ProbeInterval, probe); err != nil {
		return err
	}

	i.log.Info("server ready", "port", i.port)
	return nil
}

// logServerVersion runs postgres -V and logs the banner. A distribution
// whose server binary cannot even print its version is broken, so the
// failure is fatal, matching the other construction steps.
func (i *Instance) logServerVersion(ctx context.Context) error {
	out, err := i.runner.Run(ctx, i.cfg.CommandTimeout, filepath.Join(i.workDir, "bin", "postgres"), "-V")
	if err != nil {
		return fmt.Errorf("query server version: %w", err)
	}
	i.log.Info("server version", "version", strings.TrimSpace(out))
	return nil
}

// initdb creates the cluster: trust-based local authentication, the fixed
// superuser, UTF-8 encoding, in the instance's private data directory.
// The server is only started after this completes successfully.
func (i *Instance) initdb(ctx context.Context) error {
	_, err := i.runner.Run(ctx, i.cfg.CommandTimeout,
		filepath.Join(i.workDir, "bin", "initdb"),
		"-A", "trust",
		"-U", i.cfg.Superuser,
		"-D", i.dataDir,
		"-E", "UTF-8",
	)
	if err != nil {
		return fmt.Errorf("initialize cluster: %w", err)
	}
	return nil
}

// Port returns the port the server listens on. Immutable for the
// instance's lifetime.
func (i *Instance) Port() int {
	return i.port
}

// WorkDir returns the instance's private working directory.
func (i *Instance) WorkDir() string {
	return i.workDir
}

// ConnectionURL builds a connection string for the given username and
// database on this instance.
func (i *Instance) ConnectionURL(user, database string) string {
	return fmt.Sprintf(connectionURLFormat, i.port, database, user)
}

// AdminConn opens a new connection as the superuser to the administrative
// database. Every call opens a fresh connection that the caller owns and
// must close; nothing is pooled or cached. Returns ErrClosed after Close.
func (i *Instance) AdminConn(ctx context.Context) (*pgx.Conn, error) {
	if i.closed.Load() {
		return nil, ErrClosed
	}
	conn, err := pgx.Connect(ctx, i.ConnectionURL(i.cfg.Superuser, i.cfg.AdminDatabase))
	if err != nil {
		return nil, fmt.Errorf("connect to admin database: %w", err)
	}
	return conn, nil
}

// Close stops the server and recursively deletes the working directory.
// It is idempotent and safe for concurrent callers: the compare-and-swap
// on the closed flag lets exactly one caller run the teardown; all others
// return immediately.
//
// Close never returns an error. A failed controlled stop is logged and
// followed by a direct kill; a failed directory deletion is logged and
// ignored. Cleanup is never skipped because an earlier step failed.
func (i *Instance) Close() {
	if !i.closed.CompareAndSwap(false, true) {
		return
	}

	if i.server != nil && i.server.IsStarted() {
		// The runner bounds the pg_ctl invocation; no extra deadline needed.
		if err := i.server.Stop(context.Background()); err != nil {
			i.log.Warn("controlled stop failed; postmaster was killed directly", "error", err)
		}
	}

	if i.port != 0 {
		i.ports.Release(i.port)
	}

	fileutil.RemoveAllLogged(i.log, i.workDir)
	i.log.Debug("instance closed")
}
