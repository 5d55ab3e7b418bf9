package postmaster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pgenv/pgenv/internal/command"
	"github.com/pgenv/pgenv/internal/sentinel"
)

// ErrAlreadyStarted is returned when Start is called on a process that is
// already running.
const ErrAlreadyStarted = sentinel.Error("server process already started")

// killDrainTimeout is the hard upper bound for waiting on the wait
// goroutine after the process has been stopped or killed. SIGKILL cannot
// be caught, so this should never fire; it exists to prevent indefinite
// blocking if cmd.Wait hangs on stuck I/O.
const killDrainTimeout = 10 * time.Second

// Config holds everything needed to run one server process.
type Config struct {
	BinDir   string            // directory holding postgres and pg_ctl
	DataDir  string            // cluster data directory
	Port     int               // listen port
	Settings map[string]string // server configuration overrides, passed as -c key=value

	// Runner executes pg_ctl with an enforced timeout.
	Runner *command.Runner
	// CommandTimeout is the wall-clock budget for each pg_ctl invocation.
	CommandTimeout time.Duration
	// StopWait is how long pg_ctl waits for a fast shutdown before giving
	// up, passed as its -t argument (whole seconds).
	StopWait time.Duration

	// Logger (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// validate checks that all required Config fields are set and returns an
// error describing the first missing or invalid field.
func (c Config) validate() error {
	if c.BinDir == "" {
		return errors.New("bin dir must not be empty")
	}
	if c.DataDir == "" {
		return errors.New("data dir must not be empty")
	}
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	if c.Runner == nil {
		return errors.New("runner must not be nil")
	}
	if c.CommandTimeout <= 0 {
		return errors.New("command timeout must be positive")
	}
	if c.StopWait <= 0 {
		return errors.New("stop wait must be positive")
	}
	return nil
}

// Process manages one postgres server process.
//
// Process is not safe for concurrent use; the owning instance serializes
// Start, WaitReady and Stop, and guards Stop behind its one-shot close
// flag.
type Process struct {
	cfg Config
	log *slog.Logger

	cmd      *exec.Cmd
	waitDone <-chan error    // receives the single cmd.Wait result
	exited   <-chan struct{} // closed when the process exits; safe for many readers
}

// New creates a Process from cfg. New performs no I/O; the process is
// launched by Start.
func New(cfg Config) (*Process, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid postmaster config: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Process{cfg: cfg, log: log}, nil
}

// bin returns the path of a server executable inside the bin directory.
func (p *Process) bin(name string) string {
	return filepath.Join(p.cfg.BinDir, name)
}

// Start spawns the server in the foreground, bound to the configured port,
// with all configuration overrides applied as one batch of -c flags. The
// server's stdout and stderr are merged into this process's stdout so
// startup problems are directly visible in test output.
func (p *Process) Start() error {
	if p.cmd != nil {
		return ErrAlreadyStarted
	}

	args := []string{
		"-D", p.cfg.DataDir,
		"-p", strconv.Itoa(p.cfg.Port),
		"-i",
		"-F",
	}
	// Sorted key order keeps the command line deterministic; the server
	// does not care about override order.
	keys := make([]string, 0, len(p.cfg.Settings))
	for k := range p.cfg.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-c", k+"="+p.cfg.Settings[k])
	}

	cmd := exec.Command(p.bin("postgres"), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stdout
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start postgres: %w", err)
	}
	p.cmd = cmd

	// cmd.Wait must be called exactly once per started process, so the
	// single wait goroutine starts here. Two channels are derived from it:
	// waitDone (buffered, consumed once during Stop) and exited (closed on
	// exit, readable from any number of goroutines, e.g. the readiness
	// poll loop).
	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		done <- cmd.Wait()
		close(exited)
	}()
	p.waitDone = done
	p.exited = exited

	p.log.Info("postmaster started", "port", p.cfg.Port, "pid", cmd.Process.Pid)
	return nil
}

// IsStarted reports whether Start has been called successfully.
func (p *Process) IsStarted() bool {
	return p.cmd != nil
}

// Exited returns a channel that is closed when the server process exits.
// Returns nil if the process was never started.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Stop performs a controlled shutdown: pg_ctl stop in fast mode, bounded
// by StopWait, blocking until the server reports stopped. If the pg_ctl
// invocation fails — or returns successfully while the process is somehow
// still alive — the child is killed directly. Stop never leaves the
// process running: after it returns, the server has exited or been
// SIGKILLed.
//
// The pg_ctl error (if any) is returned for logging; callers proceed with
// cleanup regardless.
func (p *Process) Stop(ctx context.Context) error {
	if p.cmd == nil {
		return nil
	}

	_, err := p.cfg.Runner.Run(ctx, p.cfg.CommandTimeout,
		p.bin("pg_ctl"),
		"stop",
		"-D", p.cfg.DataDir,
		"-m", "fast",
		"-t", strconv.Itoa(int(p.cfg.StopWait/time.Second)),
		"-w",
	)
	if err != nil {
		p.log.Warn("pg_ctl stop failed; killing postmaster directly",
			"pid", p.cmd.Process.Pid, "error", err)
		p.Kill()
	} else {
		// pg_ctl can report success while the process lingers (it matches
		// on the pid file, not on our child). Treat that as a failed stop
		// and escalate rather than deleting the data directory under a
		// live server.
		select {
		case <-p.exited:
		default:
			p.log.Warn("pg_ctl stop returned but postmaster is still running; killing",
				"pid", p.cmd.Process.Pid)
			p.Kill()
		}
	}

	p.drain()
	return err
}

// Kill forcibly terminates the server process. Killing an already-exited
// process is harmless; the resulting error is discarded.
func (p *Process) Kill() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Kill()
}

// drain waits for the wait goroutine to deliver the exit status, bounded
// by killDrainTimeout. Exit errors are expected here — the server was
// told to shut down — so they are logged at debug level only.
func (p *Process) drain() {
	t := time.NewTimer(killDrainTimeout)
	defer t.Stop()

	select {
	case waitErr := <-p.waitDone:
		if waitErr != nil {
			p.log.Debug("postmaster exited", "error", waitErr)
		}
	case <-t.C:
		p.log.Warn("timed out waiting for postmaster to exit; process may be orphaned",
			"pid", p.cmd.Process.Pid)
	}
}
