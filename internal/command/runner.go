package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pgenv/pgenv/internal/sentinel"
)

// ErrTimeout is returned when an external command exceeds its wall-clock
// time budget. A timed-out invocation is fatal for the operation that
// issued it; there is no retry.
const ErrTimeout = sentinel.Error("external command timed out")

// ErrFailed is returned when an external command exits non-zero or cannot
// be started at all.
const ErrFailed = sentinel.Error("external command failed")

// DefaultMaxConcurrent bounds how many external commands a Runner executes
// at once. Invocations beyond the bound wait for a slot. The commands run
// here (archive extraction, initdb, pg_ctl) are short-lived, so a small
// bound is enough to keep a misbehaving caller from fork-bombing the host.
const DefaultMaxConcurrent = 4

// outputTail is the maximum number of trailing output bytes included in an
// error message. Command output can be large (initdb prints its full
// locale report); the tail is where the failure reason lives.
const outputTail = 2048

// Runner executes external commands synchronously with an enforced
// wall-clock timeout per invocation and a bound on total concurrency.
// A hung external command can therefore never block a caller forever.
//
// Runner is safe for concurrent use.
type Runner struct {
	sem *semaphore.Weighted
	log *slog.Logger
}

// NewRunner creates a Runner that executes at most maxConcurrent commands
// simultaneously. If logger is nil, slog.Default() is used.
// Panics if maxConcurrent is not positive.
func NewRunner(maxConcurrent int64, logger *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		panic(fmt.Sprintf("pgenv: max concurrent commands must be positive, got %d", maxConcurrent))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		sem: semaphore.NewWeighted(maxConcurrent),
		log: logger,
	}
}

// Run executes name with args, waits for it to finish, and returns its
// combined stdout+stderr output. The invocation is killed once timeout
// elapses and ErrTimeout is returned. A non-zero exit (or a binary that
// cannot be started) returns ErrFailed wrapped with the tail of the
// command's output.
//
// The provided ctx bounds waiting for a concurrency slot and is a parent
// of the invocation's timeout context, so caller cancellation also kills
// the command.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout <= 0 {
		return "", fmt.Errorf("run %s: timeout must be positive, got %s", name, timeout)
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("run %s: acquire command slot: %w", name, err)
	}
	defer r.sem.Release(1)

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(cmdCtx, name, args...)
	// Bound the post-kill wait for I/O draining; without this, a killed
	// command whose grandchildren inherited the output pipe could stall
	// Wait indefinitely.
	cmd.WaitDelay = time.Second

	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	output := string(out)

	if err == nil {
		r.log.Debug("command finished", "command", name, "elapsed", elapsed)
		return output, nil
	}

	if cmdCtx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("%s %s after %s: %w", name, strings.Join(args, " "), timeout, ErrTimeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, fmt.Errorf("%s %s: exit status %d: %s: %w",
			name, strings.Join(args, " "), exitErr.ExitCode(), tail(output), ErrFailed)
	}
	return output, fmt.Errorf("%s %s: %v: %w", name, strings.Join(args, " "), err, ErrFailed)
}

// tail returns the last outputTail bytes of s, trimmed of surrounding
// whitespace, for inclusion in error messages.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > outputTail {
		s = s[len(s)-outputTail:]
	}
	return s
}
