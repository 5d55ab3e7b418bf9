package postmaster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/pgenv/pgenv/internal/sentinel"
)

// ErrStartupTimeout is returned when the server never becomes ready within
// the startup timeout. The returned error wraps the last transient probe
// failure so callers can see why the server was not answering.
const ErrStartupTimeout = sentinel.Error("server failed to become ready before timeout")

// ErrEarlyExit is returned when the server process exits before the
// readiness probe ever succeeds. A dead process will never become ready,
// so polling aborts immediately instead of burning the remaining timeout.
const ErrEarlyExit = sentinel.Error("server process exited before becoming ready")

// ProbeFunc performs one readiness attempt against the server. A nil
// return means ready; any error is a transient failure to be retried.
// The context carries the poll loop's deadline, so probes that dial or
// query exit promptly when the loop times out.
type ProbeFunc func(ctx context.Context) error

// WaitReady polls probe at the given interval until it succeeds, the
// timeout elapses, or the server process exits. The first attempt runs
// immediately. Every transient failure is swallowed and retried with no
// backoff; the loop is bounded only by the overall timeout.
//
// This is the only blocking operation the harness exposes: construction
// does not return until WaitReady resolves one way or the other.
func (p *Process) WaitReady(ctx context.Context, timeout, interval time.Duration, probe ProbeFunc) error {
	if p.cmd == nil {
		return errors.New("wait ready: server process not started")
	}
	if interval <= 0 {
		return fmt.Errorf("wait ready: interval must be positive, got %s", interval)
	}
	if timeout <= 0 {
		return fmt.Errorf("wait ready: timeout must be positive, got %s", timeout)
	}

	// lastErr is written only by the sequentially invoked condition
	// closure, so no synchronization is needed.
	var lastErr error
	attempt := 0
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true,
		func(pollCtx context.Context) (bool, error) {
			// A dead process will never answer; fail fast instead of
			// retrying into the timeout.
			select {
			case <-p.exited:
				return false, fmt.Errorf("%w (see merged server output above)", ErrEarlyExit)
			default:
			}

			attempt++
			if probeErr := probe(pollCtx); probeErr != nil {
				lastErr = probeErr
				p.log.Debug("readiness probe attempt failed",
					"port", p.cfg.Port, "attempt", attempt, "error", probeErr)
				return false, nil
			}
			p.log.Debug("readiness probe succeeded", "port", p.cfg.Port, "attempt", attempt)
			return true, nil
		})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEarlyExit) {
		return err
	}
	if lastErr != nil {
		return fmt.Errorf("%w (%s): last cause: %w", ErrStartupTimeout, timeout, lastErr)
	}
	return fmt.Errorf("%w (%s): %v", ErrStartupTimeout, timeout, err)
}
