package pgenv_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pgenv/pgenv"
)

// TestPublicErrorConstants verifies that every exported error constant:
//   - implements the error interface (Error() returns a non-empty string)
//   - matches itself via errors.Is
//   - matches itself when wrapped via fmt.Errorf %w
//   - does not match a different error constant
func TestPublicErrorConstants(t *testing.T) {
	t.Parallel()

	// All exported sentinel errors.
	allErrors := map[string]error{
		"ErrArchiveNotFound": pgenv.ErrArchiveNotFound,
		"ErrCommandFailed":   pgenv.ErrCommandFailed,
		"ErrCommandTimeout":  pgenv.ErrCommandTimeout,
		"ErrStartupTimeout":  pgenv.ErrStartupTimeout,
		"ErrEarlyExit":       pgenv.ErrEarlyExit,
		"ErrClosed":          pgenv.ErrClosed,
	}

	for name, sentinel := range allErrors {
		name, sentinel := name, sentinel
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			// Must implement error interface with a non-empty message.
			if sentinel == nil {
				t.Fatalf("%s is nil", name)
			}
			if msg := sentinel.Error(); msg == "" {
				t.Errorf("%s.Error() returned empty string", name)
			}

			// Direct errors.Is match.
			if !errors.Is(sentinel, sentinel) {
				t.Errorf("errors.Is(%s, %s) = false, want true (self-match)", name, name)
			}

			// Wrapped errors.Is match.
			wrapped := fmt.Errorf("wrapping: %w", sentinel)
			if !errors.Is(wrapped, sentinel) {
				t.Errorf("errors.Is(wrapped %s) = false, want true", name)
			}

			// Must not match a different error constant.
			differentErr := errors.New("some other error")
			if errors.Is(sentinel, differentErr) {
				t.Errorf("errors.Is(%s, errors.New(...)) = true, want false", name)
			}
		})
	}
}

// TestPublicErrorConstantsAreDistinct verifies that no two exported error
// constants are equal to each other (every sentinel has a unique identity).
func TestPublicErrorConstantsAreDistinct(t *testing.T) {
	t.Parallel()

	named := []struct {
		name string
		err  error
	}{
		{"ErrArchiveNotFound", pgenv.ErrArchiveNotFound},
		{"ErrCommandFailed", pgenv.ErrCommandFailed},
		{"ErrCommandTimeout", pgenv.ErrCommandTimeout},
		{"ErrStartupTimeout", pgenv.ErrStartupTimeout},
		{"ErrEarlyExit", pgenv.ErrEarlyExit},
		{"ErrClosed", pgenv.ErrClosed},
	}

	for i, a := range named {
		for _, b := range named[i+1:] {
			if errors.Is(a.err, b.err) {
				t.Errorf("errors.Is(%s, %s) = true: constants must be distinct", a.name, b.name)
			}
			if errors.Is(b.err, a.err) {
				t.Errorf("errors.Is(%s, %s) = true: constants must be distinct", b.name, a.name)
			}
		}
	}
}
