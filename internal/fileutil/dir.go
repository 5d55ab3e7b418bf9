package fileutil

import (
	"fmt"
	"log/slog"
	"os"
)

// EnsureDir creates a directory and all parent directories if they don't
// exist. Uses mode 0755. Returns nil if the directory already exists.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// RemoveAllLogged recursively deletes path, logging a warning on failure
// instead of returning an error. Cleanup failures must never mask the
// error that triggered the cleanup, so callers treat deletion as
// best-effort.
func RemoveAllLogged(log *slog.Logger, path string) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.RemoveAll(path); err != nil {
		log.Warn("remove directory", "path", path, "error", err)
	}
}
