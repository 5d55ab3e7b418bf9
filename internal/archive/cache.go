package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/pgenv/pgenv/internal/fileutil"
)

// fileLockRetryInterval is the interval between attempts to acquire the
// cache file lock while another process is extracting.
const fileLockRetryInterval = 50 * time.Millisecond

// completeMarker is written into a cache entry after extraction finishes.
// Its presence distinguishes a usable entry from a crashed, half-extracted
// one: an entry without the marker is re-extracted from scratch.
const completeMarker = ".complete"

// Provision materializes the platform's binary distribution into workDir so
// that bin/, lib/ and share/ exist under it afterwards.
//
// With an empty cacheDir the archive in runtimeDir is extracted directly
// into workDir. With a cacheDir, the archive is extracted once per machine
// into <cacheDir>/<platform> under an exclusive file lock (safe across
// processes sharing the cache), and each instance copies the extracted tree
// into its own private working directory.
func (e *Extractor) Provision(ctx context.Context, runtimeDir, cacheDir, workDir string) error {
	archivePath, err := Find(runtimeDir)
	if err != nil {
		return err
	}

	if cacheDir == "" {
		return e.ExtractTo(ctx, archivePath, workDir)
	}

	entry, err := e.ensureCached(ctx, archivePath, cacheDir)
	if err != nil {
		return err
	}
	if err := fileutil.CopyTree(entry, workDir); err != nil {
		return fmt.Errorf("copy cached distribution into work dir: %w", err)
	}
	return nil
}

// ensureCached returns the path of a fully extracted cache entry for the
// host platform, extracting the archive first if no usable entry exists.
func (e *Extractor) ensureCached(ctx context.Context, archivePath, cacheDir string) (string, error) {
	platform := Platform()
	entry := filepath.Join(cacheDir, platform)
	marker := filepath.Join(entry, completeMarker)

	// Fast path: a completed entry needs no lock. The marker is written
	// only after extraction succeeds, so observing it means the entry is
	// fully materialized.
	if _, err := os.Stat(marker); err == nil {
		return entry, nil
	}

	if err := fileutil.EnsureDir(cacheDir); err != nil {
		return "", err
	}

	lockPath := filepath.Join(cacheDir, platform+".lock")
	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, fileLockRetryInterval)
	if err != nil {
		return "", fmt.Errorf("acquire cache lock %s: %w", lockPath, err)
	}
	if !locked {
		return "", fmt.Errorf("acquire cache lock %s: lock not acquired", lockPath)
	}
	// The lock file itself stays on disk: removing it would race with
	// another process that just opened it.
	defer func() {
		if closeErr := fl.Close(); closeErr != nil {
			e.log.Debug("release cache lock", "path", lockPath, "error", closeErr)
		}
	}()

	// Re-check under the lock; another process may have finished while we
	// were waiting.
	if _, err := os.Stat(marker); err == nil {
		return entry, nil
	}

	// A directory without the marker is debris from a crashed extraction.
	if _, err := os.Stat(entry); err == nil {
		e.log.Warn("discarding incomplete cache entry", "path", entry)
		if err := os.RemoveAll(entry); err != nil {
			return "", fmt.Errorf("remove incomplete cache entry: %w", err)
		}
	}

	if err := fileutil.EnsureDir(entry); err != nil {
		return "", err
	}
	if err := e.ExtractTo(ctx, archivePath, entry); err != nil {
		// Leave no half-filled entry behind.
		_ = os.RemoveAll(entry)
		return "", err
	}
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		_ = os.RemoveAll(entry)
		return "", fmt.Errorf("write cache completion marker: %w", err)
	}

	e.log.Info("cached binary distribution", "platform", platform, "path", entry)
	return entry, nil
}
