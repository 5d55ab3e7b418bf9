package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pgenv/pgenv/internal/command"
	"github.com/pgenv/pgenv/internal/sentinel"
)

// ErrNotFound is returned when no archive exists for the host platform.
// This is fatal and unretryable: the distribution for this OS/architecture
// was never bundled, so no amount of waiting will produce one.
const ErrNotFound = sentinel.Error("no binary archive for platform")

// namePattern is the exact archive file name for a platform identifier.
const namePattern = "postgresql-%s.tar.gz"

// Platform returns the normalized host platform identifier used to select
// the vendored archive: the OS name and CPU architecture joined with a
// dash, spaces replaced by underscores.
func Platform() string {
	return strings.ReplaceAll(runtime.GOOS+"-"+runtime.GOARCH, " ", "_")
}

// Name returns the archive file name for the given platform identifier.
func Name(platform string) string {
	return fmt.Sprintf(namePattern, platform)
}

// Find resolves the archive for the host platform inside runtimeDir.
// Returns ErrNotFound (wrapped with the expected file name) if the archive
// does not exist.
func Find(runtimeDir string) (string, error) {
	name := Name(Platform())
	path := filepath.Join(runtimeDir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s in %s: %w", name, runtimeDir, ErrNotFound)
		}
		return "", fmt.Errorf("stat archive %s: %w", path, err)
	}
	return path, nil
}

// Extractor materializes archives into instance working directories.
type Extractor struct {
	runner  *command.Runner
	timeout time.Duration // per-invocation budget for tar
	log     *slog.Logger
}

// NewExtractor creates an Extractor that runs tar through the given runner
// with the given per-invocation timeout. If logger is nil, slog.Default()
// is used. Panics if runner is nil or timeout is not positive.
func NewExtractor(runner *command.Runner, timeout time.Duration, logger *slog.Logger) *Extractor {
	if runner == nil {
		panic("pgenv: extractor runner must not be nil")
	}
	if timeout <= 0 {
		panic(fmt.Sprintf("pgenv: extractor timeout must be positive, got %s", timeout))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{runner: runner, timeout: timeout, log: logger}
}

// ExtractTo unpacks archivePath into destDir. The archive is first copied
// to a temporary file so extraction never reads the bundled original, then
// untarred via the command runner. The temporary copy is deleted afterwards
// regardless of extraction outcome; a failed deletion is logged, not fatal.
func (e *Extractor) ExtractTo(ctx context.Context, archivePath, destDir string) error {
	tmp, err := stageTempCopy(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if removeErr := os.Remove(tmp); removeErr != nil {
			e.log.Warn("delete temporary archive copy", "path", tmp, "error", removeErr)
		}
	}()

	if _, err := e.runner.Run(ctx, e.timeout, "tar", "-xzf", tmp, "-C", destDir); err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(archivePath), err)
	}
	return nil
}

// stageTempCopy copies src to a fresh temporary file and returns its path.
// The caller owns the returned file and removes it when done.
func stageTempCopy(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.CreateTemp("", "postgresql-*.tar.gz")
	if err != nil {
		return "", fmt.Errorf("create temporary archive copy: %w", err)
	}
	tmp := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("stage archive copy: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temporary archive copy: %w", err)
	}
	return tmp, nil
}
