package archive_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/pgenv/pgenv/internal/archive"
	"github.com/pgenv/pgenv/internal/command"
	"github.com/pgenv/pgenv/internal/testutil"
)

func newExtractor(t *testing.T) *archive.Extractor {
	t.Helper()
	return archive.NewExtractor(command.NewRunner(command.DefaultMaxConcurrent, nil), 30*time.Second, nil)
}

func TestPlatformFormat(t *testing.T) {
	t.Parallel()

	platform := archive.Platform()
	if !regexp.MustCompile(`^[^ ]+-[^ ]+$`).MatchString(platform) {
		t.Errorf("Platform() = %q, want <os>-<arch> with no spaces", platform)
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	if got := archive.Name("linux-amd64"); got != "postgresql-linux-amd64.tar.gz" {
		t.Errorf("Name() = %q, want postgresql-linux-amd64.tar.gz", got)
	}
}

func TestFindMissingArchive(t *testing.T) {
	t.Parallel()

	_, err := archive.Find(t.TempDir())
	if !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("Find() error = %v, want ErrNotFound", err)
	}
	// The error names the archive the caller should have bundled.
	if want := archive.Name(archive.Platform()); !regexp.MustCompile(regexp.QuoteMeta(want)).MatchString(err.Error()) {
		t.Errorf("Find() error %q does not mention %q", err, want)
	}
}

func TestFindPresentArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := testutil.WriteArchive(t, dir, testutil.ServerArchiveFiles())

	got, err := archive.Find(dir)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got != want {
		t.Errorf("Find() = %q, want %q", got, want)
	}
}

func TestExtractToProducesLayout(t *testing.T) {
	t.Parallel()

	runtimeDir := t.TempDir()
	archivePath := testutil.WriteArchive(t, runtimeDir, testutil.ServerArchiveFiles())

	workDir := t.TempDir()
	if err := newExtractor(t).ExtractTo(context.Background(), archivePath, workDir); err != nil {
		t.Fatalf("ExtractTo() error = %v", err)
	}

	for _, sub := range []string{"bin", "lib", "share"} {
		if _, err := os.Stat(filepath.Join(workDir, sub)); err != nil {
			t.Errorf("expected %s/ after extraction: %v", sub, err)
		}
	}

	info, err := os.Stat(filepath.Join(workDir, "bin", "initdb"))
	if err != nil {
		t.Fatalf("stat extracted initdb: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("extracted initdb mode = %v, want execute bit set", info.Mode().Perm())
	}
}

func TestExtractToCorruptArchive(t *testing.T) {
	t.Parallel()

	runtimeDir := t.TempDir()
	archivePath := filepath.Join(runtimeDir, archive.Name(archive.Platform()))
	if err := os.WriteFile(archivePath, []byte("this is not a tarball"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := newExtractor(t).ExtractTo(context.Background(), archivePath, t.TempDir())
	if !errors.Is(err, command.ErrFailed) {
		t.Errorf("ExtractTo() error = %v, want ErrFailed from tar", err)
	}
}

func TestProvisionDirect(t *testing.T) {
	t.Parallel()

	runtimeDir := t.TempDir()
	testutil.WriteArchive(t, runtimeDir, testutil.ServerArchiveFiles())

	workDir := t.TempDir()
	if err := newExtractor(t).Provision(context.Background(), runtimeDir, "", workDir); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "bin", "postgres")); err != nil {
		t.Errorf("expected bin/postgres in work dir: %v", err)
	}
}

func TestProvisionWithCache(t *testing.T) {
	t.Parallel()

	runtimeDir := t.TempDir()
	testutil.WriteArchive(t, runtimeDir, testutil.ServerArchiveFiles())
	cacheDir := t.TempDir()
	e := newExtractor(t)

	first := t.TempDir()
	if err := e.Provision(context.Background(), runtimeDir, cacheDir, first); err != nil {
		t.Fatalf("first Provision() error = %v", err)
	}

	entry := filepath.Join(cacheDir, archive.Platform())
	if _, err := os.Stat(filepath.Join(entry, ".complete")); err != nil {
		t.Fatalf("cache entry not marked complete: %v", err)
	}

	// Prove the second provision reads the cache, not the archive: plant a
	// sentinel file in the cache entry and verify it appears in the next
	// work dir.
	if err := os.WriteFile(filepath.Join(entry, "from-cache"), []byte("yes"), 0o644); err != nil {
		t.Fatal(err)
	}

	second := t.TempDir()
	if err := e.Provision(context.Background(), runtimeDir, cacheDir, second); err != nil {
		t.Fatalf("second Provision() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(second, "from-cache")); err != nil {
		t.Errorf("second work dir was not materialized from the cache: %v", err)
	}
	if _, err := os.Stat(filepath.Join(second, "bin", "postgres")); err != nil {
		t.Errorf("expected bin/postgres in cached work dir: %v", err)
	}
}

func TestProvisionDiscardsIncompleteCacheEntry(t *testing.T) {
	t.Parallel()

	runtimeDir := t.TempDir()
	testutil.WriteArchive(t, runtimeDir, testutil.ServerArchiveFiles())
	cacheDir := t.TempDir()

	// Simulate a crashed extraction: entry exists, no completion marker.
	entry := filepath.Join(cacheDir, archive.Platform())
	if err := os.MkdirAll(filepath.Join(entry, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(entry, "bin", "debris"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	workDir := t.TempDir()
	if err := newExtractor(t).Provision(context.Background(), runtimeDir, cacheDir, workDir); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(workDir, "bin", "debris")); err == nil {
		t.Error("debris from incomplete cache entry survived re-extraction")
	}
	if _, err := os.Stat(filepath.Join(workDir, "bin", "postgres")); err != nil {
		t.Errorf("expected bin/postgres after re-extraction: %v", err)
	}
}

func TestProvisionMissingArchive(t *testing.T) {
	t.Parallel()

	err := newExtractor(t).Provision(context.Background(), t.TempDir(), "", t.TempDir())
	if !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("Provision() error = %v, want ErrNotFound", err)
	}
}
