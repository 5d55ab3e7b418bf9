// Package testutil builds synthetic binary archives and scripted stand-in
// executables so lifecycle tests can run without a real PostgreSQL
// distribution.
package testutil

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/pgenv/pgenv/internal/archive"
)

// File describes one entry of a synthetic archive.
type File struct {
	Name string // path inside the archive, e.g. "bin/initdb"
	Mode int64  // permission bits, e.g. 0o755
	Body string
}

// WriteArchive writes a gzip'd tar archive named for the host platform into
// dir and returns its path. Parent directories of entries are created by
// tar on extraction, so only file entries are emitted.
func WriteArchive(t *testing.T, dir string, files []File) string {
	t.Helper()

	path := filepath.Join(dir, archive.Name(archive.Platform()))
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			t.Fatalf("close archive: %v", err)
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, file := range files {
		hdr := &tar.Header{
			Name: file.Name,
			Mode: file.Mode,
			Size: int64(len(file.Body)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %s: %v", file.Name, err)
		}
		if _, err := tw.Write([]byte(file.Body)); err != nil {
			t.Fatalf("write tar body %s: %v", file.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	return path
}

// WriteScript writes an executable shell script to path, creating parent
// directories as needed.
func WriteScript(t *testing.T, path, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create script dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
}

// ServerArchiveFiles returns archive entries for a scripted stand-in
// distribution: an initdb that creates the data directory, a postgres that
// records its pid and sleeps, and a pg_ctl that kills the recorded pid.
// The scripts understand exactly the flag order the harness passes.
func ServerArchiveFiles() []File {
	return []File{
		{
			// Args: -A trust -U <user> -D <datadir> -E UTF-8
			Name: "bin/initdb",
			Mode: 0o755,
			Body: "#!/bin/sh\nmkdir -p \"$6\"\n",
		},
		{
			// Args: -D <datadir> -p <port> -i -F [-c k=v ...]
			// -V prints a version banner instead.
			Name: "bin/postgres",
			Mode: 0o755,
			Body: "#!/bin/sh\nif [ \"$1\" = \"-V\" ]; then echo 'postgres (stub) 16.0'; exit 0; fi\necho $$ > \"$2/postmaster.pid\"\nexec sleep 600\n",
		},
		{
			// Args: stop -D <datadir> -m fast -t 5 -w
			Name: "bin/pg_ctl",
			Mode: 0o755,
			Body: "#!/bin/sh\nif [ -n \"$PGENV_TEST_STOPLOG\" ]; then echo stop >> \"$PGENV_TEST_STOPLOG\"; fi\nkill \"$(head -1 \"$3/postmaster.pid\")\" 2>/dev/null\nexit 0\n",
		},
		{Name: "lib/libpq.so.5", Mode: 0o644, Body: "stub"},
		{Name: "share/postgresql.conf.sample", Mode: 0o644, Body: "# stub\n"},
	}
}
