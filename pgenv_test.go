package pgenv_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/pgenv/pgenv"
	"github.com/pgenv/pgenv/internal/testutil"
)

// readyImmediately stands in for the connection-based probe; the scripted
// server never accepts real client connections.
func readyImmediately(context.Context) error { return nil }

// writeRuntime creates a runtime directory holding a scripted stand-in
// archive and returns its path.
func writeRuntime(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteArchive(t, dir, testutil.ServerArchiveFiles())
	return dir
}

func TestStartAndClose(t *testing.T) {
	t.Parallel()

	inst, err := pgenv.Start(context.Background(),
		pgenv.WithRuntimeDir(writeRuntime(t)),
		pgenv.WithBaseDir(t.TempDir()),
		pgenv.WithReadyProbeForTesting(readyImmediately),
	)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer inst.Close()

	if inst.Port() <= 0 {
		t.Errorf("Port() = %d, want > 0", inst.Port())
	}
	if _, err := os.Stat(inst.WorkDir()); err != nil {
		t.Errorf("WorkDir() not accessible: %v", err)
	}

	want := fmt.Sprintf("postgres://localhost:%d/testdb?user=tester", inst.Port())
	if got := inst.ConnectionURL("tester", "testdb"); got != want {
		t.Errorf("ConnectionURL() = %q, want %q", got, want)
	}

	inst.Close()
	if _, err := os.Stat(inst.WorkDir()); !os.IsNotExist(err) {
		t.Errorf("working directory still present after Close: %v", err)
	}
}

func TestStartResolvesRuntimeDirFromEnvironment(t *testing.T) {
	t.Setenv(pgenv.RuntimeDirEnv, writeRuntime(t))

	inst, err := pgenv.Start(context.Background(),
		pgenv.WithBaseDir(t.TempDir()),
		pgenv.WithReadyProbeForTesting(readyImmediately),
	)
	if err != nil {
		t.Fatalf("Start() with %s set error = %v", pgenv.RuntimeDirEnv, err)
	}
	inst.Close()
}

func TestStartWithoutArchive(t *testing.T) {
	t.Parallel()

	_, err := pgenv.Start(context.Background(),
		pgenv.WithRuntimeDir(t.TempDir()),
		pgenv.WithBaseDir(t.TempDir()),
		pgenv.WithReadyProbeForTesting(readyImmediately),
	)
	if !errors.Is(err, pgenv.ErrArchiveNotFound) {
		t.Errorf("Start() error = %v, want ErrArchiveNotFound", err)
	}
}

func TestConcurrentInstancesAreIndependent(t *testing.T) {
	t.Parallel()

	runtimeDir := writeRuntime(t)
	baseDir := t.TempDir()

	const n = 3
	instances := make([]pgenv.Instance, n)
	errs := make([]error, n)

	done := make(chan int, n)
	for idx := 0; idx < n; idx++ {
		idx := idx
		go func() {
			defer func() { done <- idx }()
			instances[idx], errs[idx] = pgenv.Start(context.Background(),
				pgenv.WithRuntimeDir(runtimeDir),
				pgenv.WithBaseDir(baseDir),
				pgenv.WithReadyProbeForTesting(readyImmediately),
			)
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	ports := make(map[int]struct{}, n)
	for idx := 0; idx < n; idx++ {
		if errs[idx] != nil {
			t.Fatalf("Start() #%d error = %v", idx, errs[idx])
		}
		defer instances[idx].Close()

		if _, dup := ports[instances[idx].Port()]; dup {
			t.Errorf("port %d handed out twice", instances[idx].Port())
		}
		ports[instances[idx].Port()] = struct{}{}
	}
}

func TestAdminConnAfterClose(t *testing.T) {
	t.Parallel()

	inst, err := pgenv.Start(context.Background(),
		pgenv.WithRuntimeDir(writeRuntime(t)),
		pgenv.WithBaseDir(t.TempDir()),
		pgenv.WithReadyProbeForTesting(readyImmediately),
	)
	if err != nil {
		t.Fatal(err)
	}
	inst.Close()

	if _, err := inst.AdminConn(context.Background()); !errors.Is(err, pgenv.ErrClosed) {
		t.Errorf("AdminConn() after Close error = %v, want ErrClosed", err)
	}
}
