// Package pgenv starts disposable PostgreSQL servers for tests.
//
// Each call to Start extracts a vendored platform archive into a private
// working directory, initializes a fresh cluster, launches the server on a
// dynamically allocated port, and blocks until the server answers queries.
// Close stops the server and deletes everything, so instances leave no
// trace behind.
//
// # Basic Usage
//
//	import "github.com/pgenv/pgenv"
//
//	ctx := context.Background()
//
//	inst, err := pgenv.Start(ctx, pgenv.WithRuntimeDir("/opt/pg-runtime"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close()
//
//	conn, err := inst.AdminConn(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close(ctx)
//
//	// Or hand the URL to any client:
//	url := inst.ConnectionURL("postgres", "postgres")
//
// # Parallel Testing
//
// Instances are fully independent: each owns its port, its data directory,
// and its server process. Start as many as the machine can hold:
//
//	for i := 0; i < 4; i++ {
//	    t.Run(fmt.Sprintf("db-%d", i), func(t *testing.T) {
//	        t.Parallel()
//	        inst, err := pgenv.Start(ctx)
//	        if err != nil {
//	            t.Fatal(err)
//	        }
//	        defer inst.Close()
//	        // Each subtest talks to its own server.
//	    })
//	}
//
// # Runtime Archives
//
// The server binaries are not downloaded. A gzip'd tar archive named
// postgresql-<os>-<arch>.tar.gz (for example postgresql-linux-amd64.tar.gz)
// must be present in the runtime directory, containing the distribution's
// bin/, lib/ and share/ trees. The runtime directory is resolved from
// WithRuntimeDir, then the PGENV_RUNTIME_DIR environment variable, then
// the current working directory.
package pgenv
