// Package command runs external executables with per-invocation wall-clock
// timeouts and bounded concurrency. The harness delegates archive
// extraction, cluster initialization, and controlled shutdown to vendored
// binaries; this package guarantees none of them can hang the caller.
package command
