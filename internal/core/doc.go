// Package core implements the embedded instance manager: extracting the
// vendored binaries, initializing a cluster, starting the server, waiting
// for readiness, and tearing everything down exactly once.
package core
