// Package netutil provides TCP port allocation for server instances.
//
// Ports are discovered by binding to port 0 and reading the kernel's
// assignment; an in-process registry prevents two concurrent instances
// from receiving the same port.
package netutil
