// Package archive locates and extracts the vendored PostgreSQL binary
// distribution for the host platform. Archives are named
// postgresql-<platform>.tar.gz and resolved once per instance; extraction
// runs through the bounded command runner so a wedged tar cannot hang the
// caller. An optional shared cache extracts each platform archive once per
// machine, guarded by a cross-process file lock.
package archive
