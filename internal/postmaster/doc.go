// Package postmaster supervises the PostgreSQL server process of one
// instance: spawning it in the foreground, detecting early exit, polling
// until it accepts connections, and stopping it through pg_ctl with a
// forced kill as the fallback.
package postmaster
