package pgenv

import (
	"context"
	"time"
)

// ConfigSnapshot holds a copy of config fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures actually mutate the config without accessing internals.
type ConfigSnapshot struct {
	RuntimeDir     string
	CacheDir       string
	BaseDir        string
	Superuser      string
	AdminDatabase  string
	ServerSettings map[string]string
	StartupTimeout time.Duration
	ProbeInterval  time.Duration
	CommandTimeout time.Duration
	StopWait       time.Duration
}

// ApplyOptionsForTesting creates a default config, applies the given
// options, and returns a ConfigSnapshot of the result. This tests the
// option closures directly without starting a server.
func ApplyOptionsForTesting(opts ...Option) ConfigSnapshot {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ConfigSnapshot{
		RuntimeDir:     cfg.RuntimeDir,
		CacheDir:       cfg.CacheDir,
		BaseDir:        cfg.BaseDir,
		Superuser:      cfg.Superuser,
		AdminDatabase:  cfg.AdminDatabase,
		ServerSettings: cfg.ServerSettings,
		StartupTimeout: cfg.StartupTimeout,
		ProbeInterval:  cfg.ProbeInterval,
		CommandTimeout: cfg.CommandTimeout,
		StopWait:       cfg.StopWait,
	}
}

// WithReadyProbeForTesting replaces the connection-based readiness probe
// so lifecycle tests can run against scripted stand-in binaries that never
// accept client connections. Exported only for use in package pgenv_test.
func WithReadyProbeForTesting(probe func(context.Context) error) Option {
	return func(c *config) {
		c.ReadyProbe = probe
	}
}
