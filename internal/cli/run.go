package cli

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgenv/pgenv"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	RuntimeDir     string
	CacheDir       string
	BaseDir        string
	StartupTimeout time.Duration
	CommandTimeout time.Duration
	Settings       []string
}

// NewRunCommand creates the run command: start one server, print its
// connection URL, and block until interrupted.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a disposable server and block until interrupted",
		Long: `Run starts one disposable server and prints its connection URL on
stdout. The server keeps running until the process receives SIGINT or
SIGTERM, then shuts down and deletes its working directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RuntimeDir, "runtime-dir", "", "directory holding the platform binary archives (default: $PGENV_RUNTIME_DIR or the working directory)")
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "enable the shared extraction cache in this directory")
	cmd.Flags().StringVar(&opts.BaseDir, "base-dir", "", "parent directory for instance working directories")
	cmd.Flags().DurationVar(&opts.StartupTimeout, "startup-timeout", pgenv.DefaultStartupTimeout, "how long to wait for the server to become ready")
	cmd.Flags().DurationVar(&opts.CommandTimeout, "command-timeout", pgenv.DefaultCommandTimeout, "wall-clock budget per external command")
	cmd.Flags().StringArrayVar(&opts.Settings, "setting", nil, "server configuration override as key=value (repeatable)")

	return cmd
}

// buildStartOptions translates CLI flags into Start options. Empty string
// flags are skipped so the library's own defaults and environment
// resolution apply.
func buildStartOptions(opts *RunOptions) ([]pgenv.Option, error) {
	var startOpts []pgenv.Option

	if opts.RuntimeDir != "" {
		startOpts = append(startOpts, pgenv.WithRuntimeDir(opts.RuntimeDir))
	}
	if opts.CacheDir != "" {
		startOpts = append(startOpts, pgenv.WithCacheDir(opts.CacheDir))
	}
	if opts.BaseDir != "" {
		startOpts = append(startOpts, pgenv.WithBaseDir(opts.BaseDir))
	}
	if opts.StartupTimeout > 0 {
		startOpts = append(startOpts, pgenv.WithStartupTimeout(opts.StartupTimeout))
	}
	if opts.CommandTimeout > 0 {
		startOpts = append(startOpts, pgenv.WithCommandTimeout(opts.CommandTimeout))
	}

	for _, setting := range opts.Settings {
		key, value, err := parseSetting(setting)
		if err != nil {
			return nil, err
		}
		startOpts = append(startOpts, pgenv.WithServerSetting(key, value))
	}
	return startOpts, nil
}

// parseSetting splits a key=value flag. The value may itself contain '='.
func parseSetting(s string) (key, value string, err error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid setting %q: expected key=value", s)
	}
	return key, value, nil
}

func runServer(cmd *cobra.Command, opts *RunOptions) error {
	startOpts, err := buildStartOptions(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inst, err := pgenv.Start(ctx, startOpts...)
	if err != nil {
		return err
	}
	defer inst.Close()

	fmt.Fprintln(cmd.OutOrStdout(), inst.ConnectionURL(pgenv.DefaultSuperuser, pgenv.DefaultAdminDatabase))

	<-ctx.Done()
	return nil
}
