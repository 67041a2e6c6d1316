// Package main is the entry point for the procwarden supervisor.
//
// procwarden starts, tracks and stops child processes on request. Each
// child's output is captured into bounded line buffers, and lifecycle
// changes are published over MQTT, WebSocket, the audit log and InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/procwarden/internal/infrastructure/config"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "PROCWARDEN_CONFIG"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop() called explicitly above
	}
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "procwarden",
		Short:         "Supervise child processes over HTTP, WebSocket and MQTT",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		fmt.Sprintf("config file (default $%s or %s)", configEnvVar, defaultConfigPath))

	root.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath picks the config file: flag first, then environment,
// then the default. explicit reports whether the operator named a file.
func resolveConfigPath(flag string) (path string, explicit bool) {
	if flag != "" {
		return flag, true
	}
	if p := os.Getenv(configEnvVar); p != "" {
		return p, true
	}
	return defaultConfigPath, false
}

// loadConfig loads the configuration. A missing default file falls back to
// built-in defaults; a missing file the operator named is an error.
func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	path, explicit := resolveConfigPath(opts.configPath)

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}

	cfg, err = config.Default()
	if err != nil {
		return nil, "", fmt.Errorf("loading default config: %w", err)
	}
	return cfg, "", nil
}
