package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/procwarden/internal/api"
	"github.com/nerrad567/procwarden/internal/launcher"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and report the managed executable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if path == "" {
				path = "(built-in defaults)"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:     %s\n", path)
			fmt.Fprintf(out, "instance:   %s\n", cfg.Instance.ID)
			fmt.Fprintf(out, "listen:     %s:%d\n", cfg.API.Host, cfg.API.Port)
			fmt.Fprintf(out, "auth:       %s\n", enabledString(cfg.AuthEnabled()))
			fmt.Fprintf(out, "database:   %s\n", enabledString(cfg.Database.Enabled))
			fmt.Fprintf(out, "mqtt:       %s\n", enabledString(cfg.MQTT.Enabled))
			fmt.Fprintf(out, "influxdb:   %s\n", enabledString(cfg.InfluxDB.Enabled))

			// ExecutablePath avoids Resolve, which writes the diagnostics file.
			l := launcher.New(cfg.Launcher)
			fmt.Fprintf(out, "executable: %s\n", l.ExecutablePath())

			fmt.Fprintln(out, "configuration OK")
			return nil
		},
	}
}

func enabledString(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with the configured JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if !cfg.AuthEnabled() {
				return errors.New("security.jwt.secret is not set, authentication is disabled")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			token, err := api.IssueToken(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject recorded with API requests")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "procwarden %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
