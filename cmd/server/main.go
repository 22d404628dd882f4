package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/guessduel-go/internal/config"
)

const releaseVersion = "0.1.0"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if err := newRootCmd(&cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:     "guessduel",
		Short:   "Two-player number guessing over websockets, with its identity and rules services.",
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ApplyEnv(cmd.Flags(), v); err != nil {
				return err
			}
			return cfg.Validate()
		},
	}

	cfg.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServiceCmd(cfg, "rooms", "Run the room service (websocket orchestrator)", serviceRooms),
		newServiceCmd(cfg, "identity", "Run the identity service", serviceIdentity),
		newServiceCmd(cfg, "rules", "Run the rules service", serviceRules),
		newServiceCmd(cfg, "all", "Run every service in one process", serviceIdentity, serviceRules, serviceRooms),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("guessduel v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newServiceCmd(cfg *config.Config, name, short string, services ...string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cfg.NewLogger(os.Stdout)
			return run(cmd.Context(), cfg, logger, services...)
		},
	}
}
