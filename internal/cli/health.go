package cli

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Long: `Check that the room service is up. With --wait the check is retried
until the service answers or the wait expires, which is handy in scripts
that start the server first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult
			check := func() error {
				return client.Get("/api/v1/health", &result)
			}

			if wait > 0 {
				policy := backoff.NewExponentialBackOff()
				policy.InitialInterval = 100 * time.Millisecond
				policy.MaxElapsedTime = wait
				if err := backoff.Retry(check, backoff.WithContext(policy, cmd.Context())); err != nil {
					return fmt.Errorf("server not healthy after %s: %w", wait, err)
				}
			} else if err := check(); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep retrying until healthy for up to this long")

	return cmd
}
