package cli

import (
	"github.com/spf13/cobra"
)

// newHealthCmd pings the status API's health endpoint; a non-200 comes
// back as an error, so the exit code alone answers "is it up".
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult

			if err := client.Get("/api/v1/health", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
