package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewProxyCommand creates the node-proxy command.
func NewProxyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node-proxy NODE [PATH]",
		Short: "Request a node's own endpoint through the API server",
		Long: `Issue a GET through the API server's proxy path to the named node and
print the raw response body.

Examples:
  okapi node-proxy worker-1 healthz`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := createClient(ctx)
			if err != nil {
				return err
			}

			path := ""
			if len(args) == 2 {
				path = args[1]
			}

			envelope, err := client.Nodes().Proxy(ctx, args[0], path)
			if err != nil {
				return err
			}

			_, err = os.Stdout.Write(envelope.Body)
			if err != nil {
				return fmt.Errorf("writing response: %w", err)
			}

			if len(envelope.Body) > 0 && envelope.Body[len(envelope.Body)-1] != '\n' {
				fmt.Println()
			}

			return nil
		},
	}

	return cmd
}
