package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/okapi/internal/constants"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	var (
		filename    string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "delete RESOURCE NAME | delete -f FILE",
		Short: "Delete resources",
		Long: `Delete a named resource, or every object listed in a YAML manifest.

Examples:
  okapi delete pods mypod
  okapi delete -f stack.yml`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if filename != "" {
				return runManifestBatch(cmd, filename, "delete", concurrency)
			}

			if len(args) < 1 {
				return constants.ErrResourceRequired
			}

			if len(args) < 2 {
				return constants.ErrObjectNameRequired
			}

			ctx := cmd.Context()

			client, err := createClient(ctx)
			if err != nil {
				return err
			}

			resourceClient, err := client.Resource(args[0])
			if err != nil {
				return err
			}

			err = resourceClient.Delete(ctx, args[1], nil)
			if err != nil {
				return err
			}

			fmt.Printf("%s/%s deleted\n", resourceClient.Endpoint().Name, args[1])

			return nil
		},
	}

	cmd.Flags().StringVarP(&filename, "filename", "f", "", "manifest file naming the objects to delete")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum concurrent operations")

	return cmd
}
