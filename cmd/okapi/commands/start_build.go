package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// NewStartBuildCommand creates the start-build command.
func NewStartBuildCommand() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "start-build BUILDCONFIG",
		Short: "Request a new build from a build config",
		Long: `Instantiate a build from the named build config.

Examples:
  okapi start-build myapp
  okapi start-build myapp --message "rebuild with updated base image"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := createClient(ctx)
			if err != nil {
				return err
			}

			request := &okapi.BuildRequest{}
			if message != "" {
				request.TriggeredByCauses = []okapi.BuildTriggerCause{{Message: message}}
			}

			build, err := client.BuildConfigs().Instantiate(ctx, args[0], request, nil)
			if err != nil {
				return err
			}

			fmt.Printf("build %q started\n", build.Name())

			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "record why the build was triggered")

	return cmd
}
