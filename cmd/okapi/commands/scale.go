package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/okapi/internal/constants"
)

// NewScaleCommand creates the scale command.
func NewScaleCommand() *cobra.Command {
	var replicas int

	cmd := &cobra.Command{
		Use:   "scale NAME --replicas=COUNT",
		Short: "Set the replica count of a replication controller",
		Long: `Scale a replication controller to the desired number of replicas.

Examples:
  okapi scale frontend --replicas=3
  okapi scale frontend --replicas=0 -n staging`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if replicas < 0 {
				return constants.ErrReplicasRequired
			}

			ctx := cmd.Context()

			client, err := createClient(ctx)
			if err != nil {
				return err
			}

			controller, err := client.ReplicationControllers().Scale(ctx, args[0], replicas, nil)
			if err != nil {
				return err
			}

			fmt.Printf("replicationcontrollers/%s scaled to %d\n", controller.Name(), replicas)

			return nil
		},
	}

	cmd.Flags().IntVar(&replicas, "replicas", -1, "desired number of replicas")
	_ = cmd.MarkFlagRequired("replicas")

	return cmd
}
