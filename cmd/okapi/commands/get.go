package commands

import (
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var (
		selector      string
		fieldSelector string
		allNamespaces bool
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "get RESOURCE [NAME]",
		Short: "Display one or many resources",
		Long: `Fetch a resource collection, or a single item by name, and print it.

Examples:
  okapi get pods
  okapi get pods mypod
  okapi get nodes -o yaml
  okapi get replicationcontrollers -l env=prod`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := createClient(ctx)
			if err != nil {
				return err
			}

			resourceClient, err := client.Resource(args[0])
			if err != nil {
				return err
			}

			opts := requestOptions(selector, fieldSelector, allNamespaces, limit)

			if len(args) == 2 {
				obj, err := resourceClient.Get(ctx, args[1], opts)
				if err != nil {
					return err
				}

				return renderObject(obj)
			}

			list, err := resourceClient.List(ctx, opts)
			if err != nil {
				return err
			}

			return renderObjects(resourceClient.Endpoint().Name, list.Items)
		},
	}

	cmd.Flags().StringVarP(&selector, "selector", "l", "", "label selector to filter on")
	cmd.Flags().StringVar(&fieldSelector, "field-selector", "", "field selector to filter on")
	cmd.Flags().BoolVarP(&allNamespaces, "all-namespaces", "A", false, "list across all namespaces")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of items to return")

	return cmd
}
