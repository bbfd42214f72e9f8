package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// NewApplyCommand creates the apply command.
func NewApplyCommand() *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or update resources from a manifest",
		Long: `Apply every object in a YAML manifest: existing objects are replaced,
missing ones are created.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filename == "" {
				return constants.ErrManifestRequired
			}

			data, err := os.ReadFile(filename) // #nosec G304 -- filename comes from the user's own flag
			if err != nil {
				return fmt.Errorf("reading manifest: %w", err)
			}

			manifest, err := okapi.ParseManifest(data)
			if err != nil {
				return err
			}

			registry := okapi.NewRegistry()

			err = manifest.Validate(registry)
			if err != nil {
				return fmt.Errorf("invalid manifest: %w", err)
			}

			ctx := cmd.Context()

			client, err := createClient(ctx)
			if err != nil {
				return err
			}

			for _, obj := range manifest.Objects {
				endpoint, err := registry.LookupKind(obj.Kind)
				if err != nil {
					return err
				}

				resourceClient, err := client.Resource(endpoint.Name)
				if err != nil {
					return err
				}

				var opts *okapi.RequestOptions
				if obj.Metadata.Namespace != "" {
					opts = &okapi.RequestOptions{Namespace: obj.Metadata.Namespace}
				}

				applied := obj

				updated, err := resourceClient.Update(ctx, obj.Metadata.Name, &applied, opts)

				switch {
				case err == nil:
					fmt.Printf("%s/%s configured\n", endpoint.Name, updated.Name())
				case okapi.IsNotFound(err):
					created, createErr := resourceClient.Create(ctx, &applied, opts)
					if createErr != nil {
						return fmt.Errorf("creating %s %q: %w", endpoint.Kind, obj.Metadata.Name, createErr)
					}

					fmt.Printf("%s/%s created\n", endpoint.Name, created.Name())
				default:
					return fmt.Errorf("applying %s %q: %w", endpoint.Kind, obj.Metadata.Name, err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&filename, "filename", "f", "", "manifest file to apply")

	return cmd
}
