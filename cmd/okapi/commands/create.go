package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	var (
		filename    string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "create -f FILE",
		Short: "Create resources from a manifest",
		Long: `Create every object in a YAML manifest. Documents are separated by "---";
independent objects are submitted concurrently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filename == "" {
				return constants.ErrManifestRequired
			}

			return runManifestBatch(cmd, filename, "create", concurrency)
		},
	}

	cmd.Flags().StringVarP(&filename, "filename", "f", "", "manifest file to create from")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum concurrent operations")

	return cmd
}

// runManifestBatch parses a manifest and executes it as a batch of the given
// operation type, reporting per-object outcomes.
func runManifestBatch(cmd *cobra.Command, filename, opType string, concurrency int) error {
	data, err := os.ReadFile(filename) // #nosec G304 -- filename comes from the user's own flag
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	manifest, err := okapi.ParseManifest(data)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	client, err := createClient(ctx)
	if err != nil {
		return err
	}

	registry := okapi.NewRegistry()

	err = manifest.Validate(registry)
	if err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	operations, err := manifest.Operations(registry, opType)
	if err != nil {
		return err
	}

	executor := okapi.NewBatchExecutor(client, concurrency)

	results, err := executor.Execute(ctx, operations)
	if err != nil {
		return err
	}

	failures := 0

	for _, result := range results {
		if result.Error != nil {
			failures++

			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", result.ID, result.Error)

			continue
		}

		if result.Object != nil {
			fmt.Printf("%s %sd\n", result.Object.Name(), opType)
		} else {
			fmt.Printf("%s %sd\n", result.ID, opType)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%w: %d of %d operations", constants.ErrBatchFailed, failures, len(results))
	}

	return nil
}
