package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var (
		selector      string
		fieldSelector string
		allNamespaces bool
		retryLimit    int
	)

	cmd := &cobra.Command{
		Use:   "watch RESOURCE [NAME]",
		Short: "Stream change events for a resource",
		Long: `Take a snapshot of a resource collection (or a single item), then stream
create, update, and delete events from that point on. The stream reconnects
across transient network failures and resumes where it left off. Interrupt
with Ctrl-C.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := createClient(ctx)
			if err != nil {
				return err
			}

			resourceClient, err := client.Resource(args[0])
			if err != nil {
				return err
			}

			name := ""
			if len(args) == 2 {
				name = args[1]
			}

			opts := requestOptions(selector, fieldSelector, allNamespaces, 0)

			session, err := resourceClient.Watch(ctx, name, opts)
			if err != nil {
				return err
			}
			defer session.Stop()

			snapshot := session.Snapshot()
			fmt.Printf("Watching %s from resource version %q (%d items in snapshot)\n",
				resourceClient.Endpoint().Name, session.ResourceVersion(), len(snapshot.Items))

			events := session.Events()

			err = session.Start(okapi.WithRetryLimit(retryLimit))
			if err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-events:
					if !ok {
						return nil
					}

					printEvent(event)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&selector, "selector", "l", "", "label selector to filter on")
	cmd.Flags().StringVar(&fieldSelector, "field-selector", "", "field selector to filter on")
	cmd.Flags().BoolVarP(&allNamespaces, "all-namespaces", "A", false, "watch across all namespaces")
	cmd.Flags().IntVar(&retryLimit, "retry-limit", -1, "reconnect attempts after timeouts before giving up (-1 for unlimited)")

	return cmd
}

// printEvent renders one watch event as a single line.
func printEvent(event okapi.WatchEvent) {
	switch event.Type {
	case okapi.EventCreated, okapi.EventUpdated, okapi.EventDeleted:
		fmt.Printf("%-8s %s  (version %s)\n",
			event.Type, event.Object.Name(), event.Object.ResourceVersion())
	case okapi.EventResponse:
		fmt.Fprintf(os.Stderr, "connected (HTTP %d)\n", event.StatusCode)
	case okapi.EventError:
		fmt.Fprintf(os.Stderr, "error: %v\n", event.Err)
	}
}
