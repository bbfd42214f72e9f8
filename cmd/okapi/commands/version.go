package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	var includeServer bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display version information about the okapi CLI and, optionally, the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			type VersionInfo struct {
				Version string `json:"version"          yaml:"version"`
				Commit  string `json:"commit"           yaml:"commit"`
				Built   string `json:"built"            yaml:"built"`
				Server  string `json:"server,omitempty" yaml:"server,omitempty"`
			}

			versionInfo := VersionInfo{
				Version: version,
				Commit:  commit,
				Built:   date,
			}

			if includeServer {
				serverVersion, err := fetchServerVersion(cmd.Context())
				if err != nil {
					return err
				}

				versionInfo.Server = serverVersion
			}

			output := viper.GetString("output")
			switch output {
			case "json":
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")

				return encoder.Encode(versionInfo)
			case "yaml":
				encoder := yaml.NewEncoder(os.Stdout)

				return encoder.Encode(versionInfo)
			default:
				table := tablewriter.NewWriter(os.Stdout)
				table.Header("Property", "Value")
				_ = table.Append("Version", version)
				_ = table.Append("Commit", commit)
				_ = table.Append("Built", date)

				if versionInfo.Server != "" {
					_ = table.Append("Server", versionInfo.Server)
				}

				if err := table.Render(); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&includeServer, "server-version", false, "also query the API server's version")

	return cmd
}

// fetchServerVersion asks the configured API server for its build info.
func fetchServerVersion(ctx context.Context) (string, error) {
	client, err := createClient(ctx)
	if err != nil {
		return "", err
	}

	info, err := client.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("querying server version: %w", err)
	}

	if info.GitVersion != "" {
		return info.GitVersion, nil
	}

	return fmt.Sprintf("%s.%s", info.Major, info.Minor), nil
}
