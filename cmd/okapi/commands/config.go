package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage okapi CLI configuration stored in ~/.okapi/config.yml",
	}

	cmd.AddCommand(newConfigViewCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show current configuration",
		Long:  "Display the stored CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			// Never print the raw token.
			display := config
			display.Token = okapi.MaskSecret(config.Token)

			output := viper.GetString("output")
			switch output {
			case constants.FormatJSON:
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")

				return encoder.Encode(display)
			case constants.FormatYAML:
				encoder := yaml.NewEncoder(os.Stdout)

				return encoder.Encode(display)
			default:
				table := tablewriter.NewWriter(os.Stdout)
				table.Header("Key", "Value")
				_ = table.Append("server", display.Server)
				_ = table.Append("username", display.Username)
				_ = table.Append("token", display.Token)
				_ = table.Append("namespace", display.Namespace)
				_ = table.Append("api_version", display.APIVersion)
				_ = table.Append("output", display.Output)

				if err := table.Render(); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}

				return nil
			}
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value (server, namespace, api_version, output)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			config := loadConfig()

			err := applyConfigKey(&config, key, value)
			if err != nil {
				return err
			}

			err = saveConfig(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Printf("Set %s\n", key)

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := applyConfigKey(&config, args[0], "")
			if err != nil {
				return err
			}

			err = saveConfig(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Printf("Unset %s\n", args[0])

			return nil
		},
	}
}

// applyConfigKey writes one key into the config struct.
func applyConfigKey(config *Config, key, value string) error {
	switch key {
	case "server":
		config.Server = value
	case "namespace":
		config.Namespace = value
	case "api_version":
		if value != "" {
			valid := false

			for _, v := range okapi.ValidVersions() {
				if v == value {
					valid = true

					break
				}
			}

			if !valid {
				return &okapi.VersionError{Version: value, Valid: okapi.ValidVersions()}
			}
		}

		config.APIVersion = value
	case "output":
		config.Output = value
	default:
		return fmt.Errorf("%w: %q", constants.ErrUnknownConfigKey, key)
	}

	return nil
}
