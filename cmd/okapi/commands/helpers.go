package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
	"github.com/fivetwenty-io/okapi/pkg/oclient"
)

// Config is the CLI configuration persisted in ~/.okapi/config.yml.
type Config struct {
	Server         string     `json:"server,omitempty"           yaml:"server,omitempty"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	Username       string     `json:"username,omitempty"         yaml:"username,omitempty"`
	Namespace      string     `json:"namespace,omitempty"        yaml:"namespace,omitempty"`
	APIVersion     string     `json:"api_version,omitempty"      yaml:"api_version,omitempty"`
	Output         string     `json:"output,omitempty"           yaml:"output,omitempty"`
	SkipTLSVerify  bool       `json:"skip_tls_verify,omitempty"  yaml:"skip_tls_verify,omitempty"`
}

// configFilePath returns the config file location, honoring --config.
func configFilePath() (string, error) {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		return cfgFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}

	return filepath.Join(home, ".okapi", "config.yml"), nil
}

// loadConfig reads the persisted configuration. A missing or unreadable file
// yields a zero config rather than an error.
func loadConfig() Config {
	var config Config

	path, err := configFilePath()
	if err != nil {
		return config
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is the user's own config file
	if err != nil {
		return config
	}

	_ = yaml.Unmarshal(data, &config)

	return config
}

// saveConfig writes the configuration back to disk.
func saveConfig(config Config) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	err = os.WriteFile(path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// clientConfig assembles the library config from flags, environment, and the
// persisted configuration. Flags win over the config file.
func clientConfig() (*okapi.Config, error) {
	saved := loadConfig()

	server := viper.GetString("server")
	if server == "" {
		server = saved.Server
	}

	if server == "" {
		return nil, constants.ErrServerRequired
	}

	token := viper.GetString("token")
	if token == "" {
		token = saved.Token
	}

	namespace := viper.GetString("namespace")
	if namespace == "" && saved.Namespace != "" {
		namespace = saved.Namespace
	}

	version := viper.GetString("api_version")
	if version == "" {
		version = saved.APIVersion
	}

	config := &okapi.Config{
		APIEndpoint:   server,
		AccessToken:   token,
		Namespace:     namespace,
		Version:       version,
		SkipTLSVerify: viper.GetBool("skip_tls_verify") || saved.SkipTLSVerify,
	}

	if viper.GetBool("verbose") {
		config.Logger = newLogger()
		config.Debug = true
	}

	return config, nil
}

// createClient builds an API client from the effective configuration.
func createClient(ctx context.Context) (okapi.Client, error) {
	config, err := clientConfig()
	if err != nil {
		return nil, err
	}

	apiClient, err := oclient.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	return apiClient, nil
}

// requestOptions builds per-call options from the shared list/watch flags.
func requestOptions(selector, fieldSelector string, allNamespaces bool, limit int) *okapi.RequestOptions {
	params := okapi.NewQueryParams()

	if selector != "" {
		params.WithLabelSelector(selector)
	}

	if fieldSelector != "" {
		params.WithFieldSelector(fieldSelector)
	}

	if limit > 0 {
		params.WithLimit(limit)
	}

	return &okapi.RequestOptions{
		AllNamespaces: allNamespaces,
		Params:        params,
	}
}

// titleCaser renders resource names for human-facing messages.
var titleCaser = cases.Title(language.English)

// renderObjects writes objects in the requested output format. The table
// format gets a header per the standard columns; json and yaml emit the raw
// objects.
func renderObjects(resource string, objects []okapi.Object) error {
	output := viper.GetString("output")
	switch output {
	case constants.FormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(objects)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(objects)
	case constants.FormatTable, "":
		if len(objects) == 0 {
			fmt.Printf("No %s found\n", titleCaser.String(resource))

			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Name", "Namespace", "Version", "Created")

		for _, obj := range objects {
			_ = table.Append(objectRow(obj)...)
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", constants.ErrUnknownOutput, output)
	}
}

// renderObject writes one object in the requested output format.
func renderObject(obj *okapi.Object) error {
	output := viper.GetString("output")
	switch output {
	case constants.FormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(obj)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(obj)
	case constants.FormatTable, "":
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Name", "Namespace", "Version", "Created")
		_ = table.Append(objectRow(*obj)...)

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", constants.ErrUnknownOutput, output)
	}
}

// objectRow maps an object onto the standard table columns.
func objectRow(obj okapi.Object) []any {
	namespace := obj.Metadata.Namespace
	if namespace == "" {
		namespace = "-"
	}

	version := obj.Metadata.ResourceVersion
	if version == "" {
		version = "-"
	}

	return []any{obj.Name(), namespace, version, formatAge(obj.Metadata.CreationTimestamp)}
}

// formatAge renders a creation timestamp as a rough age.
func formatAge(created *time.Time) string {
	if created == nil || created.IsZero() {
		return "-"
	}

	age := time.Since(*created)

	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}
