package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fivetwenty-io/okapi/internal/constants"
	"github.com/fivetwenty-io/okapi/pkg/okapi"
	"github.com/fivetwenty-io/okapi/pkg/oclient"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		username     string
		password     string
		insecureAuth bool
		discardCreds bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to an API server",
		Long: `Authenticate against an API server using the OAuth challenge exchange
and store the resulting token in the CLI configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			saved := loadConfig()

			server := viper.GetString("server")
			if server == "" {
				server = saved.Server
			}

			if server == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("API server: ")
				server, _ = reader.ReadString('\n')
				server = strings.TrimSpace(server)
			}

			if server == "" {
				return constants.ErrServerRequired
			}

			if username == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Username: ")
				username, _ = reader.ReadString('\n')
				username = strings.TrimSpace(username)
			}

			if password == "" {
				fmt.Print("Password: ")

				bytePassword, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}

				password = string(bytePassword)

				fmt.Println()
			}

			config := &okapi.Config{
				APIEndpoint:        server,
				Username:           username,
				Password:           password,
				AllowInsecureAuth:  insecureAuth,
				DiscardCredentials: discardCreds,
				SkipTLSVerify:      viper.GetBool("skip_tls_verify"),
			}

			if viper.GetBool("verbose") {
				config.Logger = newLogger()
				config.Debug = true
			}

			ctx := cmd.Context()

			client, err := oclient.New(ctx, config)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			// Force the challenge exchange now so a bad password fails at
			// login rather than on the first real command.
			token, err := fetchToken(ctx, client)
			if err != nil {
				return err
			}

			// oclient.New normalized the endpoint in place; store that form.
			saved.Server = config.APIEndpoint
			saved.Username = username
			saved.Token = token
			saved.TokenExpiresAt = nil
			saved.SkipTLSVerify = config.SkipTLSVerify

			err = saveConfig(saved)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Printf("Successfully logged in to %s as %s\n", config.APIEndpoint, username)

			// Best effort: show the server version as a connectivity check.
			info, err := client.ServerVersion(ctx)
			if err == nil && info.GitVersion != "" {
				fmt.Printf("Server version: %s\n", info.GitVersion)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username for authentication")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password for authentication")
	cmd.Flags().BoolVar(&insecureAuth, "insecure-auth", false, "allow the token exchange over plain http")
	cmd.Flags().BoolVar(&discardCreds, "discard-credentials", false, "drop credentials from memory after the first exchange")

	return cmd
}

// fetchToken pulls the bearer token out of the client after forcing the
// exchange.
func fetchToken(ctx context.Context, client okapi.Client) (string, error) {
	tokenGetter, ok := client.(interface {
		GetToken(ctx context.Context) (string, error)
	})
	if !ok {
		return "", constants.ErrNoTokenIssued
	}

	token, err := tokenGetter.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("authenticating: %w", err)
	}

	if token == "" {
		return "", constants.ErrNoTokenIssued
	}

	return token, nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of the API server",
		Long:  "Clear the stored authentication token",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			if config.Token == "" {
				return constants.ErrNotLoggedIn
			}

			config.Token = ""
			config.TokenExpiresAt = nil
			config.Username = ""

			err := saveConfig(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Println("Successfully logged out")

			return nil
		},
	}
}
