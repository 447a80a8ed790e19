package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apiclient "github.com/gooji/deployer/pkg/api/client"
	"github.com/gooji/deployer/pkg/config"
)

var buildVersion = "dev"

const requestTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var apiBase string

	root := &cobra.Command{
		Use:           "gooji",
		Short:         "Deploy static sites through the gooji API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadDotEnv()
		},
	}
	root.PersistentFlags().StringVar(&apiBase, "api", "", "API base URL (default from saved config or http://localhost:4000)")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newProfileCmd(&apiBase),
		newDeployCmd(&apiBase),
		newProjectsCmd(&apiBase),
		&cobra.Command{
			Use:   "version",
			Short: "Print the CLI version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(buildVersion))
			},
		},
	)
	return root
}

func newLoginCmd(apiBase *string) *cobra.Command {
	var email, password, apiKey string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with the credentials sent by the Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}
			if apiKey == "" {
				apiKey = config.GetString("FIREBASE_WEB_API_KEY", "")
			}
			secret := strings.TrimSpace(password)
			if secret == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				secret = string(bytes)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			endpoint := config.GetString("FIREBASE_SIGNIN_URL", apiclient.DefaultIdentityToolkitURL)
			session, err := apiclient.SignIn(ctx, nil, endpoint, apiKey, email, secret)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(*apiBase) != "" {
				cfg.APIBaseURL = *apiBase
			}
			cfg.Session = session
			if err := saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", session.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (supply to avoid prompt)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Firebase web API key (default $FIREBASE_WEB_API_KEY)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Session = apiclient.Session{}
			if err := saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

// session returns an API client and the stored ID token, failing when the
// user has not logged in or the token has expired.
func session(apiBase string) (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	if cfg.Session.IDToken == "" {
		return nil, "", errors.New("please login first using 'gooji login'")
	}
	if cfg.Session.Expired(time.Now()) {
		return nil, "", errors.New("session expired, run 'gooji login' again")
	}
	client, err := newClient(apiBase, cfg)
	if err != nil {
		return nil, "", err
	}
	return client, cfg.Session.IDToken, nil
}

func newClient(apiBase string, cfg cliConfig) (*apiclient.Client, error) {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		base = cfg.APIBaseURL
	}
	return apiclient.New(base)
}
