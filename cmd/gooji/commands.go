package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apiclient "github.com/gooji/deployer/pkg/api/client"
)

const uploadTimeout = 2 * time.Minute

func newProfileCmd(apiBase *string) *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile, or update it with --username/--email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, token, err := session(*apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			update := apiclient.ProfileUpdate{Username: strings.TrimSpace(username), Email: strings.TrimSpace(email)}
			if update != (apiclient.ProfileUpdate{}) {
				if err := client.UpdateProfile(ctx, token, update); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "profile updated")
				return nil
			}

			profile, err := client.Profile(ctx, token)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "username: %s\n", profile.Username)
			fmt.Fprintf(out, "email:    %s\n", profile.Email)
			if !profile.CreatedAt.IsZero() {
				fmt.Fprintf(out, "created:  %s\n", profile.CreatedAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "New username")
	cmd.Flags().StringVar(&email, "email", "", "New email")
	return cmd
}

func newDeployCmd(apiBase *string) *cobra.Command {
	var name, file string
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a single file to Vercel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" || strings.TrimSpace(file) == "" {
				return errors.New("--domain and --file are required")
			}
			client, token, err := session(*apiBase)
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), uploadTimeout)
			defer cancel()
			dep, err := client.DeployVercel(ctx, token, name, filepath.Base(file), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deployed %s\n%s\n", dep.ID, dep.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "domain", "", "Project name")
	cmd.Flags().StringVar(&file, "file", "", "File to upload")
	cmd.AddCommand(newDeployGoCloudCmd(apiBase))
	return cmd
}

func newDeployGoCloudCmd(apiBase *string) *cobra.Command {
	var subdomain, file string
	cmd := &cobra.Command{
		Use:   "gocloud",
		Short: "Deploy a single file to GoCloud (no login required)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(subdomain) == "" || strings.TrimSpace(file) == "" {
				return errors.New("--subdomain and --file are required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := newClient(*apiBase, cfg)
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), uploadTimeout)
			defer cancel()
			raw, err := client.DeployGoCloud(ctx, subdomain, filepath.Base(file), f)
			if err != nil {
				return err
			}
			var pretty map[string]any
			if json.Unmarshal(raw, &pretty) == nil {
				data, _ := json.MarshalIndent(pretty, "", "  ")
				raw = data
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
	cmd.Flags().StringVar(&subdomain, "subdomain", "", "GoCloud subdomain")
	cmd.Flags().StringVar(&file, "file", "", "File to upload")
	return cmd
}

func newProjectsCmd(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage your Vercel deployments",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List deployments, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, token, err := session(*apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			projects, err := client.ListProjects(ctx, token)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no deployments yet")
				return nil
			}
			count := len(projects)
			if limit > 0 && limit < count {
				count = limit
			}
			for _, p := range projects[:count] {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.URL, p.CreatedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "Maximum number of deployments to display")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, token, err := session(*apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := client.DeleteProject(ctx, token, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, remove)
	return cmd
}
