package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"evalo/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set identity.api_key (or export EVALO_IDENTITY_API_KEY) and grading.base_url before signing in.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

type configSummary struct {
	Path          string `json:"path"`
	Exists        bool   `json:"exists"`
	ProcessURL    string `json:"process_url"`
	ReportURL     string `json:"report_url"`
	IdentityURL   string `json:"identity_url"`
	APIKeySet     bool   `json:"api_key_set"`
	GoogleSignIn  bool   `json:"google_sign_in"`
	RequireSignIn bool   `json:"require_sign_in"`
	History       bool   `json:"history"`
	Notifications bool   `json:"notifications"`
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			summary := configSummary{
				Path:          path,
				Exists:        exists,
				ProcessURL:    cfg.ProcessURL(),
				ReportURL:     cfg.ReportURL(),
				IdentityURL:   cfg.Identity.BaseURL,
				APIKeySet:     cfg.Identity.APIKey != "",
				GoogleSignIn:  cfg.GoogleSignInConfigured(),
				RequireSignIn: cfg.Identity.RequireSignIn,
				History:       cfg.History.Enabled,
				Notifications: cfg.Notifications.NtfyTopic != "",
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, renderStatusLine("Grading", statusInfo, summary.ProcessURL, colorize))
			if summary.APIKeySet {
				fmt.Fprintln(out, renderStatusLine("Identity", statusOK, "api key set", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Identity", statusWarn, "identity.api_key not set; sign-in will fail", colorize))
			}
			if summary.GoogleSignIn {
				fmt.Fprintln(out, renderStatusLine("Google sign-in", statusOK, "configured", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Google sign-in", statusWarn, "google_client_id not set", colorize))
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
