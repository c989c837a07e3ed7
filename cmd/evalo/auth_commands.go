package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"evalo/internal/identity"
)

type principalOutput struct {
	SignedIn    bool   `json:"signed_in"`
	UID         string `json:"uid,omitempty"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Provider    string `json:"provider,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

func toPrincipalOutput(p *identity.Principal) principalOutput {
	if p == nil {
		return principalOutput{}
	}
	return principalOutput{
		SignedIn:    true,
		UID:         p.UID,
		Name:        p.Label(),
		Email:       p.Email,
		PhotoURL:    p.PhotoURL,
		Provider:    p.Provider,
		DisplayName: p.DisplayName,
	}
}

func newLoginCommand(ctx *commandContext) *cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to evalo",
	}
	loginCmd.AddCommand(newLoginGoogleCommand(ctx))
	loginCmd.AddCommand(newLoginEmailCommand(ctx))
	return loginCmd
}

func newLoginGoogleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "google",
		Short: "Sign in with a Google account in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.identityManager(cmd)
			if err != nil {
				return err
			}
			mgr.SetGooglePrompt(func(url string) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Opening your browser to sign in with Google. If it does not open, visit:")
				fmt.Fprintln(cmd.ErrOrStderr(), "  "+url)
			})
			principal, err := mgr.SignInWithGoogle(cmd.Context())
			if err != nil {
				return err
			}
			return printSignedIn(cmd, ctx, principal)
		},
	}
}

func newLoginEmailCommand(ctx *commandContext) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "email",
		Short: "Sign in with email and password",
		Long:  "Sign in with email and password. The password is prompted for, or read from the first line of stdin when not on a terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.identityManager(cmd)
			if err != nil {
				return err
			}
			password, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			principal, err := mgr.SignInWithEmailAndPassword(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return printSignedIn(cmd, ctx, principal)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCommand(ctx *commandContext) *cobra.Command {
	var email string
	var name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.identityManager(cmd)
			if err != nil {
				return err
			}
			password, err := readSecret(cmd, "Choose a password: ")
			if err != nil {
				return err
			}
			principal, err := mgr.CreateUserWithEmailAndPassword(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			return printSignedIn(cmd, ctx, principal)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email address")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.identityManager(cmd)
			if err != nil {
				return err
			}
			if err := mgr.SignOut(); err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, principalOutput{})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.identityManager(cmd)
			if err != nil {
				return err
			}
			current := ctx.currentPrincipal()
			if ctx.jsonOutput() {
				return writeJSON(cmd, toPrincipalOutput(current))
			}
			out := cmd.OutOrStdout()
			if current == nil {
				fmt.Fprintln(out, "Not signed in. Run `evalo login google` or `evalo login email --email you@example.com`.")
				return nil
			}
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("User", statusOK, current.Label(), colorize))
			fmt.Fprintln(out, renderStatusLine("Email", statusInfo, valueOrDash(current.Email), colorize))
			fmt.Fprintln(out, renderStatusLine("Provider", statusInfo, valueOrDash(current.Provider), colorize))
			if expires := mgr.Session().ExpiresAt; !expires.IsZero() {
				fmt.Fprintln(out, renderStatusLine("Token expires", statusInfo, expires.Local().Format("2006-01-02 15:04"), colorize))
			}
			return nil
		},
	}
}

func printSignedIn(cmd *cobra.Command, ctx *commandContext, principal identity.Principal) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, toPrincipalOutput(&principal))
	}
	label := principal.Label()
	if email := strings.TrimSpace(principal.Email); email != "" && email != label {
		label = fmt.Sprintf("%s (%s)", label, email)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", label)
	return nil
}
