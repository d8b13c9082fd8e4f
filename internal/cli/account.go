package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/storysync/internal/app"
)

// AccountOptions holds flags shared by register and login.
type AccountOptions struct {
	*RootOptions
	Name     string
	Email    string
	Password string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Example: `  story register --name Ann --email ann@example.com --password secret123`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := app.Execute(ctx, a, app.Register{Name: opts.Name, Email: opts.Email, Password: opts.Password}); err != nil {
					return commandFailed("registration failed", err)
				}
				return out.Success(map[string]string{"email": opts.Email}, fmt.Sprintf("Registered %s. Log in with \"story login\".\n", opts.Email))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password, at least 8 characters (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "login",
		Short:         "Log in and remember the session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				s, err := app.Execute(ctx, a, app.Login{Email: opts.Email, Password: opts.Password})
				if err != nil {
					return commandFailed("login failed", err)
				}
				return out.Success(map[string]string{"userId": s.UserID, "name": s.Name}, fmt.Sprintf("Logged in as %s.\n", s.Name))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Forget the stored session",
		Long:          "Forget the stored session. Stories waiting in the offline queue are kept.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if _, err := app.Execute(ctx, a, app.Logout{}); err != nil {
					return commandFailed("logout failed", err)
				}
				return out.Success(map[string]bool{"loggedOut": true}, "Logged out.\n")
			})
		},
	}
}

// NewWhoAmICommand creates the whoami command.
func NewWhoAmICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the logged-in user",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				s, err := app.Execute(ctx, a, app.WhoAmI{})
				if err != nil {
					return commandFailed("whoami failed", err)
				}
				if s.Empty() {
					return out.Success(map[string]any{"loggedIn": false}, "Not logged in (submissions go to the guest endpoint).\n")
				}
				data := map[string]any{"loggedIn": true, "userId": s.UserID, "name": s.Name}
				text := fmt.Sprintf("%s (%s)\n", s.Name, s.UserID)
				if exp := s.ExpiresAt(); !exp.IsZero() {
					data["expiresAt"] = exp.UTC().Format(time.RFC3339)
					text += fmt.Sprintf("Token expires %s\n", exp.UTC().Format("2006-01-02 15:04"))
				}
				return out.Success(data, text)
			})
		},
	}
}
