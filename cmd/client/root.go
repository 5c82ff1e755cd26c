package main

import (
	"context"

	"github.com/dmitrijs2005/eduportal/internal/client/cli"
	"github.com/dmitrijs2005/eduportal/internal/client/config"
	"github.com/dmitrijs2005/eduportal/internal/client/models"
	"github.com/dmitrijs2005/eduportal/internal/logging"
	"github.com/spf13/cobra"
)

// openApp is a test seam for cli.Open.
var openApp = cli.Open

// NewRootCmd creates the root command. Without a subcommand it opens the
// interactive REPL.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eduportal",
		Short: "eduportal - terminal client for the eduportal learning platform",
		Long: `eduportal signs you in to the eduportal learning platform and keeps
the session on this machine. Run it without a command for an interactive shell.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *cli.App) error {
				a.Root(ctx)
				return nil
			})
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newProfileCmd(),
		newPasswdCmd(),
		newForgotCmd(),
		newResetCmd(),
	)

	return cmd
}

// withApp loads the configuration, opens the App for the duration of fn
// and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *cli.App) error) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: config.ConfigFileFlag(cmd.Flags()),
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}

	log := logging.Setup(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
	ctx := cmd.Context()

	a, err := openApp(ctx, cfg, log, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *cli.App) error {
				return a.Login(ctx)
			})
		},
	}
}

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *cli.App) error {
				return a.Register(ctx)
			})
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *cli.App) error {
				return a.Logout(ctx)
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"me"},
		Short:   "Show the signed-in user",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *cli.App) error {
				return a.Whoami(ctx)
			})
		},
	}
}

func newProfileCmd() *cobra.Command {
	var name, email, grade, avatar string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the profile; prompts for each field when no flag is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p models.UserPatch
			flags := []struct {
				name string
				val  string
				dst  **string
			}{
				{"name", name, &p.Name},
				{"email", email, &p.Email},
				{"grade", grade, &p.Grade},
				{"avatar", avatar, &p.Avatar},
			}
			for _, f := range flags {
				if cmd.Flags().Changed(f.name) {
					*f.dst = models.StringPtr(f.val)
				}
			}

			return withApp(cmd, func(ctx context.Context, a *cli.App) error {
				if p.IsEmpty() {
					return a.Profile(ctx)
				}
				return a.UpdateProfile(ctx, p)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&grade, "grade", "", "new grade")
	cmd.Flags().StringVar(&avatar, "avatar", "", "new avatar URL")
	return cmd
}

func newPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *cli.App) error {
				return a.ChangePassword(ctx)
			})
		},
	}
}

func newForgotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot [email]",
		Short: "Request a password reset email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *cli.App) error {
				return a.ForgotPassword(ctx, optionalArg(args))
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [token]",
		Short: "Set a new password with the token from the reset email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *cli.App) error {
				return a.ResetPassword(ctx, optionalArg(args))
			})
		},
	}
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
