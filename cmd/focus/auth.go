package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harlequingg/devfocus/internal/client"
)

var registerName string

var registerCmd = &cobra.Command{
	Use:   "register [email]",
	Short: "Create an account and email a verification code",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegister,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [email] [code]",
	Short: "Verify your email with the 6-digit code and sign in",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runVerify,
}

var resendCmd = &cobra.Command{
	Use:   "resend [email]",
	Short: "Email a new verification code",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		email, err := p.orPrompt(argOr(args, 0, cfg.Email), "Email")
		if err != nil {
			return err
		}
		msg, err := apiClient().ResendOTP(cmd.Context(), email)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in and store the access token",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Token = ""
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		u, err := c.Me(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s <%s>\n", titleStyle.Render(u.Name), u.Email)
		fmt.Fprintf(out, "%d pomodoros, streak %d (best %d)\n", u.TotalPomodoros, u.CurrentStreak, u.LongestStreak)
		return nil
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change or reset your password",
}

var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the password of the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		current, err := p.secret("Current password")
		if err != nil {
			return err
		}
		next, err := p.secret("New password")
		if err != nil {
			return err
		}
		if err := c.ChangePassword(cmd.Context(), current, next); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Password updated."))
		return nil
	},
}

var passwordResetCmd = &cobra.Command{
	Use:   "reset [email]",
	Short: "Reset a forgotten password with an emailed code",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPasswordReset,
}

func init() {
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	passwordCmd.AddCommand(passwordChangeCmd, passwordResetCmd)
	rootCmd.AddCommand(registerCmd, verifyCmd, resendCmd, loginCmd, logoutCmd, whoamiCmd, passwordCmd)
}

func argOr(args []string, i int, fallback string) string {
	if i < len(args) {
		return args[i]
	}
	return fallback
}

func runRegister(cmd *cobra.Command, args []string) error {
	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	name, err := p.orPrompt(registerName, "Name")
	if err != nil {
		return err
	}
	email, err := p.orPrompt(argOr(args, 0, ""), "Email")
	if err != nil {
		return err
	}
	password, err := p.secret("Password")
	if err != nil {
		return err
	}

	reg, err := apiClient().Register(cmd.Context(), name, email, password)
	if err != nil {
		return err
	}
	cfg.Email = reg.Email
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reg.Message)
	fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Run `focus verify` with the code from the email."))
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	email, err := p.orPrompt(argOr(args, 0, cfg.Email), "Email")
	if err != nil {
		return err
	}
	code, err := p.orPrompt(argOr(args, 1, ""), "Code")
	if err != nil {
		return err
	}
	auth, err := apiClient().VerifyOTP(cmd.Context(), email, code)
	if err != nil {
		return err
	}
	return signedIn(cmd, auth)
}

func runLogin(cmd *cobra.Command, args []string) error {
	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	email, err := p.orPrompt(argOr(args, 0, cfg.Email), "Email")
	if err != nil {
		return err
	}
	password, err := p.secret("Password")
	if err != nil {
		return err
	}

	auth, err := apiClient().Login(cmd.Context(), email, password)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.RequiresVerification {
		cfg.Email = email
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		return errors.New("email not verified; run `focus resend` for a new code, then `focus verify`")
	}
	if err != nil {
		return err
	}
	return signedIn(cmd, auth)
}

func signedIn(cmd *cobra.Command, auth *client.Auth) error {
	cfg.Token = auth.Token
	cfg.Email = auth.User.Email
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Signed in as %s.\n", successStyle.Render(auth.Message+"."), auth.User.Email)
	return nil
}

func runPasswordReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := apiClient()
	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	email, err := p.orPrompt(argOr(args, 0, cfg.Email), "Email")
	if err != nil {
		return err
	}
	msg, err := c.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)

	code, err := p.line("Code")
	if err != nil {
		return err
	}
	if err := c.VerifyResetOTP(ctx, email, code); err != nil {
		return err
	}
	password, err := p.secret("New password")
	if err != nil {
		return err
	}
	if err := c.ResetPassword(ctx, email, code, password); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Password reset. Run `focus login` to sign in."))
	return nil
}
