package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/authapi"
)

var (
	passwordEmail string
	passwordToken string
	passwordNew   string
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Recover a forgotten password",
}

var passwordForgotCmd = &cobra.Command{
	Use:   "forgot",
	Short: "Mail a password reset link",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := application.AuthClient()
		if err != nil {
			return err
		}
		email, err := prompt(cmd, "Email", passwordEmail)
		if err != nil {
			return err
		}
		if err := client.ForgotPassword(cmd.Context(), authapi.ForgotPasswordRequest{Email: email}); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "If the address is registered, a reset link is on its way.")
		return nil
	},
}

var passwordResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Set a new password with a reset token",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := application.AuthClient()
		if err != nil {
			return err
		}
		token, err := prompt(cmd, "Reset token", passwordToken)
		if err != nil {
			return err
		}
		newPassword, err := prompt(cmd, "New password", passwordNew)
		if err != nil {
			return err
		}
		req := authapi.ResetPasswordRequest{Token: token, NewPassword: newPassword}
		if err := client.ResetPassword(cmd.Context(), req); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password reset. You can now log in.")
		return nil
	},
}

func init() {
	passwordForgotCmd.Flags().StringVar(&passwordEmail, "email", "", "account email address")
	passwordResetCmd.Flags().StringVar(&passwordToken, "token", "", "token from the reset link")
	passwordResetCmd.Flags().StringVar(&passwordNew, "new-password", "", "new password (at least 6 characters)")

	passwordCmd.AddCommand(passwordForgotCmd, passwordResetCmd)
	rootCmd.AddCommand(passwordCmd)
}
