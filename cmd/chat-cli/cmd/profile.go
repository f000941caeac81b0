package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	profileUsername        string
	profileCurrentPassword string
	profileNewPassword     string
	profileDeletePassword  string
	profileDeleteYes       bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your account",
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change your username or password",
	Long: `Change your username or password. Changing the password requires the
current password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := application.Auth()
		if err != nil {
			return err
		}
		current := profileCurrentPassword
		if profileNewPassword != "" {
			if current, err = prompt(cmd, "Current password", current); err != nil {
				return err
			}
		}
		user, err := auth.UpdateProfile(cmd.Context(), profileUsername, current, profileNewPassword)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile updated. You are %s.\n", user.Username)
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete your account and sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := application.Auth()
		if err != nil {
			return err
		}
		password, err := prompt(cmd, "Password", profileDeletePassword)
		if err != nil {
			return err
		}
		if !profileDeleteYes {
			answer, err := prompt(cmd, "This cannot be undone. Type 'delete' to confirm", "")
			if err != nil {
				return err
			}
			if answer != "delete" {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}
		if err := auth.DeleteAccount(cmd.Context(), password); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Account deleted.")
		return nil
	},
}

func init() {
	profileUpdateCmd.Flags().StringVar(&profileUsername, "username", "", "new username")
	profileUpdateCmd.Flags().StringVar(&profileNewPassword, "new-password", "", "new password (at least 6 characters)")
	profileUpdateCmd.Flags().StringVar(&profileCurrentPassword, "current-password", "", "current password, required with --new-password")
	profileDeleteCmd.Flags().StringVar(&profileDeletePassword, "password", "", "your password")
	profileDeleteCmd.Flags().BoolVar(&profileDeleteYes, "yes", false, "skip the confirmation prompt")

	profileCmd.AddCommand(profileUpdateCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
