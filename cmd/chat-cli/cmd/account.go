package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/authapi"
)

var (
	accountName     string
	accountEmail    string
	accountPassword string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := application.Auth()
		if err != nil {
			return err
		}
		name, err := prompt(cmd, "Name", accountName)
		if err != nil {
			return err
		}
		email, err := prompt(cmd, "Email", accountEmail)
		if err != nil {
			return err
		}
		password, err := prompt(cmd, "Password", accountPassword)
		if err != nil {
			return err
		}
		user, err := auth.Signup(cmd.Context(), name, email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! You are signed in.\n", user.Username)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := application.Auth()
		if err != nil {
			return err
		}
		email, err := prompt(cmd, "Email", accountEmail)
		if err != nil {
			return err
		}
		password, err := prompt(cmd, "Password", accountPassword)
		if err != nil {
			return err
		}
		user, err := auth.Login(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", user.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := application.Auth()
		if err != nil {
			return err
		}
		if err := auth.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Long: `Show the signed-in user. With --remote the account service is asked
instead of the locally stored sign-in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := application.Auth()
		if err != nil {
			return err
		}
		ctx := auth.Context()
		if !ctx.IsAuthenticated {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			return nil
		}
		user := *ctx.User
		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			client, err := application.AuthClient()
			if err != nil {
				return err
			}
			if user, err = client.CurrentUser(cmd.Context()); err != nil {
				if authapi.IsUnauthorized(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "Your session has expired. Please log in again.")
					return nil
				}
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %s)\n", user.Username, user.Email, user.ID)
		return nil
	},
}

func init() {
	signupCmd.Flags().StringVar(&accountName, "name", "", "display name (at least 2 characters)")
	signupCmd.Flags().StringVar(&accountEmail, "email", "", "email address")
	signupCmd.Flags().StringVar(&accountPassword, "password", "", "password (at least 6 characters)")
	loginCmd.Flags().StringVar(&accountEmail, "email", "", "email address")
	loginCmd.Flags().StringVar(&accountPassword, "password", "", "password")
	whoamiCmd.Flags().Bool("remote", false, "ask the account service")

	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd)
}
