package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/authapi"
)

var contactReq authapi.ContactRequest

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Send a message to support",
	Long: `Send a message to support. Name and email default to the signed-in
user. The request gives up after 30 seconds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := application.AuthClient()
		if err != nil {
			return err
		}
		auth, err := application.Auth()
		if err != nil {
			return err
		}
		req := contactReq
		if ctx := auth.Context(); ctx.IsAuthenticated {
			if req.Name == "" {
				req.Name = ctx.User.Username
			}
			if req.Email == "" {
				req.Email = ctx.User.Email
			}
		}
		if req.Name, err = prompt(cmd, "Name", req.Name); err != nil {
			return err
		}
		if req.Email, err = prompt(cmd, "Email", req.Email); err != nil {
			return err
		}
		if req.Message, err = prompt(cmd, "Message", req.Message); err != nil {
			return err
		}
		if err := client.ContactSupport(cmd.Context(), req); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Thanks! Support will get back to you.")
		return nil
	},
}

func init() {
	contactCmd.Flags().StringVar(&contactReq.Name, "name", "", "your name")
	contactCmd.Flags().StringVar(&contactReq.Email, "email", "", "reply address")
	contactCmd.Flags().StringVarP(&contactReq.Message, "message", "m", "", "message (at least 10 characters)")
	rootCmd.AddCommand(contactCmd)
}
