package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/chat"
	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/terminal"
)

const leaveCommand = "/leave"

var (
	joinRoom     string
	joinUsername string
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Room helpers",
}

var roomNewCmd = &cobra.Command{
	Use:         "new",
	Short:       "Print a fresh random room id",
	Annotations: map[string]string{"bare": "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), domain.NewRoomID())
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room and chat",
	Long: `Join a room and chat. Every line you type is sent as a message; type
/leave or press Ctrl+D to leave. Messages from the last 30 minutes are
restored from the local cache.`,
	RunE: runJoin,
}

func runJoin(cmd *cobra.Command, args []string) error {
	auth, err := application.Auth()
	if err != nil {
		return err
	}
	deps, err := application.ChatDependencies()
	if err != nil {
		return err
	}
	bus, err := application.Bus()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := terminal.NewRenderer(cmd.OutOrStdout())
	if err := renderer.Subscribe(ctx, bus); err != nil {
		return err
	}

	session, err := chat.Activate(ctx, auth.Context(), joinRoom, joinUsername, deps, application.ChatOptions()...)
	if errors.Is(err, domain.ErrNotAuthenticated) {
		return fmt.Errorf("please run 'chat-cli login' first: %w", err)
	}
	if err != nil {
		return err
	}
	auth.OnSignOut(func() { _ = session.Leave() })

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-session.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-session.Done():
			renderer.Render(session.View())
			return nil

		case line, ok := <-lines:
			if !ok || line == leaveCommand {
				err := session.Leave()
				renderer.Render(session.View())
				return err
			}
			session.NotifyTyping(line)
			err := session.SendMessage(line)
			if err != nil && !errors.Is(err, domain.ErrEmptyMessage) {
				fmt.Fprintf(cmd.ErrOrStderr(), "not sent: %v\n", err)
			}
		}
	}
}

func init() {
	joinCmd.Flags().StringVarP(&joinRoom, "room", "r", "", "room id (see 'chat-cli room new')")
	joinCmd.Flags().StringVarP(&joinUsername, "username", "u", "", "name shown in the room (defaults to your account name)")
	_ = joinCmd.MarkFlagRequired("room")

	roomCmd.AddCommand(roomNewCmd)
	rootCmd.AddCommand(roomCmd, joinCmd)
}
