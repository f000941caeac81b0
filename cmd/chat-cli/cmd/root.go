package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/app"
	"github.com/nfrund/roomchat/internal/config"
	"github.com/nfrund/roomchat/internal/logging"
)

// application is built before every command that needs services.
var application *app.App

var rootCmd = &cobra.Command{
	Use:   "chat-cli",
	Short: "Terminal client for roomchat",
	Long: `chat-cli joins roomchat rooms from the terminal and manages your account.

Configuration comes from the environment (and a .env file when present):
  ROOMCHAT_SOCKET_URL, ROOMCHAT_API_URL, ROOMCHAT_STORE_BACKEND, ROOMCHAT_STORE_DIR,
  ROOMCHAT_CACHE_TTL, ROOMCHAT_CACHE_LIMIT, ROOMCHAT_TYPING_DEBOUNCE, LOG_FORMAT, LOG_LEVEL

Use "chat-cli [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations["bare"] == "true" {
			return nil
		}
		cfg, err := config.New()
		if err != nil {
			return err
		}
		logging.New(cfg.LogFormat, cfg.LogLevel)
		application = app.New(cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			application.Close()
		}
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// stdin is shared so buffered input is not lost between prompts.
var stdin *bufio.Reader

// prompt asks for a value on stdin when the flag was left empty.
func prompt(cmd *cobra.Command, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	if stdin == nil {
		stdin = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	line, err := stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
