package main

import "github.com/nfrund/roomchat/cmd/chat-cli/cmd"

func main() {
	cmd.Execute()
}
