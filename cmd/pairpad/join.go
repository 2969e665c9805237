package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	serverFlag string
	nameFlag   string
)

var joinCmd = &cobra.Command{
	Use:   "join <room>",
	Short: "Join a room from the terminal",
	Long: `Join a room and relay lines to the other participants.

Each line you type is sent as {"user": <name>, "code": <line>}, the same
envelope the browser editor uses. Messages from others are printed as they
arrive.

Examples:
  pairpad join lobby
  pairpad join lobby --name alice --server http://pairpad.local:5000`,
	Args: cobra.ExactArgs(1),
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().StringVar(&serverFlag, "server", "http://localhost:5000", "Server address")
	joinCmd.Flags().StringVar(&nameFlag, "name", os.Getenv("USER"), "Display name")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	room := args[0]
	name := nameFlag
	if name == "" {
		name = "anonymous"
	}

	addr, err := roomURL(serverFlag, room)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("\033[36m%s>\033[0m ", name),
		HistoryFile:     filepath.Join(os.TempDir(), "pairpad_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "Joined room %s as %s. Ctrl+D to leave.\n", room, name)

	echoes := newEchoFilter()

	// Print relayed payloads above the prompt until the connection drops.
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					fmt.Fprintf(rl.Stderr(), "\033[31mdisconnected: %s\033[0m\n", err)
				}
				rl.Close()
				return
			}
			if echoes.Echo(data) {
				continue
			}
			fmt.Fprintln(rl.Stdout(), formatIncoming(data))
		}
	}()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				fmt.Println("Goodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimRight(input, "\r\n")
		if strings.TrimSpace(input) == "" {
			continue
		}
		payload, err := json.Marshal(envelope{User: name, Code: input})
		if err != nil {
			return err
		}
		echoes.Sent(payload)
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return fmt.Errorf("sending: %w", err)
		}
	}
}
