package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/pairpad/internal/session"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List active rooms on a running server",
	RunE:  runRooms,
}

func init() {
	roomsCmd.Flags().StringVar(&serverFlag, "server", "http://localhost:5000", "Server address")
	rootCmd.AddCommand(roomsCmd)
}

func runRooms(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(strings.TrimSuffix(serverFlag, "/") + "/api/rooms")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var rooms []session.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return fmt.Errorf("decoding rooms: %w", err)
	}

	if len(rooms) == 0 {
		fmt.Println("No active rooms.")
		return nil
	}

	// Header
	fmt.Printf("%-40s %s\n", "ROOM", "MEMBERS")
	fmt.Println(strings.Repeat("─", 48))
	for _, r := range rooms {
		name := r.Room
		if len(name) > 38 {
			name = name[:38] + ".."
		}
		fmt.Printf("%-40s %d\n", name, r.Members)
	}
	return nil
}
