package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evhart/bivouac/pkg/adapters/ws"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/peer"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a command to the session host",
	Long: `Connects to the host's websocket bus as a peer and submits one command.
The host applies its policy checks; a silently dropped command is not an error.

Examples:
  bivouac submit --op assignMe --actor hero-1 --slot watch-2
  bivouac submit --op joinRank --actor hero-1 --rank 0
  bivouac submit --op setNote --actor hero-1 --rank 1 --note "rear guard"`,
	Run: func(cmd *cobra.Command, args []string) {
		url, _ := cmd.Flags().GetString("url")
		from, _ := cmd.Flags().GetString("from")
		actor, _ := cmd.Flags().GetString("actor")
		op, _ := cmd.Flags().GetString("op")

		payload := make(map[string]any)
		if cmd.Flags().Changed("slot") {
			slot, _ := cmd.Flags().GetString("slot")
			payload["slotId"] = slot
		}
		if cmd.Flags().Changed("rank") {
			rank, _ := cmd.Flags().GetInt("rank")
			payload["rank"] = rank
		}
		if cmd.Flags().Changed("notes") {
			notes, _ := cmd.Flags().GetString("notes")
			payload["notes"] = notes
		}
		if cmd.Flags().Changed("note") {
			note, _ := cmd.Flags().GetString("note")
			payload["note"] = note
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := ws.Dial(ctx, url)
		if err != nil {
			fmt.Printf("Error connecting to %s: %v\n", url, err)
			os.Exit(1)
		}
		defer client.Close()

		p := peer.New(client, domain.Identity(from))
		err = p.Submit(ctx, domain.Command{
			Kind:    domain.CommandKind(op),
			Actor:   domain.EntityRef(actor),
			Payload: payload,
		})
		if err != nil {
			fmt.Printf("Error submitting command: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Submitted %s as %s\n", op, from)
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().String("url", "ws://localhost:8080/ws", "Websocket URL of the host's session bus")
	submitCmd.Flags().String("from", "", "Peer identity submitting the command")
	submitCmd.Flags().String("actor", "", "Entity the command acts for")
	submitCmd.Flags().String("op", "", "Command kind (assignMe, clearEntry, setEntryNotes, joinRank, setNote)")
	submitCmd.Flags().String("slot", "", "Watch slot id (e.g. watch-1)")
	submitCmd.Flags().Int("rank", 0, "Marching rank index")
	submitCmd.Flags().String("notes", "", "Watch slot notes")
	submitCmd.Flags().String("note", "", "Marching rank note")

	_ = submitCmd.MarkFlagRequired("from")
	_ = submitCmd.MarkFlagRequired("op")
}
