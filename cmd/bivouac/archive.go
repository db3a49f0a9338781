package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/evhart/bivouac/internal/archive"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage archived effects on a running host",
	Long:  `List, restore, and remove archived effect snapshots through the host's JSON API.`,
}

var archiveLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List archived effects",
	Run: func(cmd *cobra.Command, args []string) {
		base := archiveBase(cmd)

		var entries []archive.Entry
		if err := apiGet(base+"/archive", &entries); err != nil {
			fmt.Printf("Error listing archive: %v\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			fmt.Println("No archived effects.")
			return
		}

		fmt.Println("Archived effects:")
		for _, e := range entries {
			fmt.Printf("- %s  %s/%s  %q  (%s)\n",
				e.ID, e.Entity, e.Category, e.Label,
				e.ArchivedAt.Format(time.RFC3339))
		}
	},
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore <entry-id>",
	Short: "Restore an archived effect to its entity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		base := archiveBase(cmd)
		id := args[0]

		resp, err := http.Post(base+"/archive/"+id+"/restore", "application/json", nil)
		if err != nil {
			fmt.Printf("Error restoring '%s': %v\n", id, err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf("Error restoring '%s': %s\n", id, strings.TrimSpace(readBody(resp)))
			os.Exit(1)
		}
		fmt.Printf("Restored '%s'\n", id)
	},
}

var archiveRmCmd = &cobra.Command{
	Use:   "rm <entry-id>...",
	Short: "Remove one or more archive entries",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		base := archiveBase(cmd)
		hasError := false

		for _, id := range args {
			req, err := http.NewRequest(http.MethodDelete, base+"/archive/"+id, nil)
			if err != nil {
				fmt.Printf("Error removing '%s': %v\n", id, err)
				hasError = true
				continue
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				fmt.Printf("Error removing '%s': %v\n", id, err)
				hasError = true
				continue
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusNoContent {
				fmt.Printf("Error removing '%s': %s\n", id, resp.Status)
				hasError = true
				continue
			}
			fmt.Printf("Removed '%s'\n", id)
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveLsCmd)
	archiveCmd.AddCommand(archiveRestoreCmd)
	archiveCmd.AddCommand(archiveRmCmd)

	archiveCmd.PersistentFlags().String("url", "http://localhost:8080", "Base URL of the host's JSON API")
}

func archiveBase(cmd *cobra.Command) string {
	base, _ := cmd.Flags().GetString("url")
	return strings.TrimRight(base, "/")
}

func apiGet(url string, into any) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

func readBody(resp *http.Response) string {
	data, _ := io.ReadAll(resp.Body)
	return string(data)
}
