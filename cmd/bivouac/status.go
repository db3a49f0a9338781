package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/evhart/bivouac/internal/presentation/report"
	"github.com/evhart/bivouac/internal/presentation/tui"
	"github.com/evhart/bivouac/pkg/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the party status from a running host",
	Long: `Reads every shared document from the host's JSON API and renders a
Markdown status report. When stdout is a terminal the report is styled;
otherwise plain Markdown is written (suitable for piping).`,
	Run: func(cmd *cobra.Command, args []string) {
		base, _ := cmd.Flags().GetString("url")

		g, err := fetchContext(base)
		if err != nil {
			fmt.Printf("Error reading status from %s: %v\n", base, err)
			os.Exit(1)
		}

		md := report.Render(g)

		if term.IsTerminal(int(os.Stdout.Fd())) {
			render := tui.NewRenderer()
			out, err := render(md)
			if err == nil {
				fmt.Print(out)
				return
			}
			// Fall through to plain output on renderer failure.
		}
		fmt.Print(md)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("url", "http://localhost:8080", "Base URL of the host's JSON API")
}

// fetchContext assembles an aggregate snapshot from the HTTP document reads.
// Roster-derived fields stay empty: the report only needs the documents.
func fetchContext(base string) (domain.GlobalContext, error) {
	var g domain.GlobalContext

	if err := fetchDoc(base, domain.DocWatch, &g.Watch); err != nil {
		return g, err
	}
	if err := fetchDoc(base, domain.DocMarch, &g.March); err != nil {
		return g, err
	}
	if err := fetchDoc(base, domain.DocInjuries, &g.Injuries); err != nil {
		return g, err
	}
	if err := fetchDoc(base, domain.DocHazard, &g.Hazard); err != nil {
		return g, err
	}
	if err := fetchDoc(base, domain.DocReputation, &g.Reputation); err != nil {
		return g, err
	}
	if err := fetchDoc(base, domain.DocSupplies, &g.Supplies); err != nil {
		return g, err
	}
	if err := fetchDoc(base, domain.DocSync, &g.Sync); err != nil {
		return g, err
	}
	return g, nil
}

func fetchDoc(base string, name domain.DocName, into any) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(fmt.Sprintf("%s/documents/%s", base, name))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", name, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
