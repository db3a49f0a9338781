package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bivouac",
	Short: "Bivouac is a host-authoritative shared session state engine",
	Long: `Bivouac keeps a party's shared documents (watch rotation, marching order,
injuries, hazards, reputation, supplies) consistent across connected peers.
One host process owns the documents; peers submit commands over the session bus.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the bivouac config file (YAML)")
}
