package main

import (
	"fmt"
	"strings"

	"github.com/evhart/bivouac"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of bivouac",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bivouac version %s\n", strings.TrimSpace(bivouac.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
