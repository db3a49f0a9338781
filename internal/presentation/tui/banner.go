package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner with the running version.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	// Campfire gradient (amber to ember)
	s1 := termenv.String(` ____  _                                `).Foreground(p.Color("#fbbf24"))
	s2 := termenv.String(`| __ )(_)_   _____  _   _  __ _  ___ `).Foreground(p.Color("#f59e0b"))
	s3 := termenv.String(`|  _ \| \ \ / / _ \| | | |/ _' |/ __|`).Foreground(p.Color("#f97316"))
	s4 := termenv.String(`| |_) | |\ V / (_) | |_| | (_| | (__ `).Foreground(p.Color("#ea580c"))
	s5 := termenv.String(`|____/|_| \_/ \___/ \__,_|\__,_|\___|`).Foreground(p.Color("#dc2626"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	if v := strings.TrimSpace(version); v != "" {
		fmt.Println(termenv.String("  v" + v).Foreground(p.Color("#9ca3af")))
	}
	fmt.Println()
}
