// Package main is the entry point for tokentop, the terminal monitor for a
// running tokentab service.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/tokentab-io/tokentab/internal/tui"
	"github.com/tokentab-io/tokentab/internal/version"
)

func main() {
	_ = godotenv.Load()

	var (
		addr        = flag.String("addr", envOr("TOKENTAB_ADDR", "http://localhost:8080"), "tokentab API base URL")
		apiKey      = flag.String("api-key", os.Getenv("TOKENTAB_API_KEY"), "bearer token, empty when auth is disabled")
		interval    = flag.Duration("interval", 2*time.Second, "poll interval")
		period      = flag.String("period", "day", "budget period to display: day, month or total")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tokentop %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	switch *period {
	case "day", "month", "total":
	default:
		fmt.Fprintf(os.Stderr, "invalid -period %q: must be day, month or total\n", *period)
		os.Exit(2)
	}

	client := tui.NewClient(*addr, *apiKey, nil)
	model := tui.New(client, *interval, *period)

	p := tea.NewProgram(model, tea.WithAltScreen())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tokentop: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
