package main

import (
	"flag"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strefethen/amplipi-keypad-go/internal/monitor"
)

func main() {
	addr := flag.String("url", "http://localhost:9000", "keypad control server")
	token := flag.String("token", os.Getenv("KEYPAD_TOKEN"), "paired access token")
	testMode := flag.Bool("test-mode", false, "send x-test-mode instead of a token (development servers only)")
	flag.Parse()

	client, err := monitor.NewClient(*addr, *token, *testMode)
	if err != nil {
		log.Fatalf("client error: %v", err)
	}

	p := tea.NewProgram(monitor.NewModel(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("monitor error: %v", err)
	}
}
