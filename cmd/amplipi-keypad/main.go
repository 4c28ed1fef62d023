package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"

	"github.com/strefethen/amplipi-keypad-go/internal/app"
	"github.com/strefethen/amplipi-keypad-go/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keypad, err := app.New(ctx, cfg, log.Default())
	if err != nil {
		log.Fatalf("keypad init error: %v", err)
	}
	defer keypad.Close()

	if err := keypad.Run(ctx); err != nil {
		log.Printf("keypad error: %v", err)
		keypad.Close()
		os.Exit(1)
	}
}
