package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ya95-png/instarelay/internal/config"
	"github.com/ya95-png/instarelay/internal/logger"
	"github.com/ya95-png/instarelay/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	bot, err := telegram.NewBot(cfg)
	if err != nil {
		logger.Error("Failed to create bot", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	// Shut down the queues cleanly on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})
		if err := bot.Stop(); err != nil {
			logger.Error("Error during shutdown", map[string]interface{}{
				"error": err.Error(),
			})
		}
		os.Exit(0)
	}()

	if err := bot.Start(); err != nil {
		logger.Error("Bot exited with error", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}
