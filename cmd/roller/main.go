package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/lawnchairsociety/combatroller/internal/config"
	"github.com/lawnchairsociety/combatroller/internal/help"
	"github.com/lawnchairsociety/combatroller/internal/logger"
	"github.com/lawnchairsociety/combatroller/internal/server"
)

func main() {
	port := flag.Int("port", 4000, "Telnet server port")
	httpPort := flag.Int("httpport", 8080, "HTTP server port (page, WebSocket and JSON API)")
	seed := flag.Uint64("seed", 0, "Dice seed for reproducible rolls (default: random per connection)")
	helpFile := flag.String("help", "", "Path to help YAML file (default: built-in help)")
	loggingConfig := flag.String("logging", "data/logging.yaml", "Path to logging config YAML file")
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to server config YAML file")
	flag.Parse()

	// Initialize logger first (before any logging)
	logConfig, logErr := logger.LoadConfig(*loggingConfig)
	logger.Initialize(logConfig)
	if logErr != nil {
		logger.Warning("Failed to load logging config, using defaults", "path", *loggingConfig, "error", logErr)
	}

	logger.Info("Starting combat roller")

	serverCfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		logger.Warning("Failed to load server config, using defaults", "path", *serverConfigFile, "error", err)
	}
	if len(serverCfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if slices.Contains(serverCfg.WebSocket.AllowedOrigins, "*") {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", serverCfg.WebSocket.AllowedOrigins)
	}
	if serverCfg.Throttle.Enabled {
		logger.Info("Roll throttle enabled",
			"max_rolls", serverCfg.Throttle.MaxRolls,
			"window_seconds", serverCfg.Throttle.WindowSeconds)
	}
	if serverCfg.Connections.TrustProxyHeaders {
		logger.Warning("Trusting X-Forwarded-For and X-Real-IP headers; run behind a proxy that sets them")
	}

	helpText := help.Default()
	if *helpFile != "" {
		loaded, err := help.Load(*helpFile)
		if err != nil {
			logger.Warning("Failed to load help file, using built-in help", "path", *helpFile, "error", err)
		} else {
			helpText = loaded
			logger.Info("Help system loaded", "path", *helpFile, "topics", len(loaded.Topics()))
		}
	}

	srv := server.NewServer(serverCfg, helpText)
	if *seed != 0 {
		srv.SetSeed(*seed)
		logger.Info("Dice seed selected", "seed", *seed)
	}

	// Start telnet server in a goroutine
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", *port)); err != nil {
			log.Fatalf("Telnet server error: %v", err)
		}
	}()

	// Start HTTP server in a goroutine
	go func() {
		if err := srv.StartHTTP(fmt.Sprintf(":%d", *httpPort)); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("Combat roller running", "telnet_port", *port, "http_port", *httpPort)
	logger.Info("Press Ctrl+C to shutdown")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")
	srv.Shutdown()
	logger.Info("Server stopped")
}
