// Package main is the entry point for the reelflow server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pyrex41/reelflow/pkg/config"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "reelflow"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Application failed: %v", err)
		}
	case <-stop:
		log.Println("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			log.Fatalf("Error during shutdown: %v", err)
		}
	}
}

// loadConfig loads the configuration from the specified path or from
// standard locations, falling back to a freshly written default.
func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadConfig(*configPath)
	}

	locations := []string{
		"./config.json",
		"./configs/config.json",
		filepath.Join(os.Getenv("HOME"), ".reelflow", "config.json"),
		"/etc/reelflow/config.json",
	}
	for _, path := range locations {
		if cfg, err := config.LoadConfig(path); err == nil {
			return cfg, nil
		}
	}

	cfg := config.DefaultConfig()
	defaultPath := filepath.Join(os.Getenv("HOME"), ".reelflow", "config.json")
	if err := config.SaveConfig(cfg, defaultPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	fmt.Printf("Created default configuration at %s\n", defaultPath)

	return cfg, nil
}
