// Package cmd is the CLI entry point of the copiloto assistant: it wires
// the RAG subsystem (chunker, embedding generator, vector index, knowledge
// base, orchestrator) against the Gemini backends and runs an interactive
// question loop.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kaapeh/copiloto/internal/config"
	"github.com/kaapeh/copiloto/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	GitCommit  = "unknown"
)

// Execute is the main entry point. All application logic lives in the cmd
// package, leaving main.go as a minimal shim.
func Execute() error {
	// Version and help work even without config or API keys.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("copiloto %s (%s)\n", AppVersion, GitCommit)
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		}
	}

	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := checkRequiredEnv(); err != nil {
		return err
	}

	ctx := context.Background()

	app, err := setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "ask" {
		return runAskOnce(ctx, app, os.Args[2:])
	}
	return runInteractive(ctx, app)
}

// initLogger builds the structured logger. DEBUG=1 enables debug level.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}

// checkRequiredEnv verifies the Gemini API key is present and prints setup
// instructions when it is not.
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Copiloto requires a Gemini API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")
		return fmt.Errorf("missing GEMINI_API_KEY")
	}
	return nil
}

func printHelp() {
	fmt.Println(`copiloto - asistente técnico de café agroecológico

Usage:
  copiloto             interactive question loop
  copiloto ask <text>  answer a single question and exit
  copiloto version     print version
  copiloto help        print this help

Environment:
  GEMINI_API_KEY       Gemini API key (required)
  DEBUG                enable debug logging when set`)
}
