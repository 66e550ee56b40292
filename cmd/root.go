package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Yates-Labs/narraitor/internal/config"
	"github.com/Yates-Labs/narraitor/internal/logger"
	"github.com/Yates-Labs/narraitor/internal/orchestrator"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	aiProvider string
)

var rootCmd = &cobra.Command{
	Use:   "narraitor",
	Short: "Narraitor - AI narrative engine for interactive fiction",
	Long: `Narraitor runs the narrative backend of an interactive fiction game.

It stores narrative segments and world lore, generates scenes and story
endings with an LLM, and serves everything over a JSON HTTP API.

Configuration is read from NARRAITOR_ environment variables (and .env).
Use NARRAITOR_STORAGE_DRIVER=sqlite to share state between CLI runs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override NARRAITOR_LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&aiProvider, "provider", "", "Override NARRAITOR_AI_PROVIDER (openai, gemini, mock)")
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig applies the persistent flag overrides to the environment config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if aiProvider != "" {
		cfg.AIProvider = aiProvider
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// bootstrap wires the services for a one-shot CLI command. Logs go to stderr
// so command output stays clean.
func bootstrap(ctx context.Context) (*orchestrator.Orchestrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(os.Stderr, "narraitor-cli", cfg.LogLevel)
	return orchestrator.New(ctx, cfg, log)
}
