package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yates-Labs/narraitor/internal/api"
	"github.com/Yates-Labs/narraitor/internal/logger"
	"github.com/Yates-Labs/narraitor/internal/orchestrator"
	"github.com/spf13/cobra"
)

var httpPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the narrative HTTP API and block until SIGINT or SIGTERM.

Examples:
  narraitor serve
  narraitor serve --port 9090 --provider mock`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&httpPort, "port", 0, "Override NARRAITOR_HTTP_PORT")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if httpPort > 0 {
		cfg.HTTPPort = httpPort
	}
	log := logger.New("narraitor", cfg.LogLevel)

	log.Info().
		Str("storage", cfg.StorageDriver).
		Str("ai_provider", cfg.AIProvider).
		Bool("lore_recall", cfg.LoreRecallEnabled()).
		Int("http_port", cfg.HTTPPort).
		Msg("Narraitor starting…")

	ctx := context.Background()
	o, err := orchestrator.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer o.Close()

	server := &http.Server{
		Addr:         cfg.GetHTTPAddr(),
		Handler:      api.NewRouter(o),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // ending generation retries with backoff
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("Shutting down server…")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return err
	}
	log.Info().Msg("Server exited")
	return nil
}
