package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"virtualta/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer questions over HTTP",
	Long: `Load the course and forum indexes and answer questions over HTTP.

POST /api/ (or /) with form fields "question" and an optional base64 "image".
GET / returns a health page. The server refuses to start if the credential is
missing or an index cannot be loaded.

Examples:
  virtualta serve
  virtualta serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	uc, err := newQueryUseCase(cfg)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	addr := cfg.Service.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := server.New(uc, logger, server.Options{
		MaxBodyBytes:    cfg.Service.MaxBodyBytes,
		ShutdownTimeout: cfg.Service.ShutdownTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, addr)
}
