package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/labface/internal/config"
	"github.com/kozaktomas/labface/internal/encoder"
	"github.com/kozaktomas/labface/internal/imagesource"
	"github.com/kozaktomas/labface/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the LabFace HTTP API.
The embeddings index is loaded from the database on startup and kept in
memory; enroll, delete and reload requests keep it in sync with the store.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

// resolveServeHostPort resolves port and host from flags, falling back to configuration.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if port == 0 {
		port = cfg.Web.Port
	}
	if host == "" {
		host = cfg.Web.Host
	}
	return port, host
}

// newImageFetcher wires HTTP downloads and, when configured, MinIO object reads.
func newImageFetcher(cfg *config.Config) (*imagesource.Fetcher, error) {
	timeout := time.Duration(cfg.Encoder.FetchTimeoutSeconds) * time.Second

	minioStore, err := imagesource.NewMinIOStore(&cfg.MinIO)
	if err != nil {
		return nil, err
	}
	if minioStore == nil {
		return imagesource.NewFetcher(timeout, nil), nil
	}
	fmt.Printf("MinIO image source enabled (%s)\n", cfg.MinIO.Endpoint)
	return imagesource.NewFetcher(timeout, minioStore), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, err := newEngine(ctx, cfg, store)
	if err != nil {
		return err
	}

	fetcher, err := newImageFetcher(cfg)
	if err != nil {
		return err
	}

	port, host := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(cfg, web.Dependencies{
		Index:       eng.index,
		Matcher:     eng.matcher,
		Coordinator: eng.coordinator,
		Store:       store,
		Encoder:     encoder.NewClient(cfg.Encoder.URL, cfg.Encoder.MaxImageSize),
		Fetcher:     fetcher,
	}, port, host)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting LabFace API on http://%s:%d (model %s, threshold %.2f)\n",
		host, port, cfg.Matching.ModelName, cfg.Matching.Threshold)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
