package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/api"
	"github.com/wonny/screener/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Starts the REST API with a WebSocket event stream.

Endpoints:
  GET    /health              - Health check
  GET    /api/strategies      - Registered strategies
  POST   /api/scans           - Start a scan (409 while another runs)
  GET    /api/scans/active    - Active scan status
  DELETE /api/scans/active    - Stop the active scan
  GET    /api/scans/last      - Last finished scan with results
  GET    /api/scans/history   - Recorded scan runs
  GET    /ws                  - progress, result and summary events

Example:
  go run ./cmd/screener api
  go run ./cmd/screener api --port 9000`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default PORT)")
	apiCmd.Flags().BoolVar(&scanWithFundamentals, "with-fundamentals", false, "download fundamentals for each symbol")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := newApp(ctx, appOptions{fundamentals: scanWithFundamentals, history: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	r, err := a.newRunner(0)
	if err != nil {
		return err
	}

	hub := api.NewHub(func() interface{} { return r.Status() }, a.log)
	go hub.Run(ctx)

	scanHandler := handlers.NewScanHandler(r, a.registry, a.universe, a.recorder, hub, a.log)
	router := api.NewRouter(scanHandler, hub, a.log)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	a.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	r.Shutdown()
	scanHandler.Wait()
	stop()

	a.log.Info("Server stopped")
	return nil
}
