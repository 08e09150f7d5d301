package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dshills/reviewloop/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Long:  `Serves POST /v1/runs, GET /v1/runs/{runID}/steps, /healthz and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		var logOut io.Writer = os.Stderr
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			logOut = nil
		}

		a, err := newApp(context.Background(), cfg, logOut)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		// A dedicated metrics listener takes /metrics off the API handler.
		var gatherer prometheus.Gatherer = a.registry
		var metricsSrv *http.Server
		if cfg.Telemetry.MetricsAddr != "" {
			gatherer = nil
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
			metricsSrv = &http.Server{Addr: cfg.Telemetry.MetricsAddr, Handler: mux}
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server.NewHandler(&server.Server{NewEngine: a.engine, Store: a.store}, gatherer),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listeners.
		serverErrors := make(chan error, 2)

		go func() {
			fmt.Printf("Starting reviewloop server on %s (provider %s, store %s)\n",
				srv.Addr, cfg.Provider.Name, cfg.Store.Driver)
			serverErrors <- srv.ListenAndServe()
		}()
		if metricsSrv != nil {
			go func() {
				fmt.Printf("Serving metrics on %s\n", metricsSrv.Addr)
				serverErrors <- metricsSrv.ListenAndServe()
			}()
		}

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding runs a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete: %v\n", err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("reviewloop server stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("quiet", false, "Do not log engine events")
}
