package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/api"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/metrics"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/rest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC, REST and metrics listeners",
	Long: `The serve command starts the evaluation service. Listener addresses come
from the configuration file or environment; an empty address disables that
listener. Version events are published to Kafka when events are enabled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.log

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var grpcServer *api.Server
	if cfg.Server.Address != "" {
		grpcServer, err = api.Listen(cfg.Server.Address, api.NewService(a.engine, logger))
		if err != nil {
			return fmt.Errorf("create gRPC server: %w", err)
		}
		go func() {
			logger.Info("gRPC server listening", slog.String("address", grpcServer.Addr()))
			if serveErr := grpcServer.Serve(); serveErr != nil {
				logger.Error("gRPC server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	var servers []*http.Server
	if cfg.Server.HTTPAddress != "" {
		servers = append(servers, &http.Server{
			Addr:         cfg.Server.HTTPAddress,
			Handler:      rest.New(a.engine, a.catalog, logger).Handler(os.Stdout),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		})
	}
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		})
	}
	for _, srv := range servers {
		go func() {
			logger.Info("http server listening", slog.String("address", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server exited", slog.String("address", srv.Addr), slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server shutdown", slog.String("address", srv.Addr), slog.Any("error", err))
		}
	}

	logger.Info("soilrisk stopped")
	return nil
}
