package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpc_adapter "github.com/pedromedina19/hermes-bridge/internal/adapters/primary/grpc"
	http_adapter "github.com/pedromedina19/hermes-bridge/internal/adapters/primary/http"
	"github.com/pedromedina19/hermes-bridge/internal/adapters/secondary/config"
	"github.com/pedromedina19/hermes-bridge/internal/adapters/secondary/memory"
	mqtt_adapter "github.com/pedromedina19/hermes-bridge/internal/adapters/secondary/mqtt"
	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
	"github.com/pedromedina19/hermes-bridge/internal/core/metrics"
	"github.com/pedromedina19/hermes-bridge/internal/core/services"
	"github.com/pedromedina19/hermes-bridge/internal/pkg/monitoring"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting Hermes Bridge", "config", cfg)
	mqtt_adapter.ConfigureClientLogging(mqtt_adapter.HclogLevel(cfg.LogLevel), os.Stderr)

	store := memory.NewRetentionStore(cfg.HistorySize, cfg.Broker.Topics)
	feed := memory.NewFeed(cfg.EventBuffer, logger)
	query := services.NewQueryService(store)
	ingestor := services.NewIngestor(store, feed, logger)
	health := grpc_adapter.NewHealthReporter(logger)

	subscriber := mqtt_adapter.NewSubscriber(mqtt_adapter.Options{
		Broker:         cfg.Broker.BrokerURL(),
		ClientID:       cfg.Broker.ClientID,
		Topics:         cfg.Broker.Topics,
		QoS:            cfg.Broker.QoS,
		KeepAlive:      cfg.Broker.KeepAlive,
		ConnectTimeout: cfg.Broker.ConnectTimeout,
		BackoffBase:    cfg.Broker.BackoffBase,
		BackoffMax:     cfg.Broker.BackoffMax,
		OnStateChange:  health.Update,
	}, logger)

	restHandler := http_adapter.NewHttpHandler(query, subscriber, feed, http_adapter.BrokerInfo{
		URL:      cfg.Broker.BrokerURL(),
		ClientID: cfg.Broker.ClientID,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           restHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.GRPCPort)
	if err != nil {
		logger.Error("Failed to listen", "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)

	//Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.StartRateCalculator(ctx)
	monitoring.StartMonitoring(ctx, cfg.MonitorInterval, logger)

	arrivals := make(chan domain.Arrival, cfg.EventBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return subscriber.Run(gctx, arrivals)
	})
	g.Go(func() error {
		return ingestor.Run(gctx, arrivals)
	})
	g.Go(func() error {
		logger.Info("HTTP Server listening", "address", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC Server listening", "address", cfg.GRPCPort)
		return grpcServer.Serve(listener)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		health.Shutdown()
		feed.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exited properly")
}
