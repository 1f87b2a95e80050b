package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/couchcryptid/vigil-feed-service/internal/adapter/geoip"
	httpadapter "github.com/couchcryptid/vigil-feed-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/vigil-feed-service/internal/adapter/kafka"
	"github.com/couchcryptid/vigil-feed-service/internal/adapter/snapshot"
	"github.com/couchcryptid/vigil-feed-service/internal/adapter/stream"
	"github.com/couchcryptid/vigil-feed-service/internal/config"
	"github.com/couchcryptid/vigil-feed-service/internal/domain"
	"github.com/couchcryptid/vigil-feed-service/internal/observability"
	"github.com/couchcryptid/vigil-feed-service/internal/pipeline"
	"github.com/couchcryptid/vigil-feed-service/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	sess := session.New(session.Options{
		StreamCapacity: cfg.StreamCapacity,
		ArcCapacity:    cfg.ArcCapacity,
		FeedLimit:      cfg.FeedLimit,
	}, logger, metrics)

	fetcher := snapshot.NewClient(cfg.SnapshotBaseURL, cfg.SnapshotTimeout, logger)
	reconciler := pipeline.NewReconciler(fetcher, sess, nil, cfg.SnapshotInterval, logger, metrics)

	// IP geolocation is optional (GEOIP_DB_PATH).
	var locator domain.Locator
	if cfg.GeoIPDBPath != "" {
		reader, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			logger.Error("failed to open geoip database", "error", err)
			os.Exit(1)
		}
		defer reader.Close()
		locator = geoip.NewCachedLocator(reader, cfg.GeoIPCacheSize, metrics)
		logger.Info("ip geolocation enabled", "path", cfg.GeoIPDBPath, "cache_size", cfg.GeoIPCacheSize)
	} else {
		logger.Info("ip geolocation disabled")
	}

	var (
		relay  pipeline.Relay
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger, metrics)
		relay = writer
		logger.Info("kafka relay enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaRelayTopic)
	}

	origin := domain.Origin{Lat: cfg.ArcOriginLat, Lng: cfg.ArcOriginLng}
	normalizer := domain.NewNormalizer(origin, locator, domain.NewClassifier(), logger)
	reducer := pipeline.NewReducer(normalizer, sess, relay, logger, metrics)

	var (
		streamClient *stream.Client
		streamStatus httpadapter.StreamStatus
	)
	if cfg.StreamEnabled {
		streamClient = stream.NewClient(cfg.StreamURL, reducer, cfg.StreamReconnectMax, logger, metrics)
		streamStatus = streamClient
	} else {
		logger.Info("stream disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, sess, streamStatus, reconciler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.Error(name+" error", "error", err)
			}
		}()
	}
	run("session", sess.Run)
	run("reconciler", reconciler.Run)
	if streamClient != nil {
		run("stream", streamClient.Run)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	wg.Wait()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
