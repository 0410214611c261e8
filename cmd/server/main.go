package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/httpserver"
	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/redis"
	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/websocket"
	"github.com/hansxu66/btcpredict-kalshi/internal/app"
	"github.com/hansxu66/btcpredict-kalshi/internal/broadcast"
	"github.com/hansxu66/btcpredict-kalshi/internal/platform/config"
	"github.com/hansxu66/btcpredict-kalshi/internal/platform/logging"
	"github.com/hansxu66/btcpredict-kalshi/internal/platform/version"
	"github.com/hansxu66/btcpredict-kalshi/internal/state"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const startupPingTimeout = 5 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config, m *metrics.RedisMetrics) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	// An unreachable bus at startup is not fatal; the subscriber keeps retrying.
	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Warn("Redis not reachable at startup, subscriber will retry", "error", err)
	}

	return client
}

func healthChecks(client *redis.Client, subscriber *redis.Subscriber) httpserver.HealthChecks {
	busSubscribed := httpserver.HealthCheck{Name: "bus_subscribed", Check: func(context.Context) error {
		if !subscriber.HasSubscribed() {
			return errors.New("bus never subscribed")
		}
		return nil
	}}
	busConnected := httpserver.HealthCheck{Name: "bus_subscription", Check: func(context.Context) error {
		if !subscriber.Connected() {
			return errors.New("bus subscription not established")
		}
		return nil
	}}

	return httpserver.HealthChecks{
		Startup: []httpserver.HealthCheck{busSubscribed},
		Ready:   []httpserver.HealthCheck{{Name: "redis", Check: client.Ping}, busConnected},
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", append([]any{"env", cfg.AppEnv, "port", cfg.Port}, version.Get().LogAttrs()...)...)

	reg := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	busMetrics := metrics.NewBusMetrics(reg)
	redisMetrics := metrics.NewRedisMetrics(reg)
	stateMetrics := metrics.NewStateMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	redisClient := setupRedis(cfg, redisMetrics)
	defer func() { _ = redisClient.Close() }()

	router := app.NewRouter(app.DefaultRoutes)
	store := state.NewStore(router.Namespaces()...)
	broadcaster := broadcast.NewBroadcaster(store, wsMetrics, clock, cfg.ClientSendBuffer)

	// The relay reports the subscriber's status and the subscriber feeds the relay.
	var relay *app.Relay
	handler := redis.MessageHandlerFunc(func(ctx context.Context, channel string, payload []byte) error {
		return relay.HandleMessage(ctx, channel, payload)
	})
	subscriber := redis.NewSubscriber(redisClient, router.Channels(), handler, busMetrics, clock, cfg.BusReconnectDelay)
	relay = app.NewRelay(router, store, broadcaster, subscriber, clock)
	stats := app.NewStatsReporter(relay, stateMetrics, clock)

	limits := websocket.NewConnectionLimits(cfg.MaxWebSocketConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRatePerIP, cfg.ConnectionRateBurst, clock)
	origins := websocket.NewOriginPolicy(cfg.AppURL, cfg.AppEnv == "development")
	wsHandler := websocket.NewHandler(broadcaster, limits, origins.Allow, wsMetrics, clock, nil)

	srv := httpserver.NewServer(cfg, relay, wsHandler, metrics.Handler(reg), httpMetrics, healthChecks(redisClient, subscriber), clock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subscriberDone := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start() })
	g.Go(func() error {
		defer close(subscriberDone)
		err := subscriber.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		stats.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")
		<-subscriberDone

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
