// Command blockwatch runs the blockwatch ingestion core: the Scanner, the
// HTTP Callback Dispatcher, the Stream Session Manager, and the HTTP API
// that exposes multi-address queries and subscription management.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tronwatch/core/internal/api"
	"github.com/tronwatch/core/internal/authn"
	"github.com/tronwatch/core/internal/cache"
	"github.com/tronwatch/core/internal/callbackdispatch"
	"github.com/tronwatch/core/internal/config"
	"github.com/tronwatch/core/internal/eventbus"
	"github.com/tronwatch/core/internal/handlers/cli"
	"github.com/tronwatch/core/internal/infra/storage/postgres"
	"github.com/tronwatch/core/internal/infra/storage/redis"
	"github.com/tronwatch/core/internal/ingest"
	"github.com/tronwatch/core/internal/metrics"
	"github.com/tronwatch/core/internal/nodeclient"
	"github.com/tronwatch/core/internal/pkg/logger"
	"github.com/tronwatch/core/internal/pkg/telemetry"
	"github.com/tronwatch/core/internal/query"
	"github.com/tronwatch/core/internal/scanner"
	"github.com/tronwatch/core/internal/streamsession"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load(nodesFromEnv())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel)); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	if shutdown, err := telemetry.Init(ctx, cfg.ServiceName); err != nil {
		logger.Warn(ctx, "telemetry disabled, continuing without an exporter", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "telemetry shutdown failed", "error", err)
			}
		}()
	}

	db, err := postgres.Connect(cfg.Store.DSN, cfg.Store.MaxOpenConn, cfg.Store.MaxIdleConn)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	pgStore := postgres.New(db)

	redisConn, err := redis.NewClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisUsername, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}

	cch := cache.New(redisConn, cache.Config{
		Enabled:         cfg.Cache.Enabled,
		TxTTL:           cfg.Cache.TxTTL,
		MultiTTL:        cfg.Cache.MultiTTL,
		AddressStatsTTL: cfg.Cache.AddressStatsTTL,
	})

	endpoints := make([]nodeclient.EndpointConfig, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		endpoints = append(endpoints, nodeclient.EndpointConfig{
			URL:      n.URL,
			Priority: n.Priority,
			Timeout:  n.Timeout,
		})
	}
	node := nodeclient.New(endpoints, cfg.Nodes[0].Timeout, nil)

	bus := eventbus.New()
	callbackConsumer := bus.Register(eventbus.GroupCallback, cfg.EventBus.CallbackQueueSize, eventbus.OverflowBlock)
	streamConsumer := bus.Register(eventbus.GroupStream, cfg.EventBus.StreamQueueSize, eventbus.OverflowDrop)

	sc := scanner.New(scanner.Config{
		Network:          cfg.Network,
		StartHeight:      cfg.Scan.StartHeight,
		Confirmations:    cfg.Scan.Confirmations,
		BatchSize:        cfg.Scan.BatchSize,
		MaxRewind:        cfg.Scan.MaxRewind,
		PollInterval:     cfg.Scan.PollInterval,
		FetchConcurrency: cfg.Scan.FetchConcurrency,
		BackoffBase:      cfg.Scan.BackoffBase,
		BackoffCap:       cfg.Scan.BackoffCap,
	}, node, pgStore, bus, cch)

	cb := callbackdispatch.New(callbackdispatch.Config{
		WorkersGlobal:       cfg.Callback.WorkersGlobal,
		WorkersPerSub:       cfg.Callback.WorkersPerSub,
		Timeout:             cfg.Callback.Timeout,
		MaxAttempts:         cfg.Callback.MaxAttempts,
		BaseDelay:           cfg.Callback.BaseDelay,
		CapDelay:            cfg.Callback.CapDelay,
		AutoDisableOn404410: cfg.Callback.AutoDisableOn404410,
		ShutdownGrace:       cfg.Callback.ShutdownGrace,
		RefreshInterval:     cfg.Callback.RefreshInterval,
	}, pgStore, callbackdispatch.Consumer(callbackConsumer))

	authenticator := authn.New(pgStore)

	streamMgr := streamsession.New(streamsession.Config{
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		IdleTimeout:       cfg.Stream.IdleTimeout,
		AuthGrace:         cfg.Stream.AuthGrace,
		MaxSubsPerSession: cfg.Stream.MaxSubsPerSession,
		OutboundBuffer:    cfg.Stream.OutboundBuffer,
	}, authenticator, streamsession.Consumer(streamConsumer))

	queryEngine := query.New(pgStore, cch)

	apiServer := api.New(pgStore, queryEngine, authenticator, streamMgr)

	ingestSvc := ingest.New(ingest.Config{
		CallbackQueueSize: cfg.EventBus.CallbackQueueSize,
		StreamQueueSize:   cfg.EventBus.StreamQueueSize,
	}, sc, bus, cb, streamMgr)

	go func() {
		metricsSrv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: metrics.Handler()}
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn(ctx, "metrics server stopped", "error", err)
		}
	}()

	return cli.Run(ctx, cli.Deps{
		Ingest:        ingestSvc,
		APIListenAddr: cfg.API.ListenAddr,
		APIHandler:    apiServer.Router(),
		Store:         pgStore,
		DeadLetters:   pgStore,
	})
}

// nodesFromEnv builds the Node Client's endpoint pool from
// BLOCKWATCH_NODE_URLS (comma-separated). Priority is assigned by list
// order and timeout defaults to 30s; use BLOCKWATCH_NODE_TIMEOUT to
// override it uniformly. This is programmatic because envconfig cannot
// bind a slice-of-struct from flat environment variables.
func nodesFromEnv() []config.NodeEndpoint {
	raw := os.Getenv("BLOCKWATCH_NODE_URLS")
	if raw == "" {
		raw = "https://api.trongrid.io/jsonrpc"
	}

	timeout := 30 * time.Second
	if v := os.Getenv("BLOCKWATCH_NODE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}

	urls := strings.Split(raw, ",")
	nodes := make([]config.NodeEndpoint, 0, len(urls))
	for i, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		nodes = append(nodes, config.NodeEndpoint{
			URL:      u,
			Priority: i,
			Timeout:  timeout,
		})
	}
	return nodes
}
