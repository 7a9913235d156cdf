// Package main provides the game server binary: it wires configuration,
// logging, the connection coordinator, and the WebSocket transport together
// and runs them under lifecycle management.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/pong/internal/config"
	"github.com/cory-johannsen/pong/internal/game/match"
	"github.com/cory-johannsen/pong/internal/gameserver"
	"github.com/cory-johannsen/pong/internal/observability"
	"github.com/cory-johannsen/pong/internal/server"
	"github.com/cory-johannsen/pong/internal/transport"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}

	settings := match.Settings{
		FieldWidth: cfg.Game.FieldWidth,
		FieldDepth: cfg.Game.FieldDepth,
		MaxScore:   cfg.Game.MaxScore,
		TickRate:   cfg.Game.TickRate,
		GoalPause:  cfg.Game.GoalPause,
		TimeLimit:  cfg.Game.TimeLimit,
	}

	coord := gameserver.NewCoordinator(settings, cfg.Matchmaking.QueueTimeout, logger)
	wsServer := transport.NewServer(cfg.Server, coord, logger)

	logger.Info("starting pong server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("tick_rate", cfg.Game.TickRate),
		zap.Int("max_score", cfg.Game.MaxScore),
		zap.Duration("startup", time.Since(start)),
	)

	lifecycle := server.NewLifecycle(logger)
	// Registered first so its Stop runs last: the log buffer flushes after
	// every service has written its shutdown entries.
	lifecycle.Add("logger", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  func() { _ = logger.Sync() },
	})
	lifecycle.Add("websocket", wsServer)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("lifecycle failed", zap.Error(err))
	}
}
