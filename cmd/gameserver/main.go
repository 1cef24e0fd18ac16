// Package main provides the game server: it accepts TCP connections and
// runs the session/room layer for the board game protocol.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/yootgame/yootd/internal/config"
	"github.com/yootgame/yootd/internal/frontend/tcp"
	"github.com/yootgame/yootd/internal/game/room"
	"github.com/yootgame/yootd/internal/game/session"
	"github.com/yootgame/yootd/internal/observability"
	"github.com/yootgame/yootd/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (built-in defaults when empty)")
	flag.Parse()

	var cfg config.Config
	if *configPath == "" {
		cfg = config.Default()
	} else {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("addr", cfg.TCP.Addr()),
		zap.Int("default_turn_time", cfg.Game.DefaultTurnTime),
		zap.Int("default_max_players", cfg.Game.DefaultMaxPlayers),
	)

	registry := room.NewRegistry(cfg.Game.MaxRooms)
	broadcaster := room.NewBroadcaster(logger)
	handler := session.NewHandler(registry, broadcaster, cfg.Game, logger)
	acceptor := tcp.NewAcceptor(cfg.TCP, handler, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("acceptor", &server.FuncService{
		StartFn: func() error {
			return acceptor.ListenAndServe()
		},
		StopFn: func() {
			acceptor.Stop()
		},
	})

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
