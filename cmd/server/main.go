// Package main runs the undercover game server: the websocket hub, the
// room registry, and the HTTP surface around them.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/config"
	"github.com/parlorgames/undercover/internal/content"
	"github.com/parlorgames/undercover/internal/game/continuity"
	"github.com/parlorgames/undercover/internal/game/random"
	"github.com/parlorgames/undercover/internal/game/room"
	"github.com/parlorgames/undercover/internal/gameserver"
	"github.com/parlorgames/undercover/internal/network"
	"github.com/parlorgames/undercover/internal/observability"
	"github.com/parlorgames/undercover/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	src := random.NewCryptoSource()

	contentStart := time.Now()
	library, err := content.LoadLibrary(cfg.Content.Dir, src)
	if err != nil {
		logger.Fatal("loading word packs", zap.Error(err))
	}
	logger.Info("word packs loaded",
		zap.Int("categories", len(library.ActiveCategories())),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	registry := room.NewRegistry(room.Options{
		Capacity:    cfg.Game.RoomCapacity,
		CodeLength:  cfg.Game.RoomCodeLength,
		GracePeriod: cfg.Game.GracePeriod,
	}, src, logger)
	cont := continuity.NewManager(registry, logger)

	hub := network.NewHub(logger)
	svc := gameserver.NewService(registry, cont, library, hub, src, cfg.Game.QuorumTimeout, logger)
	hub.SetService(svc)

	httpSrv := server.NewHTTPServer(cfg.HTTP, registry, library, hub, logger)

	ctx := context.Background()
	hubCtx, hubCancel := context.WithCancel(ctx)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("hub", &server.FuncService{
		StartFn: func() error {
			hub.Run(hubCtx)
			return nil
		},
		StopFn: hubCancel,
	})
	lifecycle.Add("http", httpSrv)

	logger.Info("undercover server starting",
		zap.String("addr", cfg.HTTP.Addr()),
		zap.Duration("startup", time.Since(start)),
	)
	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("lifecycle", zap.Error(err))
	}
}
