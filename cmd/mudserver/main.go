// Package main provides the MUD server binary: a Telnet front door over
// the lazily loaded world graph backed by PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/config"
	"github.com/etherwake/mud/internal/game"
	"github.com/etherwake/mud/internal/game/command"
	"github.com/etherwake/mud/internal/game/players"
	"github.com/etherwake/mud/internal/game/world"
	"github.com/etherwake/mud/internal/observability"
	"github.com/etherwake/mud/internal/scripting"
	"github.com/etherwake/mud/internal/server"
	"github.com/etherwake/mud/internal/storage/postgres"
	"github.com/etherwake/mud/internal/telnet"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	tickInterval := flag.Duration("script-tick", scripting.DefaultTickInterval, "NPC behavior script tick interval")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting mud server",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
	)

	// Connect to PostgreSQL
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	accountRepo := postgres.NewAccountRepository(pool.DB())
	roomRepo := postgres.NewRoomRepository(pool.DB())
	npcRepo := postgres.NewNPCRepository(pool.DB())
	objectRepo := postgres.NewObjectRepository(pool.DB())

	graph := world.NewGraph(logger)
	scripts := scripting.NewRunner(graph, cfg.Game.ScriptsDir, cfg.Game.ScriptInstructionLimit, *tickInterval, logger)

	npcFactory := func(ctx context.Context, key string) (*world.NPC, error) {
		rec, err := npcRepo.FetchNPC(ctx, key)
		if err != nil {
			return nil, err
		}
		npc := world.NewNPC(rec.Key, rec.Name, rec.Description)
		npc.Dialogue = rec.Dialogue
		npc.GoodbyeMsg = rec.GoodbyeMsg
		npc.Script = rec.Script
		if err := scripts.Attach(npc); err != nil {
			logger.Warn("attaching npc script", zap.String("npc", key), zap.Error(err))
		}
		return npc, nil
	}
	objectFactory := func(ctx context.Context, key string) (*world.Object, error) {
		rec, err := objectRepo.FetchObject(ctx, key)
		if err != nil {
			return nil, err
		}
		return &world.Object{
			Key:         rec.Key,
			Name:        rec.Name,
			Description: rec.Description,
			Script:      rec.Script,
		}, nil
	}

	store := world.NewStore(graph, roomRepo, npcFactory, objectFactory, cfg.Game.StorageTimeout, logger)

	// Preload every room so the first login never waits on a cold cache and
	// broken content surfaces before connections are accepted. The start
	// room must load; anything else is logged and skipped.
	worldStart := time.Now()
	if _, err := store.FindByKey(ctx, cfg.Game.StartRoom); err != nil {
		logger.Fatal("loading start room",
			zap.String("room", cfg.Game.StartRoom),
			zap.Error(err),
		)
	}
	keys, err := roomRepo.ListKeys(ctx)
	if err != nil {
		logger.Fatal("listing rooms", zap.Error(err))
	}
	for _, key := range keys {
		if _, err := store.FindByKey(ctx, key); err != nil {
			logger.Warn("preloading room", zap.String("room", key), zap.Error(err))
		}
	}
	store.Wait()
	logger.Info("world preloaded",
		zap.Int("rooms", len(keys)),
		zap.Duration("elapsed", time.Since(worldStart)),
	)

	registry := players.NewRegistry(graph, store, accountRepo, cfg.Game.StartRoom, cfg.Game.StorageTimeout, logger)
	resolver := command.DefaultResolver()
	handler := game.NewHandler(graph, registry, resolver, logger)
	acceptor := telnet.NewAcceptor(cfg.Telnet, handler, logger)

	lifecycle := server.NewLifecycle(logger)

	// Services stop in reverse order: the acceptor drains sessions first,
	// so logout position writes still have a live pool.
	stopHealth := make(chan struct{})
	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-stopHealth:
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			}
		},
		StopFn: func() {
			close(stopHealth)
			pool.Close()
		},
	})

	lifecycle.Add("scripts", scripts)

	lifecycle.Add("telnet", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("mud server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
