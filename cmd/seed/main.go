// Package main provides the world seeder: it loads authored YAML world
// data, validates its referential integrity, and upserts it into the
// database.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/etherwake/mud/internal/config"
	"github.com/etherwake/mud/internal/content"
	"github.com/etherwake/mud/internal/observability"
	"github.com/etherwake/mud/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	worldPath := flag.String("world", "content/world.yaml", "path to world YAML file")
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

	wf, err := content.LoadFile(*worldPath)
	if err != nil {
		logger.Fatal("loading world file", zap.Error(err))
	}
	logger.Info("world file validated",
		zap.String("path", *worldPath),
		zap.Int("rooms", len(wf.Rooms)),
		zap.Int("npcs", len(wf.NPCs)),
		zap.Int("objects", len(wf.Objects)),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()

	roomRepo := postgres.NewRoomRepository(pool.DB())
	npcRepo := postgres.NewNPCRepository(pool.DB())
	objectRepo := postgres.NewObjectRepository(pool.DB())

	// NPCs and objects first so room references never dangle mid-seed.
	for _, n := range wf.NPCs {
		if err := npcRepo.Upsert(ctx, n.NPCRecord()); err != nil {
			logger.Fatal("seeding npc", zap.String("key", n.Key), zap.Error(err))
		}
	}
	for _, o := range wf.Objects {
		if err := objectRepo.Upsert(ctx, o.ObjectRecord()); err != nil {
			logger.Fatal("seeding object", zap.String("key", o.Key), zap.Error(err))
		}
	}
	for _, r := range wf.Rooms {
		if err := roomRepo.Upsert(ctx, r.RoomRecord()); err != nil {
			logger.Fatal("seeding room", zap.String("key", r.Key), zap.Error(err))
		}
	}

	logger.Info("world seeded",
		zap.Duration("elapsed", time.Since(start)),
	)
}
