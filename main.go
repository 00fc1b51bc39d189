package main

import (
	"context"
	"log"
	"os"
	"time"

	"legaldocgo/internal/api"
	"legaldocgo/internal/config"
	"legaldocgo/internal/redis"
	"legaldocgo/internal/render"
	"legaldocgo/internal/service/ai"
	"legaldocgo/internal/session"
	"legaldocgo/internal/storage"
	"legaldocgo/internal/turn"
	"legaldocgo/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("LEGALDOC_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Mirrors are optional write-through copies of the in-memory state.
	// The registry stays authoritative whether or not they are present.
	var mirrors []session.Mirror

	if len(cfg.Databases) > 0 {
		dbType := os.Getenv("LEGALDOC_DB")
		if dbType == "" {
			dbType = "sqlite3"
		}
		log.Printf("dbType: %s\n", dbType)
		db, err := storage.Open(dbType, cfg)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, dbType); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
		mirrors = append(mirrors, storage.NewArchive(db))
	}

	if cfg.Redis.Host != "" {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
		mirrors = append(mirrors, redis.NewStateCache(rdb))
	}

	registry := session.NewRegistry(mirrors...)
	renderer := render.NewHTMLRenderer()

	provider := cfg.BasicConfig.DefaultProvider
	modelType := cfg.Providers[provider].Model
	collaborator, err := ai.NewCollaborator(context.Background(), provider, modelType, cfg)
	if err != nil {
		log.Fatalf("init model %s/%s: %v", provider, modelType, err)
	}

	orchestrator := turn.NewOrchestrator(registry, renderer, collaborator)
	workers := worker.NewManager(
		orchestrator.Run,
		cfg.BasicConfig.TurnQueueSize,
		time.Duration(cfg.BasicConfig.WorkerIdleTimeout)*time.Minute,
	)
	handlers := api.NewHandler(registry, workers)

	router := gin.Default()
	router.Use(api.CORSMiddleware(cfg.BasicConfig.CORSOrigins))
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
