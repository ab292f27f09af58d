package main

import (
	"log"

	"github.com/collector-series/collectorhub/internal/api"
	"github.com/collector-series/collectorhub/internal/config"
	"github.com/collector-series/collectorhub/internal/pipeline"
	"github.com/collector-series/collectorhub/internal/registry"
	"github.com/collector-series/collectorhub/internal/scheduler"
	"github.com/collector-series/collectorhub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	pipe := pipeline.New(store, cfg.FetchTimeout)
	jobs := registry.Register(cfg, pipe)
	if len(jobs) == 0 {
		log.Println("warn: no sources configured, serving read API only")
	}

	s, err := scheduler.New(jobs, pipe)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()
	defer s.Stop()

	r := gin.Default()
	apiServer := api.NewServer(store, pipe)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
