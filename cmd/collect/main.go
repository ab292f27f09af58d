package main

import (
	"context"
	"log"

	"github.com/collector-series/collectorhub/internal/config"
	"github.com/collector-series/collectorhub/internal/pipeline"
	"github.com/collector-series/collectorhub/internal/registry"
	"github.com/collector-series/collectorhub/internal/storage"
	"github.com/joho/godotenv"
)

// Runs one collection round for every configured source and exits; useful for
// manual triggers and cron-outside-the-process setups.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	pipe := pipeline.New(store, cfg.FetchTimeout)
	jobs := registry.Register(cfg, pipe)
	if len(jobs) == 0 {
		log.Fatal("no sources configured")
	}

	failed := 0
	for _, res := range pipe.RunAll(context.Background()) {
		if res.Err != nil {
			failed++
			log.Printf("%s: run failed: %v", res.Adapter, res.Err)
			continue
		}
		log.Printf("%s: fetched=%d inserted=%d duplicates=%d",
			res.Adapter, res.Fetched, res.Inserted, res.Duplicates)
	}
	if failed > 0 {
		log.Printf("collect finished with %d failed sources", failed)
	}
}
