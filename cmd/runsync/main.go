package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/lunaretail/posync/internal/config"
	"github.com/lunaretail/posync/internal/database"
	"github.com/lunaretail/posync/internal/remote"
	"github.com/lunaretail/posync/internal/repository"
	"github.com/lunaretail/posync/internal/sync"
)

// runsync performs a single foreground sync run and exits. Useful for cron
// jobs and for checking connectivity during installation.
func main() {
	force := flag.Bool("force", false, "replace all reference data instead of pulling incrementally")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	repo := repository.New(db, cfg.Assets.Generation)
	if err := repo.Migrate(); err != nil {
		log.Printf("⚠️ Migration warning: %v", err)
	}

	client := remote.NewClient(cfg.Remote, cfg.InstanceID)
	book := sync.NewBookkeeper(repo)
	orch := sync.NewOrchestrator(
		sync.NewPullSynchronizer(client, repo, book, nil, sync.PullOptions{
			StoreCode: cfg.StoreCode,
			PageSize:  cfg.Sync.PageSize,
			BatchSize: cfg.Sync.BatchSize,
		}),
		sync.NewPushSynchronizer(client, repo, cfg.Sync.GraceWindow),
		sync.NewReconciler(client, repo, book, cfg.StoreCode, cfg.Sync.PageSize),
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := orch.Run(ctx, *force)
	if err != nil {
		db.Close()
		log.Fatalf("Sync failed to start: %v", err)
	}

	if !res.Success() {
		for _, e := range res.Errors {
			log.Printf("❌ %s", e)
		}
		db.Close()
		os.Exit(1)
	}
	log.Printf("✅ Sync completed in %s, %d order(s) pushed", res.Finished.Sub(res.Started).Round(time.Millisecond), res.OrdersPushed)
	db.Close()
}
