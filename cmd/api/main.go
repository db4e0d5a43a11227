package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lunaretail/posync/internal/assets"
	"github.com/lunaretail/posync/internal/config"
	"github.com/lunaretail/posync/internal/database"
	"github.com/lunaretail/posync/internal/handlers"
	"github.com/lunaretail/posync/internal/remote"
	"github.com/lunaretail/posync/internal/repository"
	ordersService "github.com/lunaretail/posync/internal/services/orders"
	"github.com/lunaretail/posync/internal/sync"
	ws "github.com/lunaretail/posync/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in the shutdown handler below

	// 3. Auto-migrate schema
	log.Println("🚀 Synchronizing database schema...")
	repo := repository.New(db, cfg.Assets.Generation)
	if err := repo.Migrate(); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// Drop cached assets from older cache generations
	if n, err := repo.PruneAssetGenerations(); err != nil {
		log.Printf("⚠️ Asset generation cleanup failed: %v", err)
	} else if n > 0 {
		log.Printf("🧹 Pruned %d asset(s) from older generations", n)
	}

	// 4. Websocket hub for sync and cache notifications
	hub := ws.NewHub()
	go hub.Run()

	// 5. Asset cache manager
	cache := assets.NewManager(repo, nil, assets.Options{
		BatchSize:       cfg.Assets.BatchSize,
		DownloadTimeout: cfg.Assets.DownloadTimeout,
		StaggerDelay:    cfg.Assets.StaggerDelay,
		StallAfter:      cfg.Assets.StallAfter,
	})
	cache.Start()
	go func() {
		for ev := range cache.Events() {
			hub.Broadcast(map[string]interface{}{"channel": "assets", "event": ev})
		}
	}()

	// 6. Sync engine: pull + push + reconcile behind one orchestrator
	client := remote.NewClient(cfg.Remote, cfg.InstanceID)
	book := sync.NewBookkeeper(repo)
	orch := sync.NewOrchestrator(
		sync.NewPullSynchronizer(client, repo, book, cache, sync.PullOptions{
			StoreCode: cfg.StoreCode,
			PageSize:  cfg.Sync.PageSize,
			BatchSize: cfg.Sync.BatchSize,
		}),
		sync.NewPushSynchronizer(client, repo, cfg.Sync.GraceWindow),
		sync.NewReconciler(client, repo, book, cfg.StoreCode, cfg.Sync.PageSize),
		func(percent int, message string) {
			hub.Broadcast(map[string]interface{}{
				"channel": "sync",
				"percent": percent,
				"message": message,
			})
		},
	)

	syncService := sync.NewService(orch, cfg.Sync.Interval, cfg.Sync.SyncOnStartup)
	syncService.Start()

	// 7. HTTP router
	ordersSvc := ordersService.NewService(repo, cfg.StoreCode)
	router := handlers.NewRouter(repo, orch, cache, ordersSvc, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 8. Start server with graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server starting on port %s [store %s]\n", cfg.Port, cfg.StoreCode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	syncService.Stop()
	cache.Stop()

	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
