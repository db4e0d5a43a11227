package sync

import (
	"context"
	"log"
	"time"
)

// startupDelay gives the HTTP layer and database a moment to settle before
// the first background run.
const startupDelay = 5 * time.Second

// Service runs the orchestrator on a fixed interval in the background.
type Service struct {
	orch          *Orchestrator
	interval      time.Duration
	syncOnStartup bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a periodic sync service.
func NewService(orch *Orchestrator, interval time.Duration, syncOnStartup bool) *Service {
	return &Service{orch: orch, interval: interval, syncOnStartup: syncOnStartup}
}

// Start launches the background loop. Calling Start twice is a no-op until
// Stop is called.
func (s *Service) Start() {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
	log.Printf("🚀 Sync service started (interval %s)", s.interval)
}

// Stop halts the loop and waits for an in-flight run to return.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	log.Println("🛑 Sync service stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	if s.syncOnStartup {
		select {
		case <-time.After(startupDelay):
			s.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	if _, err := s.orch.Run(ctx, false); err == ErrSyncInProgress {
		log.Println("ℹ️ Skipping scheduled sync, a run is still active")
	} else if err != nil {
		log.Printf("❌ Scheduled sync failed to start: %v", err)
	}
}
