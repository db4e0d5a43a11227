package assets

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/lunaretail/posync/internal/models"
)

// Store is the durable side of the cache: the download queue and the
// versioned binary store. *repository.Repository satisfies it.
type Store interface {
	EnqueueAssets(urls []string) (int, error)
	NextAssetBatch(n int) ([]models.AssetQueueEntry, error)
	IsAssetCached(url string) (bool, error)
	StoreAsset(url, contentType string, data []byte) error
	DequeueAsset(url string) error
	AssetFailed(url, reason string) error
	CachedAssetCount() (int64, error)
	AssetQueueLength() (int64, error)
	ClearAssetCache() error
}

// Event types published on the manager's event channel.
const (
	EventProgress = "progress"
	EventCached   = "cached"
	EventCleared  = "cleared"
)

// Event is a cache notification, shaped for direct websocket broadcast.
type Event struct {
	Type   string `json:"type"`
	URL    string `json:"url,omitempty"`
	Cached int64  `json:"cached"`
	Queued int64  `json:"queued"`
}

// Status is a point-in-time snapshot of the cache.
type Status struct {
	Cached      int64 `json:"cached"`
	Queued      int64 `json:"queued"`
	Downloading bool  `json:"downloading"`
}

// Options tunes the download worker.
type Options struct {
	BatchSize       int           // downloads per batch, also the concurrency bound
	DownloadTimeout time.Duration // per-download deadline
	StaggerDelay    time.Duration // gap between starts within a batch
	StallAfter      time.Duration // idle re-check interval for leftover queue entries
}

func (o *Options) fillDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.DownloadTimeout <= 0 {
		o.DownloadTimeout = 8 * time.Second
	}
	if o.StaggerDelay <= 0 {
		o.StaggerDelay = 100 * time.Millisecond
	}
	if o.StallAfter <= 0 {
		o.StallAfter = 30 * time.Second
	}
}

type cmdKind int

const (
	cmdEnqueue cmdKind = iota
	cmdResume
	cmdClear
	cmdStatus
)

type command struct {
	kind   cmdKind
	urls   []string
	status chan Status
	errc   chan error
}

// Manager owns the asset cache. All state transitions happen on its single
// goroutine; callers talk to it through messages, so there is no shared
// mutable state to lock.
type Manager struct {
	store  Store
	client *http.Client
	opts   Options

	cmds   chan command
	events chan Event

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager over the given store. client may be nil.
func NewManager(store Store, client *http.Client, opts Options) *Manager {
	opts.fillDefaults()
	if client == nil {
		client = &http.Client{}
	}
	return &Manager{
		store:  store,
		client: client,
		opts:   opts,
		cmds:   make(chan command, 64),
		events: make(chan Event, 64),
	}
}

// Events exposes cache notifications. The channel is never closed; events
// are dropped when nobody drains them.
func (m *Manager) Events() <-chan Event { return m.events }

// Start launches the worker. Leftover queue entries from a previous run are
// picked up immediately.
func (m *Manager) Start() {
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx)
	log.Println("🖼️ Asset cache manager started")
}

// Stop halts the worker and waits for in-flight downloads to finish.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	log.Println("🖼️ Asset cache manager stopped")
}

// Enqueue queues URLs for download. Never blocks the caller; duplicates and
// already-cached URLs are filtered by the store.
func (m *Manager) Enqueue(urls []string) {
	if len(urls) == 0 {
		return
	}
	cmd := command{kind: cmdEnqueue, urls: urls}
	select {
	case m.cmds <- cmd:
	default:
		go func() { m.cmds <- cmd }()
	}
}

// Resume kicks the worker, e.g. after connectivity returns.
func (m *Manager) Resume() {
	select {
	case m.cmds <- command{kind: cmdResume}:
	default:
	}
}

// Clear empties the current cache generation and the queue.
func (m *Manager) Clear() error {
	errc := make(chan error, 1)
	m.cmds <- command{kind: cmdClear, errc: errc}
	return <-errc
}

// Status reports cache counters. Safe to call while downloads run.
func (m *Manager) Status() Status {
	status := make(chan Status, 1)
	m.cmds <- command{kind: cmdStatus, status: status}
	return <-status
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	// pick up whatever the previous run left queued
	m.drain(ctx)

	ticker := time.NewTicker(m.opts.StallAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-m.cmds:
			m.handle(ctx, cmd, false)
			if cmd.kind == cmdEnqueue || cmd.kind == cmdResume {
				m.drain(ctx)
			}
		case <-ticker.C:
			// stalled entries from crashed or timed-out batches
			m.drain(ctx)
		}
	}
}

// handle executes one command. Returns true when the current drain should
// stop (the queue was cleared).
func (m *Manager) handle(ctx context.Context, cmd command, draining bool) bool {
	switch cmd.kind {
	case cmdEnqueue:
		n, err := m.store.EnqueueAssets(cmd.urls)
		if err != nil {
			log.Printf("⚠️ Failed to enqueue assets: %v", err)
		} else if n > 0 {
			log.Printf("🖼️ Queued %d new asset(s)", n)
		}
	case cmdResume:
		// drain follows in the caller
	case cmdClear:
		err := m.store.ClearAssetCache()
		if err == nil {
			m.emit(Event{Type: EventCleared})
		}
		cmd.errc <- err
		return true
	case cmdStatus:
		cached, _ := m.store.CachedAssetCount()
		queued, _ := m.store.AssetQueueLength()
		cmd.status <- Status{Cached: cached, Queued: queued, Downloading: draining}
	}
	return false
}

// drain works the queue batch by batch until it is empty. Commands are still
// served between batches so a clear or status never waits for the full queue.
func (m *Manager) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-m.cmds:
			if m.handle(ctx, cmd, true) {
				return
			}
			continue
		default:
		}

		batch, err := m.store.NextAssetBatch(m.opts.BatchSize)
		if err != nil {
			log.Printf("⚠️ Failed to read asset queue: %v", err)
			return
		}
		if len(batch) == 0 {
			return
		}

		m.processBatch(ctx, batch)
		m.emitProgress()
	}
}

// processBatch downloads one batch with staggered starts. Concurrency is
// bounded by the batch size; the batch is done when every download returned
// or timed out.
func (m *Manager) processBatch(ctx context.Context, batch []models.AssetQueueEntry) {
	var wg sync.WaitGroup
	started := 0
	for _, entry := range batch {
		cached, err := m.store.IsAssetCached(entry.URL)
		if err == nil && cached {
			// already present in this generation, just drop the queue entry
			if err := m.store.DequeueAsset(entry.URL); err != nil {
				log.Printf("⚠️ Failed to dequeue cached asset %s: %v", entry.URL, err)
			}
			continue
		}

		wg.Add(1)
		delay := time.Duration(started) * m.opts.StaggerDelay
		started++
		go func(url string, delay time.Duration) {
			defer wg.Done()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			m.download(ctx, url)
		}(entry.URL, delay)
	}
	wg.Wait()
}

func (m *Manager) download(ctx context.Context, url string) {
	dctx, cancel := context.WithTimeout(ctx, m.opts.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dctx, http.MethodGet, url, nil)
	if err != nil {
		m.fail(url, err.Error())
		return
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.fail(url, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.fail(url, fmt.Sprintf("unexpected status %d", resp.StatusCode))
		return
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		m.fail(url, err.Error())
		return
	}

	if err := m.store.StoreAsset(url, resp.Header.Get("Content-Type"), data); err != nil {
		log.Printf("⚠️ Failed to store asset %s: %v", url, err)
		return
	}
	m.emit(Event{Type: EventCached, URL: url})
}

func (m *Manager) fail(url, reason string) {
	if err := m.store.AssetFailed(url, reason); err != nil {
		log.Printf("⚠️ Failed to record asset failure for %s: %v", url, err)
	}
}

func (m *Manager) emitProgress() {
	cached, _ := m.store.CachedAssetCount()
	queued, _ := m.store.AssetQueueLength()
	m.emit(Event{Type: EventProgress, Cached: cached, Queued: queued})
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}
