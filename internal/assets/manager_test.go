package assets

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lunaretail/posync/internal/models"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu     sync.Mutex
	queue  []models.AssetQueueEntry
	cached map[string][]byte
	types  map[string]string
	failed map[string]int
	nextID uint
}

func newMemStore() *memStore {
	return &memStore{
		cached: make(map[string][]byte),
		types:  make(map[string]string),
		failed: make(map[string]int),
	}
}

func (s *memStore) EnqueueAssets(urls []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, u := range urls {
		if u == "" || s.queuedLocked(u) {
			continue
		}
		if _, ok := s.cached[u]; ok {
			continue
		}
		s.nextID++
		s.queue = append(s.queue, models.AssetQueueEntry{ID: s.nextID, URL: u, EnqueuedAt: time.Now()})
		added++
	}
	return added, nil
}

func (s *memStore) queuedLocked(url string) bool {
	for _, e := range s.queue {
		if e.URL == url {
			return true
		}
	}
	return false
}

func (s *memStore) NextAssetBatch(n int) ([]models.AssetQueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.queue) {
		n = len(s.queue)
	}
	out := make([]models.AssetQueueEntry, n)
	copy(out, s.queue[:n])
	return out, nil
}

func (s *memStore) IsAssetCached(url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cached[url]
	return ok, nil
}

func (s *memStore) StoreAsset(url, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached[url] = data
	s.types[url] = contentType
	s.removeLocked(url)
	return nil
}

func (s *memStore) DequeueAsset(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(url)
	return nil
}

func (s *memStore) removeLocked(url string) {
	for i, e := range s.queue {
		if e.URL == url {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *memStore) AssetFailed(url, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[url]++
	// mirror the repository's attempt cap
	if s.failed[url] >= 5 {
		s.removeLocked(url)
	}
	return nil
}

func (s *memStore) CachedAssetCount() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.cached)), nil
}

func (s *memStore) AssetQueueLength() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queue)), nil
}

func (s *memStore) ClearAssetCache() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = make(map[string][]byte)
	s.queue = nil
	return nil
}

func testOptions() Options {
	return Options{
		BatchSize:       3,
		DownloadTimeout: 2 * time.Second,
		StaggerDelay:    time.Millisecond,
		StallAfter:      50 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestManagerDownloadsQueuedAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprintf(w, "img:%s", r.URL.Path)
	}))
	defer srv.Close()

	store := newMemStore()
	m := NewManager(store, srv.Client(), testOptions())
	m.Start()
	defer m.Stop()

	m.Enqueue([]string{srv.URL + "/a.png", srv.URL + "/b.png", srv.URL + "/c.png"})

	waitFor(t, func() bool {
		n, _ := store.AssetQueueLength()
		c, _ := store.CachedAssetCount()
		return n == 0 && c == 3
	})

	store.mu.Lock()
	defer store.mu.Unlock()
	if got := string(store.cached[srv.URL+"/a.png"]); got != "img:/a.png" {
		t.Errorf("cached body = %q", got)
	}
	if ct := store.types[srv.URL+"/a.png"]; ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
}

func TestManagerSkipsAlreadyCachedURLs(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	store := newMemStore()
	url := srv.URL + "/cached.png"
	store.cached[url] = []byte("already here")
	// queue entry left behind by a crashed run
	store.queue = append(store.queue, models.AssetQueueEntry{ID: 1, URL: url})

	m := NewManager(store, srv.Client(), testOptions())
	m.Start()
	defer m.Stop()

	waitFor(t, func() bool {
		n, _ := store.AssetQueueLength()
		return n == 0
	})
	if hits.Load() != 0 {
		t.Errorf("cached URL was downloaded %d time(s)", hits.Load())
	}
	if string(store.cached[url]) != "already here" {
		t.Error("cached data was overwritten")
	}
}

func TestManagerBoundsConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cur := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	store := newMemStore()
	opts := testOptions()
	opts.BatchSize = 3
	m := NewManager(store, srv.Client(), opts)
	m.Start()
	defer m.Stop()

	var urls []string
	for i := 0; i < 9; i++ {
		urls = append(urls, fmt.Sprintf("%s/%d.png", srv.URL, i))
	}
	m.Enqueue(urls)

	waitFor(t, func() bool {
		n, _ := store.AssetQueueLength()
		return n == 0
	})
	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrency %d exceeds batch size 3", p)
	}
}

func TestManagerRecordsFailedDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := newMemStore()
	m := NewManager(store, srv.Client(), testOptions())
	m.Start()
	defer m.Stop()

	url := srv.URL + "/broken.png"
	m.Enqueue([]string{url})

	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.failed[url] > 0
	})
	if c, _ := store.CachedAssetCount(); c != 0 {
		t.Error("failed download ended up cached")
	}
}

func TestManagerClearEmptiesCacheAndQueue(t *testing.T) {
	store := newMemStore()
	store.cached["u1"] = []byte("x")
	store.queue = append(store.queue, models.AssetQueueEntry{ID: 1, URL: "http://127.0.0.1:1/u2"})

	m := NewManager(store, &http.Client{Timeout: 100 * time.Millisecond}, testOptions())
	m.Start()
	defer m.Stop()

	if err := m.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	st := m.Status()
	if st.Cached != 0 || st.Queued != 0 {
		t.Errorf("status after clear = %+v", st)
	}
}

func TestManagerPicksUpLeftoverQueueOnStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	store := newMemStore()
	store.queue = append(store.queue, models.AssetQueueEntry{ID: 1, URL: srv.URL + "/left.png"})

	m := NewManager(store, srv.Client(), testOptions())
	m.Start()
	defer m.Stop()

	waitFor(t, func() bool {
		c, _ := store.CachedAssetCount()
		return c == 1
	})
}
