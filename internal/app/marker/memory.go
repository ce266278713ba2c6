package marker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a single-process Store. Get checks the deadline under the
// lock, so an entry is never visible past its TTL even before the sweeper
// removes it.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]entry
	now      func() time.Time
	logger   *zap.Logger
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// MemoryOption customises a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithSweepInterval sets how often expired entries are purged.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewMemoryStore creates an empty store. Call Start to run the sweeper.
func NewMemoryStore(logger *zap.Logger, opts ...MemoryOption) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MemoryStore{
		entries:  make(map[string]entry),
		now:      time.Now,
		logger:   logger,
		interval: 30 * time.Second,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl <= 0 {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Len returns the number of entries not yet swept, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start begins periodic purging of expired entries.
func (s *MemoryStore) Start() {
	go s.run()
}

// Stop stops the sweeper. It is safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *MemoryStore) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopChan:
			s.logger.Info("marker sweeper stopped")
			return
		}
	}
}

// Sweep drops every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Debug("swept expired markers", zap.Int("count", removed))
	}
	return removed
}
