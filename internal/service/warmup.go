package service

import (
	"context"
	"log"
	"sync"
	"time"

	"productcatalog-api/internal/model"
)

// WarmupConfig holds configuration for the cache warmup scheduler.
type WarmupConfig struct {
	// Interval is how often the listed queries are loaded. Zero disables
	// the scheduler.
	Interval time.Duration

	// Queries are the listings kept warm. Default: the unfiltered list.
	Queries []model.ListQuery

	// Timeout bounds one warmup pass. Default: 30 seconds
	Timeout time.Duration
}

// WarmupScheduler periodically reads configured listings through the
// product service, so the first client request after a version bump or
// TTL expiry finds the list already cached.
type WarmupScheduler struct {
	svc       *ProductService
	config    WarmupConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewWarmupScheduler creates a new warmup scheduler.
func NewWarmupScheduler(svc *ProductService, config WarmupConfig) *WarmupScheduler {
	if len(config.Queries) == 0 {
		config.Queries = []model.ListQuery{{}}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &WarmupScheduler{
		svc:    svc,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Enabled reports whether Start will schedule anything.
func (s *WarmupScheduler) Enabled() bool {
	return s.config.Interval > 0
}

// Start begins the warmup loop. It runs one pass immediately.
func (s *WarmupScheduler) Start() {
	if !s.Enabled() {
		log.Printf("[WarmupScheduler] Disabled")
		return
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[WarmupScheduler] Started - Interval: %v, Queries: %d", s.config.Interval, len(s.config.Queries))

	go func() {
		defer close(s.doneCh)
		s.runWarmup()
		s.run()
	}()
}

func (s *WarmupScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runWarmup()
		case <-s.stopCh:
			log.Printf("[WarmupScheduler] Stopped")
			return
		}
	}
}

func (s *WarmupScheduler) runWarmup() {
	warmed, err := s.RunNow(context.Background())
	if err != nil {
		log.Printf("[WarmupScheduler] Error during warmup: %v", err)
		return
	}
	log.Printf("[WarmupScheduler] Warmed %d listings", warmed)
}

// Stop stops the warmup scheduler and waits for a pass in progress.
func (s *WarmupScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started := s.ticker != nil
		if started {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()

		if started {
			<-s.doneCh
		}
	})
}

// RunNow loads every configured listing once and returns how many
// succeeded. The first error stops the pass.
func (s *WarmupScheduler) RunNow(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	warmed := 0
	for _, q := range s.config.Queries {
		if _, err := s.svc.List(ctx, q); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}
