package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"resident_directory/internal/adapters/observability"
	"resident_directory/internal/domain"
)

var (
	ErrRefreshInFlight = errors.New("refresh: already in flight")
	ErrAlreadyStarted  = errors.New("refresh: scheduler already started")
)

const DefaultRefreshInterval = 60 * time.Second

type SchedulerConfig struct {
	// Interval between timer-driven cycles. Default: 60s.
	Interval time.Duration
	// FetchTimeout bounds one cycle. Default: Interval.
	FetchTimeout time.Duration
	// OnSnapshot receives every published snapshot, in FetchedAt order.
	OnSnapshot func(domain.Snapshot)
	// OnError receives every failed cycle. Purely informational.
	OnError func(error)
}

func (c *SchedulerConfig) defaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultRefreshInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = c.Interval
	}
}

// Scheduler keeps the current snapshot fresh. It is the only writer of the
// current snapshot; at most one cycle is in flight at any time, so
// snapshots are published in completion order.
//
// Stop ends the timer but does not abort an in-flight cycle. A cycle that
// started before Stop still publishes when it completes.
type Scheduler struct {
	ing *IngestionService
	cfg SchedulerConfig

	inflight *semaphore.Weighted
	fetching atomic.Bool
	current  atomic.Pointer[domain.Snapshot]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(ing *IngestionService, cfg SchedulerConfig) *Scheduler {
	cfg.defaults()
	return &Scheduler{
		ing:      ing,
		cfg:      cfg,
		inflight: semaphore.NewWeighted(1),
	}
}

// Current returns the last published snapshot.
func (s *Scheduler) Current() (domain.Snapshot, bool) {
	p := s.current.Load()
	if p == nil {
		return domain.Snapshot{}, false
	}
	return *p, true
}

// Fetching reports whether a cycle is in flight.
func (s *Scheduler) Fetching() bool { return s.fetching.Load() }

// acquire moves Idle -> Fetching; false means a cycle is already running.
func (s *Scheduler) acquire() bool {
	if !s.inflight.TryAcquire(1) {
		return false
	}
	s.fetching.Store(true)
	return true
}

func (s *Scheduler) release() {
	s.fetching.Store(false)
	s.inflight.Release(1)
}

// Start runs one cycle immediately and then one per Interval until Stop is
// called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	log.Info().Dur("interval", s.cfg.Interval).Msg("refresh scheduler started")

	// cycles outlive Stop; only the timer is tied to loopCtx
	cycleCtx := context.WithoutCancel(ctx)
	go s.loop(loopCtx, cycleCtx, s.done)
	return nil
}

// Stop cancels all future cycles and waits for the timer loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info().Msg("refresh scheduler stopped")
}

func (s *Scheduler) loop(ctx, cycleCtx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(cycleCtx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(cycleCtx)
		}
	}
}

// tick starts a background cycle unless one is already running.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.acquire() {
		observability.ObserveRefresh("skipped", 0)
		log.Debug().Msg("refresh tick skipped: fetch in flight")
		return
	}
	go func() {
		defer s.release()
		_, _ = s.cycle(ctx)
	}()
}

// Refresh runs a cycle now, on the caller's goroutine. It returns
// ErrRefreshInFlight without fetching if another cycle is running.
func (s *Scheduler) Refresh(ctx context.Context) (domain.Snapshot, error) {
	if !s.acquire() {
		observability.ObserveRefresh("skipped", 0)
		return domain.Snapshot{}, ErrRefreshInFlight
	}
	defer s.release()
	return s.cycle(ctx)
}

// cycle must be called with the in-flight slot held.
func (s *Scheduler) cycle(ctx context.Context) (snap domain.Snapshot, err error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh: panic: %v", r)
		}
		if err != nil {
			observability.ObserveRefresh("error", time.Since(start))
			log.Warn().Err(err).Msg("refresh failed; keeping previous snapshot")
			if s.cfg.OnError != nil {
				s.cfg.OnError(err)
			}
		}
	}()

	snap, err = s.ing.Ingest(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.publish(snap)
	observability.ObserveRefresh("ok", time.Since(start))
	return snap, nil
}

func (s *Scheduler) publish(snap domain.Snapshot) {
	s.current.Store(&snap)
	observability.ObserveSnapshot(len(snap.Records), snap.FetchedAt)
	log.Info().
		Str("version", snap.Version).
		Int("records", len(snap.Records)).
		Time("fetched_at", snap.FetchedAt).
		Msg("snapshot published")
	if s.cfg.OnSnapshot != nil {
		s.cfg.OnSnapshot(snap)
	}
}
