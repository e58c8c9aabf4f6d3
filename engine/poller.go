/*
poller.go - Periodic change detection

PURPOSE:
  On a fixed interval, fetches the sheet, fingerprints the content and
  compares against the snapshot store. On change it publishes the new
  snapshot and instructs the bus to broadcast. Fetch failures are logged
  and absorbed; the prior snapshot stays in place and the next tick
  retries.

CYCLE DISCIPLINE:
  Idle -> Fetching -> Comparing -> (Unchanged | Changed -> Publishing) -> Idle
  No two cycles run concurrently. If a tick fires while a cycle is still
  running, that tick is skipped outright - there is no queueing.

USAGE:
  poller := engine.NewPoller(src, store, bus, cfg, logger)
  poller.Start()
  defer poller.Stop()

SEE ALSO:
  - store.go: single-writer snapshot publication
  - bus.go: fan-out on change
*/
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// EventDataUpdated is broadcast whenever a new snapshot is published.
const EventDataUpdated = "data_updated"

// UpdatePayload is the broadcast payload for EventDataUpdated.
type UpdatePayload struct {
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	RecordCount int       `json:"record_count"`
	Action      string    `json:"action,omitempty"`
}

// PollerConfig carries the poller's tunables.
type PollerConfig struct {
	Interval     time.Duration // default 10s
	FetchTimeout time.Duration // per-fetch deadline, default 30s
}

func (c *PollerConfig) withDefaults() PollerConfig {
	out := *c
	if out.Interval <= 0 {
		out.Interval = 10 * time.Second
	}
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = 30 * time.Second
	}
	return out
}

// Poller drives periodic synchronization of the snapshot store.
type Poller struct {
	source DataSource
	store  *SnapshotStore
	bus    *Bus
	cfg    PollerConfig
	logger zerolog.Logger

	running atomic.Bool // guards against overlapping cycles
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex // Start/Stop lifecycle
	now     func() time.Time
}

// NewPoller creates a poller. The bus may be nil for poll-only use
// (nothing is broadcast then).
func NewPoller(source DataSource, store *SnapshotStore, bus *Bus, cfg PollerConfig, logger zerolog.Logger) *Poller {
	return &Poller{
		source: source,
		store:  store,
		bus:    bus,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "poller").Logger(),
		stop:   make(chan struct{}),
		now:    time.Now,
	}
}

// Start launches the background polling loop. The first cycle runs
// immediately.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker != nil {
		return
	}
	p.ticker = time.NewTicker(p.cfg.Interval)
	p.stop = make(chan struct{}) // Stop closed the previous one
	p.wg.Add(1)
	go p.run(p.ticker, p.stop)
	p.logger.Info().Dur("interval", p.cfg.Interval).Msg("started")
}

// Stop halts the polling loop and waits for an in-flight cycle.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	close(p.stop)
	p.wg.Wait()
	p.ticker = nil
	p.logger.Info().Msg("stopped")
}

func (p *Poller) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer p.wg.Done()

	p.tick()
	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-stop:
			return
		}
	}
}

// tick runs one cycle unless one is already in flight.
func (p *Poller) tick() {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug().Msg("previous cycle still running, tick skipped")
		return
	}
	defer p.running.Store(false)

	if _, err := p.pollOnce(); err != nil {
		// Never fatal: keep the prior snapshot, retry next tick.
		p.logger.Error().Err(err).Msg("poll failed")
	}
}

// PollOnce runs a single fetch/compare/publish cycle on the caller's
// goroutine. Returns whether the snapshot changed. Unlike timer ticks,
// explicit calls serialize behind any in-flight cycle rather than being
// skipped.
func (p *Poller) PollOnce() (changed bool, err error) {
	for !p.running.CompareAndSwap(false, true) {
		time.Sleep(time.Millisecond)
	}
	defer p.running.Store(false)
	return p.pollOnce()
}

func (p *Poller) pollOnce() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.FetchTimeout)
	defer cancel()

	columns, rows, err := p.source.FetchRows(ctx)
	if err != nil {
		if !errors.Is(err, ErrFetch) {
			err = &FetchError{Cause: err}
		}
		return false, err
	}

	snap := NewSnapshot(columns, rows, p.now())
	if prev := p.store.Current(); prev != nil && prev.Fingerprint == snap.Fingerprint {
		return false, nil
	}

	p.store.Replace(snap)
	p.logger.Info().
		Int("rows", len(snap.Rows)).
		Uint64("fingerprint", snap.Fingerprint).
		Msg("snapshot changed")

	if p.bus != nil {
		p.bus.Broadcast(EventDataUpdated, UpdatePayload{
			Message:     "data updated",
			Timestamp:   snap.CapturedAt,
			RecordCount: len(snap.Rows),
		})
	}
	return true, nil
}
