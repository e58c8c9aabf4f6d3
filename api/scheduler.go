/*
scheduler.go - Report scheduler

PURPOSE:
  Fires the missing-data notifications and the admin daily summary at
  configured local times of day (default 09:00 and 18:00).

DESIGN:
  - Runs a background goroutine that wakes once a minute
  - Fires when the wall clock matches a configured "15:04" time
  - Remembers the last fired minute so one match fires exactly once
  - Reports are computed from the current snapshot; an empty store
    skips the run

CONFIGURATION:
  - Times: Local times of day to fire at
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewReportScheduler(store, notifier, times, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - notify/notifier.go: The delivery side
  - analyzer: The reports being sent
*/
package api

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/siteops/sheetsync/analyzer"
	"github.com/siteops/sheetsync/engine"
	"github.com/siteops/sheetsync/notify"
)

// Reporter is the delivery side of a report run. *notify.Notifier
// satisfies it.
type Reporter interface {
	SendMissingData(report analyzer.MissingReport) notify.Results
	SendDailySummary(s analyzer.Summary, o analyzer.OutstandingReport) notify.Results
}

// ReportScheduler fires periodic reports at configured times of day.
type ReportScheduler struct {
	Store    *engine.SnapshotStore
	Notifier Reporter
	Times    []string
	Enabled  bool

	ticker    *time.Ticker
	stop      chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	logger    zerolog.Logger
	now       func() time.Time
	lastFired string // "2006-01-02 15:04" of the last run
}

// NewReportScheduler creates a scheduler. Times are "15:04" strings in
// local time.
func NewReportScheduler(store *engine.SnapshotStore, notifier Reporter, times []string, logger zerolog.Logger) *ReportScheduler {
	return &ReportScheduler{
		Store:    store,
		Notifier: notifier,
		Times:    times,
		Enabled:  true,
		stop:     make(chan struct{}),
		logger:   logger.With().Str("component", "report-scheduler").Logger(),
		now:      time.Now,
	}
}

// Start begins the scheduler.
func (rs *ReportScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || len(rs.Times) == 0 {
		rs.logger.Info().Msg("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(time.Minute)
	rs.stop = make(chan struct{}) // Stop closed the previous one
	rs.wg.Add(1)
	go rs.run(rs.ticker, rs.stop)
	rs.logger.Info().Strs("times", rs.Times).Msg("started")
}

// Stop stops the scheduler.
func (rs *ReportScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.logger.Info().Msg("stopped")
}

func (rs *ReportScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	for {
		select {
		case <-ticker.C:
			rs.checkAndFire()
		case <-stop:
			return
		}
	}
}

func (rs *ReportScheduler) checkAndFire() {
	now := rs.now()
	clock := now.Format("15:04")
	stamp := now.Format("2006-01-02 15:04")

	due := false
	for _, t := range rs.Times {
		if t == clock {
			due = true
			break
		}
	}
	if !due || rs.lastFired == stamp {
		return
	}
	rs.lastFired = stamp
	rs.RunNow()
}

// RunNow computes and sends the reports immediately, regardless of the
// schedule. Also backs POST-triggered manual runs.
func (rs *ReportScheduler) RunNow() {
	snap := rs.Store.Current()
	if snap == nil {
		rs.logger.Warn().Msg("no snapshot yet, skipping report run")
		return
	}

	a := analyzer.New(snap, rs.now())
	missing := rs.Notifier.SendMissingData(a.MissingData(nil))
	daily := rs.Notifier.SendDailySummary(a.Summary(), a.Outstanding())

	rs.logger.Info().
		Int("missing_notifications", missing.TotalNotifications).
		Int("missing_suppressed", missing.Suppressed).
		Int("daily_emails", daily.EmailSent).
		Msg("report run finished")
}
