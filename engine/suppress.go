/*
suppress.go - Time-windowed notification suppression

PURPOSE:
  Tracks the last-notified timestamp per alert key and decides whether a
  recurring condition is due for another notification. Entries never
  expire explicitly; a stale entry simply ages past the window.

CONCURRENCY:
  Per-key decisions run inside the map's atomic Compute, so concurrent
  ShouldNotify calls for the same key elect at most one winner per
  window. Different keys never contend.
*/
package engine

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultSuppressionWindow is the minimum interval between repeated
// notifications for the same key.
const DefaultSuppressionWindow = 120 * time.Minute

// SuppressionWindow owns the per-key last-notified timestamps.
type SuppressionWindow struct {
	window  time.Duration
	entries *xsync.MapOf[string, time.Time]
	now     func() time.Time
}

// NewSuppressionWindow creates a suppression window. A non-positive
// duration falls back to the default.
func NewSuppressionWindow(window time.Duration) *SuppressionWindow {
	if window <= 0 {
		window = DefaultSuppressionWindow
	}
	return &SuppressionWindow{
		window:  window,
		entries: xsync.NewMapOf[string, time.Time](),
		now:     time.Now,
	}
}

// ShouldNotify reports whether the key is due. When due, the entry is
// stamped with the current time in the same atomic step; otherwise state
// is left untouched.
func (s *SuppressionWindow) ShouldNotify(key string) bool {
	due := false
	s.entries.Compute(key, func(last time.Time, loaded bool) (time.Time, bool) {
		now := s.now()
		if !loaded || now.Sub(last) > s.window {
			due = true
			return now, false
		}
		return last, false
	})
	return due
}

// Window returns the configured suppression duration.
func (s *SuppressionWindow) Window() time.Duration {
	return s.window
}
