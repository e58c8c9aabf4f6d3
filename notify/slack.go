/*
Package notify delivers owner-facing alerts and admin reports.

PURPOSE:
  Two delivery channels (SMTP email, Slack incoming webhook), the
  report builders that render missing-data and daily-summary messages,
  and a Notifier that fans a report out to both channels under the
  engine's suppression window so the same alert is not re-sent within
  the configured quiet period.

SEE ALSO:
  - engine/suppress.go: the suppression window consulted before sending
  - analyzer: the reports rendered here
  - api/scheduler.go: the twice-daily trigger
*/
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Sink is a single outbound alert channel.
type Sink interface {
	// Send delivers one message. Implementations report failure via
	// error and must not panic on unreachable backends.
	Send(message string) error
}

// SlackSink posts messages to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewSlackSink builds a sink for the given webhook URL. An empty URL
// yields a sink whose sends fail.
func NewSlackSink(webhookURL string, logger zerolog.Logger) *SlackSink {
	return &SlackSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("component", "slack").Logger(),
	}
}

// Configured reports whether a webhook URL was provided.
func (s *SlackSink) Configured() bool { return s.webhookURL != "" }

// Send implements Sink.
func (s *SlackSink) Send(message string) error {
	if s.webhookURL == "" {
		return fmt.Errorf("slack webhook not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"text":       message,
		"username":   "공사 현황 대시보드",
		"icon_emoji": ":thermometer:",
	})
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.logger.Warn().Err(err).Msg("slack delivery failed")
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn().Int("status", resp.StatusCode).Msg("slack delivery rejected")
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
