package notify

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/siteops/sheetsync/analyzer"
	"github.com/siteops/sheetsync/engine"
)

// Options configures a Notifier.
type Options struct {
	// MissingThreshold is the per-owner missing-cell count at which an
	// alert goes out.
	MissingThreshold int
	// SalesEmails maps owner names to their email addresses.
	SalesEmails map[string]string
	// AdminEmails receive the daily summary.
	AdminEmails []string
	// SheetURL, when set, is linked from the HTML email.
	SheetURL string
}

// Results tallies one notification run.
type Results struct {
	TotalNotifications int `json:"total_notifications"`
	EmailSent          int `json:"email_sent"`
	EmailFailed        int `json:"email_failed"`
	SlackSent          int `json:"slack_sent"`
	SlackFailed        int `json:"slack_failed"`
	Suppressed         int `json:"suppressed"`
}

// Notifier fans reports out to email and Slack under a suppression
// window.
type Notifier struct {
	email    *EmailSender
	slack    Sink
	suppress *engine.SuppressionWindow
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

// New builds a Notifier. slack may be nil when no webhook is configured.
func New(email *EmailSender, slack Sink, suppress *engine.SuppressionWindow, opts Options, logger zerolog.Logger) *Notifier {
	if opts.MissingThreshold <= 0 {
		opts.MissingThreshold = 3
	}
	return &Notifier{
		email:    email,
		slack:    slack,
		suppress: suppress,
		opts:     opts,
		logger:   logger.With().Str("component", "notifier").Logger(),
		now:      time.Now,
	}
}

// SendMissingData emails every owner whose missing-data count meets the
// threshold, then posts one Slack roll-up. Owners alerted within the
// suppression window are skipped without resetting their timers.
func (n *Notifier) SendMissingData(report analyzer.MissingReport) Results {
	notifs := CheckMissingData(report, n.opts.MissingThreshold, n.opts.SalesEmails)
	results := Results{TotalNotifications: len(notifs)}
	if len(notifs) == 0 {
		return results
	}

	now := n.now()
	var delivered []MissingNotification
	for _, notif := range notifs {
		if !n.suppress.ShouldNotify(notif.SuppressionKey()) {
			results.Suppressed++
			continue
		}
		delivered = append(delivered, notif)

		if notif.Email == "" {
			n.logger.Warn().Str("owner", notif.Owner).Msg("no email address configured for owner")
			results.EmailFailed++
			continue
		}
		subject, body, htmlBody := BuildMissingDataEmail(notif, n.opts.SheetURL, now)
		if err := n.email.Send(notif.Email, subject, body, htmlBody); err != nil {
			results.EmailFailed++
		} else {
			results.EmailSent++
		}
	}

	if len(delivered) > 0 && n.slack != nil {
		msg := BuildMissingSummarySlack(delivered, results.EmailSent, results.EmailFailed, now)
		if err := n.slack.Send(msg); err != nil {
			results.SlackFailed++
		} else {
			results.SlackSent++
		}
	}

	n.logger.Info().
		Int("notifications", results.TotalNotifications).
		Int("email_sent", results.EmailSent).
		Int("email_failed", results.EmailFailed).
		Int("suppressed", results.Suppressed).
		Msg("missing-data notification run finished")
	return results
}

// SendDailySummary mails the admin report and posts the Slack variant.
// The summary is not suppressed; it runs on the report schedule.
func (n *Notifier) SendDailySummary(s analyzer.Summary, o analyzer.OutstandingReport) Results {
	var results Results
	now := n.now()

	subject, body := BuildDailySummaryEmail(s, o, now)
	for _, admin := range n.opts.AdminEmails {
		if admin == "" {
			continue
		}
		if err := n.email.Send(admin, subject, body, ""); err != nil {
			results.EmailFailed++
		} else {
			results.EmailSent++
		}
	}

	if n.slack != nil {
		if err := n.slack.Send(BuildDailySummarySlack(s, o, now)); err != nil {
			results.SlackFailed++
		} else {
			results.SlackSent++
		}
	}

	n.logger.Info().
		Int("email_sent", results.EmailSent).
		Int("email_failed", results.EmailFailed).
		Msg("daily summary sent")
	return results
}
