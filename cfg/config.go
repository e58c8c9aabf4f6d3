/*
config.go - TOML configuration for the sheet-sync server

PURPOSE:
  One configuration file covers the sheet connection, poll cadence,
  allocation behavior, notification routing and the static mapping
  overrides. Command-line flags in cmd/server override the file where
  they overlap.

FILE FORMAT: TOML

  [sheet]
  spreadsheet_id = "1AbC..."
  range = "공사 현황!A:AM"

  [mapping.company_prefixes]
  "글로벌" = "G"

  [mapping.owner_suffixes]
  "박용구" = "YG"

  [notify.sales_emails]
  "박용구" = "yg@company.example"

DEFAULTS:
  Every knob has a default (see Default); a missing file is not an error
  when allow_missing is requested by the caller passing path == "".

SEE ALSO:
  - cmd/server/main.go: flag overrides and wiring
*/
package cfg

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfiguration controls the HTTP listener.
type ServerConfiguration struct {
	BindAddress string `toml:"bind_address"`
	Port        int    `toml:"port"`
}

// SheetConfiguration identifies the external spreadsheet.
type SheetConfiguration struct {
	SpreadsheetID string `toml:"spreadsheet_id"`
	Range         string `toml:"range"`
	// AccessToken authenticates against the values API. The endpoint is
	// overridable for tests and self-hosted proxies.
	AccessToken string `toml:"access_token"`
	Endpoint    string `toml:"endpoint"`
}

// PollConfiguration controls change detection cadence.
type PollConfiguration struct {
	IntervalSeconds     int `toml:"interval_seconds"`
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
}

// AllocationConfiguration controls code allocation retries.
type AllocationConfiguration struct {
	MaxAttempts int `toml:"max_attempts"`
	BackoffMS   int `toml:"backoff_ms"`
}

// SuppressionConfiguration controls repeated-alert damping.
type SuppressionConfiguration struct {
	WindowMinutes int `toml:"window_minutes"`
}

// MirrorConfiguration controls the local sqlite fallback mirror.
type MirrorConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// AuthConfiguration carries the API key and the admin list.
type AuthConfiguration struct {
	APIKey      string   `toml:"api_key"`
	AdminEmails []string `toml:"admin_emails"`
}

// EmailConfiguration is the SMTP sink.
type EmailConfiguration struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// NotifyConfiguration routes reports.
type NotifyConfiguration struct {
	Email            EmailConfiguration `toml:"email"`
	SlackWebhookURL  string             `toml:"slack_webhook_url"`
	AdminEmails      []string           `toml:"admin_emails"`
	SalesEmails      map[string]string  `toml:"sales_emails"`
	MissingThreshold int                `toml:"missing_threshold"`
	// ReportTimes are local times of day ("15:04") the report scheduler
	// fires at.
	ReportTimes []string `toml:"report_times"`
}

// MappingConfiguration carries the static prefix/suffix overrides.
type MappingConfiguration struct {
	CompanyPrefixes map[string]string `toml:"company_prefixes"`
	OwnerSuffixes   map[string]string `toml:"owner_suffixes"`
	RequiredFields  []string          `toml:"required_fields"`
}

// LoggingConfiguration controls log output.
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// Config is the full server configuration.
type Config struct {
	Server      ServerConfiguration      `toml:"server"`
	Sheet       SheetConfiguration       `toml:"sheet"`
	Poll        PollConfiguration        `toml:"poll"`
	Allocation  AllocationConfiguration  `toml:"allocation"`
	Suppression SuppressionConfiguration `toml:"suppression"`
	Mirror      MirrorConfiguration      `toml:"mirror"`
	Auth        AuthConfiguration        `toml:"auth"`
	Notify      NotifyConfiguration      `toml:"notify"`
	Mapping     MappingConfiguration     `toml:"mapping"`
	Logging     LoggingConfiguration     `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfiguration{BindAddress: "0.0.0.0", Port: 8080},
		Sheet: SheetConfiguration{
			Range:    "공사 현황!A:AM",
			Endpoint: "https://sheets.googleapis.com/v4/spreadsheets",
		},
		Poll:        PollConfiguration{IntervalSeconds: 10, FetchTimeoutSeconds: 30},
		Allocation:  AllocationConfiguration{MaxAttempts: 5, BackoffMS: 100},
		Suppression: SuppressionConfiguration{WindowMinutes: 120},
		Mirror:      MirrorConfiguration{Enabled: true, Path: "sheetsync-mirror.db"},
		Notify: NotifyConfiguration{
			Email:            EmailConfiguration{Host: "smtp.gmail.com", Port: 587},
			MissingThreshold: 3,
			ReportTimes:      []string{"09:00", "18:00"},
		},
		Mapping: MappingConfiguration{
			RequiredFields: []string{"프로젝트 코드", "현장 주소"},
		},
		Logging: LoggingConfiguration{Format: "console"},
	}
}

// Load reads the TOML file at path on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// PollInterval returns the poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// FetchTimeout returns the per-fetch deadline as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Poll.FetchTimeoutSeconds) * time.Second
}

// AllocationBackoff returns the linear backoff unit as a duration.
func (c *Config) AllocationBackoff() time.Duration {
	return time.Duration(c.Allocation.BackoffMS) * time.Millisecond
}

// SuppressionWindow returns the alert damping window as a duration.
func (c *Config) SuppressionWindow() time.Duration {
	return time.Duration(c.Suppression.WindowMinutes) * time.Minute
}
