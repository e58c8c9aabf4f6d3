/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the sheet dashboard server: configuration,
  logging, data source selection, dependency injection, background
  loops, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the TOML configuration
  2. Configure zerolog (console or JSON output)
  3. Pick the data source: the spreadsheet API when a spreadsheet id is
     configured, the local sqlite mirror otherwise
  4. Wire store, bus, poller, allocator, notifier and report scheduler
  5. Start the poller and scheduler, then serve HTTP
  6. On SIGINT/SIGTERM: stop background loops, drain HTTP (30s timeout)

COMMAND-LINE FLAGS:
  -config  TOML configuration path (default: none, built-in defaults)
  -port    Override the configured HTTP port
  -db      Override the configured mirror path
           Use ":memory:" for an in-memory mirror

EXAMPLES:
  # Run against a live spreadsheet
  ./server -config=sheetsync.toml

  # Run offline against the local mirror only
  ./server -db="./data/mirror.db"

SEE ALSO:
  - cfg/config.go: The configuration schema
  - api/server.go: Router configuration
  - engine/poller.go: The change detection loop
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/siteops/sheetsync/api"
	"github.com/siteops/sheetsync/auth"
	"github.com/siteops/sheetsync/cfg"
	"github.com/siteops/sheetsync/engine"
	"github.com/siteops/sheetsync/notify"
	"github.com/siteops/sheetsync/source/gsheet"
	"github.com/siteops/sheetsync/source/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "TOML configuration path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "sqlite mirror path (overrides config)")
	flag.Parse()

	config, err := cfg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		config.Server.Port = *port
	}
	if *dbPath != "" {
		config.Mirror.Path = *dbPath
		config.Mirror.Enabled = true
	}

	logger := newLogger(config.Logging)

	// Data source: the spreadsheet when configured, the mirror otherwise.
	var source engine.DataSource
	var mirror *sqlite.Mirror
	if config.Mirror.Enabled {
		mirror, err = sqlite.New(config.Mirror.Path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", config.Mirror.Path).Msg("failed to open mirror")
		}
		defer mirror.Close()
	}
	if config.Sheet.SpreadsheetID != "" {
		sheet, err := gsheet.New(gsheet.Options{
			Endpoint:      config.Sheet.Endpoint,
			SpreadsheetID: config.Sheet.SpreadsheetID,
			Range:         config.Sheet.Range,
			AccessToken:   config.Sheet.AccessToken,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure spreadsheet source")
		}
		source = sheet
		logger.Info().Str("spreadsheet", config.Sheet.SpreadsheetID).Msg("using spreadsheet source")
	} else {
		if mirror == nil {
			logger.Fatal().Msg("no spreadsheet configured and mirror disabled, nothing to serve")
		}
		source = mirror
		logger.Info().Str("path", config.Mirror.Path).Msg("using local mirror source")
	}

	// Engine wiring
	store := engine.NewSnapshotStore()
	bus := engine.NewBus(logger)
	poller := engine.NewPoller(source, store, bus, engine.PollerConfig{
		Interval:     config.PollInterval(),
		FetchTimeout: config.FetchTimeout(),
	}, logger)
	allocator := engine.NewAllocator(source, engine.MappingOverrides{
		CompanyPrefixes: config.Mapping.CompanyPrefixes,
		OwnerSuffixes:   config.Mapping.OwnerSuffixes,
	}, engine.AllocatorConfig{
		MaxAttempts:  config.Allocation.MaxAttempts,
		BackoffBase:  config.AllocationBackoff(),
		FetchTimeout: config.FetchTimeout(),
	}, logger)

	// When the spreadsheet is the source, keep the mirror synced from
	// every published snapshot.
	if config.Sheet.SpreadsheetID != "" && mirror != nil {
		bus.Register("mirror", "mirror@local", false, engine.SenderFunc(func(event string, payload any) error {
			if event != engine.EventDataUpdated {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return mirror.SyncFrom(ctx, store.Current())
		}))
	}

	// Notifications
	suppress := engine.NewSuppressionWindow(config.SuppressionWindow())
	email := notify.NewEmailSender(notify.EmailOptions{
		Host:     config.Notify.Email.Host,
		Port:     config.Notify.Email.Port,
		Username: config.Notify.Email.Username,
		Password: config.Notify.Email.Password,
	}, logger)
	var slack notify.Sink
	if s := notify.NewSlackSink(config.Notify.SlackWebhookURL, logger); s.Configured() {
		slack = s
	}
	sheetURL := ""
	if config.Sheet.SpreadsheetID != "" {
		sheetURL = "https://docs.google.com/spreadsheets/d/" + config.Sheet.SpreadsheetID
	}
	notifier := notify.New(email, slack, suppress, notify.Options{
		MissingThreshold: config.Notify.MissingThreshold,
		SalesEmails:      config.Notify.SalesEmails,
		AdminEmails:      config.Notify.AdminEmails,
		SheetURL:         sheetURL,
	}, logger)
	scheduler := api.NewReportScheduler(store, notifier, config.Notify.ReportTimes, logger)

	// HTTP layer
	provider := auth.New(config.Auth.APIKey, config.Auth.AdminEmails)
	handler := api.NewHandler(config, store, poller, allocator, source, bus, provider, logger)
	handler.Reports = scheduler
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.BindAddress, config.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	poller.Start()
	scheduler.Start()

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	scheduler.Stop()
	poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server stopped")
}

func newLogger(lc cfg.LoggingConfiguration) zerolog.Logger {
	level := zerolog.InfoLevel
	if lc.Verbose {
		level = zerolog.DebugLevel
	}
	var logger zerolog.Logger
	if lc.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger = logger.Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
