// Package main is the entry point for the TradeMentor console, the local
// companion service for the trading-psychology coaching backend. It keeps a
// live mirror of the trader's state (trades, behavioral alerts, rules,
// readiness) synchronized over WebSocket push events and REST fetches, and
// serves view-ready data and locally derived analytics over HTTP.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/clients/mentor"
	"github.com/tradementor/console/internal/config"
	"github.com/tradementor/console/internal/router"
	"github.com/tradementor/console/internal/scheduler"
	"github.com/tradementor/console/internal/server"
	"github.com/tradementor/console/internal/storage"
	"github.com/tradementor/console/internal/stores"
	"github.com/tradementor/console/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)
	log.Info().Str("api", cfg.APIBaseURL).Msg("Starting TradeMentor console")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	session, err := storage.Open(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session storage")
	}
	defer session.Close()

	// Backend clients.
	client := mentor.NewClient(cfg.APIBaseURL, log)
	stream := mentor.NewStreamClient(cfg.WSURL, log, mentor.StreamOptions{})

	// Entity stores.
	trades := stores.NewTradesStore(log)
	alerts := stores.NewAlertsStore(log)
	settings := stores.NewSettingsStore(client, log)
	panel := stores.NewAIPanelStore(log)
	auth := stores.NewAuthStore(client, session, log)
	stats := stores.NewStatsStore(client, trades, log)
	syncer := stores.NewSyncer(client, trades, alerts, log)

	// Event routing: stream events fan into the stores, behavioral alerts
	// additionally land in the notification tray and the log.
	tray := router.NewMemoryNotifier(50)
	notifier := router.MultiNotifier{router.NewLogNotifier(log), tray}
	eventRouter := router.New(router.Stores{
		Trades:   trades,
		Alerts:   alerts,
		Settings: settings,
		Panel:    panel,
	}, notifier, log)
	eventRouter.Attach(stream)
	defer eventRouter.Detach()

	// Warm start: restore the persisted session and last-known snapshots so
	// the dashboard has data before the first fetch completes.
	warmStart(auth, trades, alerts, session, stream, syncer, settings, stats, log)

	// Background jobs.
	sched := scheduler.New(log)
	snapJob := scheduler.NewSnapshotJob(trades, alerts, session, auth, log)
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{"@every 1m", scheduler.NewStatsRefreshJob(stats, auth)},
		{"@every 5m", scheduler.NewReadinessPollJob(settings, auth)},
		{"@every 30s", snapJob},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(cfg.Port, server.Deps{
		Auth:     auth,
		Trades:   trades,
		Alerts:   alerts,
		Settings: settings,
		Panel:    panel,
		Stats:    stats,
		Syncer:   syncer,
		Stream:   stream,
		Backend:  client,
		Tray:     tray,
	}, cfg.DevMode, log)

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	stream.Disconnect()

	// Persist the freshest state before exit; the next start warm-loads it.
	if err := sched.RunNow(snapJob); err != nil {
		log.Warn().Err(err).Msg("Final snapshot failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Console stopped")
}

// warmStart restores persisted state and kicks off the initial sync. Every
// step is best effort: a cold start with no session or snapshots is normal.
func warmStart(
	auth *stores.AuthStore,
	trades *stores.TradesStore,
	alerts *stores.AlertsStore,
	session *storage.SessionStore,
	stream *mentor.StreamClient,
	syncer *stores.Syncer,
	settings *stores.SettingsStore,
	stats *stores.StatsStore,
	log zerolog.Logger,
) {
	// Snapshots first, so the dashboard renders immediately even while the
	// fetches below are in flight.
	if snap, err := session.LoadTradeSnapshot(); err == nil {
		trades.Replace(snap.Open, snap.Closed)
		log.Info().
			Int("open", len(snap.Open)).
			Int("closed", len(snap.Closed)).
			Time("saved_at", snap.SavedAt).
			Msg("Restored trade snapshot")
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Warn().Err(err).Msg("Failed to restore trade snapshot")
	}
	if snap, err := session.LoadAlertSnapshot(); err == nil {
		alerts.Replace(snap.Alerts)
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Warn().Err(err).Msg("Failed to restore alert snapshot")
	}

	switch err := auth.Restore(); {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		log.Info().Msg("No persisted session, waiting for login")
		return
	case errors.Is(err, stores.ErrSessionExpired):
		log.Info().Msg("Persisted session expired, waiting for login")
		return
	default:
		log.Warn().Err(err).Msg("Failed to restore session")
		return
	}

	stream.Connect(auth.Token())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncer.RefreshTrades(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial trade fetch failed")
		}
		if err := syncer.RefreshAlerts(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial alert fetch failed")
		}
		if err := settings.RefreshAccount(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial account fetch failed")
		}
		if err := settings.RefreshRules(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial rules fetch failed")
		}
		if err := settings.RefreshReadiness(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial readiness fetch failed")
		}
		if err := stats.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial stats fetch failed")
		}
	}()
}
