package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/domain"
	"github.com/tradementor/console/internal/storage"
	"github.com/tradementor/console/internal/stores"
)

const jobTimeout = 25 * time.Second

// sessionGate lets jobs skip work while logged out.
type sessionGate interface {
	IsLoggedIn() bool
}

// statsRefresher is the stats store surface the refresh job needs.
type statsRefresher interface {
	RefreshIfStale(ctx context.Context) (bool, error)
}

// StatsRefreshJob refreshes cached statistics when trade state has moved
// since the last refresh.
type StatsRefreshJob struct {
	stats statsRefresher
	auth  sessionGate
}

// NewStatsRefreshJob creates the stats refresh job.
func NewStatsRefreshJob(stats statsRefresher, auth sessionGate) *StatsRefreshJob {
	return &StatsRefreshJob{stats: stats, auth: auth}
}

// Name implements Job.
func (j *StatsRefreshJob) Name() string { return "stats_refresh" }

// Run implements Job.
func (j *StatsRefreshJob) Run() error {
	if !j.auth.IsLoggedIn() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	_, err := j.stats.RefreshIfStale(ctx)
	return err
}

// readinessRefresher is the settings store surface the readiness job needs.
type readinessRefresher interface {
	RefreshReadiness(ctx context.Context) error
}

// ReadinessPollJob periodically re-fetches the readiness assessment as a
// fallback for missed push updates.
type ReadinessPollJob struct {
	settings readinessRefresher
	auth     sessionGate
}

// NewReadinessPollJob creates the readiness poll job.
func NewReadinessPollJob(settings readinessRefresher, auth sessionGate) *ReadinessPollJob {
	return &ReadinessPollJob{settings: settings, auth: auth}
}

// Name implements Job.
func (j *ReadinessPollJob) Name() string { return "readiness_poll" }

// Run implements Job.
func (j *ReadinessPollJob) Run() error {
	if !j.auth.IsLoggedIn() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	return j.settings.RefreshReadiness(ctx)
}

// snapshotSink persists warm-start snapshots.
type snapshotSink interface {
	SaveTradeSnapshot(snap storage.TradeSnapshot) error
	SaveAlertSnapshot(snap storage.AlertSnapshot) error
}

// tradeSource is the trades store surface the snapshot job needs.
type tradeSource interface {
	Open() []domain.Trade
	Closed() []domain.Trade
	Version() uint64
}

// alertSource is the alerts store surface the snapshot job needs.
type alertSource interface {
	All() []domain.BehavioralAlert
}

// SnapshotJob persists current store contents so the next start renders
// data before its first fetch completes. Skipped when nothing changed.
type SnapshotJob struct {
	trades tradeSource
	alerts alertSource
	sink   snapshotSink
	auth   sessionGate
	log    zerolog.Logger

	lastVersion uint64
	saved       bool
}

// NewSnapshotJob creates the snapshot job.
func NewSnapshotJob(trades tradeSource, alerts alertSource, sink snapshotSink, auth sessionGate, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		trades: trades,
		alerts: alerts,
		sink:   sink,
		auth:   auth,
		log:    log.With().Str("component", "snapshot_job").Logger(),
	}
}

// Name implements Job.
func (j *SnapshotJob) Name() string { return "store_snapshot" }

// Run implements Job.
func (j *SnapshotJob) Run() error {
	if !j.auth.IsLoggedIn() {
		return nil
	}
	version := j.trades.Version()
	if j.saved && version == j.lastVersion {
		return nil
	}

	if err := j.sink.SaveTradeSnapshot(storage.TradeSnapshot{
		Open:   j.trades.Open(),
		Closed: j.trades.Closed(),
	}); err != nil {
		return err
	}
	if err := j.sink.SaveAlertSnapshot(storage.AlertSnapshot{
		Alerts: j.alerts.All(),
	}); err != nil {
		return err
	}

	j.lastVersion = version
	j.saved = true
	j.log.Debug().Uint64("trade_version", version).Msg("Snapshots persisted")
	return nil
}

// Compile-time wiring checks against the concrete stores.
var (
	_ statsRefresher     = (*stores.StatsStore)(nil)
	_ readinessRefresher = (*stores.SettingsStore)(nil)
	_ tradeSource        = (*stores.TradesStore)(nil)
	_ alertSource        = (*stores.AlertsStore)(nil)
	_ sessionGate        = (*stores.AuthStore)(nil)
	_ snapshotSink       = (*storage.SessionStore)(nil)
)
