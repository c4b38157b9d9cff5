package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/clients/mentor"
)

// statsAPI is the backend surface the stats store needs.
type statsAPI interface {
	StatsOverview(ctx context.Context) (mentor.StatsOverview, error)
	StatsDaily(ctx context.Context) (mentor.DailyStats, error)
	WeeklyReports(ctx context.Context, weeks int) ([]mentor.WeeklyReport, error)
	InvalidateStatsCache()
}

// tradeVersioner exposes the trades store's state version.
type tradeVersioner interface {
	Version() uint64
}

const weeklyReportCount = 4

// StatsStore caches the backend's aggregate statistics. Refresh is keyed
// off the trades store's version: when no trade state changed since the
// last refresh, the backend is not asked again.
type StatsStore struct {
	api    statsAPI
	trades tradeVersioner
	log    zerolog.Logger

	mu          sync.RWMutex
	overview    mentor.StatsOverview
	daily       mentor.DailyStats
	weekly      []mentor.WeeklyReport
	refreshedAt time.Time
	lastVersion uint64
	hasData     bool

	feed changeFeed
}

// NewStatsStore creates a stats store backed by the given API.
func NewStatsStore(api statsAPI, trades tradeVersioner, log zerolog.Logger) *StatsStore {
	return &StatsStore{
		api:    api,
		trades: trades,
		log:    log.With().Str("component", "stats_store").Logger(),
	}
}

// Subscribe registers a listener invoked after every state change.
func (s *StatsStore) Subscribe(fn func()) func() {
	return s.feed.subscribe(fn)
}

// Overview returns the cached overview payload. Second value is false when
// no refresh has succeeded yet.
func (s *StatsStore) Overview() (mentor.StatsOverview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overview, s.hasData
}

// Daily returns the cached per-day payload.
func (s *StatsStore) Daily() (mentor.DailyStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.daily, s.hasData
}

// WeeklyReports returns the cached weekly reports.
func (s *StatsStore) WeeklyReports() []mentor.WeeklyReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mentor.WeeklyReport, len(s.weekly))
	copy(out, s.weekly)
	return out
}

// RefreshedAt returns when the last successful refresh completed.
func (s *StatsStore) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

// RefreshIfStale refreshes only when trade state moved since the last
// successful refresh. Returns true when a refresh ran.
func (s *StatsStore) RefreshIfStale(ctx context.Context) (bool, error) {
	version := s.trades.Version()
	s.mu.RLock()
	upToDate := s.hasData && s.lastVersion == version
	s.mu.RUnlock()
	if upToDate {
		return false, nil
	}
	if err := s.refresh(ctx, version); err != nil {
		return false, err
	}
	return true, nil
}

// Refresh fetches all statistics unconditionally.
func (s *StatsStore) Refresh(ctx context.Context) error {
	return s.refresh(ctx, s.trades.Version())
}

func (s *StatsStore) refresh(ctx context.Context, version uint64) error {
	// Trade state moved, so the client-side response cache is stale too.
	s.api.InvalidateStatsCache()

	overview, err := s.api.StatsOverview(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh stats overview: %w", err)
	}
	daily, err := s.api.StatsDaily(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh daily stats: %w", err)
	}
	weekly, err := s.api.WeeklyReports(ctx, weeklyReportCount)
	if err != nil {
		// Weekly reports are an enrichment; keep the previous ones.
		s.log.Warn().Err(err).Msg("Failed to refresh weekly reports")
		weekly = nil
	}

	s.mu.Lock()
	s.overview = overview
	s.daily = daily
	if weekly != nil {
		s.weekly = weekly
	}
	s.refreshedAt = time.Now()
	s.lastVersion = version
	s.hasData = true
	s.mu.Unlock()
	s.feed.notify()

	s.log.Debug().Uint64("trade_version", version).Msg("Statistics refreshed")
	return nil
}
