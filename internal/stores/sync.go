package stores

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/analytics"
	"github.com/tradementor/console/internal/clients/mentor"
	"github.com/tradementor/console/internal/domain"
)

// tradesAPI is the backend surface the syncer needs.
type tradesAPI interface {
	ListTrades(ctx context.Context, filter mentor.TradeFilter) (mentor.TradeList, error)
	ListAlerts(ctx context.Context) ([]domain.BehavioralAlert, error)
}

// Syncer reconciles REST fetches with the live event stream. A fetch
// result is fenced against the trades store version observed before the
// request went out: if a push event landed in between, the result is
// stale and the fetch runs once more against the new version.
type Syncer struct {
	api    tradesAPI
	trades *TradesStore
	alerts *AlertsStore
	log    zerolog.Logger
}

// NewSyncer creates a syncer over the given stores.
func NewSyncer(api tradesAPI, trades *TradesStore, alerts *AlertsStore, log zerolog.Logger) *Syncer {
	return &Syncer{
		api:    api,
		trades: trades,
		alerts: alerts,
		log:    log.With().Str("component", "syncer").Logger(),
	}
}

// RefreshTrades fetches the full trade state and installs it unless a push
// event arrived mid-flight, in which case it refetches once. If the second
// attempt is also outrun by events, the live state wins and the fetch is
// abandoned; the next refresh picks it up.
func (s *Syncer) RefreshTrades(ctx context.Context) error {
	for attempt := 0; attempt < 2; attempt++ {
		observed := s.trades.Version()

		open, closed, err := s.fetchTrades(ctx)
		if err != nil {
			return err
		}

		if s.trades.ReplaceIfVersion(open, closed, observed) {
			s.log.Debug().
				Int("open", len(open)).
				Int("closed", len(closed)).
				Msg("Trade state refreshed")
			return nil
		}
	}
	s.log.Info().Msg("Trade refresh outrun by live events twice, keeping live state")
	return nil
}

func (s *Syncer) fetchTrades(ctx context.Context) (open, closed []domain.Trade, err error) {
	openList, err := s.api.ListTrades(ctx, mentor.TradeFilter{Status: domain.StatusOpen})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch open trades: %w", err)
	}
	closedList, err := s.api.ListTrades(ctx, mentor.TradeFilter{Status: domain.StatusClosed})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch closed trades: %w", err)
	}

	open = s.dedupe(openList.Trades)
	closed = s.dedupe(closedList.Trades)
	return open, closed, nil
}

func (s *Syncer) dedupe(trades []domain.Trade) []domain.Trade {
	deduped, dropped := analytics.Dedupe(trades)
	if dropped > 0 {
		s.log.Warn().Int("duplicates", dropped).Msg("Backend returned duplicate trade ids")
	}
	return deduped
}

// RefreshAlerts fetches the alert list and installs it.
func (s *Syncer) RefreshAlerts(ctx context.Context) error {
	alerts, err := s.api.ListAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch alerts: %w", err)
	}
	s.alerts.Replace(alerts)
	return nil
}
