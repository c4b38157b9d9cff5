package stores

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/domain"
)

// AIPanelStore tracks which trade's AI analysis the detail panel shows.
// The selection is replaced wholesale, never merged: each score update
// re-selects the scored trade, and trade updates for the selected trade
// refresh the panel copy.
type AIPanelStore struct {
	log zerolog.Logger

	mu       sync.RWMutex
	selected *domain.Trade

	feed changeFeed
}

// NewAIPanelStore creates an empty panel store.
func NewAIPanelStore(log zerolog.Logger) *AIPanelStore {
	return &AIPanelStore{
		log: log.With().Str("component", "ai_panel_store").Logger(),
	}
}

// Subscribe registers a listener invoked after every state change.
func (s *AIPanelStore) Subscribe(fn func()) func() {
	return s.feed.subscribe(fn)
}

// Selected returns the trade shown in the panel, if any.
func (s *AIPanelStore) Selected() (domain.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return domain.Trade{}, false
	}
	return *s.selected, true
}

// Select opens the panel on the given trade.
func (s *AIPanelStore) Select(trade domain.Trade) {
	s.mu.Lock()
	t := trade
	s.selected = &t
	s.mu.Unlock()
	s.feed.notify()
}

// Close clears the selection.
func (s *AIPanelStore) Close() {
	s.mu.Lock()
	changed := s.selected != nil
	s.selected = nil
	s.mu.Unlock()
	if changed {
		s.feed.notify()
	}
}

// RefreshSelected replaces the panel copy when the underlying trade
// changed (close event for the trade being inspected).
func (s *AIPanelStore) RefreshSelected(trade domain.Trade) {
	s.mu.Lock()
	if s.selected == nil || s.selected.ID != trade.ID {
		s.mu.Unlock()
		return
	}
	t := trade
	s.selected = &t
	s.mu.Unlock()
	s.feed.notify()
}
