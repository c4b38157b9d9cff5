package stores

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/domain"
)

// TradesStore holds the open and closed trade lists, both newest first.
// A trade lives in exactly one list; the closed-trade transition is a
// single atomic operation so no reader ever observes a trade in both.
type TradesStore struct {
	log zerolog.Logger

	mu      sync.RWMutex
	open    []domain.Trade
	closed  []domain.Trade
	version uint64

	feed changeFeed
}

// NewTradesStore creates an empty trades store.
func NewTradesStore(log zerolog.Logger) *TradesStore {
	return &TradesStore{
		log: log.With().Str("component", "trades_store").Logger(),
	}
}

// Subscribe registers a listener invoked after every state change.
func (s *TradesStore) Subscribe(fn func()) func() {
	return s.feed.subscribe(fn)
}

// Version returns the monotonic state version. It moves on every mutation
// that could change derived statistics, and fetch results are fenced
// against it: a result computed before the version moved is stale.
func (s *TradesStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Open returns a copy of the open trades, newest first.
func (s *TradesStore) Open() []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTrades(s.open)
}

// Closed returns a copy of the closed trades, newest first.
func (s *TradesStore) Closed() []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTrades(s.closed)
}

// Get finds a trade by id in either list.
func (s *TradesStore) Get(id string) (domain.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.open {
		if t.ID == id {
			return t, true
		}
	}
	for _, t := range s.closed {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Trade{}, false
}

// Replace installs a freshly fetched state, discarding current contents.
func (s *TradesStore) Replace(open, closed []domain.Trade) {
	s.mu.Lock()
	s.open = copyTrades(open)
	s.closed = copyTrades(closed)
	s.version++
	s.mu.Unlock()
	s.feed.notify()
}

// ReplaceIfVersion installs fetched state only when the store version still
// matches the version observed before the fetch started. Returns false when
// the state moved in between, in which case the caller refetches.
func (s *TradesStore) ReplaceIfVersion(open, closed []domain.Trade, observed uint64) bool {
	s.mu.Lock()
	if s.version != observed {
		s.mu.Unlock()
		s.log.Debug().
			Uint64("observed", observed).
			Msg("Discarding stale fetch result")
		return false
	}
	s.open = copyTrades(open)
	s.closed = copyTrades(closed)
	s.version++
	s.mu.Unlock()
	s.feed.notify()
	return true
}

// ApplyOpened inserts a newly opened trade at the front of the open list.
// A replayed event for a known id updates in place instead of duplicating.
func (s *TradesStore) ApplyOpened(trade domain.Trade) {
	s.mu.Lock()
	if i := indexByID(s.open, trade.ID); i >= 0 {
		s.open[i] = trade
	} else if indexByID(s.closed, trade.ID) >= 0 {
		// Already closed locally; an out-of-order open must not resurrect it.
		s.mu.Unlock()
		s.log.Warn().Str("trade_id", trade.ID).Msg("Ignoring open event for closed trade")
		return
	} else {
		s.open = append([]domain.Trade{trade}, s.open...)
	}
	s.version++
	s.mu.Unlock()
	s.feed.notify()
}

// ApplyUpdated replaces an open trade's contents (SL/TP modification).
// Unknown ids are inserted; the event carries the full trade.
func (s *TradesStore) ApplyUpdated(trade domain.Trade) {
	// An update can carry a terminal status when it races the close on the
	// wire. Route it through the close transition; a closed-status trade
	// must never sit in the open list.
	if trade.IsClosed() {
		s.ApplyClosed(trade)
		return
	}

	s.mu.Lock()
	if i := indexByID(s.open, trade.ID); i >= 0 {
		s.open[i] = trade
	} else if i := indexByID(s.closed, trade.ID); i >= 0 {
		s.mu.Unlock()
		s.log.Warn().Str("trade_id", trade.ID).Msg("Ignoring update event for closed trade")
		return
	} else {
		s.open = append([]domain.Trade{trade}, s.open...)
	}
	s.version++
	s.mu.Unlock()
	s.feed.notify()
}

// ApplyClosed moves a trade from open to closed in one step. Replaying the
// same close event is idempotent: the closed entry is refreshed, not
// duplicated.
func (s *TradesStore) ApplyClosed(trade domain.Trade) {
	s.mu.Lock()
	if i := indexByID(s.open, trade.ID); i >= 0 {
		s.open = append(s.open[:i], s.open[i+1:]...)
	}
	if i := indexByID(s.closed, trade.ID); i >= 0 {
		s.closed[i] = trade
	} else {
		s.closed = append([]domain.Trade{trade}, s.closed...)
	}
	s.version++
	s.mu.Unlock()
	s.feed.notify()
}

// ApplyPatch merges incrementally arriving AI fields into the trade,
// wherever it currently lives. Fields absent from the patch are preserved.
// Returns false when the trade is unknown.
func (s *TradesStore) ApplyPatch(id string, patch domain.TradePatch) bool {
	s.mu.Lock()
	var target *domain.Trade
	if i := indexByID(s.open, id); i >= 0 {
		target = &s.open[i]
	} else if i := indexByID(s.closed, id); i >= 0 {
		target = &s.closed[i]
	}
	if target == nil {
		s.mu.Unlock()
		s.log.Debug().Str("trade_id", id).Msg("Score update for unknown trade")
		return false
	}
	patch.Apply(target)
	s.version++
	s.mu.Unlock()
	s.feed.notify()
	return true
}

func indexByID(trades []domain.Trade, id string) int {
	for i, t := range trades {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func copyTrades(trades []domain.Trade) []domain.Trade {
	out := make([]domain.Trade, len(trades))
	copy(out, trades)
	return out
}
