// Package router dispatches stream events into the entity stores. It is
// the only place that decides which stores an event touches, so event
// handling order and fan-out live in one file.
package router

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/clients/mentor"
	"github.com/tradementor/console/internal/domain"
	"github.com/tradementor/console/internal/stores"
)

// EventSource is where events come from. Satisfied by mentor.StreamClient.
type EventSource interface {
	Subscribe() (<-chan mentor.Event, func())
}

// Notifier receives user-facing notifications derived from events.
type Notifier interface {
	Notify(title, message string, severity domain.Severity)
}

// Stores bundles the stores the router writes to.
type Stores struct {
	Trades   *stores.TradesStore
	Alerts   *stores.AlertsStore
	Settings *stores.SettingsStore
	Panel    *stores.AIPanelStore
}

// Router consumes one event source and applies each event to the stores.
type Router struct {
	stores   Stores
	notifier Notifier
	log      zerolog.Logger

	mu     sync.Mutex
	detach func()
	done   chan struct{}
}

// New creates a router. notifier may be nil.
func New(s Stores, notifier Notifier, log zerolog.Logger) *Router {
	return &Router{
		stores:   s,
		notifier: notifier,
		log:      log.With().Str("component", "event_router").Logger(),
	}
}

// Attach subscribes to the source and starts dispatching. A previous
// attachment is torn down first, so at most one subscription is ever live.
func (r *Router) Attach(source EventSource) {
	r.Detach()

	events, unsubscribe := source.Subscribe()
	done := make(chan struct{})

	r.mu.Lock()
	r.detach = unsubscribe
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		for ev := range events {
			r.handle(ev)
		}
	}()
	r.log.Debug().Msg("Event source attached")
}

// Detach stops dispatching and waits for the in-flight event to finish.
// Safe to call when nothing is attached.
func (r *Router) Detach() {
	r.mu.Lock()
	detach := r.detach
	done := r.done
	r.detach = nil
	r.done = nil
	r.mu.Unlock()

	if detach == nil {
		return
	}
	detach()
	<-done
	r.log.Debug().Msg("Event source detached")
}

// handle applies one event. A panicking handler must not kill the dispatch
// goroutine and take the whole stream down with it.
func (r *Router) handle(ev mentor.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Interface("panic", rec).
				Str("event", mentor.Kind(ev)).
				Msg("Recovered from panic in event handler")
		}
	}()

	switch e := ev.(type) {
	case mentor.TradeOpenedEvent:
		r.stores.Trades.ApplyOpened(e.Trade)

	case mentor.TradeUpdatedEvent:
		r.stores.Trades.ApplyUpdated(e.Trade)
		r.stores.Panel.RefreshSelected(e.Trade)

	case mentor.TradeClosedEvent:
		r.stores.Trades.ApplyClosed(e.Trade)
		r.stores.Panel.RefreshSelected(e.Trade)

	case mentor.ScoreUpdateEvent:
		patch := domain.TradePatch{
			AIScore:    e.AIScore,
			AIAnalysis: e.AIAnalysis,
			AIReview:   e.AIReview,
		}
		r.stores.Trades.ApplyPatch(e.TradeID, patch)

		// Every score update opens the panel on the scored trade, replacing
		// whatever it showed before. The trade may not be in the store yet
		// when the score beats the open event; show what we have.
		trade, ok := r.stores.Trades.Get(e.TradeID)
		if !ok {
			trade = domain.Trade{ID: e.TradeID}
			patch.Apply(&trade)
		}
		r.stores.Panel.Select(trade)

	case mentor.BehavioralAlertEvent:
		r.stores.Alerts.Add(e.Alert)
		if r.notifier != nil {
			r.notifier.Notify("Behavioral alert", e.Alert.Message, e.Alert.Severity)
		}

	case mentor.ReadinessUpdateEvent:
		r.stores.Settings.SetReadiness(e.Readiness)

	default:
		// The event union is sealed; hitting this means a decoder bug.
		r.log.Warn().Str("event", mentor.Kind(ev)).Msg("No handler for event")
	}
}
