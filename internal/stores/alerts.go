package stores

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/domain"
)

// Keeping every alert forever serves nothing; the view shows recent history.
const maxAlerts = 200

// AlertsStore holds behavioral alerts, newest first, with an unread badge
// counter. The counter never exceeds the number of stored alerts and never
// goes below zero.
type AlertsStore struct {
	log zerolog.Logger

	mu     sync.RWMutex
	alerts []domain.BehavioralAlert
	unread int

	feed changeFeed
}

// NewAlertsStore creates an empty alerts store.
func NewAlertsStore(log zerolog.Logger) *AlertsStore {
	return &AlertsStore{
		log: log.With().Str("component", "alerts_store").Logger(),
	}
}

// Subscribe registers a listener invoked after every state change.
func (s *AlertsStore) Subscribe(fn func()) func() {
	return s.feed.subscribe(fn)
}

// All returns a copy of the alerts, newest first.
func (s *AlertsStore) All() []domain.BehavioralAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.BehavioralAlert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// Unread returns the unread badge count.
func (s *AlertsStore) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Replace installs a fetched alert list. Unread resets to the number of
// unacknowledged alerts in the fetched set.
func (s *AlertsStore) Replace(alerts []domain.BehavioralAlert) {
	s.mu.Lock()
	s.alerts = make([]domain.BehavioralAlert, len(alerts))
	copy(s.alerts, alerts)
	if len(s.alerts) > maxAlerts {
		s.alerts = s.alerts[:maxAlerts]
	}
	s.unread = 0
	for _, a := range s.alerts {
		if !a.Acknowledged {
			s.unread++
		}
	}
	s.mu.Unlock()
	s.feed.notify()
}

// Add prepends a pushed alert and bumps the unread count. A replayed alert
// id is ignored.
func (s *AlertsStore) Add(alert domain.BehavioralAlert) {
	s.mu.Lock()
	for _, existing := range s.alerts {
		if existing.ID == alert.ID {
			s.mu.Unlock()
			return
		}
	}
	s.alerts = append([]domain.BehavioralAlert{alert}, s.alerts...)
	if len(s.alerts) > maxAlerts {
		dropped := s.alerts[maxAlerts:]
		for _, d := range dropped {
			if !d.Acknowledged {
				// Evicted unread alerts leave the badge too.
				if s.unread > 0 {
					s.unread--
				}
			}
		}
		s.alerts = s.alerts[:maxAlerts]
	}
	if !alert.Acknowledged {
		s.unread++
	}
	s.mu.Unlock()
	s.feed.notify()
}

// Acknowledge marks one alert as acknowledged. Acknowledging an already
// acknowledged alert does not move the counter.
func (s *AlertsStore) Acknowledge(id string) bool {
	s.mu.Lock()
	found := false
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			found = true
			if !s.alerts[i].Acknowledged {
				s.alerts[i].Acknowledged = true
				if s.unread > 0 {
					s.unread--
				}
			}
			break
		}
	}
	s.mu.Unlock()
	if found {
		s.feed.notify()
	}
	return found
}

// AcknowledgeAll marks every alert acknowledged and zeroes the badge.
func (s *AlertsStore) AcknowledgeAll() {
	s.mu.Lock()
	for i := range s.alerts {
		s.alerts[i].Acknowledged = true
	}
	s.unread = 0
	s.mu.Unlock()
	s.feed.notify()
}

// Clear removes all alerts.
func (s *AlertsStore) Clear() {
	s.mu.Lock()
	s.alerts = nil
	s.unread = 0
	s.mu.Unlock()
	s.feed.notify()
}
