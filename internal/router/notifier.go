package router

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/domain"
)

// Notification is one user-facing message kept for the notification tray.
type Notification struct {
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Severity  domain.Severity `json:"severity"`
	CreatedAt time.Time       `json:"created_at"`
}

// LogNotifier writes notifications to the structured log. Used when no
// richer sink is wired up.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

// Notify logs the notification at a level matching its severity.
func (n *LogNotifier) Notify(title, message string, severity domain.Severity) {
	event := n.log.Info()
	if severity == domain.SeverityHigh {
		event = n.log.Warn()
	}
	event.Str("title", title).Str("severity", string(severity)).Msg(message)
}

// MemoryNotifier keeps the most recent notifications in a ring so the view
// layer can render a tray. Oldest entries fall off.
type MemoryNotifier struct {
	mu    sync.RWMutex
	items []Notification
	limit int
}

// NewMemoryNotifier creates a ring holding at most limit notifications.
func NewMemoryNotifier(limit int) *MemoryNotifier {
	if limit <= 0 {
		limit = 50
	}
	return &MemoryNotifier{limit: limit}
}

// Notify appends a notification, evicting the oldest past the limit.
func (n *MemoryNotifier) Notify(title, message string, severity domain.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notification{
		Title:     title,
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now().UTC(),
	})
	if len(n.items) > n.limit {
		n.items = n.items[len(n.items)-n.limit:]
	}
}

// Recent returns the stored notifications, newest first.
func (n *MemoryNotifier) Recent() []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Notification, len(n.items))
	for i, item := range n.items {
		out[len(n.items)-1-i] = item
	}
	return out
}

// MultiNotifier fans one notification out to several sinks.
type MultiNotifier []Notifier

// Notify forwards to every sink.
func (m MultiNotifier) Notify(title, message string, severity domain.Severity) {
	for _, n := range m {
		n.Notify(title, message, severity)
	}
}
