package mentor

import (
	"encoding/json"
	"fmt"

	"github.com/tradementor/console/internal/domain"
)

// Event is the closed set of push events the backend streams. The sealed
// marker method keeps dispatch exhaustive: a new event kind cannot be added
// without every switch over Event being revisited.
type Event interface {
	eventKind() string
}

// TradeOpenedEvent carries a freshly opened trade.
type TradeOpenedEvent struct {
	Trade domain.Trade
}

// TradeUpdatedEvent carries a modified open trade (SL/TP change).
type TradeUpdatedEvent struct {
	Trade domain.Trade
}

// TradeClosedEvent carries a trade that just completed.
type TradeClosedEvent struct {
	Trade domain.Trade
}

// ScoreUpdateEvent carries incrementally-arriving AI fields for one trade.
// Any subset of the three payload fields may be present.
type ScoreUpdateEvent struct {
	TradeID    string
	AIScore    *int
	AIAnalysis map[string]any
	AIReview   map[string]any
}

// BehavioralAlertEvent carries a detector notification.
type BehavioralAlertEvent struct {
	Alert domain.BehavioralAlert
}

// ReadinessUpdateEvent carries a refreshed readiness assessment.
type ReadinessUpdateEvent struct {
	Readiness domain.Readiness
}

func (TradeOpenedEvent) eventKind() string     { return "trade_opened" }
func (TradeUpdatedEvent) eventKind() string    { return "trade_updated" }
func (TradeClosedEvent) eventKind() string     { return "trade_closed" }
func (ScoreUpdateEvent) eventKind() string     { return "score_update" }
func (BehavioralAlertEvent) eventKind() string { return "behavioral_alert" }
func (ReadinessUpdateEvent) eventKind() string { return "readiness_update" }

// Kind returns the wire discriminant for an event, for logging.
func Kind(ev Event) string { return ev.eventKind() }

type wireEnvelope struct {
	Type    string          `json:"type"`
	Trade   json.RawMessage `json:"trade"`
	Alert   json.RawMessage `json:"alert"`
	TradeID string          `json:"trade_id"`
	AIScore *int            `json:"ai_score"`
	AIAnal  map[string]any  `json:"ai_analysis"`
	AIRev   map[string]any  `json:"ai_review"`
	// readiness_update fields arrive at the top level
	ReadinessScore *int   `json:"readiness_score"`
	Level          string `json:"level"`
	Message        string `json:"message"`
}

// decodeEvent parses one text frame into a typed event.
// Unknown discriminants return (nil, nil) so the caller can skip them
// without treating them as stream corruption.
func decodeEvent(data []byte) (Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse event frame: %w", err)
	}

	decodeTrade := func() (domain.Trade, error) {
		var wt wireTrade
		if len(env.Trade) == 0 {
			return domain.Trade{}, fmt.Errorf("%s event missing trade payload", env.Type)
		}
		if err := json.Unmarshal(env.Trade, &wt); err != nil {
			return domain.Trade{}, fmt.Errorf("failed to parse trade payload: %w", err)
		}
		return wt.toDomain(), nil
	}

	switch env.Type {
	case "trade_opened":
		trade, err := decodeTrade()
		if err != nil {
			return nil, err
		}
		return TradeOpenedEvent{Trade: trade}, nil

	case "trade_updated":
		trade, err := decodeTrade()
		if err != nil {
			return nil, err
		}
		return TradeUpdatedEvent{Trade: trade}, nil

	case "trade_closed":
		trade, err := decodeTrade()
		if err != nil {
			return nil, err
		}
		return TradeClosedEvent{Trade: trade}, nil

	case "score_update":
		if env.TradeID == "" {
			return nil, fmt.Errorf("score_update event missing trade_id")
		}
		return ScoreUpdateEvent{
			TradeID:    env.TradeID,
			AIScore:    env.AIScore,
			AIAnalysis: env.AIAnal,
			AIReview:   env.AIRev,
		}, nil

	case "behavioral_alert":
		var wa wireAlert
		if len(env.Alert) == 0 {
			return nil, fmt.Errorf("behavioral_alert event missing alert payload")
		}
		if err := json.Unmarshal(env.Alert, &wa); err != nil {
			return nil, fmt.Errorf("failed to parse alert payload: %w", err)
		}
		return BehavioralAlertEvent{Alert: wa.toDomain()}, nil

	case "readiness_update":
		readiness := domain.Readiness{Level: env.Level, Message: env.Message}
		if env.ReadinessScore != nil {
			readiness.Score = *env.ReadinessScore
		}
		return ReadinessUpdateEvent{Readiness: readiness}, nil

	default:
		return nil, nil
	}
}
