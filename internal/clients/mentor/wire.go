package mentor

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradementor/console/internal/domain"
)

// Wire shapes as the backend sends them. Each known field alias is
// enumerated here and resolved in the ToDomain mapping; ambiguity never
// travels past this file.

// wireTime accepts the timestamp formats the backend has been observed to
// emit (RFC3339 from the API, "2006-01-02 15:04:05+00:00" from the
// json.dumps(default=str) WebSocket path).
type wireTime struct {
	time.Time
}

var wireTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (w *wireTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		w.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, format := range wireTimeFormats {
		t, err := time.Parse(format, raw)
		if err == nil {
			w.Time = t.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

type wireFlag struct {
	Flag       string    `json:"flag"`
	Type       string    `json:"type"` // alias for flag
	Pattern    string    `json:"pattern"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	DetectedAt *wireTime `json:"detected_at"`
}

func (f wireFlag) toDomain() domain.BehavioralFlag {
	pattern := f.Flag
	if pattern == "" {
		pattern = f.Type
	}
	if pattern == "" {
		pattern = f.Pattern
	}

	severity := domain.Severity(strings.ToLower(f.Severity))
	switch severity {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh:
	case "critical":
		severity = domain.SeverityHigh
	default:
		severity = domain.SeverityMedium
	}

	flag := domain.BehavioralFlag{
		Pattern:  domain.PatternType(pattern),
		Message:  f.Message,
		Severity: severity,
	}
	if f.DetectedAt != nil {
		flag.DetectedAt = f.DetectedAt.Time
	}
	return flag
}

type wireTrade struct {
	ID         string         `json:"id"`
	Symbol     string         `json:"symbol"`
	Direction  string         `json:"direction"`
	EntryPrice float64        `json:"entry_price"`
	ExitPrice  *float64       `json:"exit_price"`
	SL         *float64       `json:"sl"`
	StopLoss   *float64       `json:"stop_loss"` // alias for sl
	TP         *float64       `json:"tp"`
	TakeProfit *float64       `json:"take_profit"` // alias for tp
	LotSize    float64        `json:"lot_size"`
	PnL        *float64       `json:"pnl"`
	PnLR       *float64       `json:"pnl_r"`
	Status     string         `json:"status"`
	OpenTime   *wireTime      `json:"open_time"`
	CloseTime  *wireTime      `json:"close_time"`
	AIScore    *int           `json:"ai_score"`
	AIAnalysis map[string]any `json:"ai_analysis"`
	AIReview   map[string]any `json:"ai_review"`
	Flags      []wireFlag     `json:"behavioral_flags"`
}

func (t wireTrade) toDomain() domain.Trade {
	trade := domain.Trade{
		ID:         t.ID,
		Symbol:     t.Symbol,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		LotSize:    t.LotSize,
		PnL:        t.PnL,
		PnLR:       t.PnLR,
		AIScore:    t.AIScore,
		AIAnalysis: t.AIAnalysis,
		AIReview:   t.AIReview,
	}

	if strings.EqualFold(t.Direction, "SELL") {
		trade.Direction = domain.DirectionSell
	} else {
		trade.Direction = domain.DirectionBuy
	}

	trade.StopLoss = t.SL
	if trade.StopLoss == nil {
		trade.StopLoss = t.StopLoss
	}
	trade.TakeProfit = t.TP
	if trade.TakeProfit == nil {
		trade.TakeProfit = t.TakeProfit
	}

	switch strings.ToLower(t.Status) {
	case "open":
		trade.Status = domain.StatusOpen
	case "closed":
		trade.Status = domain.StatusClosed
	case "cancelled", "canceled":
		trade.Status = domain.StatusCancelled
	default:
		// Infer from lifecycle fields when the status string is unknown.
		if t.CloseTime != nil || t.ExitPrice != nil {
			trade.Status = domain.StatusClosed
		} else {
			trade.Status = domain.StatusOpen
		}
	}

	if t.OpenTime != nil {
		trade.OpenTime = t.OpenTime.Time
	}
	if t.CloseTime != nil {
		ct := t.CloseTime.Time
		trade.CloseTime = &ct
	}
	trade.Session = domain.SessionAt(trade.OpenTime)

	if len(t.Flags) > 0 {
		trade.Flags = make([]domain.BehavioralFlag, 0, len(t.Flags))
		for _, f := range t.Flags {
			trade.Flags = append(trade.Flags, f.toDomain())
		}
	}

	return trade
}

type wireAlert struct {
	ID           string    `json:"id"`
	TradeID      string    `json:"trade_id"`
	Flag         string    `json:"flag"`
	Type         string    `json:"type"` // alias for flag
	Pattern      string    `json:"pattern"`
	Message      string    `json:"message"`
	Severity     string    `json:"severity"`
	CreatedAt    *wireTime `json:"created_at"`
	Acknowledged bool      `json:"acknowledged"`
}

func (a wireAlert) toDomain() domain.BehavioralAlert {
	pattern := a.Flag
	if pattern == "" {
		pattern = a.Type
	}
	if pattern == "" {
		pattern = a.Pattern
	}

	severity := domain.Severity(strings.ToLower(a.Severity))
	switch severity {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh:
	case "critical":
		severity = domain.SeverityHigh
	default:
		severity = domain.SeverityMedium
	}

	alert := domain.BehavioralAlert{
		ID:           a.ID,
		TradeID:      a.TradeID,
		Pattern:      domain.PatternType(pattern),
		Message:      a.Message,
		Severity:     severity,
		Acknowledged: a.Acknowledged,
	}
	// Push-delivered alerts carry no id; assign one so acknowledge works.
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if a.CreatedAt != nil {
		alert.CreatedAt = a.CreatedAt.Time
	} else {
		alert.CreatedAt = time.Now().UTC()
	}
	return alert
}

type wireAccount struct {
	Connected bool   `json:"connected"`
	Login     string `json:"login"`
	Server    string `json:"server"`
	Platform  string `json:"platform"`
	Status    string `json:"status"`
	ConnState string `json:"connection_status"` // alias for status
	Message   string `json:"message"`
}

func (a wireAccount) toDomain() domain.TradingAccount {
	status := a.Status
	if status == "" {
		status = a.ConnState
	}
	return domain.TradingAccount{
		Connected: a.Connected,
		Login:     a.Login,
		Server:    a.Server,
		Platform:  a.Platform,
		Status:    status,
		Message:   a.Message,
	}
}

type wireReadiness struct {
	ReadinessScore *int   `json:"readiness_score"`
	Score          *int   `json:"score"` // alias for readiness_score
	Level          string `json:"level"`
	Message        string `json:"message"`
}

func (r wireReadiness) toDomain() domain.Readiness {
	readiness := domain.Readiness{Level: r.Level, Message: r.Message}
	if r.ReadinessScore != nil {
		readiness.Score = *r.ReadinessScore
	} else if r.Score != nil {
		readiness.Score = *r.Score
	}
	return readiness
}
