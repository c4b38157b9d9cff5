// Package domain defines the canonical entity shapes for the console.
// Wire payloads from the coaching backend are mapped into these types at the
// ingestion boundary (internal/clients/mentor); nothing past that boundary
// carries wire-field ambiguity.
package domain

import "time"

// TradeDirection is the side of a position.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "BUY"
	DirectionSell TradeDirection = "SELL"
)

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen      TradeStatus = "open"
	StatusClosed    TradeStatus = "closed"
	StatusCancelled TradeStatus = "cancelled"
)

// Severity grades a behavioral alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// PatternType identifies a behavioral pattern detector.
type PatternType string

const (
	PatternRevengeTrading   PatternType = "revenge_trading"
	PatternOvertrading      PatternType = "overtrading"
	PatternFOMOEntry        PatternType = "fomo_entry"
	PatternEarlyExit        PatternType = "early_exit"
	PatternMovedStopLoss    PatternType = "moved_stop_loss"
	PatternIgnoredRules     PatternType = "ignored_rules"
	PatternSessionViolation PatternType = "session_violation"
	PatternSizeViolation    PatternType = "size_violation"
	PatternEmotionalTrading PatternType = "emotional_trading"
	PatternChasingLosses    PatternType = "chasing_losses"
)

// BehavioralFlag is one detector hit attached to a trade.
type BehavioralFlag struct {
	Pattern    PatternType `json:"pattern"`
	Message    string      `json:"message"`
	Severity   Severity    `json:"severity"`
	DetectedAt time.Time   `json:"detected_at"`
}

// Trade represents one broker position, open or closed.
//
// Exit price, close time, and realized P&L are present together or absent
// together; status "closed" implies all three are set. AI score/analysis and
// behavioral flags may arrive independently at any point; the AI review only
// after close.
type Trade struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Direction  TradeDirection   `json:"direction"`
	EntryPrice float64          `json:"entry_price"`
	ExitPrice  *float64         `json:"exit_price,omitempty"`
	StopLoss   *float64         `json:"stop_loss,omitempty"`
	TakeProfit *float64         `json:"take_profit,omitempty"`
	LotSize    float64          `json:"lot_size"`
	PnL        *float64         `json:"pnl,omitempty"`
	PnLR       *float64         `json:"pnl_r,omitempty"`
	Status     TradeStatus      `json:"status"`
	OpenTime   time.Time        `json:"open_time"`
	CloseTime  *time.Time       `json:"close_time,omitempty"`
	Session    Session          `json:"session"`
	AIScore    *int             `json:"ai_score,omitempty"`
	AIAnalysis map[string]any   `json:"ai_analysis,omitempty"`
	AIReview   map[string]any   `json:"ai_review,omitempty"`
	Flags      []BehavioralFlag `json:"behavioral_flags,omitempty"`
}

// IsClosed reports whether the trade has completed its lifecycle.
func (t *Trade) IsClosed() bool {
	return t.Status == StatusClosed
}

// TradePatch carries the incrementally-arriving AI fields for a trade.
// Nil fields are left untouched when applied, so a score-only update never
// clobbers a previously delivered analysis or review.
type TradePatch struct {
	AIScore    *int
	AIAnalysis map[string]any
	AIReview   map[string]any
}

// Apply shallow-merges the patch into the trade.
func (p TradePatch) Apply(t *Trade) {
	if p.AIScore != nil {
		t.AIScore = p.AIScore
	}
	if p.AIAnalysis != nil {
		t.AIAnalysis = p.AIAnalysis
	}
	if p.AIReview != nil {
		t.AIReview = p.AIReview
	}
}

// BehavioralAlert is a notification that a pattern detector fired.
type BehavioralAlert struct {
	ID           string      `json:"id"`
	TradeID      string      `json:"trade_id,omitempty"`
	Pattern      PatternType `json:"pattern"`
	Message      string      `json:"message"`
	Severity     Severity    `json:"severity"`
	CreatedAt    time.Time   `json:"created_at"`
	Acknowledged bool        `json:"acknowledged"`
}

// TradingAccount is the link to one external broker account.
// When Connected is false the remaining fields may be stale cached values
// and must not be trusted by dependent views.
type TradingAccount struct {
	Connected bool   `json:"connected"`
	Login     string `json:"login"`
	Server    string `json:"server"`
	Platform  string `json:"platform"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// TradingRules holds the user's self-imposed discipline rules.
type TradingRules struct {
	MaxRiskPercent       float64  `json:"max_risk_percent"`
	MinRiskReward        float64  `json:"min_risk_reward"`
	MaxTradesPerDay      int      `json:"max_trades_per_day"`
	MaxDailyLossPercent  float64  `json:"max_daily_loss_percent"`
	MaxConcurrentTrades  int      `json:"max_concurrent_trades"`
	BlockedSessions      []string `json:"blocked_sessions"`
	AllowedSymbols       []string `json:"allowed_symbols"`
	CustomChecklist      []string `json:"custom_checklist"`
	MinTimeBetweenTrades int      `json:"min_time_between_trades"`
}

// Readiness is the backend's 0-100 assessment of whether the trader should
// be trading right now.
type Readiness struct {
	Score   int    `json:"score"`
	Level   string `json:"level"`
	Message string `json:"message,omitempty"`
}

// User is the authenticated account holder.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
