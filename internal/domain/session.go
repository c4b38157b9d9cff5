package domain

import "time"

// Session is the trading session bucket a timestamp falls into.
type Session string

const (
	SessionTokyo   Session = "tokyo"
	SessionLondon  Session = "london"
	SessionNewYork Session = "new_york"
	SessionSydney  Session = "sydney"
)

// Sessions lists all buckets in display order.
var Sessions = []Session{SessionTokyo, SessionLondon, SessionNewYork, SessionSydney}

// SessionAt buckets a timestamp by UTC hour. The boundaries are fixed
// business logic shared by every session-based analytic:
// [0,8) Tokyo, [8,12) London, [12,21) New York, everything else Sydney.
func SessionAt(t time.Time) Session {
	switch hour := t.UTC().Hour(); {
	case hour < 8:
		return SessionTokyo
	case hour < 12:
		return SessionLondon
	case hour < 21:
		return SessionNewYork
	default:
		return SessionSydney
	}
}
