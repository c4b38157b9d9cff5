package mentor

import (
	"context"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// ConnState is the stream client's connection lifecycle state.
type ConnState string

const (
	StateIdle       ConnState = "idle"
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateBackoff    ConnState = "backoff"
	StateExhausted  ConnState = "exhausted"
)

const (
	defaultDialTimeout   = 30 * time.Second
	defaultBaseBackoff   = 1 * time.Second
	defaultMaxBackoff    = 30 * time.Second
	defaultMaxAttempts   = 10
	subscriberBufferSize = 64
)

// wsConn is the slice of *websocket.Conn the stream client uses.
// Tests substitute scripted connections through DialFunc.
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc opens a WebSocket connection to the given URL.
type DialFunc func(ctx context.Context, wsURL string) (wsConn, error)

func defaultDial(ctx context.Context, wsURL string) (wsConn, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// StreamOptions tunes reconnection behavior. The zero value selects
// production defaults.
type StreamOptions struct {
	Dial        DialFunc
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxAttempts int
}

// StreamClient maintains the push-event connection to the backend. It
// reconnects with exponential backoff after unexpected drops, gives up
// quietly after MaxAttempts consecutive failures, and fans decoded events
// out to subscribers. All methods are safe for concurrent use.
type StreamClient struct {
	wsURL       string
	dial        DialFunc
	baseBackoff time.Duration
	maxBackoff  time.Duration
	maxAttempts int
	log         zerolog.Logger

	mu         sync.RWMutex
	state      ConnState
	conn       wsConn
	cancel     context.CancelFunc
	generation uint64

	subMu   sync.RWMutex
	subs    map[uint64]chan Event
	nextSub uint64

	// OnStateChange, when set before Connect, is invoked after every state
	// transition. Called without internal locks held.
	OnStateChange func(ConnState)
}

// NewStreamClient creates a stream client for the given WebSocket URL.
func NewStreamClient(wsURL string, log zerolog.Logger, opts StreamOptions) *StreamClient {
	sc := &StreamClient{
		wsURL:       wsURL,
		dial:        opts.Dial,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		maxAttempts: opts.MaxAttempts,
		log:         log.With().Str("component", "mentor_stream").Logger(),
		state:       StateIdle,
		subs:        make(map[uint64]chan Event),
	}
	if sc.dial == nil {
		sc.dial = defaultDial
	}
	if sc.baseBackoff <= 0 {
		sc.baseBackoff = defaultBaseBackoff
	}
	if sc.maxBackoff <= 0 {
		sc.maxBackoff = defaultMaxBackoff
	}
	if sc.maxAttempts <= 0 {
		sc.maxAttempts = defaultMaxAttempts
	}
	return sc
}

// State returns the current connection state.
func (sc *StreamClient) State() ConnState {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.state
}

// Subscribe registers an event consumer. Events that arrive while the
// subscriber's buffer is full are dropped for that subscriber. The returned
// function unsubscribes and closes the channel.
func (sc *StreamClient) Subscribe() (<-chan Event, func()) {
	sc.subMu.Lock()
	id := sc.nextSub
	sc.nextSub++
	ch := make(chan Event, subscriberBufferSize)
	sc.subs[id] = ch
	sc.subMu.Unlock()

	unsubscribe := func() {
		sc.subMu.Lock()
		if existing, ok := sc.subs[id]; ok {
			delete(sc.subs, id)
			close(existing)
		}
		sc.subMu.Unlock()
	}
	return ch, unsubscribe
}

// Connect starts (or restarts) the connection loop with the given access
// token. Calling Connect again supersedes any previous session: the old
// connection is torn down and its attempt counter discarded.
func (sc *StreamClient) Connect(token string) {
	sc.mu.Lock()
	sc.teardownLocked()
	sc.generation++
	gen := sc.generation
	ctx, cancel := context.WithCancel(context.Background())
	sc.cancel = cancel
	sc.mu.Unlock()

	sc.log.Info().Msg("Starting event stream connection")
	go sc.run(ctx, gen, token)
}

// Disconnect tears down the connection and returns the client to Idle.
// Safe to call in any state.
func (sc *StreamClient) Disconnect() {
	sc.mu.Lock()
	sc.teardownLocked()
	sc.generation++
	sc.mu.Unlock()
	sc.setState(StateIdle)
	sc.log.Info().Msg("Event stream disconnected")
}

// teardownLocked cancels the running loop and closes the live socket.
// Caller holds sc.mu.
func (sc *StreamClient) teardownLocked() {
	if sc.cancel != nil {
		sc.cancel()
		sc.cancel = nil
	}
	if sc.conn != nil {
		sc.conn.Close(websocket.StatusNormalClosure, "")
		sc.conn = nil
	}
}

// current reports whether gen is still the live connection generation.
// A stale generation must stop delivering events and mutating state.
func (sc *StreamClient) current(gen uint64) bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.generation == gen
}

func (sc *StreamClient) setStateIfCurrent(gen uint64, state ConnState) bool {
	sc.mu.Lock()
	if sc.generation != gen {
		sc.mu.Unlock()
		return false
	}
	sc.state = state
	cb := sc.OnStateChange
	sc.mu.Unlock()
	if cb != nil {
		cb(state)
	}
	return true
}

func (sc *StreamClient) setState(state ConnState) {
	sc.mu.Lock()
	sc.state = state
	cb := sc.OnStateChange
	sc.mu.Unlock()
	if cb != nil {
		cb(state)
	}
}

// run is the connection loop for one generation. It owns the attempt
// counter: successes reset it, and maxAttempts consecutive failures end the
// loop in Exhausted without further retries.
func (sc *StreamClient) run(ctx context.Context, gen uint64, token string) {
	streamURL := sc.wsURL + "?token=" + url.QueryEscape(token)
	attempt := 0

	for {
		if !sc.setStateIfCurrent(gen, StateConnecting) {
			return
		}

		dialCtx, dialCancel := context.WithTimeout(ctx, defaultDialTimeout)
		conn, err := sc.dial(dialCtx, streamURL)
		dialCancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			if attempt >= sc.maxAttempts {
				sc.log.Warn().
					Int("attempts", attempt).
					Msg("Event stream reconnection attempts exhausted")
				sc.setStateIfCurrent(gen, StateExhausted)
				return
			}
			delay := sc.backoffDelay(attempt)
			sc.log.Warn().Err(err).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Event stream connection failed, backing off")
			if !sc.setStateIfCurrent(gen, StateBackoff) {
				return
			}
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return
			}
		}

		sc.mu.Lock()
		if sc.generation != gen {
			sc.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		sc.conn = conn
		sc.mu.Unlock()

		attempt = 0
		if !sc.setStateIfCurrent(gen, StateOpen) {
			return
		}
		sc.log.Info().Msg("Event stream connected")

		sc.readLoop(ctx, gen, conn)

		if ctx.Err() != nil || !sc.current(gen) {
			return
		}

		// Unexpected drop. Clear the dead socket and fall through to
		// the reconnect path; the first retry counts as attempt 1.
		sc.mu.Lock()
		if sc.conn == conn {
			sc.conn = nil
		}
		sc.mu.Unlock()
	}
}

// readLoop reads frames until the connection drops or the generation is
// superseded. Malformed frames are logged and skipped.
func (sc *StreamClient) readLoop(ctx context.Context, gen uint64, conn wsConn) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && sc.current(gen) {
				closeStatus := websocket.CloseStatus(err)
				if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
					sc.log.Info().Int("status", int(closeStatus)).Msg("Event stream closed by server")
				} else {
					sc.log.Warn().Err(err).Msg("Event stream read error")
				}
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		event, err := decodeEvent(data)
		if err != nil {
			sc.log.Warn().Err(err).Str("frame", string(data)).Msg("Dropping malformed event frame")
			continue
		}
		if event == nil {
			// Unknown event kind; forward compatibility.
			continue
		}
		if !sc.current(gen) {
			return
		}
		sc.publish(event)
	}
}

func (sc *StreamClient) publish(event Event) {
	sc.subMu.RLock()
	defer sc.subMu.RUnlock()
	for _, ch := range sc.subs {
		select {
		case ch <- event:
		default:
			sc.log.Warn().Str("event", Kind(event)).Msg("Subscriber buffer full, dropping event")
		}
	}
}

func (sc *StreamClient) backoffDelay(attempt int) time.Duration {
	delay := float64(sc.baseBackoff) * math.Pow(2, float64(attempt-1))
	if delay > float64(sc.maxBackoff) {
		delay = float64(sc.maxBackoff)
	}
	return time.Duration(delay)
}
