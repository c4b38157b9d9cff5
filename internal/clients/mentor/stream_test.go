package mentor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

// fakeConn is a scripted WebSocket connection fed by the test.
type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) push(frame string) { c.frames <- []byte(frame) }

// drop simulates the server killing the connection.
func (c *fakeConn) drop() { c.once.Do(func() { close(c.done) }) }

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case frame := <-c.frames:
		return websocket.MessageText, frame, nil
	case <-c.done:
		return 0, nil, errors.New("connection reset")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Close(code websocket.StatusCode, reason string) error {
	c.drop()
	return nil
}

func testStream(t *testing.T, dial DialFunc, maxAttempts int) *StreamClient {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	sc := NewStreamClient("ws://backend/ws/trades", log, StreamOptions{
		Dial:        dial,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		MaxAttempts: maxAttempts,
	})
	t.Cleanup(sc.Disconnect)
	return sc
}

func waitForState(t *testing.T, sc *StreamClient, want ConnState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sc.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, got %s", want, sc.State())
}

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestStream_DeliversEvents(t *testing.T) {
	conn := newFakeConn()
	dial := func(ctx context.Context, wsURL string) (wsConn, error) {
		assert.True(t, strings.HasSuffix(wsURL, "?token=tok-1"))
		return conn, nil
	}
	sc := testStream(t, dial, 10)
	events, unsub := sc.Subscribe()
	defer unsub()

	sc.Connect("tok-1")
	waitForState(t, sc, StateOpen)

	conn.push(`{"type":"trade_opened","trade":{"id":"t1","direction":"BUY","status":"open"}}`)
	ev := recvEvent(t, events)
	opened, ok := ev.(TradeOpenedEvent)
	require.True(t, ok)
	assert.Equal(t, "t1", opened.Trade.ID)
}

func TestStream_SkipsMalformedAndUnknownFrames(t *testing.T) {
	conn := newFakeConn()
	sc := testStream(t, func(context.Context, string) (wsConn, error) { return conn, nil }, 10)
	events, unsub := sc.Subscribe()
	defer unsub()

	sc.Connect("tok")
	waitForState(t, sc, StateOpen)

	conn.push(`{not json`)
	conn.push(`{"type":"server_gossip"}`)
	conn.push(`{"type":"behavioral_alert","alert":{"type":"overtrading","message":"m"}}`)

	ev := recvEvent(t, events)
	_, ok := ev.(BehavioralAlertEvent)
	assert.True(t, ok, "only the valid frame should be delivered")
	assert.Equal(t, StateOpen, sc.State())
}

func TestStream_ExhaustsAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	dial := func(context.Context, string) (wsConn, error) {
		attempts.Add(1)
		return nil, errors.New("refused")
	}
	sc := testStream(t, dial, 3)

	sc.Connect("tok")
	waitForState(t, sc, StateExhausted)
	assert.Equal(t, int32(3), attempts.Load())

	// Exhausted is terminal for this session; no background retries.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestStream_ReconnectsAfterDrop(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	var dials atomic.Int32
	dial := func(context.Context, string) (wsConn, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}
	sc := testStream(t, dial, 10)
	events, unsub := sc.Subscribe()
	defer unsub()

	sc.Connect("tok")
	waitForState(t, sc, StateOpen)

	// The state reads Open until the read loop observes the drop, so wait
	// for the second dial rather than for the state.
	first.drop()
	deadline := time.Now().Add(2 * time.Second)
	for dials.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.GreaterOrEqual(t, dials.Load(), int32(2))
	waitForState(t, sc, StateOpen)

	second.push(`{"type":"readiness_update","readiness_score":80,"level":"good","message":""}`)
	ev := recvEvent(t, events)
	_, ok := ev.(ReadinessUpdateEvent)
	assert.True(t, ok)
}

func TestStream_ConnectSupersedesPreviousSession(t *testing.T) {
	connA := newFakeConn()
	connB := newFakeConn()
	var tokens []string
	var mu sync.Mutex
	dial := func(ctx context.Context, wsURL string) (wsConn, error) {
		mu.Lock()
		tokens = append(tokens, wsURL[strings.Index(wsURL, "=")+1:])
		n := len(tokens)
		mu.Unlock()
		if n == 1 {
			return connA, nil
		}
		return connB, nil
	}
	sc := testStream(t, dial, 10)
	events, unsub := sc.Subscribe()
	defer unsub()

	sc.Connect("tok-a")
	waitForState(t, sc, StateOpen)

	sc.Connect("tok-b")
	waitForState(t, sc, StateOpen)

	// A frame arriving on the superseded connection must not be delivered.
	connA.push(`{"type":"trade_opened","trade":{"id":"stale","direction":"BUY"}}`)
	connB.push(`{"type":"trade_opened","trade":{"id":"fresh","direction":"BUY"}}`)

	ev := recvEvent(t, events)
	opened, ok := ev.(TradeOpenedEvent)
	require.True(t, ok)
	assert.Equal(t, "fresh", opened.Trade.ID)

	select {
	case extra := <-events:
		t.Fatalf("unexpected extra event: %#v", extra)
	case <-time.After(50 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"tok-a", "tok-b"}, tokens)
}

func TestStream_DisconnectReturnsToIdle(t *testing.T) {
	conn := newFakeConn()
	sc := testStream(t, func(context.Context, string) (wsConn, error) { return conn, nil }, 10)

	sc.Connect("tok")
	waitForState(t, sc, StateOpen)

	sc.Disconnect()
	assert.Equal(t, StateIdle, sc.State())
}

func TestStream_UnsubscribeClosesChannel(t *testing.T) {
	sc := testStream(t, func(context.Context, string) (wsConn, error) {
		return newFakeConn(), nil
	}, 10)

	events, unsub := sc.Subscribe()
	unsub()
	_, open := <-events
	assert.False(t, open)

	// Idempotent.
	unsub()
}
