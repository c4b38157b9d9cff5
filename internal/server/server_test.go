package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradementor/console/internal/clients/mentor"
	"github.com/tradementor/console/internal/domain"
	"github.com/tradementor/console/internal/router"
	"github.com/tradementor/console/internal/storage"
	"github.com/tradementor/console/internal/stores"
)

// fakeBackend implements every backend-facing interface the stores need.
type fakeBackend struct {
	authResult    mentor.AuthResult
	connectResult domain.TradingAccount
	open          []domain.Trade
	closed        []domain.Trade
	token         string
}

func (f *fakeBackend) Login(context.Context, string, string) (mentor.AuthResult, error) {
	return f.authResult, nil
}

func (f *fakeBackend) Register(context.Context, string, string, string) (mentor.AuthResult, error) {
	return f.authResult, nil
}

func (f *fakeBackend) SetToken(token string) { f.token = token }

func (f *fakeBackend) AccountInfo(context.Context) (domain.TradingAccount, error) {
	return f.connectResult, nil
}

func (f *fakeBackend) ConnectAccount(context.Context, mentor.BrokerCredentials) (domain.TradingAccount, error) {
	return f.connectResult, nil
}

func (f *fakeBackend) DisconnectAccount(context.Context) error { return nil }

func (f *fakeBackend) GetRules(context.Context) (domain.TradingRules, error) {
	return domain.TradingRules{}, nil
}

func (f *fakeBackend) UpdateRules(_ context.Context, rules domain.TradingRules) (domain.TradingRules, error) {
	return rules, nil
}

func (f *fakeBackend) Readiness(context.Context) (domain.Readiness, error) {
	return domain.Readiness{}, nil
}

func (f *fakeBackend) ListTrades(_ context.Context, filter mentor.TradeFilter) (mentor.TradeList, error) {
	if filter.Status == domain.StatusOpen {
		return mentor.TradeList{Trades: f.open}, nil
	}
	return mentor.TradeList{Trades: f.closed}, nil
}

func (f *fakeBackend) ListAlerts(context.Context) ([]domain.BehavioralAlert, error) {
	return nil, nil
}

func (f *fakeBackend) GetTrade(_ context.Context, id string) (domain.Trade, error) {
	for _, t := range append(append([]domain.Trade{}, f.open...), f.closed...) {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Trade{}, &mentor.APIError{StatusCode: http.StatusNotFound, Message: "trade not found"}
}

type memCreds struct {
	token string
	user  domain.User
	saved bool
}

func (m *memCreds) SaveCredentials(token string, user domain.User) error {
	m.token, m.user, m.saved = token, user, true
	return nil
}

func (m *memCreds) LoadCredentials() (string, domain.User, error) {
	if !m.saved {
		return "", domain.User{}, storage.ErrNotFound
	}
	return m.token, m.user, nil
}

func (m *memCreds) ClearCredentials() error {
	m.saved = false
	return nil
}

type fakeStream struct {
	state     mentor.ConnState
	lastToken string
}

func (f *fakeStream) State() mentor.ConnState { return f.state }
func (f *fakeStream) Connect(token string)    { f.lastToken = token; f.state = mentor.StateOpen }
func (f *fakeStream) Disconnect()             { f.state = mentor.StateIdle }

func testServer(t *testing.T, backend *fakeBackend) (*Server, Deps, *fakeStream) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	trades := stores.NewTradesStore(log)
	alerts := stores.NewAlertsStore(log)
	stream := &fakeStream{state: mentor.StateIdle}

	deps := Deps{
		Auth:     stores.NewAuthStore(backend, &memCreds{}, log),
		Trades:   trades,
		Alerts:   alerts,
		Settings: stores.NewSettingsStore(backend, log),
		Panel:    stores.NewAIPanelStore(log),
		Stats:    stores.NewStatsStore(nil, trades, log),
		Syncer:   stores.NewSyncer(backend, trades, alerts, log),
		Stream:   stream,
		Backend:  backend,
		Tray:     router.NewMemoryNotifier(10),
	}
	return New(0, deps, true, log), deps, stream
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLoginStartsStream(t *testing.T) {
	backend := &fakeBackend{authResult: mentor.AuthResult{
		AccessToken: "tok-1",
		User:        domain.User{ID: "u1", Email: "dana@example.com"},
	}}
	srv, _, stream := testServer(t, backend)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "dana@example.com", "password": "pw"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", stream.lastToken)
	assert.Equal(t, mentor.StateOpen, stream.state)
}

func TestLogoutStopsStream(t *testing.T) {
	backend := &fakeBackend{authResult: mentor.AuthResult{AccessToken: "tok-1"}}
	srv, deps, stream := testServer(t, backend)
	require.NoError(t, deps.Auth.Login(context.Background(), "a", "b"))
	stream.Connect("tok-1")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mentor.StateIdle, stream.state)
	assert.False(t, deps.Auth.IsLoggedIn())
}

func TestTradesEndpointReturnsStoreState(t *testing.T) {
	srv, deps, _ := testServer(t, &fakeBackend{})
	deps.Trades.ApplyOpened(domain.Trade{ID: "t1", Symbol: "EURUSD", Status: domain.StatusOpen})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/trades/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Open    []domain.Trade `json:"open"`
		Version uint64         `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Open, 1)
	assert.Equal(t, "t1", resp.Open[0].ID)
	assert.NotZero(t, resp.Version)
}

func TestTradesRefreshInstallsFetchedState(t *testing.T) {
	backend := &fakeBackend{open: []domain.Trade{{ID: "t-remote", Status: domain.StatusOpen}}}
	srv, deps, _ := testServer(t, backend)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/trades/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, deps.Trades.Open(), 1)
	assert.Equal(t, "t-remote", deps.Trades.Open()[0].ID)
}

func TestTradeNotFound(t *testing.T) {
	srv, _, _ := testServer(t, &fakeBackend{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/trades/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTradeFetchedFromBackendOnStoreMiss(t *testing.T) {
	backend := &fakeBackend{closed: []domain.Trade{{ID: "t-old", Symbol: "GBPUSD", Status: domain.StatusClosed}}}
	srv, deps, _ := testServer(t, backend)
	require.Empty(t, deps.Trades.Closed(), "trade is outside the live window")

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/trades/t-old", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "GBPUSD")
}

func TestAlertAcknowledge(t *testing.T) {
	srv, deps, _ := testServer(t, &fakeBackend{})
	deps.Alerts.Add(domain.BehavioralAlert{ID: "a1", Pattern: domain.PatternOvertrading})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/alerts/a1/ack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, deps.Alerts.Unread())

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/alerts/ghost/ack", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountConnectRejectedReturns422(t *testing.T) {
	backend := &fakeBackend{connectResult: domain.TradingAccount{
		Connected: false,
		Status:    "invalid_credentials",
		Message:   "login rejected by broker",
	}}
	srv, _, _ := testServer(t, backend)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/account/connect",
		mentor.BrokerCredentials{Login: "123"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "login rejected by broker")
}

func TestBreakdownEndpoint(t *testing.T) {
	srv, deps, _ := testServer(t, &fakeBackend{})
	pnl := 10.0
	deps.Trades.ApplyClosed(domain.Trade{ID: "t1", Symbol: "EURUSD", Status: domain.StatusClosed, PnL: &pnl})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/analytics/breakdown?by=symbol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EURUSD")

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/analytics/breakdown?by=astrology", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSizingEndpointValidatesParams(t *testing.T) {
	srv, _, _ := testServer(t, &fakeBackend{})

	rec := doJSON(t, srv.Handler(), http.MethodGet,
		"/api/v1/analytics/sizing?balance=10000&risk_percent=1&stop_distance=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "suggested_size")

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/analytics/sizing?balance=oops", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPanelSelectUnknownTrade(t *testing.T) {
	srv, _, _ := testServer(t, &fakeBackend{})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/panel/select/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsUnavailableBeforeFirstRefresh(t *testing.T) {
	srv, _, _ := testServer(t, &fakeBackend{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/stats/overview", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamStateEndpoint(t *testing.T) {
	srv, _, stream := testServer(t, &fakeBackend{})
	stream.state = mentor.StateBackoff

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/stream", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "backoff")
}
