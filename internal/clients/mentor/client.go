// Package mentor wraps the coaching backend: the REST API and the
// WebSocket event stream. It is the only package that sees wire shapes.
package mentor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/domain"
)

const (
	requestTimeout = 30 * time.Second

	// Read-path responses (stats, readiness) are cached briefly so page
	// mounts do not hammer the backend; mutations bypass the cache.
	statsCacheTTL = 30 * time.Second
)

// APIError is a non-2xx response with the server-provided detail message
// when one could be extracted.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// AuthResult is the outcome of a successful login or register call.
type AuthResult struct {
	AccessToken string
	User        domain.User
}

// TradeFilter narrows a trade-list fetch. Zero values mean "no filter".
type TradeFilter struct {
	From      time.Time
	To        time.Time
	Symbols   []string
	Direction domain.TradeDirection
	MinScore  *int
	MaxScore  *int
	Status    domain.TradeStatus
	Page      int
	PerPage   int
}

// TradeList is one page of trades.
type TradeList struct {
	Trades  []domain.Trade
	Total   int
	Page    int
	PerPage int
}

// BrokerCredentials are what the user enters to connect an account.
type BrokerCredentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
	Platform string `json:"platform"`
}

// StatsOverview is the backend's aggregate statistics payload, passed
// through to the view layer without reinterpretation.
type StatsOverview map[string]any

// DailyStats is the backend's per-day statistics payload.
type DailyStats map[string]any

// WeeklyReport is one AI-generated weekly performance report.
type WeeklyReport map[string]any

// Client is the REST client for the coaching backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	cache      *gocache.Cache

	mu    sync.RWMutex
	token string
}

// NewClient creates a new backend REST client.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log.With().Str("component", "mentor_client").Logger(),
		cache:      gocache.New(statsCacheTTL, time.Minute),
	}
}

// SetToken sets the bearer token used for authenticated requests.
// Passing an empty string clears it (logout).
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	if token == "" {
		c.cache.Flush()
	}
}

// InvalidateStatsCache drops cached stats responses so the next read
// hits the backend. Called when the trades store's stats version moves.
func (c *Client) InvalidateStatsCache() {
	c.cache.Flush()
}

func (c *Client) bearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do issues a request and decodes the JSON response into out (may be nil).
// Non-2xx responses become an *APIError carrying the backend's "detail"
// message when the body is decodable.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.bearerToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var detail struct {
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &detail) == nil {
			if detail.Detail != "" {
				apiErr.Message = detail.Detail
			} else if detail.Message != "" {
				apiErr.Message = detail.Message
			}
		}
		c.log.Warn().
			Int("status_code", resp.StatusCode).
			Str("path", path).
			Str("detail", apiErr.Message).
			Msg("API returned non-2xx status")
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response from %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json", out)
}

func (c *Client) putJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPut, path, bytes.NewReader(data), "application/json", out)
}

// Login authenticates with form-encoded credentials (OAuth2 password flow).
func (c *Client) Login(ctx context.Context, username, password string) (AuthResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &resp)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{
		AccessToken: resp.AccessToken,
		User:        domain.User{ID: resp.User.ID, Name: resp.User.Name, Email: resp.User.Email},
	}, nil
}

// Register creates an account and returns the initial session.
func (c *Client) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	payload := map[string]string{"name": name, "email": email, "password": password}
	var resp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := c.postJSON(ctx, "/auth/register", payload, &resp); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{
		AccessToken: resp.AccessToken,
		User:        domain.User{ID: resp.User.ID, Name: resp.User.Name, Email: resp.User.Email},
	}, nil
}

// ListTrades fetches one page of trades matching the filter.
func (c *Client) ListTrades(ctx context.Context, filter TradeFilter) (TradeList, error) {
	q := url.Values{}
	if !filter.From.IsZero() {
		q.Set("from", filter.From.UTC().Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		q.Set("to", filter.To.UTC().Format(time.RFC3339))
	}
	if len(filter.Symbols) > 0 {
		q.Set("symbols", strings.Join(filter.Symbols, ","))
	}
	if filter.Direction != "" {
		q.Set("direction", string(filter.Direction))
	}
	if filter.MinScore != nil {
		q.Set("min_score", strconv.Itoa(*filter.MinScore))
	}
	if filter.MaxScore != nil {
		q.Set("max_score", strconv.Itoa(*filter.MaxScore))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(filter.PerPage))
	}

	path := "/trades"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var resp struct {
		Trades  []wireTrade `json:"trades"`
		Total   int         `json:"total"`
		Page    int         `json:"page"`
		PerPage int         `json:"per_page"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return TradeList{}, err
	}

	list := TradeList{Total: resp.Total, Page: resp.Page, PerPage: resp.PerPage}
	list.Trades = make([]domain.Trade, 0, len(resp.Trades))
	for _, wt := range resp.Trades {
		list.Trades = append(list.Trades, wt.toDomain())
	}
	return list, nil
}

// GetTrade fetches a single trade by id.
func (c *Client) GetTrade(ctx context.Context, id string) (domain.Trade, error) {
	var wt wireTrade
	if err := c.getJSON(ctx, "/trades/"+url.PathEscape(id), &wt); err != nil {
		return domain.Trade{}, err
	}
	return wt.toDomain(), nil
}

// AccountInfo fetches the current broker connection state.
func (c *Client) AccountInfo(ctx context.Context) (domain.TradingAccount, error) {
	var wa wireAccount
	if err := c.getJSON(ctx, "/account/info", &wa); err != nil {
		return domain.TradingAccount{}, err
	}
	return wa.toDomain(), nil
}

// ConnectAccount posts broker credentials and returns the resulting
// connection state. A 200 response with connected=false is the caller's
// problem to surface; this method only reports transport/API errors.
func (c *Client) ConnectAccount(ctx context.Context, creds BrokerCredentials) (domain.TradingAccount, error) {
	var wa wireAccount
	if err := c.postJSON(ctx, "/account/connect", creds, &wa); err != nil {
		return domain.TradingAccount{}, err
	}
	return wa.toDomain(), nil
}

// DisconnectAccount asks the backend to drop the broker connection.
func (c *Client) DisconnectAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/account/disconnect", nil, "", nil)
}

// GetRules fetches the user's trading rules.
func (c *Client) GetRules(ctx context.Context) (domain.TradingRules, error) {
	var rules domain.TradingRules
	if err := c.getJSON(ctx, "/settings/rules", &rules); err != nil {
		return domain.TradingRules{}, err
	}
	return rules, nil
}

// UpdateRules saves the user's trading rules.
func (c *Client) UpdateRules(ctx context.Context, rules domain.TradingRules) (domain.TradingRules, error) {
	var saved domain.TradingRules
	if err := c.putJSON(ctx, "/settings/rules", rules, &saved); err != nil {
		return domain.TradingRules{}, err
	}
	return saved, nil
}

// StatsOverview fetches the aggregate statistics payload, served from the
// short-lived cache when fresh.
func (c *Client) StatsOverview(ctx context.Context) (StatsOverview, error) {
	if cached, ok := c.cache.Get("stats.overview"); ok {
		return cached.(StatsOverview), nil
	}
	var overview StatsOverview
	if err := c.getJSON(ctx, "/stats/overview", &overview); err != nil {
		return nil, err
	}
	c.cache.SetDefault("stats.overview", overview)
	return overview, nil
}

// StatsDaily fetches today's statistics, served from the cache when fresh.
func (c *Client) StatsDaily(ctx context.Context) (DailyStats, error) {
	if cached, ok := c.cache.Get("stats.daily"); ok {
		return cached.(DailyStats), nil
	}
	var daily DailyStats
	if err := c.getJSON(ctx, "/stats/daily", &daily); err != nil {
		return nil, err
	}
	c.cache.SetDefault("stats.daily", daily)
	return daily, nil
}

// WeeklyReports fetches the last N weekly performance reports.
func (c *Client) WeeklyReports(ctx context.Context, weeks int) ([]WeeklyReport, error) {
	cacheKey := "stats.weekly." + strconv.Itoa(weeks)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]WeeklyReport), nil
	}
	var resp struct {
		Reports []WeeklyReport `json:"reports"`
	}
	if err := c.getJSON(ctx, "/stats/weekly-reports?weeks="+strconv.Itoa(weeks), &resp); err != nil {
		return nil, err
	}
	c.cache.SetDefault(cacheKey, resp.Reports)
	return resp.Reports, nil
}

// Readiness fetches the current readiness assessment.
func (c *Client) Readiness(ctx context.Context) (domain.Readiness, error) {
	if cached, ok := c.cache.Get("analysis.readiness"); ok {
		return cached.(domain.Readiness), nil
	}
	var wr wireReadiness
	if err := c.getJSON(ctx, "/analysis/readiness", &wr); err != nil {
		return domain.Readiness{}, err
	}
	readiness := wr.toDomain()
	c.cache.SetDefault("analysis.readiness", readiness)
	return readiness, nil
}

// ListAlerts fetches the user's behavioral alerts, newest first.
func (c *Client) ListAlerts(ctx context.Context) ([]domain.BehavioralAlert, error) {
	var resp struct {
		Alerts []wireAlert `json:"alerts"`
	}
	if err := c.getJSON(ctx, "/alerts", &resp); err != nil {
		return nil, err
	}
	alerts := make([]domain.BehavioralAlert, 0, len(resp.Alerts))
	for _, wa := range resp.Alerts {
		alerts = append(alerts, wa.toDomain())
	}
	return alerts, nil
}
