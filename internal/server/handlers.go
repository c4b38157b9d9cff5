package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tradementor/console/internal/analytics"
	"github.com/tradementor/console/internal/clients/mentor"
	"github.com/tradementor/console/internal/domain"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// apiStatus maps a backend error to the status we forward; backend API
// errors keep their original code.
func (s *Server) respondBackendError(w http.ResponseWriter, err error) {
	var apiErr *mentor.APIError
	if errors.As(err, &apiErr) {
		s.respondError(w, apiErr.StatusCode, apiErr.Error())
		return
	}
	s.respondError(w, http.StatusBadGateway, err.Error())
}

// handleHealth reports process health plus host CPU/memory load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		cpuPercent = []float64{0}
	}
	memPercent := 0.0
	if memStat, err := mem.VirtualMemory(); err == nil {
		memPercent = memStat.UsedPercent
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"stream_state":   s.deps.Stream.State(),
		"logged_in":      s.deps.Auth.IsLoggedIn(),
		"cpu_percent":    cpuPercent[0],
		"memory_percent": memPercent,
	})
}

// --- auth ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.deps.Auth.Login(r.Context(), req.Email, req.Password); err != nil {
		s.respondBackendError(w, err)
		return
	}
	s.deps.Stream.Connect(s.deps.Auth.Token())
	s.respondJSON(w, http.StatusOK, map[string]any{"user": s.deps.Auth.User()})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.deps.Auth.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		s.respondBackendError(w, err)
		return
	}
	s.deps.Stream.Connect(s.deps.Auth.Token())
	s.respondJSON(w, http.StatusCreated, map[string]any{"user": s.deps.Auth.User()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Stream.Disconnect()
	s.deps.Auth.Logout()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.IsLoggedIn() {
		s.respondJSON(w, http.StatusOK, map[string]any{"logged_in": false})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"logged_in": true,
		"user":      s.deps.Auth.User(),
	})
}

// --- trades ---

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"open":    s.deps.Trades.Open(),
		"closed":  s.deps.Trades.Closed(),
		"version": s.deps.Trades.Version(),
	})
}

func (s *Server) handleTradesRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Syncer.RefreshTrades(r.Context()); err != nil {
		s.respondBackendError(w, err)
		return
	}
	s.handleTrades(w, r)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if trade, ok := s.deps.Trades.Get(id); ok {
		s.respondJSON(w, http.StatusOK, trade)
		return
	}

	// Not in the live window; older trades the backend still knows about
	// are served through it.
	trade, err := s.deps.Backend.GetTrade(r.Context(), id)
	if err != nil {
		var apiErr *mentor.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			s.respondError(w, http.StatusNotFound, "trade not found")
			return
		}
		s.respondBackendError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, trade)
}

// --- alerts ---

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"alerts": s.deps.Alerts.All(),
		"unread": s.deps.Alerts.Unread(),
	})
}

func (s *Server) handleAlertAck(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Alerts.Acknowledge(chi.URLParam(r, "id")) {
		s.respondError(w, http.StatusNotFound, "alert not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"unread": s.deps.Alerts.Unread()})
}

func (s *Server) handleAlertAckAll(w http.ResponseWriter, r *http.Request) {
	s.deps.Alerts.AcknowledgeAll()
	s.respondJSON(w, http.StatusOK, map[string]int{"unread": 0})
}

func (s *Server) handleAlertsClear(w http.ResponseWriter, r *http.Request) {
	s.deps.Alerts.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// --- account / rules / readiness ---

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.deps.Settings.Account())
}

func (s *Server) handleAccountConnect(w http.ResponseWriter, r *http.Request) {
	var creds mentor.BrokerCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Settings.ConnectBroker(r.Context(), creds); err != nil {
		// The store keeps the rejected state; surface the reason.
		s.respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   err.Error(),
			"account": s.deps.Settings.Account(),
		})
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.Settings.Account())
}

func (s *Server) handleAccountDisconnect(w http.ResponseWriter, r *http.Request) {
	s.deps.Settings.DisconnectBroker(r.Context())
	s.respondJSON(w, http.StatusOK, s.deps.Settings.Account())
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.deps.Settings.Rules())
}

func (s *Server) handleRulesUpdate(w http.ResponseWriter, r *http.Request) {
	var rules domain.TradingRules
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Settings.SaveRules(r.Context(), rules); err != nil {
		s.respondBackendError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.Settings.Rules())
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.deps.Settings.Readiness())
}

// --- AI panel ---

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	trade, ok := s.deps.Panel.Selected()
	if !ok {
		s.respondJSON(w, http.StatusOK, map[string]any{"open": false})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"open": true, "trade": trade})
}

func (s *Server) handlePanelSelect(w http.ResponseWriter, r *http.Request) {
	trade, ok := s.deps.Trades.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "trade not found")
		return
	}
	s.deps.Panel.Select(trade)
	s.respondJSON(w, http.StatusOK, map[string]any{"open": true, "trade": trade})
}

func (s *Server) handlePanelClose(w http.ResponseWriter, r *http.Request) {
	s.deps.Panel.Close()
	w.WriteHeader(http.StatusNoContent)
}

// --- stats (backend-computed) ---

func (s *Server) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	overview, ok := s.deps.Stats.Overview()
	if !ok {
		s.respondError(w, http.StatusServiceUnavailable, "statistics not loaded yet")
		return
	}
	s.respondJSON(w, http.StatusOK, overview)
}

func (s *Server) handleStatsDaily(w http.ResponseWriter, r *http.Request) {
	daily, ok := s.deps.Stats.Daily()
	if !ok {
		s.respondError(w, http.StatusServiceUnavailable, "statistics not loaded yet")
		return
	}
	s.respondJSON(w, http.StatusOK, daily)
}

func (s *Server) handleStatsWeekly(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{"reports": s.deps.Stats.WeeklyReports()})
}

// --- locally derived analytics ---

func (s *Server) allTrades() []domain.Trade {
	open := s.deps.Trades.Open()
	return append(open, s.deps.Trades.Closed()...)
}

func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"points": analytics.EquityCurve(s.allTrades()),
	})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	var key analytics.KeyFunc
	switch by := r.URL.Query().Get("by"); by {
	case "", "symbol":
		key = analytics.BySymbol
	case "session":
		key = analytics.BySession
	case "weekday":
		key = analytics.ByWeekday
	default:
		s.respondError(w, http.StatusBadRequest, "unknown breakdown key: "+by)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"rows": analytics.Breakdown(s.allTrades(), key),
	})
}

func (s *Server) handleRDistribution(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"buckets": analytics.RDistribution(s.allTrades()),
	})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"grid":     analytics.SessionHeatmap(s.allTrades()),
		"weekdays": analytics.HeatmapWeekdays,
		"sessions": domain.Sessions,
	})
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	streak := analytics.LossStreak(s.allTrades())
	s.respondJSON(w, http.StatusOK, map[string]any{
		"streak":        streak,
		"state":         analytics.StreakStateFor(streak),
		"size_modifier": analytics.SizeModifier(streak),
	})
}

func (s *Server) handleSizing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	balance, err1 := strconv.ParseFloat(q.Get("balance"), 64)
	riskPercent, err2 := strconv.ParseFloat(q.Get("risk_percent"), 64)
	stopDistance, err3 := strconv.ParseFloat(q.Get("stop_distance"), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		s.respondError(w, http.StatusBadRequest, "balance, risk_percent and stop_distance are required numbers")
		return
	}

	streak := analytics.LossStreak(s.allTrades())
	s.respondJSON(w, http.StatusOK, map[string]any{
		"suggested_size": analytics.SuggestPositionSize(balance, riskPercent, stopDistance, streak),
		"streak":         streak,
		"size_modifier":  analytics.SizeModifier(streak),
	})
}

func (s *Server) handlePatternCosts(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"patterns": analytics.PatternCosts(s.allTrades()),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, analytics.Summarize(s.allTrades()))
}

// --- notifications / stream ---

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"notifications": s.deps.Tray.Recent(),
	})
}

func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"state": s.deps.Stream.State(),
	})
}
