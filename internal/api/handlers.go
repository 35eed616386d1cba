package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liamashdown/arbwatch/internal/accounts"
	"github.com/liamashdown/arbwatch/internal/arbitrage"
	"github.com/liamashdown/arbwatch/internal/metrics"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.RecordHealthCheck(true)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.deps.DB.Ping(ctx); err != nil {
			metrics.RecordHealthCheck(false)
			s.respondError(w, http.StatusServiceUnavailable, "database unavailable", err)
			return
		}
	}

	metrics.RecordHealthCheck(true)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	primary, ok := s.deps.Providers.Primary()
	resp := map[string]interface{}{
		"providers": s.deps.Providers.Providers(),
		"latency":   s.deps.Providers.CompareLatency(),
		"primary":   nil,
	}
	if ok {
		resp["primary"] = primary
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleOpportunities returns the latest scan for ?sport=, or for every sport
func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	sport := r.URL.Query().Get("sport")
	if sport == "" {
		snaps := s.deps.Opportunities.LatestAll()
		all := make([]arbitrage.Opportunity, 0)
		for _, snap := range snaps {
			all = append(all, snap.Opportunities...)
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"scans":         snaps,
			"opportunities": all,
			"count":         len(all),
		})
		return
	}

	snap, ok := s.deps.Opportunities.Latest(sport)
	if !ok {
		s.respondError(w, http.StatusNotFound, "sport has not been scanned", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"scan":          snap,
		"opportunities": snap.Opportunities,
		"count":         len(snap.Opportunities),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sport := r.URL.Query().Get("sport")
	limit := parseIntParam(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}

	recs, err := s.deps.History.ListOpportunities(ctx, sport, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list opportunities", err)
		return
	}

	items := make([]map[string]interface{}, 0, len(recs))
	for _, rec := range recs {
		item := map[string]interface{}{
			"id":                        rec.ID,
			"sport":                     rec.Sport,
			"event_name":                rec.EventName,
			"market":                    rec.Market,
			"profit_percentage":         rec.ProfitPercentage,
			"total_implied_probability": rec.TotalImpliedProbability,
			"risk_level":                rec.RiskLevel,
			"bookmakers":                splitNonEmpty(rec.Bookmakers),
			"detected_at":               time.Unix(rec.DetectedTS, 0).UTC(),
		}
		var opp arbitrage.Opportunity
		if err := json.Unmarshal([]byte(rec.Payload), &opp); err == nil {
			item["opportunity"] = opp
		}
		items = append(items, item)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": items,
		"count":         len(items),
		"limit":         limit,
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Accounts.List(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list accounts", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": list,
		"count":    len(list),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h, err := s.deps.Accounts.Lookup(r.Context(), name)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		s.respondError(w, http.StatusNotFound, "account not found", nil)
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get account", err)
		return
	}
	respondJSON(w, http.StatusOK, h)
}

type accountUpdate struct {
	Status       string   `json:"status"`
	StealthScore *float64 `json:"stealth_score"`
}

func (s *Server) handlePutAccount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req accountUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.StealthScore == nil {
		s.respondError(w, http.StatusBadRequest, "stealth_score is required", nil)
		return
	}

	h, err := s.deps.Accounts.SetHealth(r.Context(), name, req.Status, *req.StealthScore)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidAccount) {
			s.respondError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to update account", err)
		return
	}
	respondJSON(w, http.StatusOK, h)
}

// handleInvalidateCache clears one cached account (?bookmaker=) or all of them
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	bookmaker := r.URL.Query().Get("bookmaker")
	if err := s.deps.Accounts.Invalidate(r.Context(), bookmaker); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to invalidate cache", err)
		return
	}

	scope := bookmaker
	if scope == "" {
		scope = "all"
	}
	respondJSON(w, http.StatusOK, map[string]string{"invalidated": scope})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := map[string]string{"error": message}
	if err != nil {
		s.log.WithError(err).Warn(message)
		resp["details"] = err.Error()
	}
	respondJSON(w, status, resp)
}

func parseIntParam(r *http.Request, key string, defaultValue int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
