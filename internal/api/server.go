// Package api provides the HTTP API for querying diplomacy state.
// GET endpoints are public (read-only assessments and reports).
// POST endpoints require a bearer token (mutation control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/statecraft/internal/diplomacy"
	"github.com/talgya/statecraft/internal/faction"
	"github.com/talgya/statecraft/internal/persistence"
	"github.com/talgya/statecraft/internal/trust"
)

// Server serves the diplomacy engines over HTTP.
type Server struct {
	Provider    *faction.StaticProvider
	Compat      *diplomacy.CompatibilityEngine
	Betrayal    *diplomacy.BetrayalRiskEngine
	Formation   *diplomacy.FormationEngine
	Negotiation *diplomacy.NegotiationEngine
	Ledger      *trust.Ledger
	Analyzer    *trust.Analyzer
	Network     *trust.NetworkAnalyzer
	DB          *persistence.Store // nil = sessions held in memory only
	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Network analysis walks every faction pair; keep it rate limited.
	networkLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/factions", s.handleFactions)
	mux.HandleFunc("/api/v1/compatibility", s.handleCompatibility)
	mux.HandleFunc("/api/v1/betrayal", s.handleBetrayal)
	mux.HandleFunc("/api/v1/opportunity", s.handleOpportunity)
	mux.HandleFunc("/api/v1/relationship", s.handleRelationship)
	mux.HandleFunc("/api/v1/network", RateLimitMiddleware(networkLimiter, s.handleNetwork))
	mux.HandleFunc("/api/v1/negotiations", s.handleNegotiations)
	mux.HandleFunc("/api/v1/negotiation/", s.handleNegotiationRoutes)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/interaction", s.adminOnly(s.handleInteraction))
	mux.HandleFunc("/api/v1/negotiation", s.adminOnly(s.handleInitiate))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no DIPLOMAT_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, faction.ErrNotFound),
		errors.Is(err, diplomacy.ErrSessionNotFound),
		errors.Is(err, trust.ErrNoRelationship):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, diplomacy.ErrValidation),
		errors.Is(err, trust.ErrValidation),
		errors.Is(err, diplomacy.ErrInsufficientParticipants),
		errors.Is(err, diplomacy.ErrTooManyParticipants),
		errors.Is(err, diplomacy.ErrNotAParticipant):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, diplomacy.ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// pairParams extracts the ?a= and ?b= faction query parameters.
func pairParams(r *http.Request) (faction.ID, faction.ID, error) {
	a := faction.ID(r.URL.Query().Get("a"))
	b := faction.ID(r.URL.Query().Get("b"))
	if a == "" || b == "" {
		return "", "", fmt.Errorf("%w: query parameters a and b are required", diplomacy.ErrValidation)
	}
	return a, b, nil
}

func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	ids := s.Provider.IDs()
	result := make([]faction.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Provider.Faction(id)
		if err != nil {
			writeError(w, err)
			return
		}
		result = append(result, snap)
	}
	writeJSON(w, result)
}

func (s *Server) handleCompatibility(w http.ResponseWriter, r *http.Request) {
	a, b, err := pairParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	assessment, err := s.Compat.Evaluate(a, b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, assessment)
}

func (s *Server) handleBetrayal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := faction.ID(q.Get("faction"))
	if id == "" {
		writeError(w, fmt.Errorf("%w: query parameter faction is required", diplomacy.ErrValidation))
		return
	}

	var allies []faction.ID
	if raw := q.Get("allies"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				allies = append(allies, faction.ID(part))
			}
		}
	}

	factors := diplomacy.ExternalFactors{
		UnderPressure:     q.Get("pressure") == "true",
		ResourceShortage:  q.Get("shortage") == "true",
		BetterOpportunity: q.Get("opportunity") == "true",
	}
	if d := q.Get("defeats"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: defeats must be a non-negative integer", diplomacy.ErrValidation))
			return
		}
		factors.RecentDefeats = n
	}

	assessment, err := s.Betrayal.Assess(id, allies, factors)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, assessment)
}

func (s *Server) handleOpportunity(w http.ResponseWriter, r *http.Request) {
	a, b, err := pairParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	opp, err := s.Formation.EvaluateOpportunity(a, b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, opp)
}

func (s *Server) handleRelationship(w http.ResponseWriter, r *http.Request) {
	a, b, err := pairParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := s.Analyzer.Summarize(a, b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, summary)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	report, err := s.Network.Analyze()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleNegotiations(w http.ResponseWriter, r *http.Request) {
	id := faction.ID(r.URL.Query().Get("faction"))
	summaries := s.Negotiation.ListActive(id)
	if summaries == nil {
		summaries = []diplomacy.SessionSummary{}
	}
	writeJSON(w, summaries)
}

// handleNegotiationRoutes dispatches /api/v1/negotiation/:id and
// /api/v1/negotiation/:id/advance.
func (s *Server) handleNegotiationRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	// /api/v1/negotiation/:id → parts[0]="" [1]="api" [2]="v1" [3]="negotiation" [4]=id
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	id := parts[4]

	if len(parts) >= 6 && parts[5] == "advance" {
		s.adminOnly(func(w http.ResponseWriter, r *http.Request) {
			s.handleAdvance(w, r, id)
		})(w, r)
		return
	}

	session, err := s.Negotiation.Status(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, session)
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var rec trust.Interaction
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	ev, err := s.Ledger.RecordInteraction(rec)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("interaction recorded", "kind", rec.Kind, "initiator", rec.Initiator, "target", rec.Target)
	writeJSON(w, ev)
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Initiator faction.ID               `json:"initiator"`
		Targets   []faction.ID             `json:"targets"`
		Type      diplomacy.AllianceType   `json:"type"`
		Terms     *diplomacy.TermOverrides `json:"terms,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	session, err := s.Negotiation.Initiate(req.Initiator, req.Targets, req.Type, req.Terms)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistSessions()
	slog.Info("negotiation initiated", "session", session.ID, "type", session.Type, "participants", len(session.Participants))
	writeJSON(w, session)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Actor  faction.ID             `json:"actor"`
		Action diplomacy.Action       `json:"action"`
		Params diplomacy.ActionParams `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := s.Negotiation.Advance(sessionID, req.Actor, req.Action, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistSessions()
	writeJSON(w, result)
}

// persistSessions flushes the negotiation arena to the database, when one is
// attached. Failures are logged, not surfaced; in-memory state is canonical.
func (s *Server) persistSessions() {
	if s.DB == nil {
		return
	}
	if err := s.DB.SaveSessions(s.Negotiation.Sessions()); err != nil {
		slog.Error("session persistence failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
