// Package httpapi exposes the bridge over HTTP: webhook ingestion plus
// administrative position, account, and health endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"mtbridge/internal/domain"
	"mtbridge/internal/signal"
	"mtbridge/internal/terminal"
)

// Executor runs one signal to completion.
type Executor interface {
	Execute(ctx context.Context, payload signal.Payload) domain.ExecutionOutcome
}

// Registry is the position view behind the administrative endpoints.
type Registry interface {
	List(ctx context.Context, filter terminal.PositionFilter) ([]domain.Position, error)
	CloseAll(ctx context.Context, filter terminal.PositionFilter) ([]domain.CloseResult, error)
	CloseByVolume(ctx context.Context, sym string, volume float64) ([]domain.CloseResult, error)
}

// Accounts reads account state for /account and /health.
type Accounts interface {
	AccountInfo(ctx context.Context) (domain.AccountInfo, error)
	Connected() bool
}

// Counter reports how many signals have been processed. May be nil.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Server handles the bridge's HTTP routes.
type Server struct {
	engine   Executor
	registry Registry
	accounts Accounts
	journal  Counter
	log      *slog.Logger
}

// NewServer creates a Server. journal may be nil; /health then reports zero
// processed signals.
func NewServer(engine Executor, registry Registry, accounts Accounts, journal Counter, log *slog.Logger) *Server {
	return &Server{
		engine:   engine,
		registry: registry,
		accounts: accounts,
		journal:  journal,
		log:      log,
	}
}

// RegisterRoutes registers all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", s.handleSignal)
	mux.HandleFunc("POST /trade", s.handleSignal)
	mux.HandleFunc("GET /positions", s.handlePositions)
	mux.HandleFunc("POST /close", s.handleClose)
	mux.HandleFunc("GET /account", s.handleAccount)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var payload signal.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
		return
	}

	s.log.Info("signal received", "symbol", payload.Symbol, "action", payload.Action)
	outcome := s.engine.Execute(r.Context(), payload)

	status := http.StatusOK
	switch {
	case outcome.Success:
		status = http.StatusOK
	case outcome.State == domain.StateRejected:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Close outcomes carry per-ticket results; entries report one order.
	if outcome.Results != nil {
		json.NewEncoder(w).Encode(closeResponse{
			Success: outcome.Success,
			Message: outcome.Message,
			Results: outcome.Results,
		})
		return
	}
	json.NewEncoder(w).Encode(orderResponse{
		Success: outcome.Success,
		Ticket:  outcome.Ticket,
		Retcode: outcome.Retcode,
		Message: outcome.Message,
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	filter := terminal.PositionFilter{Symbol: r.URL.Query().Get("symbol")}
	positions, err := s.registry.List(r.Context(), filter)
	if err != nil {
		s.log.Error("listing positions", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, toPositionResponse(p))
	}
	writeJSON(w, out)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
		return
	}
	if req.Symbol == "" && req.Ticket == 0 {
		writeError(w, http.StatusBadRequest, "symbol or ticket is required")
		return
	}
	if req.Volume < 0 {
		writeError(w, http.StatusBadRequest, "volume must not be negative")
		return
	}
	if req.Volume > 0 && req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "close by volume requires a symbol")
		return
	}

	var results []domain.CloseResult
	var err error
	if req.Volume > 0 {
		results, err = s.registry.CloseByVolume(r.Context(), req.Symbol, req.Volume)
	} else {
		results, err = s.registry.CloseAll(r.Context(), terminal.PositionFilter{Symbol: req.Symbol, Ticket: req.Ticket})
	}
	if err != nil {
		s.log.Error("closing positions", "symbol", req.Symbol, "ticket", req.Ticket, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	success := true
	for _, res := range results {
		if !res.Success {
			success = false
		}
	}
	writeJSON(w, closeResponse{Success: success, Results: results})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	info, err := s.accounts.AccountInfo(r.Context())
	if err != nil {
		s.log.Error("reading account info", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, accountResponse{
		Login:      info.Login,
		Balance:    info.Balance,
		Equity:     info.Equity,
		Margin:     info.Margin,
		FreeMargin: info.FreeMargin,
		Profit:     info.Profit,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var processed int64
	if s.journal != nil {
		n, err := s.journal.Count(r.Context())
		if err != nil {
			s.log.Warn("counting processed signals", "error", err)
		} else {
			processed = n
		}
	}
	writeJSON(w, healthResponse{
		Status:           "ok",
		Connected:        s.accounts.Connected(),
		SignalsProcessed: processed,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
