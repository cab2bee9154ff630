package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"crashengine/config"
	"crashengine/db"
	"crashengine/engine"
	"crashengine/game"
)

// Game is the engine surface the HTTP API reads and drives.
type Game interface {
	PlaceBet(amount float64, kind game.SideBetKind) error
	CashOut() (float64, bool)
	Snapshot() engine.Frame
	History() []game.HistoryEntry
	FindRound(id string) (game.HistoryEntry, bool)
	SideBets() []game.SideBet
	Config() config.Game
}

// Archive serves rounds older than the in-memory history.
type Archive interface {
	GetRound(ctx context.Context, id string) (*db.RoundRecord, error)
	GetRecent(ctx context.Context, limit int) ([]*db.RoundRecord, error)
}

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

const maxArchiveLimit = 200

/* =========================
   REQUEST/RESPONSE TYPES
========================= */

type BetRequest struct {
	Amount  float64          `json:"amount"`
	SideBet game.SideBetKind `json:"sideBet"`
}

type VerifyRequest struct {
	ServerSeed     string  `json:"serverSeed"`
	ServerSeedHash string  `json:"serverSeedHash"`
	ClientSeed     string  `json:"clientSeed"`
	Nonce          uint64  `json:"nonce"`
	CrashPoint     float64 `json:"crashPoint"`
}

type StateResponse struct {
	Success  bool           `json:"success"`
	State    engine.Frame   `json:"state"`
	SideBets []game.SideBet `json:"sideBets"`
	Limits   map[string]any `json:"limits"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

/* =========================
   HANDLER
========================= */

type Handler struct {
	game    Game
	archive Archive
	checks  map[string]HealthCheck
	log     *slog.Logger
}

// NewHandler builds the API. archive may be nil.
func NewHandler(g Game, archive Archive, checks map[string]HealthCheck, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &Handler{game: g, archive: archive, checks: checks, log: logger}
}

// Register mounts every endpoint on mux behind the CORS middleware.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/crash", CORS(h.HandleGetHistory))
	mux.HandleFunc("/api/crash/", CORS(h.HandleGetRound))
	mux.HandleFunc("/api/verify", CORS(h.HandleVerify))
	mux.HandleFunc("/api/state", CORS(h.HandleGetState))
	mux.HandleFunc("/api/bet", CORS(h.HandlePlaceBet))
	mux.HandleFunc("/api/cashout", CORS(h.HandleCashOut))
	mux.HandleFunc("/api/health", CORS(h.HandleHealthCheck))
}

// HandleGetHistory lists completed rounds, newest first.
// GET /api/crash?source=archive&limit=50
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if r.URL.Query().Get("source") != "archive" {
		sendJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"history": h.game.History(),
		})
		return
	}

	if h.archive == nil {
		sendError(w, http.StatusServiceUnavailable, "Archive not configured")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxArchiveLimit)
	}

	records, err := h.archive.GetRecent(r.Context(), limit)
	if err != nil {
		h.log.Error("❌ Failed to read archive", "error", err)
		sendError(w, http.StatusInternalServerError, "Failed to read archive")
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": records,
	})
}

// HandleGetRound returns one round by id, falling back to the archive.
// GET /api/crash/{id}
func (h *Handler) HandleGetRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/crash/")
	if id == "" || strings.Contains(id, "/") {
		sendError(w, http.StatusBadRequest, "Round id is required")
		return
	}

	if entry, ok := h.game.FindRound(id); ok {
		sendJSON(w, http.StatusOK, map[string]any{"success": true, "round": entry})
		return
	}

	if h.archive != nil {
		rec, err := h.archive.GetRound(r.Context(), id)
		if err != nil {
			h.log.Error("❌ Failed to read archive", "id", id, "error", err)
			sendError(w, http.StatusInternalServerError, "Failed to read archive")
			return
		}
		if rec != nil {
			sendJSON(w, http.StatusOK, map[string]any{"success": true, "round": rec})
			return
		}
	}
	sendError(w, http.StatusNotFound, "Round not found")
}

// HandleVerify recomputes a crash point from revealed seed material.
// POST /api/verify
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ServerSeed == "" || req.ServerSeedHash == "" {
		sendError(w, http.StatusBadRequest, "serverSeed and serverSeedHash are required")
		return
	}

	fd := game.FairnessData{
		ServerSeed:     req.ServerSeed,
		ServerSeedHash: req.ServerSeedHash,
		ClientSeed:     req.ClientSeed,
		Nonce:          req.Nonce,
	}
	result := game.Verify(fd, req.CrashPoint, h.game.Config().Params())
	sendJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"verification": result,
	})
}

// HandleGetState returns the current frame and the betting limits.
// GET /api/state
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cfg := h.game.Config()
	sendJSON(w, http.StatusOK, StateResponse{
		Success:  true,
		State:    h.game.Snapshot(),
		SideBets: h.game.SideBets(),
		Limits: map[string]any{
			"minBet":     cfg.MinBet,
			"maxBet":     cfg.MaxBet,
			"defaultBet": cfg.DefaultBet,
		},
	})
}

// HandlePlaceBet places a bet for the next round.
// POST /api/bet
func (h *Handler) HandlePlaceBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req BetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := engine.NormaliseBet(h.game.Config(), h.game.Snapshot().Balance, req.Amount)
	if err != nil {
		sendError(w, http.StatusPaymentRequired, err.Error())
		return
	}
	if err := h.game.PlaceBet(amount, req.SideBet); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, engine.ErrInsufficientFunds) {
			status = http.StatusPaymentRequired
		}
		sendError(w, status, err.Error())
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"amount":  amount,
		"state":   h.game.Snapshot(),
	})
}

// HandleCashOut cashes out the running round.
// POST /api/cashout
func (h *Handler) HandleCashOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	payout, ok := h.game.CashOut()
	if !ok {
		sendError(w, http.StatusConflict, "Nothing to cash out")
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"payout":  payout,
	})
}

// HandleHealthCheck pings every configured backing service.
// GET /api/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	healthy := true
	services := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			services[name] = "error: " + err.Error()
			healthy = false
			continue
		}
		services[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	sendJSON(w, status, map[string]any{
		"success":  healthy,
		"services": services,
		"phase":    h.game.Snapshot().Phase,
	})
}

/* =========================
   HELPERS
========================= */

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func sendError(w http.ResponseWriter, statusCode int, message string) {
	sendJSON(w, statusCode, ErrorResponse{
		Success: false,
		Error:   message,
	})
}

// CORS adds the headers browsers need for cross-origin requests.
func CORS(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler(w, r)
	}
}
