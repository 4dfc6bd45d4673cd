package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/flightbrief/internal/briefing"
	"github.com/yegors/flightbrief/internal/clock"
	"github.com/yegors/flightbrief/internal/ratelimit"
	"github.com/yegors/flightbrief/internal/settings"
	"github.com/yegors/flightbrief/internal/storage/sqlite"
	"github.com/yegors/flightbrief/internal/websocket"
	"github.com/yegors/flightbrief/pkg/logger"
)

const maxRequestBody = 1 << 16

// Briefer produces briefings
type Briefer interface {
	Brief(ctx context.Context, req briefing.Request) (*briefing.Result, error)
}

// AttemptLog is the request log read by the admin endpoints
type AttemptLog interface {
	Recent(ctx context.Context, limit int) ([]*briefing.Attempt, error)
	Stats(ctx context.Context, now time.Time) (map[string]*sqlite.WindowStats, error)
}

// Deps groups the services behind the API
type Deps struct {
	Briefings Briefer
	Attempts  AttemptLog
	Settings  *settings.Manager
	Feed      *websocket.Server
	Clock     clock.Clock
}

// Handler contains the API handlers
type Handler struct {
	briefings Briefer
	attempts  AttemptLog
	settings  *settings.Manager
	feed      *websocket.Server
	clock     clock.Clock
	started   time.Time
	logger    *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Deps, logger *logger.Logger) *Handler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{
		briefings: deps.Briefings,
		attempts:  deps.Attempts,
		settings:  deps.Settings,
		feed:      deps.Feed,
		clock:     clk,
		started:   clk.Now(),
		logger:    logger.Named("api-handler"),
	}
}

type analyzeRequest struct {
	ICAO      string `json:"icao"`
	PlaneSize string `json:"plane_size"`
}

// Analyze produces a briefing for one airport
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	clientID := strings.TrimSpace(r.Header.Get("X-Client-ID"))
	if clientID == "" {
		clientID = "UNKNOWN"
	}

	result, err := h.briefings.Brief(r.Context(), briefing.Request{
		Code:     req.ICAO,
		Aircraft: req.PlaneSize,
		ClientID: clientID,
		IP:       ratelimit.ClientIdentity(r.Header.Get("X-Forwarded-For"), r.RemoteAddr),
	})
	if err != nil {
		h.writeBriefError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) writeBriefError(w http.ResponseWriter, err error) {
	var paused *briefing.PausedError
	switch {
	case errors.Is(err, briefing.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &paused):
		WriteError(w, http.StatusServiceUnavailable, paused.Message)
	case errors.Is(err, briefing.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded.")
	case errors.Is(err, briefing.ErrNoWeather):
		WriteError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("Briefing failed", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// SystemStatus returns the public banner
func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	enabled, message := h.settings.Banner(r.Context())
	WriteJSON(w, http.StatusOK, map[string]any{
		"banner_enabled": enabled,
		"banner_message": message,
	})
}

// GetHealth returns service liveness
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	paused, _ := h.settings.Paused(r.Context())

	response := map[string]any{
		"status":         "ok",
		"paused":         paused,
		"uptime_seconds": int(h.clock.Now().Sub(h.started).Seconds()),
	}
	if h.feed != nil {
		response["feed_clients"] = h.feed.ClientCount()
	}

	WriteJSON(w, http.StatusOK, response)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteError writes a JSON error body
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
