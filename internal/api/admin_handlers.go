package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/yegors/flightbrief/internal/briefing"
	"github.com/yegors/flightbrief/pkg/logger"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// requireAdmin rejects requests without the admin bearer token. The live feed
// also accepts ?token= since browsers cannot set headers on a websocket dial.
func requireAdmin(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				got = r.URL.Query().Get("token")
			}
			if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetLogs returns the most recent briefing attempts
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLimit)
	}

	attempts, err := h.attempts.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read request log", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to read logs")
		return
	}
	if attempts == nil {
		attempts = []*briefing.Attempt{}
	}
	WriteJSON(w, http.StatusOK, attempts)
}

// GetStats returns aggregated request statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.attempts.Stats(r.Context(), h.clock.Now())
	if err != nil {
		h.logger.Error("Failed to compute stats", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// GetSettings returns all runtime settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.settings.All(r.Context())
	if err != nil {
		h.logger.Error("Failed to read settings", logger.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}
	WriteJSON(w, http.StatusOK, values)
}

// UpdateSettings applies a partial settings update. Values may be sent as
// strings, numbers or booleans.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	values := make(map[string]string, len(body))
	for k, v := range body {
		switch tv := v.(type) {
		case string:
			values[k] = tv
		case bool:
			values[k] = strconv.FormatBool(tv)
		case float64:
			values[k] = strconv.FormatFloat(tv, 'f', -1, 64)
		case nil:
			values[k] = ""
		default:
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("setting %s has an unsupported type", k))
			return
		}
	}

	if err := h.settings.Update(r.Context(), values); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.GetSettings(w, r)
}

// Live attaches the caller to the activity feed
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		WriteError(w, http.StatusNotFound, "activity feed disabled")
		return
	}
	h.feed.HandleConnection(w, r)
}
