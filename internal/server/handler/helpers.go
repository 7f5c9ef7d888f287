// Package handler implements the HTTP API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseLimit reads ?limit=, defaulting to 50 and capped at 500.
func parseLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

// marketParam validates the {venue}/{symbol} path segments.
func marketParam(r *http.Request) (domain.StreamKey, bool) {
	venue := domain.Venue(r.PathValue("venue"))
	symbol := r.PathValue("symbol")
	if (venue != domain.VenueSpot && venue != domain.VenueFutures) || symbol == "" {
		return domain.StreamKey{}, false
	}
	return domain.StreamKey{Venue: venue, Symbol: symbol}, true
}

// modeParam reads ?mode=, defaulting to noncumulative.
func modeParam(r *http.Request) (domain.Mode, bool) {
	switch m := domain.Mode(r.URL.Query().Get("mode")); m {
	case "":
		return domain.ModeNonCumulative, true
	case domain.ModeNonCumulative, domain.ModeCumulative:
		return m, true
	default:
		return "", false
	}
}
