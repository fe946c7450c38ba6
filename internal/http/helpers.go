package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"khata/internal/period"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// envelope is the uniform JSON wrapper: {"success": true, ...payload} on the
// happy path, {"success": false, "error": "..."} otherwise.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, payload envelope) {
	body := envelope{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{"success": false, "error": message})
}

// parseWindow resolves the period query parameter into a concrete window.
// Unknown or missing names fall back to the current month.
func parseWindow(r *http.Request, now time.Time) period.Window {
	name := strings.TrimSpace(r.URL.Query().Get("period"))
	return period.Resolve(name, now)
}

// parseYear extracts the year query parameter, defaulting to the current
// year.
func parseYear(r *http.Request, now time.Time) int {
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			return y
		}
	}
	return now.Year()
}

// parseMonths extracts the months query parameter for trends, clamped to
// [1, 24] with a default of 6.
func parseMonths(r *http.Request) int {
	months := 6
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			months = m
		}
	}
	if months < 1 {
		months = 1
	}
	if months > 24 {
		months = 24
	}
	return months
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
