package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"cashflow/internal/models"
)

// MaxRangeDays bounds the length of a requested forecast window
const MaxRangeDays = 3660

// WriteJSON encodes v as the response body with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// ErrorResponse sends a JSON error body and logs it
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string, statusCode int) {
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, message,
		"status", statusCode,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()))

	WriteJSON(w, statusCode, map[string]string{"error": message})
}

// Today returns the calendar date of now as UTC midnight
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDateRange parses start and end date query parameters. A missing start is
// today; a missing end is start plus defaultDays.
func ParseDateRange(startStr, endStr string, defaultDays int, now time.Time) (start, end time.Time, err error) {
	if startStr != "" {
		start, err = time.Parse(models.DateLayout, startStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid start date %q, expected YYYY-MM-DD", startStr)
		}
	} else {
		start = Today(now)
	}

	if endStr != "" {
		end, err = time.Parse(models.DateLayout, endStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid end date %q, expected YYYY-MM-DD", endStr)
		}
	} else {
		end = start.AddDate(0, 0, defaultDays)
	}

	if end.Before(start) {
		return start, end, fmt.Errorf("end date %s is before start date %s",
			models.DayKey(end), models.DayKey(start))
	}
	if end.Sub(start) > MaxRangeDays*24*time.Hour {
		return start, end, fmt.Errorf("date range exceeds %d days", MaxRangeDays)
	}
	return start, end, nil
}

// ParseIntParam parses an integer query parameter within [min, max]
func ParseIntParam(r *http.Request, key string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", key, raw)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("invalid %s %d: must be between %d and %d", key, v, min, max)
	}
	return v, nil
}

// RequestLogger logs one line per request with its status, size and duration
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()

			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(started),
					"request_id", middleware.GetReqID(r.Context()),
					"remote", r.RemoteAddr)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
