package forecast

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apphttp "cashflow/internal/http"
	"cashflow/internal/models"
	forecastsvc "cashflow/internal/services/forecast"
	"cashflow/internal/services/metrics"
	"cashflow/internal/services/patterns"
)

// MaxUpcomingDays bounds the upcoming window
const MaxUpcomingDays = 365

// TransactionSource supplies the historical transactions for a request
type TransactionSource interface {
	LoadData() (*models.TransactionSet, error)
}

// Options holds request defaults
type Options struct {
	DefaultDays    int
	OpeningBalance decimal.Decimal
}

// Handler serves the forecast endpoints
type Handler struct {
	source     TransactionSource
	aggregator *forecastsvc.Aggregator
	detector   *patterns.Detector
	metrics    *metrics.Service
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a forecast handler
func New(source TransactionSource, aggregator *forecastsvc.Aggregator, detector *patterns.Detector,
	m *metrics.Service, opts Options, logger *slog.Logger) *Handler {
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		source:     source,
		aggregator: aggregator,
		detector:   detector,
		metrics:    m,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterRoutes registers all forecast routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/forecast", h.handleForecast)
	r.Get("/forecast/summary", h.handleSummary)
	r.Get("/upcoming", h.handleUpcoming)
	r.Get("/patterns", h.handlePatterns)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) (*models.TransactionSet, bool) {
	ts, err := h.source.LoadData()
	if err != nil {
		apphttp.ErrorResponse(w, r, h.logger, "failed to load transactions: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return ts, true
}

func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	start, end, err := apphttp.ParseDateRange(q.Get("start"), q.Get("end"), h.opts.DefaultDays, h.now())
	if err != nil {
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusBadRequest)
		return start, end, false
	}
	return start, end, true
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	history, ok := h.history(w, r)
	if !ok {
		return
	}

	days := h.aggregator.Generate(start, end, history)
	h.logger.Debug("forecast generated",
		"start", models.DayKey(start), "end", models.DayKey(end), "days", len(days))

	apphttp.WriteJSON(w, http.StatusOK, days)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	opening := h.opts.OpeningBalance
	if raw := r.URL.Query().Get("opening_balance"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			apphttp.ErrorResponse(w, r, h.logger, "invalid opening_balance "+raw, http.StatusBadRequest)
			return
		}
		opening = d
	}

	history, ok := h.history(w, r)
	if !ok {
		return
	}

	days := h.aggregator.Generate(start, end, history)
	apphttp.WriteJSON(w, http.StatusOK, h.metrics.Summarize(days, opening))
}

func (h *Handler) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days, err := apphttp.ParseIntParam(r, "days", h.opts.DefaultDays, 1, MaxUpcomingDays)
	if err != nil {
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusBadRequest)
		return
	}
	history, ok := h.history(w, r)
	if !ok {
		return
	}

	upcoming := h.aggregator.Upcoming(apphttp.Today(h.now()), days, history)
	if upcoming == nil {
		upcoming = []models.PredictedTransaction{}
	}
	apphttp.WriteJSON(w, http.StatusOK, upcoming)
}

func (h *Handler) handlePatterns(w http.ResponseWriter, r *http.Request) {
	history, ok := h.history(w, r)
	if !ok {
		return
	}

	apphttp.WriteJSON(w, http.StatusOK, patterns.Summaries(h.detector.Analyze(history)))
}
