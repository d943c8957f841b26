package recurring

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apphttp "cashflow/internal/http"
	"cashflow/internal/models"
	"cashflow/internal/services/recurrence"
)

// maxBodyBytes limits template request bodies
const maxBodyBytes = 64 << 10

// Saver persists the template collection after a mutation
type Saver interface {
	Save(engine *recurrence.Engine) error
}

// Handler serves the recurring template endpoints
type Handler struct {
	engine *recurrence.Engine
	store  Saver
	logger *slog.Logger

	// serializes mutate+save so the document matches the last mutation
	mu sync.Mutex
}

// New creates a template handler. A nil store keeps mutations in memory only.
func New(engine *recurrence.Engine, store Saver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, store: store, logger: logger}
}

// RegisterRoutes registers all template routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

// Reload replaces the template collection using load, under the mutation lock
func (h *Handler) Reload(load func(*recurrence.Engine) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return load(h.engine)
}

// CreateRequest is the body of POST /templates. Dates are YYYY-MM-DD.
type CreateRequest struct {
	Template       models.TransactionTemplate `json:"template"`
	Frequency      models.Frequency           `json:"frequency"`
	StartDate      string                     `json:"start_date"`
	EndDate        string                     `json:"end_date,omitempty"`
	NextOccurrence string                     `json:"next_occurrence,omitempty"`
	IsActive       *bool                      `json:"is_active,omitempty"`
}

// Input converts the request into a validated engine input. Templates are active
// unless is_active is false.
func (req *CreateRequest) Input() (models.RecurringTemplateInput, error) {
	in := models.RecurringTemplateInput{
		Template:  req.Template,
		Frequency: normalizeFrequency(req.Frequency),
		IsActive:  req.IsActive == nil || *req.IsActive,
	}
	in.Template.Description = strings.TrimSpace(in.Template.Description)
	if in.Template.Category == "" {
		in.Template.Category = models.CategoryPersonal
	}

	var err error
	if in.StartDate, err = parseRequired("start_date", req.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = parseOptional(req.EndDate); err != nil {
		return in, err
	}
	next, err := parseOptional(req.NextOccurrence)
	if err != nil {
		return in, err
	}
	if next != nil {
		in.NextOccurrence = *next
	}

	return in, in.Validate()
}

// UpdateRequest is the body of PATCH /templates/{id}. Absent fields are unchanged;
// template fields are merged into the stored template.
type UpdateRequest struct {
	Description    *string                 `json:"description,omitempty"`
	Amount         *decimal.Decimal        `json:"amount,omitempty"`
	Type           *models.TransactionType `json:"type,omitempty"`
	Category       *string                 `json:"category,omitempty"`
	ExpenseType    *string                 `json:"expense_type,omitempty"`
	Frequency      *models.Frequency       `json:"frequency,omitempty"`
	StartDate      *string                 `json:"start_date,omitempty"`
	EndDate        *string                 `json:"end_date,omitempty"`
	ClearEndDate   bool                    `json:"clear_end_date,omitempty"`
	NextOccurrence *string                 `json:"next_occurrence,omitempty"`
	IsActive       *bool                   `json:"is_active,omitempty"`
}

// Patch converts the request into a validated patch against current
func (req *UpdateRequest) Patch(current models.RecurringTemplate) (models.RecurringTemplatePatch, error) {
	patch := models.RecurringTemplatePatch{
		ClearEndDate: req.ClearEndDate,
		IsActive:     req.IsActive,
	}
	if req.Frequency != nil {
		f := normalizeFrequency(*req.Frequency)
		patch.Frequency = &f
	}

	if req.Description != nil || req.Amount != nil || req.Type != nil || req.Category != nil || req.ExpenseType != nil {
		tmpl := current.Template
		if req.Description != nil {
			tmpl.Description = strings.TrimSpace(*req.Description)
		}
		if req.Amount != nil {
			tmpl.Amount = *req.Amount
		}
		if req.Type != nil {
			tmpl.Type = *req.Type
		}
		if req.Category != nil {
			tmpl.Category = *req.Category
		}
		if req.ExpenseType != nil {
			tmpl.ExpenseType = *req.ExpenseType
		}
		patch.Template = &tmpl
	}

	var err error
	if req.StartDate != nil {
		start, err := parseRequired("start_date", *req.StartDate)
		if err != nil {
			return patch, err
		}
		patch.StartDate = &start
	}
	if req.EndDate != nil {
		if patch.EndDate, err = parseOptional(*req.EndDate); err != nil {
			return patch, err
		}
	}
	if req.NextOccurrence != nil {
		if patch.NextOccurrence, err = parseOptional(*req.NextOccurrence); err != nil {
			return patch, err
		}
	}

	if err := patch.Validate(); err != nil {
		return patch, err
	}
	return patch, patch.ValidateAgainst(current)
}

func normalizeFrequency(f models.Frequency) models.Frequency {
	return models.Frequency(strings.ToLower(strings.TrimSpace(string(f))))
}

func parseRequired(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := models.ParseDay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

func parseOptional(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := models.ParseDay(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	apphttp.WriteJSON(w, http.StatusOK, h.engine.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rt, ok := h.engine.Get(id)
	if !ok {
		apphttp.ErrorResponse(w, r, h.logger, "template not found: "+id, http.StatusNotFound)
		return
	}
	apphttp.WriteJSON(w, http.StatusOK, rt)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decode(w, r, &req); err != nil {
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusBadRequest)
		return
	}
	in, err := req.Input()
	if err != nil {
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rt := h.engine.Add(in)
	if err := h.save(); err != nil {
		h.engine.Delete(rt.ID)
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("recurring template added", "id", rt.ID, "description", rt.Template.Description, "frequency", rt.Frequency)
	apphttp.WriteJSON(w, http.StatusCreated, rt)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateRequest
	if err := decode(w, r, &req); err != nil {
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.engine.Get(id)
	if !ok {
		apphttp.ErrorResponse(w, r, h.logger, "template not found: "+id, http.StatusNotFound)
		return
	}
	patch, err := req.Patch(current)
	if err != nil {
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	rt, err := h.engine.Update(id, patch)
	if errors.Is(err, recurrence.ErrTemplateNotFound) {
		apphttp.ErrorResponse(w, r, h.logger, "template not found: "+id, http.StatusNotFound)
		return
	}
	if err != nil {
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.save(); err != nil {
		h.engine.Restore(replace(h.engine.List(), current))
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("recurring template updated", "id", id)
	apphttp.WriteJSON(w, http.StatusOK, rt)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	defer h.mu.Unlock()

	before := h.engine.List()
	if err := h.engine.Delete(id); err != nil {
		if errors.Is(err, recurrence.ErrTemplateNotFound) {
			apphttp.ErrorResponse(w, r, h.logger, "template not found: "+id, http.StatusNotFound)
			return
		}
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.save(); err != nil {
		h.engine.Restore(before)
		apphttp.ErrorResponse(w, r, h.logger, err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("recurring template deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) save() error {
	if h.store == nil {
		return nil
	}
	if err := h.store.Save(h.engine); err != nil {
		return fmt.Errorf("failed to save templates: %w", err)
	}
	return nil
}

// replace swaps the template with rt's id for rt
func replace(templates []models.RecurringTemplate, rt models.RecurringTemplate) []models.RecurringTemplate {
	for i := range templates {
		if templates[i].ID == rt.ID {
			templates[i] = rt
		}
	}
	return templates
}
