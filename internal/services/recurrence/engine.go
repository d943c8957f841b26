// Package recurrence owns the declared recurring templates and projects them forward.
package recurrence

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/models"
)

// MaxTemplateOccurrences bounds the projection loop of a single template
const MaxTemplateOccurrences = 100

// ErrTemplateNotFound is returned by Update and Delete for an unknown id
var ErrTemplateNotFound = errors.New("recurring template not found")

// Engine holds the recurring template collection
type Engine struct {
	mu        sync.RWMutex
	templates []models.RecurringTemplate

	now   func() time.Time
	newID func() string
}

// New creates an empty engine
func New() *Engine {
	return &Engine{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// NextOccurrence advances date by one step of frequency. Unknown frequencies step monthly.
func NextOccurrence(date time.Time, frequency models.Frequency) time.Time {
	switch frequency {
	case models.Daily:
		return date.AddDate(0, 0, 1)
	case models.Weekly:
		return date.AddDate(0, 0, 7)
	case models.Biweekly:
		return date.AddDate(0, 0, 14)
	case models.Monthly:
		return addMonths(date, 1)
	case models.Quarterly:
		return addMonths(date, 3)
	case models.Yearly:
		return addMonths(date, 12)
	default:
		return addMonths(date, 1)
	}
}

// addMonths adds calendar months, clamping the day to the end of the target month
// (Jan 31 + 1 month = Feb 28/29) instead of overflowing like time.AddDate.
func addMonths(date time.Time, months int) time.Time {
	year, month, day := date.Date()
	hour, minute, sec := date.Clock()

	first := time.Date(year, month+time.Month(months), 1, hour, minute, sec, date.Nanosecond(), date.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, date.Nanosecond(), date.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Add appends a new template, assigning its id and creation time
func (e *Engine) Add(input models.RecurringTemplateInput) models.RecurringTemplate {
	rt := models.RecurringTemplate{
		ID:             e.newID(),
		Template:       input.Template,
		Frequency:      input.Frequency,
		StartDate:      input.StartDate,
		EndDate:        copyTime(input.EndDate),
		NextOccurrence: input.NextOccurrence,
		IsActive:       input.IsActive,
		CreatedAt:      e.now(),
	}
	clampNextOccurrence(&rt)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates = append(e.templates, rt)
	return rt
}

// Update merges patch into the template with the given id
func (e *Engine) Update(id string, patch models.RecurringTemplatePatch) (models.RecurringTemplate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOf(id)
	if idx < 0 {
		return models.RecurringTemplate{}, fmt.Errorf("update %s: %w", id, ErrTemplateNotFound)
	}

	rt := e.templates[idx]
	if patch.Template != nil {
		rt.Template = *patch.Template
	}
	if patch.Frequency != nil {
		rt.Frequency = *patch.Frequency
	}
	if patch.StartDate != nil {
		rt.StartDate = *patch.StartDate
	}
	if patch.ClearEndDate {
		rt.EndDate = nil
	} else if patch.EndDate != nil {
		rt.EndDate = copyTime(patch.EndDate)
	}
	if patch.NextOccurrence != nil {
		rt.NextOccurrence = *patch.NextOccurrence
	}
	if patch.IsActive != nil {
		rt.IsActive = *patch.IsActive
	}
	clampNextOccurrence(&rt)

	e.templates[idx] = rt
	return rt, nil
}

// Delete removes the template with the given id
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrTemplateNotFound)
	}
	e.templates = append(e.templates[:idx], e.templates[idx+1:]...)
	return nil
}

// Get returns the template with the given id
func (e *Engine) Get(id string) (models.RecurringTemplate, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := e.indexOf(id)
	if idx < 0 {
		return models.RecurringTemplate{}, false
	}
	return e.templates[idx], true
}

// List returns a copy of all templates in creation order
func (e *Engine) List() []models.RecurringTemplate {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]models.RecurringTemplate, len(e.templates))
	copy(out, e.templates)
	return out
}

// Restore replaces the collection with previously persisted templates
func (e *Engine) Restore(templates []models.RecurringTemplate) {
	restored := make([]models.RecurringTemplate, len(templates))
	copy(restored, templates)
	for i := range restored {
		clampNextOccurrence(&restored[i])
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates = restored
}

// ProjectTemplates expands every active template into predicted transactions within
// [start, end]. Occurrences already present in history are skipped. Templates are not
// modified.
func (e *Engine) ProjectTemplates(start, end time.Time, history *models.TransactionSet) []models.PredictedTransaction {
	var predictions []models.PredictedTransaction
	for _, rt := range e.List() {
		if !rt.IsActive || rt.EndedBefore(start) {
			continue
		}
		predictions = append(predictions, projectTemplate(rt, start, end, history)...)
	}
	return predictions
}

func projectTemplate(rt models.RecurringTemplate, start, end time.Time, history *models.TransactionSet) []models.PredictedTransaction {
	var out []models.PredictedTransaction

	cursor := rt.NextOccurrence
	for count := 0; cursor.Before(end) && count < MaxTemplateOccurrences; count++ {
		if rt.EndDate != nil && !cursor.Before(*rt.EndDate) {
			break
		}

		if models.WithinDays(cursor, start, end) && !history.HasMatchOn(cursor, rt.Template.Description) {
			out = append(out, models.PredictedTransaction{
				Transaction: models.Transaction{
					ID:          fmt.Sprintf("predicted-%s-%s", rt.ID, models.DayKey(cursor)),
					Description: rt.Template.Description,
					Amount:      rt.Template.Amount,
					Date:        cursor,
					Type:        rt.Template.Type,
					Category:    rt.Template.Category,
					ExpenseType: rt.Template.ExpenseType,
				},
				IsRecurring: true,
				RecurringID: rt.ID,
				Confidence:  models.ConfidenceHigh,
			})
		}

		cursor = NextOccurrence(cursor, rt.Frequency)
	}

	return out
}

func (e *Engine) indexOf(id string) int {
	for i := range e.templates {
		if e.templates[i].ID == id {
			return i
		}
	}
	return -1
}

// clampNextOccurrence keeps NextOccurrence >= StartDate; a zero cursor starts at StartDate
func clampNextOccurrence(rt *models.RecurringTemplate) {
	if rt.NextOccurrence.IsZero() || rt.NextOccurrence.Before(rt.StartDate) {
		rt.NextOccurrence = rt.StartDate
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
