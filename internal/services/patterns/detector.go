// Package patterns infers undeclared recurring transactions from history.
//
// A group of transactions sharing a description is a pattern when the gaps between
// consecutive dates stay within ToleranceDays of their mean and the mean is at least
// MinIntervalDays. Patterns are projected forward with a fixed day step and a lower
// confidence than declared templates.
package patterns

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
)

const (
	// MinIntervalDays rejects sub-weekly noise
	MinIntervalDays = 7.0
	// ToleranceDays is the allowed deviation of each gap from the mean gap
	ToleranceDays = 3.0
	// MaxPatternOccurrences bounds the projection loop of a single pattern
	MaxPatternOccurrences = 50
)

// Pattern is a recurrence detected in transaction history
type Pattern struct {
	Description     string               `json:"description"`
	Transactions    []models.Transaction `json:"transactions"`
	AverageInterval float64              `json:"average_interval"`
	Confidence      models.Confidence    `json:"confidence"`
	LastOccurrence  time.Time            `json:"last_occurrence"`
	Template        models.Transaction   `json:"template"`
}

// Step returns the projection step in whole days
func (p *Pattern) Step() int {
	return int(math.Round(p.AverageInterval))
}

// Summary is the display shape of a pattern
type Summary struct {
	Description     string                 `json:"description"`
	Occurrences     int                    `json:"occurrences"`
	AverageInterval float64                `json:"average_interval"`
	StepDays        int                    `json:"step_days"`
	Confidence      models.Confidence      `json:"confidence"`
	LastOccurrence  string                 `json:"last_occurrence"`
	NextExpected    string                 `json:"next_expected"`
	Amount          decimal.Decimal        `json:"amount"`
	Type            models.TransactionType `json:"type"`
	Category        string                 `json:"category"`
}

// Summarize flattens the pattern for display
func (p *Pattern) Summarize() Summary {
	return Summary{
		Description:     p.Description,
		Occurrences:     len(p.Transactions),
		AverageInterval: p.AverageInterval,
		StepDays:        p.Step(),
		Confidence:      p.Confidence,
		LastOccurrence:  models.DayKey(p.LastOccurrence),
		NextExpected:    models.DayKey(p.LastOccurrence.AddDate(0, 0, p.Step())),
		Amount:          p.Template.Amount,
		Type:            p.Template.Type,
		Category:        p.Template.Category,
	}
}

// Summaries flattens patterns, returning an empty slice for none
func Summaries(patterns []Pattern) []Summary {
	out := make([]Summary, 0, len(patterns))
	for i := range patterns {
		out = append(out, patterns[i].Summarize())
	}
	return out
}

// Detector finds and projects patterns. It holds no state.
type Detector struct{}

// New creates a detector
func New() *Detector {
	return &Detector{}
}

// Analyze groups history by description and returns the accepted patterns, ordered by
// description.
func (d *Detector) Analyze(history *models.TransactionSet) []Pattern {
	var patterns []Pattern
	if history.Len() < 2 {
		return patterns
	}

	for desc, group := range history.GroupByDescription() {
		if group.Len() < 2 {
			continue
		}

		txns := group.SortByDate().Transactions

		var gaps []float64
		for i := 1; i < len(txns); i++ {
			gaps = append(gaps, float64(daysBetween(txns[i-1].Date, txns[i].Date)))
		}

		var sum float64
		for _, g := range gaps {
			sum += g
		}
		mean := sum / float64(len(gaps))

		if mean < MinIntervalDays {
			continue
		}

		consistent := true
		for _, g := range gaps {
			if math.Abs(g-mean) > ToleranceDays {
				consistent = false
				break
			}
		}
		if !consistent {
			continue
		}

		confidence := models.ConfidenceMedium
		if len(txns) >= 3 {
			confidence = models.ConfidenceHigh
		}

		last := txns[len(txns)-1]
		patterns = append(patterns, Pattern{
			Description:     desc,
			Transactions:    txns,
			AverageInterval: mean,
			Confidence:      confidence,
			LastOccurrence:  last.Date,
			Template:        last,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Description < patterns[j].Description
	})

	return patterns
}

// Project expands a pattern into predicted transactions within [start, end], starting one
// step after its last occurrence and skipping days already present in history.
func (d *Detector) Project(p Pattern, start, end time.Time, history *models.TransactionSet) []models.PredictedTransaction {
	var out []models.PredictedTransaction

	step := p.Step()
	if step < 1 {
		return out
	}

	confidence := downgrade(p.Confidence)

	cursor := p.LastOccurrence.AddDate(0, 0, step)
	for count := 0; cursor.Before(end) && count < MaxPatternOccurrences; count++ {
		if models.WithinDays(cursor, start, end) && !history.HasMatchOn(cursor, p.Template.Description) {
			out = append(out, models.PredictedTransaction{
				Transaction: models.Transaction{
					ID:          fmt.Sprintf("pattern-%s-%s", p.Description, models.DayKey(cursor)),
					Description: p.Template.Description,
					Amount:      p.Template.Amount,
					Date:        cursor,
					Type:        p.Template.Type,
					Category:    p.Template.Category,
					ExpenseType: p.Template.ExpenseType,
				},
				IsRecurring: false,
				Confidence:  confidence,
			})
		}

		cursor = cursor.AddDate(0, 0, step)
	}

	return out
}

// ProjectAll analyzes history and projects every detected pattern
func (d *Detector) ProjectAll(start, end time.Time, history *models.TransactionSet) []models.PredictedTransaction {
	var out []models.PredictedTransaction
	for _, p := range d.Analyze(history) {
		out = append(out, d.Project(p, start, end, history)...)
	}
	return out
}

// downgrade maps pattern confidence to prediction confidence: high->medium, else low
func downgrade(c models.Confidence) models.Confidence {
	if c == models.ConfidenceHigh {
		return models.ConfidenceMedium
	}
	return models.ConfidenceLow
}

// daysBetween counts whole calendar days from a to b
func daysBetween(a, b time.Time) int {
	return int(dayNumber(b) - dayNumber(a))
}

func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
