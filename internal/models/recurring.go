package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the calendar step of a recurring template
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// Frequencies lists the known frequencies in step order
var Frequencies = []Frequency{Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly}

// Valid reports whether f is a known frequency. Projection still accepts unknown
// values and steps them monthly.
func (f Frequency) Valid() bool {
	for _, known := range Frequencies {
		if f == known {
			return true
		}
	}
	return false
}

// Confidence is a coarse trust level for a prediction or a forecast day
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Score maps a confidence to 3/2/1. Unknown values score as low.
func (c Confidence) Score() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	default:
		return 1
	}
}

// ConfidenceFromScore buckets an average score back into a confidence
func ConfidenceFromScore(avg float64) Confidence {
	switch {
	case avg >= 2.5:
		return ConfidenceHigh
	case avg >= 1.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// TransactionTemplate is the shape a recurring template replicates
type TransactionTemplate struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	ExpenseType string          `json:"expense_type,omitempty"`
}

// RecurringTemplate is a user-declared recurring transaction
type RecurringTemplate struct {
	ID             string              `json:"id"`
	Template       TransactionTemplate `json:"template"`
	Frequency      Frequency           `json:"frequency"`
	StartDate      time.Time           `json:"start_date"`
	EndDate        *time.Time          `json:"end_date,omitempty"`
	NextOccurrence time.Time           `json:"next_occurrence"`
	IsActive       bool                `json:"is_active"`
	CreatedAt      time.Time           `json:"created_at"`
}

// EndedBefore reports whether the template has an end date earlier than t
func (rt *RecurringTemplate) EndedBefore(t time.Time) bool {
	return rt.EndDate != nil && rt.EndDate.Before(t)
}

// RecurringTemplateInput is the payload for adding a template
type RecurringTemplateInput struct {
	Template       TransactionTemplate `json:"template"`
	Frequency      Frequency           `json:"frequency"`
	StartDate      time.Time           `json:"start_date"`
	EndDate        *time.Time          `json:"end_date,omitempty"`
	NextOccurrence time.Time           `json:"next_occurrence,omitempty"`
	IsActive       bool                `json:"is_active"`
}

// RecurringTemplatePatch holds the fields to change on a template. Nil fields are left alone.
type RecurringTemplatePatch struct {
	Template       *TransactionTemplate `json:"template,omitempty"`
	Frequency      *Frequency           `json:"frequency,omitempty"`
	StartDate      *time.Time           `json:"start_date,omitempty"`
	EndDate        *time.Time           `json:"end_date,omitempty"`
	ClearEndDate   bool                 `json:"clear_end_date,omitempty"`
	NextOccurrence *time.Time           `json:"next_occurrence,omitempty"`
	IsActive       *bool                `json:"is_active,omitempty"`
}

// PredictedTransaction is a projected (or echoed historical) transaction
type PredictedTransaction struct {
	Transaction
	IsRecurring bool       `json:"is_recurring"`
	RecurringID string     `json:"recurring_id,omitempty"`
	Confidence  Confidence `json:"confidence"`
}

// CashflowPrediction is one calendar day of the forecast
type CashflowPrediction struct {
	Date              time.Time              `json:"date"`
	PredictedIncome   decimal.Decimal        `json:"predicted_income"`
	PredictedExpenses decimal.Decimal        `json:"predicted_expenses"`
	PredictedNet      decimal.Decimal        `json:"predicted_net"`
	Transactions      []PredictedTransaction `json:"transactions"`
	Confidence        Confidence             `json:"confidence"`
}

// Validate checks the fields a caller must supply when declaring a template
func (in *RecurringTemplateInput) Validate() error {
	if err := in.Template.Validate(); err != nil {
		return err
	}
	if !in.Frequency.Valid() {
		return fmt.Errorf("unknown frequency %q", in.Frequency)
	}
	if in.StartDate.IsZero() {
		return errors.New("start_date is required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return errors.New("end_date is before start_date")
	}
	return nil
}

// Validate checks a transaction shape
func (tt *TransactionTemplate) Validate() error {
	if strings.TrimSpace(tt.Description) == "" {
		return errors.New("description is required")
	}
	if !tt.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if !tt.Type.Valid() {
		return fmt.Errorf("unknown type %q", tt.Type)
	}
	return nil
}

// Validate checks the fields present in the patch
func (p *RecurringTemplatePatch) Validate() error {
	if p.Template != nil {
		if err := p.Template.Validate(); err != nil {
			return err
		}
	}
	if p.Frequency != nil && !p.Frequency.Valid() {
		return fmt.Errorf("unknown frequency %q", *p.Frequency)
	}
	if p.ClearEndDate && p.EndDate != nil {
		return errors.New("end_date and clear_end_date are mutually exclusive")
	}
	return nil
}

// ValidateAgainst checks the date range the template would have after applying the patch
func (p *RecurringTemplatePatch) ValidateAgainst(current RecurringTemplate) error {
	start := current.StartDate
	if p.StartDate != nil {
		start = *p.StartDate
	}
	end := current.EndDate
	if p.ClearEndDate {
		end = nil
	} else if p.EndDate != nil {
		end = p.EndDate
	}
	if end != nil && end.Before(start) {
		return errors.New("end_date is before start_date")
	}
	return nil
}
