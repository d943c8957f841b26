// Package forecast merges declared and detected recurrences with real transactions
// into a day-by-day cashflow forecast.
package forecast

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
	"cashflow/internal/services/patterns"
	"cashflow/internal/services/recurrence"
)

// Aggregator builds forecasts from an engine's templates and pattern detection
type Aggregator struct {
	engine   *recurrence.Engine
	detector *patterns.Detector
}

// New creates an aggregator over the given template engine
func New(engine *recurrence.Engine, detector *patterns.Detector) *Aggregator {
	if detector == nil {
		detector = patterns.New()
	}
	return &Aggregator{engine: engine, detector: detector}
}

// Predictions returns declared-template predictions followed by pattern predictions
func (a *Aggregator) Predictions(start, end time.Time, history *models.TransactionSet) []models.PredictedTransaction {
	predictions := a.engine.ProjectTemplates(start, end, history)
	return append(predictions, a.detector.ProjectAll(start, end, history)...)
}

// Generate returns one CashflowPrediction per calendar day from start to end inclusive
func (a *Aggregator) Generate(start, end time.Time, history *models.TransactionSet) []models.CashflowPrediction {
	all := a.Predictions(start, end, history)
	if history != nil {
		for _, t := range history.Transactions {
			all = append(all, models.PredictedTransaction{
				Transaction: t,
				IsRecurring: false,
				Confidence:  models.ConfidenceHigh,
			})
		}
	}

	byDay := make(map[string][]models.PredictedTransaction)
	for _, p := range all {
		key := models.DayKey(p.Date)
		byDay[key] = append(byDay[key], p)
	}

	var days []models.CashflowPrediction
	last := models.StartOfDay(end)
	for d := models.StartOfDay(start); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, summarizeDay(d, byDay[models.DayKey(d)]))
	}
	return days
}

// Upcoming returns the predicted transactions between now and now+days, sorted by date
func (a *Aggregator) Upcoming(now time.Time, days int, history *models.TransactionSet) []models.PredictedTransaction {
	predictions := a.Predictions(now, now.AddDate(0, 0, days), history)
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Date.Before(predictions[j].Date)
	})
	return predictions
}

func summarizeDay(d time.Time, txns []models.PredictedTransaction) models.CashflowPrediction {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, t := range txns {
		switch t.Type {
		case models.Income:
			income = income.Add(t.Amount)
		case models.Expense:
			expenses = expenses.Add(t.Amount)
		}
	}

	if txns == nil {
		txns = []models.PredictedTransaction{}
	}

	return models.CashflowPrediction{
		Date:              d,
		PredictedIncome:   income,
		PredictedExpenses: expenses,
		PredictedNet:      income.Sub(expenses),
		Transactions:      txns,
		Confidence:        DayConfidence(txns),
	}
}

// DayConfidence averages the confidence scores of a day. An empty day is high.
func DayConfidence(txns []models.PredictedTransaction) models.Confidence {
	if len(txns) == 0 {
		return models.ConfidenceHigh
	}
	total := 0
	for _, t := range txns {
		total += t.Confidence.Score()
	}
	return models.ConfidenceFromScore(float64(total) / float64(len(txns)))
}
