package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
)

// MonthlyForecast rolls a month of forecast days into totals
type MonthlyForecast struct {
	Month    string          `json:"month"` // "2024-01"
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
	// Change in net vs. the previous month, in percent
	NetChange float64 `json:"net_change_pct"`
}

// ForecastSummary contains the headline numbers of a forecast range
type ForecastSummary struct {
	StartDate         time.Time       `json:"start_date"`
	EndDate           time.Time       `json:"end_date"`
	TotalIncome       decimal.Decimal `json:"total_income"`
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	Net               decimal.Decimal `json:"net"`
	OpeningBalance    decimal.Decimal `json:"opening_balance"`
	ClosingBalance    decimal.Decimal `json:"closing_balance"`
	LowestBalance     decimal.Decimal `json:"lowest_balance"`
	LowestBalanceDate time.Time       `json:"lowest_balance_date"`

	DaysByConfidence map[models.Confidence]int `json:"days_by_confidence"`

	RecurringCount int `json:"recurring_count"` // declared template predictions
	PatternCount   int `json:"pattern_count"`   // detected pattern predictions
	ActualCount    int `json:"actual_count"`    // real transactions

	Months []MonthlyForecast `json:"months"`
}

// Service provides forecast summary calculations
type Service struct{}

// New creates a new metrics service
func New() *Service {
	return &Service{}
}

// Summarize computes totals and the running balance over forecast days
func (s *Service) Summarize(days []models.CashflowPrediction, openingBalance decimal.Decimal) *ForecastSummary {
	summary := &ForecastSummary{
		TotalIncome:      decimal.Zero,
		TotalExpenses:    decimal.Zero,
		OpeningBalance:   openingBalance,
		ClosingBalance:   openingBalance,
		LowestBalance:    openingBalance,
		DaysByConfidence: make(map[models.Confidence]int),
	}
	if len(days) == 0 {
		summary.Net = decimal.Zero
		return summary
	}

	summary.StartDate = days[0].Date
	summary.EndDate = days[len(days)-1].Date
	summary.LowestBalanceDate = days[0].Date

	balance := openingBalance
	monthly := make(map[string]*MonthlyForecast)

	for _, d := range days {
		summary.TotalIncome = summary.TotalIncome.Add(d.PredictedIncome)
		summary.TotalExpenses = summary.TotalExpenses.Add(d.PredictedExpenses)
		summary.DaysByConfidence[d.Confidence]++

		balance = balance.Add(d.PredictedNet)
		if balance.LessThan(summary.LowestBalance) {
			summary.LowestBalance = balance
			summary.LowestBalanceDate = d.Date
		}

		for _, t := range d.Transactions {
			switch {
			case t.IsRecurring:
				summary.RecurringCount++
			case t.Confidence == models.ConfidenceHigh:
				summary.ActualCount++
			default:
				summary.PatternCount++
			}
		}

		month := d.Date.Format("2006-01")
		m, ok := monthly[month]
		if !ok {
			m = &MonthlyForecast{Month: month, Income: decimal.Zero, Expenses: decimal.Zero}
			monthly[month] = m
		}
		m.Income = m.Income.Add(d.PredictedIncome)
		m.Expenses = m.Expenses.Add(d.PredictedExpenses)
	}

	summary.Net = summary.TotalIncome.Sub(summary.TotalExpenses)
	summary.ClosingBalance = balance

	// Get sorted months
	var months []string
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)

	var prevNet *decimal.Decimal
	for _, key := range months {
		m := monthly[key]
		m.Net = m.Income.Sub(m.Expenses)
		if prevNet != nil {
			m.NetChange = s.PercentChange(m.Net.InexactFloat64(), prevNet.InexactFloat64())
		}
		net := m.Net
		prevNet = &net
		summary.Months = append(summary.Months, *m)
	}

	return summary
}

// PercentChange calculates the percentage change between two values
func (s *Service) PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return ((current - previous) / math.Abs(previous)) * 100
}
