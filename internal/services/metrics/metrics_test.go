package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
)

func forecastDay(y int, m time.Month, d int, income, expenses int64, txns ...models.PredictedTransaction) models.CashflowPrediction {
	in := decimal.NewFromInt(income)
	out := decimal.NewFromInt(expenses)
	return models.CashflowPrediction{
		Date:              time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		PredictedIncome:   in,
		PredictedExpenses: out,
		PredictedNet:      in.Sub(out),
		Transactions:      txns,
		Confidence:        models.ConfidenceHigh,
	}
}

func TestSummarize(t *testing.T) {
	s := New()

	days := []models.CashflowPrediction{
		forecastDay(2024, 1, 30, 0, 300,
			models.PredictedTransaction{IsRecurring: true, Confidence: models.ConfidenceHigh}),
		forecastDay(2024, 1, 31, 0, 900,
			models.PredictedTransaction{Confidence: models.ConfidenceMedium}),
		forecastDay(2024, 2, 1, 5000, 100,
			models.PredictedTransaction{Confidence: models.ConfidenceHigh},
			models.PredictedTransaction{IsRecurring: true, Confidence: models.ConfidenceHigh}),
	}
	days[1].Confidence = models.ConfidenceMedium

	summary := s.Summarize(days, decimal.NewFromInt(1000))

	checks := []struct {
		name string
		got  decimal.Decimal
		want int64
	}{
		{"TotalIncome", summary.TotalIncome, 5000},
		{"TotalExpenses", summary.TotalExpenses, 1300},
		{"Net", summary.Net, 3700},
		{"ClosingBalance", summary.ClosingBalance, 4700},
		{"LowestBalance", summary.LowestBalance, -200},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if !c.got.Equal(decimal.NewFromInt(c.want)) {
				t.Errorf("%s = %s, want %d", c.name, c.got, c.want)
			}
		})
	}

	if models.DayKey(summary.LowestBalanceDate) != "2024-01-31" {
		t.Errorf("LowestBalanceDate = %s, want 2024-01-31", models.DayKey(summary.LowestBalanceDate))
	}
	if summary.RecurringCount != 2 || summary.PatternCount != 1 || summary.ActualCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", summary.RecurringCount, summary.PatternCount, summary.ActualCount)
	}
	if summary.DaysByConfidence[models.ConfidenceHigh] != 2 || summary.DaysByConfidence[models.ConfidenceMedium] != 1 {
		t.Errorf("DaysByConfidence = %v", summary.DaysByConfidence)
	}

	if len(summary.Months) != 2 {
		t.Fatalf("got %d months, want 2", len(summary.Months))
	}
	if summary.Months[0].Month != "2024-01" || !summary.Months[0].Net.Equal(decimal.NewFromInt(-1200)) {
		t.Errorf("January = %+v", summary.Months[0])
	}
	// (4900 - -1200) / 1200 * 100
	if got := summary.Months[1].NetChange; got < 508.33 || got > 508.34 {
		t.Errorf("February NetChange = %v, want ~508.33", got)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := New().Summarize(nil, decimal.NewFromInt(250))
	if !summary.ClosingBalance.Equal(decimal.NewFromInt(250)) || !summary.Net.IsZero() {
		t.Errorf("empty summary = %+v", summary)
	}
	if len(summary.Months) != 0 {
		t.Errorf("empty summary has months: %v", summary.Months)
	}
}

func TestSummarizeOpeningIsLowest(t *testing.T) {
	days := []models.CashflowPrediction{forecastDay(2024, 3, 1, 100, 0)}
	summary := New().Summarize(days, decimal.NewFromInt(10))
	if !summary.LowestBalance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("LowestBalance = %s, want opening balance 10", summary.LowestBalance)
	}
}

func TestPercentChange(t *testing.T) {
	s := New()
	tests := []struct {
		current, previous, want float64
	}{
		{0, 0, 0},
		{50, 0, 100},
		{150, 100, 50},
		{50, 100, -50},
		{-50, -100, 50},
	}
	for _, tt := range tests {
		if got := s.PercentChange(tt.current, tt.previous); got != tt.want {
			t.Errorf("PercentChange(%v, %v) = %v, want %v", tt.current, tt.previous, got, tt.want)
		}
	}
}
