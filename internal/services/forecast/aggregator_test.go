package forecast

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
	"cashflow/internal/services/patterns"
	"cashflow/internal/services/recurrence"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newAggregator(inputs ...models.RecurringTemplateInput) *Aggregator {
	engine := recurrence.New()
	for _, in := range inputs {
		engine.Add(in)
	}
	return New(engine, patterns.New())
}

func salary() models.RecurringTemplateInput {
	return models.RecurringTemplateInput{
		Template: models.TransactionTemplate{
			Description: "Salary",
			Amount:      decimal.NewFromInt(5000),
			Type:        models.Income,
			Category:    models.CategoryPersonal,
		},
		Frequency: models.Monthly,
		StartDate: date(2024, 1, 1),
		IsActive:  true,
	}
}

func TestGenerateEndToEndSalary(t *testing.T) {
	a := newAggregator(salary())

	days := a.Generate(date(2024, 1, 1), date(2024, 3, 31), models.NewTransactionSet(nil))
	if len(days) != 91 {
		t.Fatalf("got %d days, want 91", len(days))
	}

	var incomeDays []string
	for _, d := range days {
		if len(d.Transactions) == 0 {
			if !d.PredictedNet.IsZero() || d.Confidence != models.ConfidenceHigh {
				t.Errorf("empty day %s = net %s conf %s, want 0/high", models.DayKey(d.Date), d.PredictedNet, d.Confidence)
			}
			continue
		}
		incomeDays = append(incomeDays, models.DayKey(d.Date))
		tx := d.Transactions[0]
		if !tx.IsRecurring || tx.Confidence != models.ConfidenceHigh {
			t.Errorf("day %s transaction = %+v, want recurring/high", models.DayKey(d.Date), tx)
		}
		if !d.PredictedIncome.Equal(decimal.NewFromInt(5000)) {
			t.Errorf("day %s income = %s, want 5000", models.DayKey(d.Date), d.PredictedIncome)
		}
	}

	want := []string{"2024-01-01", "2024-02-01", "2024-03-01"}
	if len(incomeDays) != len(want) {
		t.Fatalf("income days = %v, want %v", incomeDays, want)
	}
	for i := range want {
		if incomeDays[i] != want[i] {
			t.Errorf("income day %d = %s, want %s", i, incomeDays[i], want[i])
		}
	}
}

func TestGenerateArithmetic(t *testing.T) {
	a := newAggregator()
	history := models.NewTransactionSet([]models.Transaction{
		{ID: "1", Description: "Invoice paid", Amount: decimal.NewFromInt(100), Date: date(2024, 5, 2), Type: models.Income},
		{ID: "2", Description: "Groceries", Amount: decimal.NewFromInt(40), Date: date(2024, 5, 2), Type: models.Expense},
	})

	days := a.Generate(date(2024, 5, 1), date(2024, 5, 3), history)
	if len(days) != 3 {
		t.Fatalf("got %d days, want 3", len(days))
	}

	d := days[1]
	if !d.PredictedIncome.Equal(decimal.NewFromInt(100)) {
		t.Errorf("income = %s, want 100", d.PredictedIncome)
	}
	if !d.PredictedExpenses.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expenses = %s, want 40", d.PredictedExpenses)
	}
	if !d.PredictedNet.Equal(decimal.NewFromInt(60)) {
		t.Errorf("net = %s, want 60", d.PredictedNet)
	}
	if len(d.Transactions) != 2 {
		t.Errorf("day has %d transactions, want 2", len(d.Transactions))
	}
	for _, tx := range d.Transactions {
		if tx.IsRecurring || tx.Confidence != models.ConfidenceHigh {
			t.Errorf("historical echo = %+v, want non-recurring/high", tx)
		}
	}
}

func TestDayConfidence(t *testing.T) {
	with := func(cs ...models.Confidence) []models.PredictedTransaction {
		var out []models.PredictedTransaction
		for _, c := range cs {
			out = append(out, models.PredictedTransaction{Confidence: c})
		}
		return out
	}

	tests := []struct {
		name string
		txns []models.PredictedTransaction
		want models.Confidence
	}{
		{"empty", nil, models.ConfidenceHigh},
		{"three high", with(models.ConfidenceHigh, models.ConfidenceHigh, models.ConfidenceHigh), models.ConfidenceHigh},
		{"high and low", with(models.ConfidenceHigh, models.ConfidenceLow), models.ConfidenceMedium},
		{"high high medium", with(models.ConfidenceHigh, models.ConfidenceHigh, models.ConfidenceMedium), models.ConfidenceHigh},
		{"high medium", with(models.ConfidenceHigh, models.ConfidenceMedium), models.ConfidenceHigh},
		{"medium low", with(models.ConfidenceMedium, models.ConfidenceLow), models.ConfidenceMedium},
		{"medium low low", with(models.ConfidenceMedium, models.ConfidenceLow, models.ConfidenceLow), models.ConfidenceLow},
		{"low", with(models.ConfidenceLow), models.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayConfidence(tt.txns); got != tt.want {
				t.Errorf("DayConfidence = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGenerateMergesPatternsAndDedups(t *testing.T) {
	rent := salary()
	rent.Template = models.TransactionTemplate{
		Description: "Rent",
		Amount:      decimal.NewFromInt(1200),
		Type:        models.Expense,
		Category:    models.CategoryPersonal,
	}
	a := newAggregator(rent)

	// Gym every 14 days: Jan 3, Jan 17, Jan 31 -> next Feb 14
	history := models.NewTransactionSet([]models.Transaction{
		{ID: "g1", Description: "Gym", Amount: decimal.NewFromInt(25), Date: date(2024, 1, 3), Type: models.Expense},
		{ID: "g2", Description: "Gym", Amount: decimal.NewFromInt(25), Date: date(2024, 1, 17), Type: models.Expense},
		{ID: "g3", Description: "Gym", Amount: decimal.NewFromInt(25), Date: date(2024, 1, 31), Type: models.Expense},
		{ID: "r1", Description: "RENT payment", Amount: decimal.NewFromInt(1200), Date: date(2024, 2, 1), Type: models.Expense},
	})

	days := a.Generate(date(2024, 2, 1), date(2024, 2, 29), history)
	byKey := make(map[string]models.CashflowPrediction)
	for _, d := range days {
		byKey[models.DayKey(d.Date)] = d
	}

	feb1 := byKey["2024-02-01"]
	if len(feb1.Transactions) != 1 || feb1.Transactions[0].ID != "r1" {
		t.Errorf("Feb 1 = %+v, want only the real rent payment", feb1.Transactions)
	}

	feb14 := byKey["2024-02-14"]
	if len(feb14.Transactions) != 1 {
		t.Fatalf("Feb 14 has %d transactions, want 1 gym prediction", len(feb14.Transactions))
	}
	if feb14.Transactions[0].Confidence != models.ConfidenceMedium || feb14.Confidence != models.ConfidenceMedium {
		t.Errorf("Feb 14 confidence = %s/%s, want medium", feb14.Transactions[0].Confidence, feb14.Confidence)
	}
	if !feb14.PredictedNet.Equal(decimal.NewFromInt(-25)) {
		t.Errorf("Feb 14 net = %s, want -25", feb14.PredictedNet)
	}
	if len(byKey["2024-02-28"].Transactions) != 1 {
		t.Errorf("Feb 28 should hold the next gym prediction")
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	a := newAggregator(salary())
	history := models.NewTransactionSet([]models.Transaction{
		{ID: "a", Description: "Gym", Amount: decimal.NewFromInt(25), Date: date(2023, 12, 1), Type: models.Expense},
		{ID: "b", Description: "Gym", Amount: decimal.NewFromInt(25), Date: date(2023, 12, 15), Type: models.Expense},
		{ID: "c", Description: "Phone", Amount: decimal.NewFromInt(45), Date: date(2023, 11, 20), Type: models.Expense},
		{ID: "d", Description: "Phone", Amount: decimal.NewFromInt(45), Date: date(2023, 12, 20), Type: models.Expense},
	})

	first, err := json.Marshal(a.Generate(date(2024, 1, 1), date(2024, 3, 31), history))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(a.Generate(date(2024, 1, 1), date(2024, 3, 31), history))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Generate output differs between identical calls")
	}
}

func TestGenerateEmptyInputs(t *testing.T) {
	a := newAggregator()
	days := a.Generate(date(2024, 1, 1), date(2024, 1, 7), nil)
	if len(days) != 7 {
		t.Fatalf("got %d days, want 7", len(days))
	}
	for _, d := range days {
		if !d.PredictedIncome.IsZero() || !d.PredictedExpenses.IsZero() || d.Transactions == nil {
			t.Errorf("day %s not empty: %+v", models.DayKey(d.Date), d)
		}
	}

	if got := a.Generate(date(2024, 1, 7), date(2024, 1, 1), nil); len(got) != 0 {
		t.Errorf("reversed range gave %d days, want 0", len(got))
	}
}

func TestUpcoming(t *testing.T) {
	weekly := salary()
	weekly.Template.Description = "Allowance"
	weekly.Frequency = models.Weekly
	weekly.StartDate = date(2024, 1, 1)
	a := newAggregator(salary(), weekly)

	now := date(2024, 1, 1).Add(8 * time.Hour)
	got := a.Upcoming(now, 14, models.NewTransactionSet(nil))

	// Templates fire at midnight; the cursor starts before now but the day still counts
	if len(got) != 4 {
		t.Fatalf("got %d upcoming, want 4: %+v", len(got), got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Date.Before(got[i-1].Date) {
			t.Errorf("upcoming not sorted at %d", i)
		}
	}
}
