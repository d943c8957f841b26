package recurrence

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// newTestEngine returns an engine with deterministic ids and clock
func newTestEngine() *Engine {
	e := New()
	n := 0
	e.newID = func() string {
		n++
		return fmt.Sprintf("tmpl-%d", n)
	}
	e.now = func() time.Time { return date(2024, time.January, 1) }
	return e
}

func salaryInput(start time.Time, freq models.Frequency) models.RecurringTemplateInput {
	return models.RecurringTemplateInput{
		Template: models.TransactionTemplate{
			Description: "Salary",
			Amount:      decimal.NewFromInt(5000),
			Type:        models.Income,
			Category:    models.CategoryPersonal,
		},
		Frequency: freq,
		StartDate: start,
		IsActive:  true,
	}
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		freq models.Frequency
		want time.Time
	}{
		{"daily", date(2024, 1, 1), models.Daily, date(2024, 1, 2)},
		{"weekly", date(2024, 1, 1), models.Weekly, date(2024, 1, 8)},
		{"biweekly", date(2024, 1, 1), models.Biweekly, date(2024, 1, 15)},
		{"monthly", date(2024, 1, 15), models.Monthly, date(2024, 2, 15)},
		{"monthly clamps leap february", date(2024, 1, 31), models.Monthly, date(2024, 2, 29)},
		{"monthly clamps february", date(2023, 1, 31), models.Monthly, date(2023, 2, 28)},
		{"monthly across year", date(2023, 12, 31), models.Monthly, date(2024, 1, 31)},
		{"quarterly", date(2024, 1, 1), models.Quarterly, date(2024, 4, 1)},
		{"quarterly clamps", date(2023, 11, 30), models.Quarterly, date(2024, 2, 29)},
		{"yearly", date(2024, 3, 1), models.Yearly, date(2025, 3, 1)},
		{"yearly from leap day", date(2024, 2, 29), models.Yearly, date(2025, 2, 28)},
		{"unknown falls back to monthly", date(2024, 1, 31), models.Frequency("fortnightly"), date(2024, 2, 29)},
		{"empty falls back to monthly", date(2024, 5, 10), models.Frequency(""), date(2024, 6, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(tt.from, tt.freq)
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence(%s, %s) = %s, want %s",
					tt.from.Format(models.DateLayout), tt.freq,
					got.Format(models.DateLayout), tt.want.Format(models.DateLayout))
			}
		})
	}
}

func TestProjectMonthlySalary(t *testing.T) {
	e := newTestEngine()
	e.Add(salaryInput(date(2024, 1, 1), models.Monthly))

	got := e.ProjectTemplates(date(2024, 1, 1), date(2024, 3, 31), models.NewTransactionSet(nil))
	if len(got) != 3 {
		t.Fatalf("got %d predictions, want 3", len(got))
	}

	wantDates := []string{"2024-01-01", "2024-02-01", "2024-03-01"}
	for i, p := range got {
		if models.DayKey(p.Date) != wantDates[i] {
			t.Errorf("prediction %d date = %s, want %s", i, models.DayKey(p.Date), wantDates[i])
		}
		if p.Confidence != models.ConfidenceHigh {
			t.Errorf("prediction %d confidence = %s, want high", i, p.Confidence)
		}
		if !p.IsRecurring || p.RecurringID != "tmpl-1" {
			t.Errorf("prediction %d recurring = %v/%q, want true/tmpl-1", i, p.IsRecurring, p.RecurringID)
		}
		if p.Type != models.Income || !p.Amount.Equal(decimal.NewFromInt(5000)) {
			t.Errorf("prediction %d = %s %s, want income 5000", i, p.Type, p.Amount)
		}
		wantID := "predicted-tmpl-1-" + wantDates[i]
		if p.ID != wantID {
			t.Errorf("prediction %d id = %q, want %q", i, p.ID, wantID)
		}
	}
}

func TestProjectDailyWindow(t *testing.T) {
	e := newTestEngine()
	e.Add(salaryInput(date(2024, 1, 1), models.Daily))

	t.Run("thirty day window", func(t *testing.T) {
		got := e.ProjectTemplates(date(2024, 1, 1), date(2024, 1, 31), models.NewTransactionSet(nil))
		if len(got) != 30 {
			t.Errorf("got %d predictions, want 30", len(got))
		}
	})

	t.Run("matched days are skipped", func(t *testing.T) {
		history := models.NewTransactionSet([]models.Transaction{
			{Description: "ACME SALARY deposit", Date: date(2024, 1, 5), Type: models.Income},
			{Description: "Salary", Date: date(2024, 1, 6).Add(9 * time.Hour), Type: models.Income},
		})
		got := e.ProjectTemplates(date(2024, 1, 1), date(2024, 1, 31), history)
		if len(got) != 28 {
			t.Errorf("got %d predictions, want 28", len(got))
		}
		for _, p := range got {
			if key := models.DayKey(p.Date); key == "2024-01-05" || key == "2024-01-06" {
				t.Errorf("unexpected prediction on matched day %s", key)
			}
		}
	})

	t.Run("iteration cap", func(t *testing.T) {
		got := e.ProjectTemplates(date(2024, 1, 1), date(2030, 1, 1), models.NewTransactionSet(nil))
		if len(got) != MaxTemplateOccurrences {
			t.Errorf("got %d predictions, want %d", len(got), MaxTemplateOccurrences)
		}
	})

	t.Run("cap counts steps before the window", func(t *testing.T) {
		got := e.ProjectTemplates(date(2024, 4, 1), date(2024, 12, 31), models.NewTransactionSet(nil))
		// 100 iterations from Jan 1 stop at Apr 9; only Apr 1..Apr 9 land in the window
		if len(got) != 9 {
			t.Errorf("got %d predictions, want 9", len(got))
		}
	})
}

func TestProjectDedupIsCaseInsensitiveSubstring(t *testing.T) {
	e := newTestEngine()
	in := salaryInput(date(2024, 1, 1), models.Monthly)
	in.Template.Description = "Netflix"
	in.Template.Type = models.Expense
	e.Add(in)

	history := models.NewTransactionSet([]models.Transaction{
		{Description: "NETFLIX.COM subscription", Date: date(2024, 2, 1), Type: models.Expense},
		{Description: "Netflix", Date: date(2024, 3, 2), Type: models.Expense},
	})

	got := e.ProjectTemplates(date(2024, 1, 1), date(2024, 4, 30), history)
	var days []string
	for _, p := range got {
		days = append(days, models.DayKey(p.Date))
	}
	want := []string{"2024-01-01", "2024-03-01", "2024-04-01"}
	if fmt.Sprint(days) != fmt.Sprint(want) {
		t.Errorf("projected days = %v, want %v", days, want)
	}
}

func TestProjectRespectsEndDateAndActive(t *testing.T) {
	e := newTestEngine()

	ended := salaryInput(date(2024, 1, 1), models.Monthly)
	endDate := date(2024, 2, 15)
	ended.EndDate = &endDate
	e.Add(ended)

	inactive := salaryInput(date(2024, 1, 1), models.Weekly)
	inactive.IsActive = false
	e.Add(inactive)

	expired := salaryInput(date(2023, 1, 1), models.Monthly)
	expiredEnd := date(2023, 6, 1)
	expired.EndDate = &expiredEnd
	e.Add(expired)

	got := e.ProjectTemplates(date(2024, 1, 1), date(2024, 6, 30), models.NewTransactionSet(nil))
	if len(got) != 2 {
		t.Fatalf("got %d predictions, want 2", len(got))
	}
	for _, p := range got {
		if p.Date.After(endDate) {
			t.Errorf("prediction %s exceeds template end date", models.DayKey(p.Date))
		}
		if p.RecurringID != "tmpl-1" {
			t.Errorf("prediction from %s, want only tmpl-1", p.RecurringID)
		}
	}
}

func TestProjectDoesNotMutateTemplates(t *testing.T) {
	e := newTestEngine()
	rt := e.Add(salaryInput(date(2024, 1, 1), models.Monthly))

	e.ProjectTemplates(date(2024, 1, 1), date(2024, 12, 31), models.NewTransactionSet(nil))

	got, ok := e.Get(rt.ID)
	if !ok {
		t.Fatal("template disappeared after projection")
	}
	if !got.NextOccurrence.Equal(date(2024, 1, 1)) {
		t.Errorf("NextOccurrence = %s, want unchanged 2024-01-01", models.DayKey(got.NextOccurrence))
	}
}

func TestProjectEmpty(t *testing.T) {
	e := newTestEngine()
	if got := e.ProjectTemplates(date(2024, 1, 1), date(2024, 1, 31), nil); len(got) != 0 {
		t.Errorf("got %d predictions from empty engine, want 0", len(got))
	}
}

func TestAddAssignsIDAndClampsCursor(t *testing.T) {
	e := newTestEngine()

	in := salaryInput(date(2024, 3, 1), models.Monthly)
	in.NextOccurrence = date(2024, 1, 1)
	rt := e.Add(in)

	if rt.ID != "tmpl-1" {
		t.Errorf("ID = %q, want tmpl-1", rt.ID)
	}
	if !rt.CreatedAt.Equal(date(2024, 1, 1)) {
		t.Errorf("CreatedAt = %s, want clock time", rt.CreatedAt)
	}
	if !rt.NextOccurrence.Equal(rt.StartDate) {
		t.Errorf("NextOccurrence = %s, want clamped to start %s",
			models.DayKey(rt.NextOccurrence), models.DayKey(rt.StartDate))
	}
}

func TestAddUsesUUIDByDefault(t *testing.T) {
	e := New()
	a := e.Add(salaryInput(date(2024, 1, 1), models.Monthly))
	b := e.Add(salaryInput(date(2024, 1, 1), models.Monthly))
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
}

func TestUpdate(t *testing.T) {
	e := newTestEngine()
	rt := e.Add(salaryInput(date(2024, 1, 1), models.Monthly))

	t.Run("partial patch", func(t *testing.T) {
		inactive := false
		weekly := models.Weekly
		updated, err := e.Update(rt.ID, models.RecurringTemplatePatch{IsActive: &inactive, Frequency: &weekly})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.IsActive || updated.Frequency != models.Weekly {
			t.Errorf("patch not applied: active=%v freq=%s", updated.IsActive, updated.Frequency)
		}
		if updated.Template.Description != "Salary" {
			t.Errorf("untouched field changed: %q", updated.Template.Description)
		}
		if !updated.CreatedAt.Equal(rt.CreatedAt) {
			t.Error("CreatedAt must not change")
		}
	})

	t.Run("end date set and cleared", func(t *testing.T) {
		end := date(2024, 6, 1)
		updated, err := e.Update(rt.ID, models.RecurringTemplatePatch{EndDate: &end})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.EndDate == nil || !updated.EndDate.Equal(end) {
			t.Errorf("EndDate = %v, want %s", updated.EndDate, end)
		}

		updated, err = e.Update(rt.ID, models.RecurringTemplatePatch{ClearEndDate: true})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.EndDate != nil {
			t.Errorf("EndDate = %v, want nil", updated.EndDate)
		}
	})

	t.Run("start date moves cursor forward", func(t *testing.T) {
		start := date(2024, 5, 1)
		updated, err := e.Update(rt.ID, models.RecurringTemplatePatch{StartDate: &start})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if !updated.NextOccurrence.Equal(start) {
			t.Errorf("NextOccurrence = %s, want %s", models.DayKey(updated.NextOccurrence), models.DayKey(start))
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := e.Update("missing", models.RecurringTemplatePatch{})
		if !errors.Is(err, ErrTemplateNotFound) {
			t.Errorf("err = %v, want ErrTemplateNotFound", err)
		}
	})
}

func TestDelete(t *testing.T) {
	e := newTestEngine()
	a := e.Add(salaryInput(date(2024, 1, 1), models.Monthly))
	b := e.Add(salaryInput(date(2024, 1, 1), models.Weekly))

	if err := e.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list := e.List()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("List after delete = %v, want only %s", list, b.ID)
	}

	if err := e.Delete(a.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("second Delete err = %v, want ErrTemplateNotFound", err)
	}
}

func TestRestore(t *testing.T) {
	e := newTestEngine()
	e.Add(salaryInput(date(2024, 1, 1), models.Monthly))

	e.Restore([]models.RecurringTemplate{
		{ID: "persisted", Frequency: models.Weekly, StartDate: date(2024, 2, 1), IsActive: true},
	})

	list := e.List()
	if len(list) != 1 || list[0].ID != "persisted" {
		t.Fatalf("List after Restore = %v", list)
	}
	if !list[0].NextOccurrence.Equal(date(2024, 2, 1)) {
		t.Errorf("restored NextOccurrence = %s, want start date", models.DayKey(list[0].NextOccurrence))
	}
}
