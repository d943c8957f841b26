package dataloader

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
)

// demoMonths is how much history the demo dataset covers
const demoMonths = 4

// DemoTransactions builds a deterministic sample history ending the day before now.
// It contains monthly salary and rent, a biweekly gym charge, a monthly streaming
// subscription, weekly groceries with varying amounts and a quarterly business invoice.
func DemoTransactions(now time.Time) []models.Transaction {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, -demoMonths, 0)

	var out []models.Transaction
	add := func(desc string, amount string, date time.Time, tt models.TransactionType, category, expenseType string) {
		if !date.Before(today) || date.Before(from) {
			return
		}
		t := models.Transaction{
			Description: desc,
			Amount:      decimal.RequireFromString(amount),
			Date:        date,
			Type:        tt,
			Category:    category,
			ExpenseType: expenseType,
		}
		t.ID = fmt.Sprintf("demo-%s", t.ComputeHash())
		out = append(out, t)
	}

	for m := 0; m <= demoMonths; m++ {
		first := time.Date(from.Year(), from.Month()+time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		add("Salary ACME Corp", "4200.00", first, models.Income, models.CategoryPersonal, "")
		add("Rent", "1450.00", first.AddDate(0, 0, 1), models.Expense, models.CategoryPersonal, "housing")
		add("Streaming subscription", "15.99", first.AddDate(0, 0, 14), models.Expense, models.CategoryPersonal, "entertainment")
		if m%3 == 0 {
			add("Client invoice", "2800.00", first.AddDate(0, 0, 9), models.Income, models.CategoryBusiness, "")
		}
	}

	groceries := []string{"82.40", "64.15", "97.03", "71.88", "55.20"}
	for i, d := 0, from.AddDate(0, 0, 3); d.Before(today); i, d = i+1, d.AddDate(0, 0, 7) {
		add("Grocery store", groceries[i%len(groceries)], d, models.Expense, models.CategoryPersonal, "food")
	}

	for d := from.AddDate(0, 0, 5); d.Before(today); d = d.AddDate(0, 0, 14) {
		add("City gym", "35.00", d, models.Expense, models.CategoryPersonal, "health")
	}

	return models.NewTransactionSet(out).SortByDate().Transactions
}
