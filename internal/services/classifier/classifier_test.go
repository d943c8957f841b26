package classifier

import (
	"testing"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		name        string
		description string
		category    string
		amount      int64
		want        models.TransactionType
	}{
		{"salary keyword", "ACME Corp PAYROLL", "", 2500, models.Income},
		{"income category", "Transfer from client", "Income", 800, models.Income},
		{"negative payroll is expense", "payroll correction", "", -50, models.Expense},
		{"never income wins", "Netflix subscription refund", "", 15, models.Expense},
		{"unknown positive defaults to expense", "Corner shop", "", 12, models.Expense},
		{"negative purchase", "Groceries", "food", -80, models.Expense},
		{"zero amount", "Salary", "", 0, models.Expense},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferType(tt.description, tt.category, decimal.NewFromInt(tt.amount))
			if got != tt.want {
				t.Errorf("InferType(%q, %q, %d) = %s, want %s", tt.description, tt.category, tt.amount, got, tt.want)
			}
		})
	}
}
