package classifier

import (
	"strings"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
)

// Income detection keywords (lowercase)
var IncomeKeywords = []string{
	"payroll", "salary", "paycheck",
	"deposit direct", "direct deposit", "direct dep",
	"refund", "cashback", "cash back",
	"dividend", "interest earned",
	"bonus", "rebate", "invoice paid",
	"payment received", "check deposit",
	"reimbursement", "freelance", "commission",
	"wages", "earnings", "net pay",
}

// Income categories (lowercase)
var IncomeCategories = []string{
	"paycheck", "salary", "income",
	"wages", "payroll", "earnings",
	"dividend", "interest", "refund",
	"reimbursement",
}

// Keywords that should NEVER be income (lowercase)
var NeverIncomeKeywords = []string{
	"credit card payment", "card payment", "payment to",
	"loan payment", "mortgage payment", "bill payment", "autopay",
	"transfer to", "withdrawal", "debit", "fee", "charge",
	"penalty", "subscription", "membership",
}

// InferType decides income or expense for a record that arrived without a type.
// signedAmount keeps the sign of the source record: negative amounts are never income.
func InferType(description, category string, signedAmount decimal.Decimal) models.TransactionType {
	descLower := strings.ToLower(strings.TrimSpace(description))
	catLower := strings.ToLower(strings.TrimSpace(category))

	for _, kw := range NeverIncomeKeywords {
		if strings.Contains(descLower, kw) {
			return models.Expense
		}
	}

	if !signedAmount.IsPositive() {
		return models.Expense
	}

	for _, cat := range IncomeCategories {
		if catLower == cat || strings.Contains(catLower, cat) {
			return models.Income
		}
	}

	if containsAny(descLower, IncomeKeywords) {
		return models.Income
	}

	return models.Expense
}

// containsAny checks if text contains any of the keywords
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
