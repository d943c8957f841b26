package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day key used for bucketing and synthesized ids
const DateLayout = "2006-01-02"

// TransactionType indicates whether a transaction is income or an expense
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether the type is one of the known values
func (tt TransactionType) Valid() bool {
	return tt == Income || tt == Expense
}

// Common category values. Any other string is accepted.
const (
	CategoryPersonal = "personal"
	CategoryBusiness = "business"
)

// Transaction is a historical transaction. Amount is always a positive magnitude.
type Transaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	ExpenseType string          `json:"expense_type,omitempty"`
}

// ComputeHash generates a stable id for records that arrive without one
func (t *Transaction) ComputeHash() string {
	dateStr := t.Date.Format(DateLayout)
	desc := strings.ToLower(strings.TrimSpace(t.Description))
	amount := t.Amount.StringFixed(2)

	input := fmt.Sprintf("%s|%s|%s", dateStr, desc, amount)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}

// ParseDay parses a YYYY-MM-DD date or an RFC 3339 timestamp
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// DayKey returns the calendar-day key of a time
func DayKey(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// WithinDays reports whether t falls between start and end, both days inclusive
func WithinDays(t, start, end time.Time) bool {
	day := StartOfDay(t)
	return !day.Before(StartOfDay(start)) && !day.After(StartOfDay(end))
}

// TransactionSet wraps a slice with filtering/aggregation methods
type TransactionSet struct {
	Transactions []Transaction
}

// NewTransactionSet creates a new TransactionSet from a slice
func NewTransactionSet(transactions []Transaction) *TransactionSet {
	return &TransactionSet{Transactions: transactions}
}

// Len returns the number of transactions
func (ts *TransactionSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.Transactions)
}

// FilterByType returns transactions of the specified type
func (ts *TransactionSet) FilterByType(tt TransactionType) *TransactionSet {
	result := &TransactionSet{}
	for _, t := range ts.Transactions {
		if t.Type == tt {
			result.Transactions = append(result.Transactions, t)
		}
	}
	return result
}

// FilterByDateRange returns transactions within the date range (inclusive)
func (ts *TransactionSet) FilterByDateRange(start, end time.Time) *TransactionSet {
	result := &TransactionSet{}
	for _, t := range ts.Transactions {
		if WithinDays(t.Date, start, end) {
			result.Transactions = append(result.Transactions, t)
		}
	}
	return result
}

// GroupByDescription groups transactions by lowercased, trimmed description
func (ts *TransactionSet) GroupByDescription() map[string]*TransactionSet {
	result := make(map[string]*TransactionSet)
	for _, t := range ts.Transactions {
		key := strings.ToLower(strings.TrimSpace(t.Description))
		if result[key] == nil {
			result[key] = &TransactionSet{}
		}
		result[key].Transactions = append(result[key].Transactions, t)
	}
	return result
}

// GroupByDate groups transactions by calendar day
func (ts *TransactionSet) GroupByDate() map[string]*TransactionSet {
	result := make(map[string]*TransactionSet)
	for _, t := range ts.Transactions {
		dateKey := DayKey(t.Date)
		if result[dateKey] == nil {
			result[dateKey] = &TransactionSet{}
		}
		result[dateKey].Transactions = append(result[dateKey].Transactions, t)
	}
	return result
}

// SortByDate sorts transactions by date (ascending). Ties keep input order.
func (ts *TransactionSet) SortByDate() *TransactionSet {
	sorted := make([]Transaction, len(ts.Transactions))
	copy(sorted, ts.Transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return &TransactionSet{Transactions: sorted}
}

// SumAmount returns the sum of all transaction amounts
func (ts *TransactionSet) SumAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range ts.Transactions {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// MinDate returns the earliest transaction date
func (ts *TransactionSet) MinDate() time.Time {
	if ts.Len() == 0 {
		return time.Time{}
	}
	minDate := ts.Transactions[0].Date
	for _, t := range ts.Transactions[1:] {
		if t.Date.Before(minDate) {
			minDate = t.Date
		}
	}
	return minDate
}

// MaxDate returns the latest transaction date
func (ts *TransactionSet) MaxDate() time.Time {
	if ts.Len() == 0 {
		return time.Time{}
	}
	maxDate := ts.Transactions[0].Date
	for _, t := range ts.Transactions[1:] {
		if t.Date.After(maxDate) {
			maxDate = t.Date
		}
	}
	return maxDate
}

// HasMatchOn reports whether a transaction on the same calendar day as day has a
// description containing description, ignoring case.
func (ts *TransactionSet) HasMatchOn(day time.Time, description string) bool {
	if ts == nil {
		return false
	}
	needle := strings.ToLower(description)
	for _, t := range ts.Transactions {
		if !SameDay(t.Date, day) {
			continue
		}
		if strings.Contains(strings.ToLower(t.Description), needle) {
			return true
		}
	}
	return false
}

// Copy creates a shallow copy of the TransactionSet
func (ts *TransactionSet) Copy() *TransactionSet {
	copied := make([]Transaction, len(ts.Transactions))
	copy(copied, ts.Transactions)
	return &TransactionSet{Transactions: copied}
}
