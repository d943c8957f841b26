package dataloader

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
	"cashflow/internal/services/classifier"
	"cashflow/internal/services/storage"
)

// TransactionsFile is the document holding historical transactions
const TransactionsFile = "transactions.json"

// record is the on-disk shape of a transaction. Amount may be signed; type may be empty.
type record struct {
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Type        string          `json:"type,omitempty"`
	Category    string          `json:"category,omitempty"`
	ExpenseType string          `json:"expense_type,omitempty"`
}

// DataLoader loads historical transactions from the data directory
type DataLoader struct {
	store  *storage.Storage
	logger *slog.Logger
	demo   bool
	now    func() time.Time
}

// New creates a new DataLoader. With demo enabled, a missing transactions document
// yields the demo dataset instead of an empty set.
func New(store *storage.Storage, logger *slog.Logger, demo bool) *DataLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataLoader{
		store:  store,
		logger: logger,
		demo:   demo,
		now:    time.Now,
	}
}

// LoadData loads, normalizes and deduplicates the historical transactions
func (dl *DataLoader) LoadData() (*models.TransactionSet, error) {
	ts, _, err := dl.Load()
	return ts, err
}

// Load is LoadData that also reports how many duplicate records were dropped.
// It keeps no state between calls and is safe for concurrent use.
func (dl *DataLoader) Load() (*models.TransactionSet, int, error) {
	data, err := dl.store.ReadFile(TransactionsFile)
	if errors.Is(err, os.ErrNotExist) {
		if dl.demo {
			demo := DemoTransactions(dl.now())
			dl.logger.Info("no transactions document, using demo dataset", "transactions", len(demo))
			return models.NewTransactionSet(demo), 0, nil
		}
		dl.logger.Info("no transactions document, returning empty dataset", "path", dl.store.Path(TransactionsFile))
		return models.NewTransactionSet(nil), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading transactions: %w", err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("decoding transactions: %w", err)
	}

	transactions := make([]models.Transaction, 0, len(records))
	for i, r := range records {
		t, ok := dl.normalize(r)
		if !ok {
			dl.logger.Warn("skipping transaction with unparseable date", "index", i, "date", r.Date)
			continue
		}
		transactions = append(transactions, t)
	}

	transactions, duplicates := dl.deduplicate(transactions)
	dl.logger.Debug("loaded transactions", "count", len(transactions), "duplicates", duplicates)

	return models.NewTransactionSet(transactions), duplicates, nil
}

// SaveData writes transactions back to the data directory
func (dl *DataLoader) SaveData(ts *models.TransactionSet) error {
	records := make([]record, 0, ts.Len())
	for _, t := range ts.Transactions {
		records = append(records, record{
			ID:          t.ID,
			Description: t.Description,
			Amount:      t.Amount,
			Date:        t.Date.Format(models.DateLayout),
			Type:        string(t.Type),
			Category:    t.Category,
			ExpenseType: t.ExpenseType,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding transactions: %w", err)
	}
	if err := dl.store.WriteFile(TransactionsFile, data); err != nil {
		return fmt.Errorf("writing transactions: %w", err)
	}
	return nil
}

// normalize turns a record into a Transaction with a positive amount, a type and an id
func (dl *DataLoader) normalize(r record) (models.Transaction, bool) {
	date := parseDate(strings.TrimSpace(r.Date))
	if date.IsZero() {
		return models.Transaction{}, false
	}

	t := models.Transaction{
		ID:          strings.TrimSpace(r.ID),
		Description: strings.TrimSpace(r.Description),
		Amount:      r.Amount.Abs(),
		Date:        date,
		Type:        models.TransactionType(strings.ToLower(strings.TrimSpace(r.Type))),
		Category:    strings.TrimSpace(r.Category),
		ExpenseType: strings.TrimSpace(r.ExpenseType),
	}

	if !t.Type.Valid() {
		t.Type = classifier.InferType(t.Description, t.Category, r.Amount)
	}
	if t.Category == "" {
		t.Category = models.CategoryPersonal
	}
	if t.ID == "" {
		t.ID = t.ComputeHash()
	}
	return t, true
}

// deduplicate removes transactions with a repeated id and returns how many it dropped
func (dl *DataLoader) deduplicate(transactions []models.Transaction) ([]models.Transaction, int) {
	seen := make(map[string]bool)
	var unique []models.Transaction

	for _, t := range transactions {
		if !seen[t.ID] {
			seen[t.ID] = true
			unique = append(unique, t)
		}
	}

	dropped := len(transactions) - len(unique)
	if dropped > 0 {
		dl.logger.Info("removed duplicate transactions", "count", dropped)
	}
	return unique, dropped
}

// parseDate tries multiple date formats
func parseDate(s string) time.Time {
	formats := []string{
		models.DateLayout,
		time.RFC3339,
		"01/02/2006",
		"1/2/2006",
		"2006/01/02",
		"Jan 2, 2006",
		"2 Jan 2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
