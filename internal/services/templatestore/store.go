// Package templatestore persists the recurring template collection as a JSON document.
package templatestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"cashflow/internal/models"
	"cashflow/internal/services/recurrence"
	"cashflow/internal/services/storage"
)

// RecurringFile is the document holding declared recurring templates
const RecurringFile = "recurring.json"

// Store reads and writes templates through the data directory storage
type Store struct {
	store *storage.Storage
}

// New creates a Store on top of store
func New(store *storage.Storage) *Store {
	return &Store{store: store}
}

// Load restores engine from the templates document. A missing document leaves the
// engine empty.
func (s *Store) Load(engine *recurrence.Engine) error {
	data, err := s.store.ReadFile(RecurringFile)
	if errors.Is(err, os.ErrNotExist) {
		engine.Restore(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading recurring templates: %w", err)
	}

	var templates []models.RecurringTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return fmt.Errorf("decoding recurring templates: %w", err)
	}
	engine.Restore(templates)
	return nil
}

// Save writes the engine's templates to the templates document
func (s *Store) Save(engine *recurrence.Engine) error {
	templates := engine.List()
	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding recurring templates: %w", err)
	}
	if err := s.store.WriteFile(RecurringFile, data); err != nil {
		return fmt.Errorf("writing recurring templates: %w", err)
	}
	return nil
}
