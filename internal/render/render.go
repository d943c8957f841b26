package render

import (
	"fmt"

	"cashflow/internal/models"
	"cashflow/internal/services/metrics"
	"cashflow/internal/services/patterns"
)

// Renderer formats command results into bytes for output.
type Renderer interface {
	Forecast(days []models.CashflowPrediction) ([]byte, error)
	Summary(summary *metrics.ForecastSummary) ([]byte, error)
	Predictions(predictions []models.PredictedTransaction) ([]byte, error)
	Patterns(summaries []patterns.Summary) ([]byte, error)
	Templates(templates []models.RecurringTemplate) ([]byte, error)
}

// NewRenderer returns a Renderer for the given format string.
// Supported formats: "json", "table".
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "json":
		return &jsonRenderer{}, nil
	case "table":
		return &tableRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: supported formats are json, table", format)
	}
}
