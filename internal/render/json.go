package render

import (
	"encoding/json"

	"cashflow/internal/models"
	"cashflow/internal/services/metrics"
	"cashflow/internal/services/patterns"
)

type jsonRenderer struct{}

func (r *jsonRenderer) Forecast(days []models.CashflowPrediction) ([]byte, error) {
	if days == nil {
		days = []models.CashflowPrediction{}
	}
	return marshal(days)
}

func (r *jsonRenderer) Summary(summary *metrics.ForecastSummary) ([]byte, error) {
	return marshal(summary)
}

func (r *jsonRenderer) Predictions(predictions []models.PredictedTransaction) ([]byte, error) {
	if predictions == nil {
		predictions = []models.PredictedTransaction{}
	}
	return marshal(predictions)
}

func (r *jsonRenderer) Patterns(summaries []patterns.Summary) ([]byte, error) {
	if summaries == nil {
		summaries = []patterns.Summary{}
	}
	return marshal(summaries)
}

func (r *jsonRenderer) Templates(templates []models.RecurringTemplate) ([]byte, error) {
	if templates == nil {
		templates = []models.RecurringTemplate{}
	}
	return marshal(templates)
}

func marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
