package render

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"text/template"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/models"
	"cashflow/internal/services/metrics"
	"cashflow/internal/services/patterns"
)

type tableRenderer struct{}

var funcs = template.FuncMap{
	"day":   func(t time.Time) string { return models.DayKey(t) },
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"count": func(txns []models.PredictedTransaction) int { return len(txns) },
	"until": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return models.DayKey(*t)
	},
	"active": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"recurring": func(p models.PredictedTransaction) string {
		if p.IsRecurring {
			return "template"
		}
		return "pattern"
	},
}

var forecastTemplate = template.Must(template.New("forecast").Funcs(funcs).Parse(
	"DATE\tINCOME\tEXPENSES\tNET\tTXNS\tCONFIDENCE\n" +
		"{{ range . }}{{ day .Date }}\t{{ money .PredictedIncome }}\t{{ money .PredictedExpenses }}\t{{ money .PredictedNet }}\t{{ count .Transactions }}\t{{ .Confidence }}\n{{ end }}"))

var summaryTemplate = template.Must(template.New("summary").Funcs(funcs).Parse(
	"Range:\t{{ day .StartDate }} .. {{ day .EndDate }}\n" +
		"Income:\t{{ money .TotalIncome }}\n" +
		"Expenses:\t{{ money .TotalExpenses }}\n" +
		"Net:\t{{ money .Net }}\n" +
		"Opening balance:\t{{ money .OpeningBalance }}\n" +
		"Closing balance:\t{{ money .ClosingBalance }}\n" +
		"Lowest balance:\t{{ money .LowestBalance }} on {{ day .LowestBalanceDate }}\n" +
		"Predictions:\t{{ .RecurringCount }} template, {{ .PatternCount }} pattern, {{ .ActualCount }} actual\n" +
		"{{ if .Months }}\nMONTH\tINCOME\tEXPENSES\tNET\tCHANGE\n" +
		"{{ range .Months }}{{ .Month }}\t{{ money .Income }}\t{{ money .Expenses }}\t{{ money .Net }}\t{{ printf \"%.1f%%\" .NetChange }}\n{{ end }}{{ end }}"))

var predictionsTemplate = template.Must(template.New("predictions").Funcs(funcs).Parse(
	"DATE\tDESCRIPTION\tTYPE\tAMOUNT\tSOURCE\tCONFIDENCE\n" +
		"{{ range . }}{{ day .Date }}\t{{ .Description }}\t{{ .Type }}\t{{ money .Amount }}\t{{ recurring . }}\t{{ .Confidence }}\n{{ end }}"))

var patternsTemplate = template.Must(template.New("patterns").Funcs(funcs).Parse(
	"DESCRIPTION\tSEEN\tEVERY\tLAST\tNEXT\tAMOUNT\tCONFIDENCE\n" +
		"{{ range . }}{{ .Description }}\t{{ .Occurrences }}\t{{ .StepDays }}d\t{{ .LastOccurrence }}\t{{ .NextExpected }}\t{{ money .Amount }}\t{{ .Confidence }}\n{{ end }}"))

var templatesTemplate = template.Must(template.New("templates").Funcs(funcs).Parse(
	"ID\tDESCRIPTION\tTYPE\tAMOUNT\tFREQUENCY\tNEXT\tEND\tACTIVE\n" +
		"{{ range . }}{{ .ID }}\t{{ .Template.Description }}\t{{ .Template.Type }}\t{{ money .Template.Amount }}\t{{ .Frequency }}\t{{ day .NextOccurrence }}\t{{ until .EndDate }}\t{{ active .IsActive }}\n{{ end }}"))

func (r *tableRenderer) Forecast(days []models.CashflowPrediction) ([]byte, error) {
	return execute(forecastTemplate, days)
}

func (r *tableRenderer) Summary(summary *metrics.ForecastSummary) ([]byte, error) {
	return execute(summaryTemplate, summary)
}

func (r *tableRenderer) Predictions(predictions []models.PredictedTransaction) ([]byte, error) {
	return execute(predictionsTemplate, predictions)
}

func (r *tableRenderer) Patterns(summaries []patterns.Summary) ([]byte, error) {
	return execute(patternsTemplate, summaries)
}

func (r *tableRenderer) Templates(templates []models.RecurringTemplate) ([]byte, error) {
	return execute(templatesTemplate, templates)
}

// execute renders tmpl through a tabwriter so tab-separated cells line up
func execute(tmpl *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	if err := tmpl.Execute(tw, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", tmpl.Name(), err)
	}
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", tmpl.Name(), err)
	}
	return buf.Bytes(), nil
}
