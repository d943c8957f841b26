package main

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	apphttp "cashflow/internal/http"
	"cashflow/internal/render"
	"cashflow/internal/services/patterns"
)

// rangeFlags holds the date window flags of the forecast commands.
type rangeFlags struct {
	start  string
	end    string
	format string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "First day YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.end, "end", "", "Last day YYYY-MM-DD (default start + forecast.default_days)")
	cmd.Flags().StringVar(&f.format, "format", "table", "Output format: json or table")
}

func newForecastCmd(flags *globalFlags) *cobra.Command {
	var rf rangeFlags

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Print the day-by-day cashflow forecast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := render.NewRenderer(rf.format)
			if err != nil {
				return codeError(exitInvalid, "%s", err)
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			start, end, err := apphttp.ParseDateRange(rf.start, rf.end, a.cfg.Forecast.DefaultDays, a.now())
			if err != nil {
				return codeError(exitInvalid, "%s", err)
			}
			history, err := a.history()
			if err != nil {
				return err
			}

			out, err := r.Forecast(a.aggregator.Generate(start, end, history))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	rf.register(cmd)
	return cmd
}

func newSummaryCmd(flags *globalFlags) *cobra.Command {
	var (
		rf      rangeFlags
		opening string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize totals and the running balance of a forecast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := render.NewRenderer(rf.format)
			if err != nil {
				return codeError(exitInvalid, "%s", err)
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			balance := a.opening
			if opening != "" {
				if balance, err = decimal.NewFromString(opening); err != nil {
					return codeError(exitInvalid, "invalid --opening-balance %q", opening)
				}
			}

			start, end, err := apphttp.ParseDateRange(rf.start, rf.end, a.cfg.Forecast.DefaultDays, a.now())
			if err != nil {
				return codeError(exitInvalid, "%s", err)
			}
			history, err := a.history()
			if err != nil {
				return err
			}

			days := a.aggregator.Generate(start, end, history)
			out, err := r.Summary(a.metrics.Summarize(days, balance))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&opening, "opening-balance", "", "Starting balance (default forecast.opening_balance)")
	return cmd
}

func newUpcomingCmd(flags *globalFlags) *cobra.Command {
	var (
		days   int
		format string
	)

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List predicted transactions for the next days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := render.NewRenderer(format)
			if err != nil {
				return codeError(exitInvalid, "%s", err)
			}
			if days < 1 || days > apphttp.MaxRangeDays {
				return codeError(exitInvalid, "--days must be between 1 and %d", apphttp.MaxRangeDays)
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.history()
			if err != nil {
				return err
			}

			out, err := r.Predictions(a.aggregator.Upcoming(apphttp.Today(a.now()), days, history))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Number of days to look ahead")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	return cmd
}

func newPatternsCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List recurring patterns detected in transaction history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := render.NewRenderer(format)
			if err != nil {
				return codeError(exitInvalid, "%s", err)
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.history()
			if err != nil {
				return err
			}

			out, err := r.Patterns(patterns.Summaries(a.detector.Analyze(history)))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	return cmd
}
