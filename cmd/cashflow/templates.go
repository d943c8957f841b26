package main

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cashflow/internal/handlers/recurring"
	"cashflow/internal/models"
	"cashflow/internal/render"
	"cashflow/internal/services/recurrence"
)

// templateFlags holds the flags of templates add and templates update.
type templateFlags struct {
	description string
	amount      string
	txnType     string
	category    string
	expenseType string
	frequency   string
	start       string
	end         string
	next        string
	active      bool
	clearEnd    bool
	format      string
}

func (f *templateFlags) register(cmd *cobra.Command, update bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.description, "description", "", "Transaction description")
	fs.StringVar(&f.amount, "amount", "", "Amount (positive)")
	fs.StringVar(&f.txnType, "type", "", "income or expense")
	fs.StringVar(&f.category, "category", "", "Category (default personal)")
	fs.StringVar(&f.expenseType, "expense-type", "", "Optional expense subtype")
	fs.StringVar(&f.frequency, "frequency", "", "daily, weekly, biweekly, monthly, quarterly or yearly")
	fs.StringVar(&f.start, "start", "", "Start date YYYY-MM-DD")
	fs.StringVar(&f.end, "end", "", "End date YYYY-MM-DD")
	fs.StringVar(&f.next, "next", "", "Next occurrence YYYY-MM-DD (default start)")
	fs.BoolVar(&f.active, "active", true, "Include the template in projections")
	fs.StringVar(&f.format, "format", "table", "Output format: json or table")
	if update {
		fs.BoolVar(&f.clearEnd, "clear-end", false, "Remove the end date")
	}
}

func newTemplatesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage declared recurring templates",
	}
	cmd.AddCommand(
		newTemplatesListCmd(flags),
		newTemplatesAddCmd(flags),
		newTemplatesUpdateCmd(flags),
		newTemplatesDeleteCmd(flags),
	)
	return cmd
}

func newTemplatesListCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurring templates",
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

			return writeTemplates(cmd, r, a.engine.List()...)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	return cmd
}

func newTemplatesAddCmd(flags *globalFlags) *cobra.Command {
	var tf templateFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Declare a recurring template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := render.NewRenderer(tf.format)
			if err != nil {
				return codeError(exitInvalid, "%s", err)
			}

			req := recurring.CreateRequest{
				Template: models.TransactionTemplate{
					Description: tf.description,
					Type:        models.TransactionType(tf.txnType),
					Category:    tf.category,
					ExpenseType: tf.expenseType,
				},
				Frequency:      models.Frequency(tf.frequency),
				StartDate:      tf.start,
				EndDate:        tf.end,
				NextOccurrence: tf.next,
				IsActive:       &tf.active,
			}
			if req.Template.Amount, err = parseAmount(tf.amount); err != nil {
				return err
			}
			in, err := req.Input()
			if err != nil {
				return codeError(exitInvalid, "invalid template: %s", err)
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			rt := a.engine.Add(in)
			if err := a.templates.Save(a.engine); err != nil {
				return err
			}
			a.logger.Info("recurring template added", "id", rt.ID, "description", rt.Template.Description)
			return writeTemplates(cmd, r, rt)
		},
	}

	tf.register(cmd, false)
	return cmd
}

func newTemplatesUpdateCmd(flags *globalFlags) *cobra.Command {
	var tf templateFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a recurring template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := render.NewRenderer(tf.format)
			if err != nil {
				return codeError(exitInvalid, "%s", err)
			}
			req, err := updateRequest(cmd, &tf)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			current, ok := a.engine.Get(id)
			if !ok {
				return codeError(exitNotFound, "template not found: %s", id)
			}
			patch, err := req.Patch(current)
			if err != nil {
				return codeError(exitInvalid, "invalid template: %s", err)
			}

			rt, err := a.engine.Update(id, patch)
			if errors.Is(err, recurrence.ErrTemplateNotFound) {
				return codeError(exitNotFound, "template not found: %s", id)
			}
			if err != nil {
				return err
			}
			if err := a.templates.Save(a.engine); err != nil {
				return err
			}
			a.logger.Info("recurring template updated", "id", id)
			return writeTemplates(cmd, r, rt)
		},
	}

	tf.register(cmd, true)
	return cmd
}

func newTemplatesDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a recurring template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			if err := a.engine.Delete(id); err != nil {
				if errors.Is(err, recurrence.ErrTemplateNotFound) {
					return codeError(exitNotFound, "template not found: %s", id)
				}
				return err
			}
			if err := a.templates.Save(a.engine); err != nil {
				return err
			}
			a.logger.Info("recurring template deleted", "id", id)
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

// updateRequest builds a patch request from the flags the user actually set
func updateRequest(cmd *cobra.Command, tf *templateFlags) (recurring.UpdateRequest, error) {
	var req recurring.UpdateRequest
	changed := cmd.Flags().Changed

	if changed("description") {
		req.Description = &tf.description
	}
	if changed("amount") {
		amount, err := parseAmount(tf.amount)
		if err != nil {
			return req, err
		}
		req.Amount = &amount
	}
	if changed("type") {
		t := models.TransactionType(tf.txnType)
		req.Type = &t
	}
	if changed("category") {
		req.Category = &tf.category
	}
	if changed("expense-type") {
		req.ExpenseType = &tf.expenseType
	}
	if changed("frequency") {
		f := models.Frequency(tf.frequency)
		req.Frequency = &f
	}
	if changed("start") {
		req.StartDate = &tf.start
	}
	if changed("end") {
		req.EndDate = &tf.end
	}
	if changed("next") {
		req.NextOccurrence = &tf.next
	}
	if changed("active") {
		req.IsActive = &tf.active
	}
	req.ClearEndDate = tf.clearEnd
	return req, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, codeError(exitInvalid, "--amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, codeError(exitInvalid, "invalid --amount %q", s)
	}
	return d, nil
}

func writeTemplates(cmd *cobra.Command, r render.Renderer, templates ...models.RecurringTemplate) error {
	out, err := r.Templates(templates)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
