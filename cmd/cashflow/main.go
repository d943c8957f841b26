// Command cashflow forecasts cashflow from transaction history and declared
// recurring templates, over HTTP or from the command line.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cashflow/internal/config"
	"cashflow/internal/logging"
	"cashflow/internal/models"
	"cashflow/internal/services/dataloader"
	"cashflow/internal/services/forecast"
	"cashflow/internal/services/metrics"
	"cashflow/internal/services/patterns"
	"cashflow/internal/services/recurrence"
	"cashflow/internal/services/storage"
	"cashflow/internal/services/templatestore"
)

// Exit codes
const (
	exitGeneric  = 1
	exitNotFound = 2
	exitInvalid  = 3
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// globalFlags holds the flags shared by every command.
type globalFlags struct {
	configFile string
	dataDir    string
	demo       bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(stderr, "Error:", ee.msg)
			return ee.code
		}
		fmt.Fprintln(stderr, "Error:", err)
		return exitGeneric
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "cashflow",
		Short:         "Forecast cashflow from recurring transactions",
		Long:          "cashflow projects declared recurring templates and patterns detected in transaction history into a day-by-day cashflow forecast.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Config file (default ./cashflow.yaml when present)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Data directory (overrides data_directory)")
	pf.BoolVar(&flags.demo, "demo", false, "Use generated demo history when transactions.json is missing")

	root.AddCommand(
		newServeCmd(&flags),
		newForecastCmd(&flags),
		newUpcomingCmd(&flags),
		newPatternsCmd(&flags),
		newSummaryCmd(&flags),
		newTemplatesCmd(&flags),
		newDemoCmd(&flags),
		newStorageCmd(&flags),
		newValidateCmd(),
		newVersionCmd(),
	)
	return root
}

// app wires the services for one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer

	// forecast.opening_balance, parsed once
	opening decimal.Decimal

	store      *storage.Storage
	loader     *dataloader.DataLoader
	engine     *recurrence.Engine
	templates  *templatestore.Store
	detector   *patterns.Detector
	aggregator *forecast.Aggregator
	metrics    *metrics.Service
	now        func() time.Time
}

// openStore loads configuration, the logger and the data directory without
// unlocking it.
func openStore(flags *globalFlags, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, codeError(exitInvalid, "loading config: %s", err)
	}
	if flags.dataDir != "" {
		cfg.DataDirectory = flags.dataDir
	}
	if flags.demo {
		cfg.DemoData = true
	}

	opening, err := cfg.OpeningBalance()
	if err != nil {
		return nil, codeError(exitInvalid, "loading config: %s", err)
	}

	logger, closer, err := logging.New(cfg.Log, cfg.Debug, stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	store, err := storage.New(cfg.DataDirectory)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		opening: opening,
		closer:  closer,
		store:   store,
		now:     time.Now,
	}, nil
}

// newApp opens and unlocks the data directory and restores the template collection.
func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	a, err := openStore(flags, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	if a.store.IsEncrypted() {
		passphrase, err := readPassphrase(cmd.ErrOrStderr(), "Passphrase: ")
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := a.store.Unlock(passphrase); err != nil {
			a.Close()
			if errors.Is(err, storage.ErrIncorrectPassphrase) {
				return nil, codeError(exitInvalid, "unlocking data directory: %s", err)
			}
			return nil, fmt.Errorf("unlocking data directory: %w", err)
		}
	}

	a.loader = dataloader.New(a.store, a.logger, a.cfg.DemoData)
	a.engine = recurrence.New()
	a.templates = templatestore.New(a.store)
	if err := a.templates.Load(a.engine); err != nil {
		a.Close()
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	a.detector = patterns.New()
	a.aggregator = forecast.New(a.engine, a.detector)
	a.metrics = metrics.New()

	a.logger.Debug("data directory opened",
		"path", a.cfg.DataDirectory,
		"encrypted", a.store.IsEncrypted(),
		"templates", len(a.engine.List()))
	return a, nil
}

// Close releases the log file
func (a *app) Close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

// history loads the transaction history
func (a *app) history() (*models.TransactionSet, error) {
	ts, err := a.loader.LoadData()
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}
	return ts, nil
}
