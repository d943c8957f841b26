package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cashflow/internal/models"
	"cashflow/internal/services/dataloader"
	"cashflow/internal/services/storage"
	"cashflow/internal/services/templatestore"
)

// passphraseEnv supplies the passphrase non-interactively
const passphraseEnv = "CASHFLOW_PASSPHRASE"

// readPassphrase takes the passphrase from the environment, or prompts on the terminal
func readPassphrase(stderr io.Writer, prompt string) (string, error) {
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", codeError(exitInvalid, "data directory is encrypted: set %s or run from a terminal", passphraseEnv)
	}

	fmt.Fprint(stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// readNewPassphrase asks twice when prompting
func readNewPassphrase(stderr io.Writer) (string, error) {
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}
	first, err := readPassphrase(stderr, "New passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := readPassphrase(stderr, "Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", codeError(exitInvalid, "passphrases do not match")
	}
	return first, nil
}

func newStorageCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Manage encryption of the data directory",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show whether the data directory is encrypted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			state := "plaintext"
			if a.store.IsEncrypted() {
				state = "encrypted"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data directory: %s\n", a.store.BaseDir())
			fmt.Fprintf(out, "storage: %s\n", state)
			for _, name := range []string{dataloader.TransactionsFile, templatestore.RecurringFile} {
				present := "missing"
				if a.store.Exists(name) {
					present = "present"
				}
				fmt.Fprintf(out, "%s: %s\n", name, present)
			}
			return nil
		},
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt every document with a passphrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.store.IsEncrypted() {
				return codeError(exitInvalid, "data directory is already encrypted")
			}
			passphrase, err := readNewPassphrase(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if len(passphrase) < storage.MinPassphraseLength {
				return codeError(exitInvalid, "passphrase must be at least %d characters", storage.MinPassphraseLength)
			}
			if err := a.store.EnableEncryption(passphrase); err != nil {
				return err
			}
			a.logger.Info("encryption enabled", "path", a.store.BaseDir())
			fmt.Fprintln(cmd.OutOrStdout(), "data directory encrypted")
			return nil
		},
	}

	decrypt := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt every document back to plaintext",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.store.IsEncrypted() {
				return codeError(exitInvalid, "data directory is not encrypted")
			}
			passphrase, err := readPassphrase(cmd.ErrOrStderr(), "Passphrase: ")
			if err != nil {
				return err
			}
			if err := a.store.DisableEncryption(passphrase); err != nil {
				if errors.Is(err, storage.ErrIncorrectPassphrase) {
					return codeError(exitInvalid, "%s", err)
				}
				return err
			}
			a.logger.Info("encryption disabled", "path", a.store.BaseDir())
			fmt.Fprintln(cmd.OutOrStdout(), "data directory decrypted")
			return nil
		},
	}

	cmd.AddCommand(status, encrypt, decrypt)
	return cmd
}

func newDemoCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Work with the generated demo history",
	}

	var force bool
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Write the demo history to transactions.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.store.Exists(dataloader.TransactionsFile) && !force {
				return codeError(exitInvalid, "%s already exists (use --force to overwrite)", a.store.Path(dataloader.TransactionsFile))
			}

			demo := models.NewTransactionSet(dataloader.DemoTransactions(a.now()))
			if err := a.loader.SaveData(demo); err != nil {
				return err
			}
			a.logger.Info("demo history written", "transactions", demo.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d demo transactions to %s\n", demo.Len(), a.store.Path(dataloader.TransactionsFile))
			return nil
		},
	}
	seed.Flags().BoolVar(&force, "force", false, "Overwrite an existing transactions.json")

	cmd.AddCommand(seed)
	return cmd
}
