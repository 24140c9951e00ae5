package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"gastos/internal/core"
	"gastos/internal/ledger"
	"gastos/internal/storage/document"
)

func newImportCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "import-json <file>",
		Short: "Import a JSON ledger document into the configured backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := document.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return withLedger(cmd, func(ctx context.Context, a *app) error {
				if !yes && !isEmpty(a.ledger.Snapshot()) {
					return errNotConfirmed
				}
				if err := a.ledger.Restore(ctx, snap); err != nil {
					return err
				}
				cmd.Printf("Imported %s from %s.\n", describe(snap), args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "replace existing data")
	return cmd
}

func newBackupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file>",
		Short: "Write the whole ledger to a JSON backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, func(_ context.Context, a *app) error {
				snap := a.ledger.Snapshot()
				if err := document.WriteFile(args[0], snap, time.Now()); err != nil {
					return fmt.Errorf("write backup: %w", err)
				}
				cmd.Printf("Backed up %s to %s.\n", describe(snap), args[0])
				return nil
			})
		},
	}
}

func newRestoreCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace the ledger with the contents of a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			snap, err := document.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}
			return withLedger(cmd, func(ctx context.Context, a *app) error {
				if err := a.ledger.Restore(ctx, snap); err != nil {
					return err
				}
				cmd.Printf("Restored %s from %s.\n", describe(snap), args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm replacing the current ledger")
	return cmd
}

func newResetCommand() *cobra.Command {
	var (
		yes       bool
		noBackup  bool
		backupDir string
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data, leaving an empty Wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNotConfirmed
			}
			return withLedger(cmd, func(ctx context.Context, a *app) error {
				path, err := resetLedger(ctx, a.ledger, backupDir, time.Now(), !noBackup)
				if err != nil {
					return err
				}
				if path != "" {
					cmd.Printf("Previous data saved to %s.\n", path)
				}
				cmd.Println("Ledger reset.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all data")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip the backup written before the reset")
	cmd.Flags().StringVar(&backupDir, "backup-dir", ".", "directory for the pre-reset backup")
	return cmd
}

// resetLedger empties l. With backup set, the current contents are first
// written to backup_before_reset_<timestamp>.json in dir and the reset is
// abandoned if that write fails. It returns the backup path, if any.
func resetLedger(ctx context.Context, l *ledger.Ledger, dir string, now time.Time, backup bool) (string, error) {
	var path string
	if backup {
		path = filepath.Join(dir, "backup_before_reset_"+now.Format("20060102_150405")+".json")
		if err := document.WriteFile(path, l.Snapshot(), now); err != nil {
			return "", fmt.Errorf("write backup: %w", err)
		}
	}
	if err := l.Reset(ctx); err != nil {
		return path, err
	}
	return path, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("gastos %s (commit: %s)\n", version, commit)
		},
	}
}

func describe(snap core.Snapshot) string {
	expenses, incomes, budgets := counts(snap)
	return fmt.Sprintf("%d accounts, %d expenses, %d incomes and %d budgets",
		len(snap.Accounts), expenses, incomes, budgets)
}

func counts(snap core.Snapshot) (expenses, incomes, budgets int) {
	for _, es := range snap.Expenses {
		expenses += len(es)
	}
	for _, is := range snap.Incomes {
		incomes += len(is)
	}
	for _, bs := range snap.Budgets {
		budgets += len(bs)
	}
	return expenses, incomes, budgets
}

// isEmpty reports whether snap holds nothing beyond a fresh Wallet.
func isEmpty(snap core.Snapshot) bool {
	expenses, incomes, budgets := counts(snap)
	if len(snap.Accounts) > 1 || expenses+incomes+budgets > 0 {
		return false
	}
	for _, a := range snap.Accounts {
		if !a.Balance.IsZero() || len(a.History) > 0 {
			return false
		}
	}
	return true
}
