package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/core"
	"gastos/internal/ledger"
	"gastos/internal/storage/document"
)

var resetAt = time.Date(2024, 3, 15, 18, 30, 5, 0, time.UTC)

func seededLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	ctx := context.Background()

	gw, err := document.Open(filepath.Join(t.TempDir(), "gastos.json"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	l, err := ledger.Open(ctx, gw, ledger.WithClock(func() time.Time { return resetAt }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	_, err = l.CreateAccount(ctx, "Checking", "Bank", decimal.RequireFromString("750"))
	require.NoError(t, err)
	_, err = l.AddExpense(ctx, core.Expense{
		Description: "Rent",
		Amount:      decimal.RequireFromString("600"),
		DueDate:     core.NewDate(2024, 3, 10),
		Category:    "Housing",
	}, core.NewPeriod(3, 2024))
	require.NoError(t, err)
	return l
}

func TestResetLedger_WritesBackupFirst(t *testing.T) {
	l := seededLedger(t)
	dir := t.TempDir()

	path, err := resetLedger(context.Background(), l, dir, resetAt, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_before_reset_20240315_183005.json"), path)

	saved, err := document.ReadFile(path)
	require.NoError(t, err)
	expenses, _, _ := counts(saved)
	assert.Equal(t, 1, expenses)
	assert.Len(t, saved.Accounts, 2)

	assert.True(t, isEmpty(l.Snapshot()), "ledger is empty after reset")
	require.Len(t, l.Accounts(), 1)
	assert.Equal(t, ledger.WalletName, l.Accounts()[0].Name)
}

func TestResetLedger_WithoutBackup(t *testing.T) {
	l := seededLedger(t)
	dir := t.TempDir()

	path, err := resetLedger(context.Background(), l, dir, resetAt, false)
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.True(t, isEmpty(l.Snapshot()))
}

func TestResetLedger_BackupFailureKeepsData(t *testing.T) {
	l := seededLedger(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := resetLedger(context.Background(), l, blocker, resetAt, true)
	require.Error(t, err)
	assert.False(t, isEmpty(l.Snapshot()), "nothing is deleted when the backup cannot be written")
	assert.Len(t, l.Accounts(), 2)
}

func TestResetCommand_RequiresConfirmation(t *testing.T) {
	cmd := newResetCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	assert.ErrorIs(t, cmd.Execute(), errNotConfirmed)

	noBackup, err := cmd.Flags().GetBool("no-backup")
	require.NoError(t, err)
	assert.False(t, noBackup, "backups are on by default")
	dir, err := cmd.Flags().GetString("backup-dir")
	require.NoError(t, err)
	assert.Equal(t, ".", dir)
}
