package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securecart/internal/models"
	"securecart/internal/services/ledger"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashCommand(t *testing.T) {
	txn := models.Transaction{
		ID:              "txn_001",
		UserID:          "user-1",
		Amount:          250.75,
		MerchantName:    "Amazon",
		PaymentMethod:   "card",
		Location:        models.Location{Country: "US"},
		TransactionTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(txn)
	require.NoError(t, err)
	want, err := ledger.TransactionHash(&txn)
	require.NoError(t, err)

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "txn.json")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		out, err := run(t, "", "hash", path)
		require.NoError(t, err)
		assert.Contains(t, out, "hash:    "+want)
	})

	t.Run("stdin", func(t *testing.T) {
		out, err := run(t, string(data), "hash", "-")
		require.NoError(t, err)
		assert.Contains(t, out, want)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := run(t, "{", "hash", "-")
		assert.ErrorContains(t, err, "decode transaction")
	})
}

func TestResetRequiresConfirmation(t *testing.T) {
	_, err := run(t, "", "reset")
	assert.ErrorContains(t, err, "--yes")
}

func TestCreateAdminRequiresFields(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")
	_, err := run(t, "", "create-admin", "--username", "root")
	assert.ErrorContains(t, err, "required")
}
