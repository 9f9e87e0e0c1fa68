package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/backoffice/internal/identity"
	"github.com/congo-pay/backoffice/internal/ledger"
	"github.com/congo-pay/backoffice/internal/logging"
)

func TestApplyPostsCreditsAndDebits(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.SeedAccount(store, ledger.Account{ID: "a1", Balance: ledger.MustAmount("100.00")})
	ledger.SeedAccount(store, ledger.Account{ID: "a2", Balance: ledger.MustAmount("10.00")})
	led := ledger.NewService(store, store, nil, logging.Discard(), ledger.Options{})
	svc := NewService(led, logging.Discard())

	admin := identity.Actor{ID: "staff-1", Role: identity.RoleAdmin}
	text := "Refund from vendor — $25.00\nGroceries — $30\nnot a line"
	res, err := svc.Apply(context.Background(), admin, text, []string{"a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Intents, 2)

	// a1: 100 + 25 - 30 = 95; a2: 10 + 25 - 30 = 5
	a1, _ := store.GetAccount(context.Background(), "a1")
	a2, _ := store.GetAccount(context.Background(), "a2")
	assert.True(t, a1.Balance.Equal(ledger.MustAmount("95")), "a1 = %s", a1.Balance)
	assert.True(t, a2.Balance.Equal(ledger.MustAmount("5")), "a2 = %s", a2.Balance)

	txs, _ := store.ListTransactions(context.Background(), ledger.TransactionFilter{AccountID: "a1"})
	require.Len(t, txs, 2)
	assert.Equal(t, ledger.KindWithdrawal, txs[0].Kind)
	assert.Equal(t, "Groceries", txs[0].Description)
	assert.Equal(t, ledger.KindDeposit, txs[1].Kind)
}

func TestApplyReportsPerAccountFailures(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.SeedAccount(store, ledger.Account{ID: "rich", Balance: ledger.MustAmount("500")})
	ledger.SeedAccount(store, ledger.Account{ID: "poor", Balance: ledger.MustAmount("5")})
	led := ledger.NewService(store, store, nil, logging.Discard(), ledger.Options{})
	svc := NewService(led, logging.Discard())

	admin := identity.Actor{ID: "staff-1", Role: identity.RoleAdmin}
	res, err := svc.Apply(context.Background(), admin, "Rent — $100", []string{"rich", "poor"})
	require.NoError(t, err)
	require.Len(t, res.Intents, 1)

	items := res.Intents[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, ledger.OutcomeSuccess, items[0].Outcome)
	assert.Equal(t, ledger.OutcomeError, items[1].Outcome)
	assert.True(t, errors.Is(items[1].Err, ledger.ErrInsufficientFunds))
}

func TestImportPermissions(t *testing.T) {
	store := ledger.NewInMemory()
	led := ledger.NewService(store, store, nil, logging.Discard(), ledger.Options{})
	svc := NewService(led, logging.Discard())
	auditor := identity.Actor{ID: "staff-2", Role: identity.RoleAuditor}

	preview, err := svc.Preview(auditor, "Dividend — 12.00")
	require.NoError(t, err)
	require.Len(t, preview.Intents, 1)
	assert.Equal(t, Credit, preview.Intents[0].Kind)

	_, err = svc.Apply(context.Background(), auditor, "Dividend — 12.00", []string{"a1"})
	assert.ErrorIs(t, err, ledger.ErrPermissionDenied)

	_, err = svc.Preview(identity.Actor{}, "x — 1")
	assert.ErrorIs(t, err, ledger.ErrPermissionDenied)
}

func TestApplyZeroAmountLineDoesNotAbortImport(t *testing.T) {
	store := ledger.NewInMemory()
	ledger.SeedAccount(store, ledger.Account{ID: "a1", Balance: ledger.MustAmount("100.00")})
	led := ledger.NewService(store, store, nil, logging.Discard(), ledger.Options{})
	svc := NewService(led, logging.Discard())

	admin := identity.Actor{ID: "staff-1", Role: identity.RoleAdmin}
	res, err := svc.Apply(context.Background(), admin, "Refund — $25.00\nFee — $0.00\nGroceries — $30", []string{"a1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Intents, 2)
	for _, intent := range res.Intents {
		require.Len(t, intent.Items, 1)
		assert.Equal(t, ledger.OutcomeSuccess, intent.Items[0].Outcome)
	}

	a1, _ := store.GetAccount(context.Background(), "a1")
	assert.True(t, a1.Balance.Equal(ledger.MustAmount("95")), "a1 = %s", a1.Balance)
}

func TestApplyRejectsBlankAccountIDsBeforePosting(t *testing.T) {
	store := ledger.NewInMemory()
	led := ledger.NewService(store, store, nil, logging.Discard(), ledger.Options{})
	svc := NewService(led, logging.Discard())

	admin := identity.Actor{ID: "staff-1", Role: identity.RoleAdmin}
	_, err := svc.Apply(context.Background(), admin, "Refund — $25.00", []string{" ", ""})
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	txs, _ := store.ListTransactions(context.Background(), ledger.TransactionFilter{})
	assert.Empty(t, txs)
}
