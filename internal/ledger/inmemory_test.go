package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestInMemoryStore_ApplyBalanceChangeBumpsVersion(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedAccount(s, Account{ID: "acc-1", OwnerID: "owner-1", Balance: MustAmount("10.00")})

	tx, err := s.ApplyBalanceChange(ctx, BalanceChange{
		AccountID:       "acc-1",
		ExpectedVersion: 0,
		NewBalance:      MustAmount("15.00"),
		Transaction:     Transaction{ID: "tx-1", AccountID: "acc-1", SignedAmount: MustAmount("5.00")},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if tx.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be stamped")
	}

	account, err := s.GetAccount(ctx, "acc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if account.Version != 1 || !account.Balance.Equal(MustAmount("15")) {
		t.Fatalf("unexpected account %+v", account)
	}
}

func TestInMemoryStore_StaleVersionConflicts(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedAccount(s, Account{ID: "acc-1", Version: 3})

	_, err := s.ApplyBalanceChange(ctx, BalanceChange{AccountID: "acc-1", ExpectedVersion: 2, NewBalance: MustAmount("1")})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	txs, _ := s.ListTransactions(ctx, TransactionFilter{})
	if len(txs) != 0 {
		t.Fatalf("conflicting write must not record a transaction, got %d", len(txs))
	}
}

func TestInMemoryStore_MissingAccount(t *testing.T) {
	s := NewInMemory()
	if _, err := s.GetAccount(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.UpdateAccountStatus(context.Background(), "nope", AccountStatusPending, AccountStatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryStore_UpdateAccountStatusGuardsFrom(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedAccount(s, Account{ID: "acc-1", Status: AccountStatusPending})

	if _, err := s.UpdateAccountStatus(ctx, "acc-1", AccountStatusActive, AccountStatusInactive); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	account, err := s.UpdateAccountStatus(ctx, "acc-1", AccountStatusPending, AccountStatusActive)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if account.Status != AccountStatusActive || account.Version != 1 {
		t.Fatalf("unexpected account %+v", account)
	}
}

func TestInMemoryStore_ListTransactionsNewestFirstAndPaged(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedAccount(s, Account{ID: "acc-1"})
	SeedAccount(s, Account{ID: "acc-2"})

	for i := 0; i < 3; i++ {
		for _, id := range []string{"acc-1", "acc-2"} {
			account, _ := s.GetAccount(ctx, id)
			if _, err := s.ApplyBalanceChange(ctx, BalanceChange{
				AccountID:       id,
				ExpectedVersion: account.Version,
				NewBalance:      account.Balance.Add(MustAmount("1")),
				Transaction:     Transaction{ID: fmt.Sprintf("%s-%d", id, i), AccountID: id},
			}); err != nil {
				t.Fatalf("apply %s: %v", id, err)
			}
		}
	}

	txs, err := s.ListTransactions(ctx, TransactionFilter{AccountID: "acc-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 3 || txs[0].ID != "acc-1-2" || txs[2].ID != "acc-1-0" {
		t.Fatalf("unexpected order %+v", txs)
	}

	paged, _ := s.ListTransactions(ctx, TransactionFilter{Limit: 2, Offset: 1})
	if len(paged) != 2 || paged[0].ID != "acc-1-2" {
		t.Fatalf("unexpected page %+v", paged)
	}
	empty, _ := s.ListTransactions(ctx, TransactionFilter{Offset: 100})
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

func TestInMemoryStore_ConcurrentWritersOnlyOneWinsPerVersion(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedAccount(s, Account{ID: "acc-1"})

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ApplyBalanceChange(ctx, BalanceChange{
				AccountID:       "acc-1",
				ExpectedVersion: 0,
				NewBalance:      MustAmount("1"),
				Transaction:     Transaction{ID: fmt.Sprintf("tx-%d", i), AccountID: "acc-1"},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrConflict) {
				t.Errorf("writer %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one writer to win, got %d", succeeded)
	}
}

func TestInMemoryStore_AuditFilters(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	_ = s.AppendAudit(ctx, AuditLogEntry{ID: "a1", ActorID: "u1", TargetType: TargetAccount, TargetID: "acc-1"})
	_ = s.AppendAudit(ctx, AuditLogEntry{ID: "a2", ActorID: "u2", TargetType: TargetAccount, TargetID: "acc-2"})

	entries, err := s.ListAuditLog(ctx, AuditFilter{ActorID: "u2"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "a2" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
