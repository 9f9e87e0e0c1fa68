package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a concurrency-safe Store and AuditStore used by unit
// tests and by the dev server when no database is configured.
type InMemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	transactions []Transaction
	audit        []AuditLogEntry
	now          func() time.Time
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[string]Account),
		now:      time.Now,
	}
}

func (s *InMemoryStore) CreateAccount(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s already exists", ErrConflict, account.ID)
	}
	now := s.now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	s.accounts[account.ID] = account
	return nil
}

func (s *InMemoryStore) GetAccount(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	return account, nil
}

func (s *InMemoryStore) ListAccounts(_ context.Context, filter AccountFilter) ([]Account, error) {
	s.mu.RLock()
	out := make([]Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		if filter.Status != "" && account.Status != filter.Status {
			continue
		}
		if filter.Type != "" && account.Type != filter.Type {
			continue
		}
		if filter.OwnerID != "" && account.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, account)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *InMemoryStore) UpdateAccountStatus(_ context.Context, id string, from, to AccountStatus) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	if account.Status != from {
		return Account{}, fmt.Errorf("%w: account %s is %s, expected %s", ErrConflict, id, account.Status, from)
	}
	account.Status = to
	account.Version++
	account.UpdatedAt = s.now().UTC()
	s.accounts[id] = account
	return account, nil
}

func (s *InMemoryStore) ApplyBalanceChange(_ context.Context, change BalanceChange) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[change.AccountID]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: account %s", ErrNotFound, change.AccountID)
	}
	if account.Version != change.ExpectedVersion {
		return Transaction{}, fmt.Errorf("%w: account %s at version %d, expected %d",
			ErrConflict, account.ID, account.Version, change.ExpectedVersion)
	}
	account.Balance = change.NewBalance
	account.Version++
	account.UpdatedAt = s.now().UTC()
	s.accounts[account.ID] = account

	tx := change.Transaction
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = account.UpdatedAt
	}
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (s *InMemoryStore) ListTransactions(_ context.Context, filter TransactionFilter) ([]Transaction, error) {
	s.mu.RLock()
	out := make([]Transaction, 0, len(s.transactions))
	// Appended in commit order, so walking backwards yields newest first.
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if filter.AccountID != "" && tx.AccountID != filter.AccountID {
			continue
		}
		out = append(out, tx)
	}
	s.mu.RUnlock()
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *InMemoryStore) AppendAudit(_ context.Context, entry AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	details := make(map[string]any, len(entry.Details))
	for k, v := range entry.Details {
		details[k] = v
	}
	entry.Details = details
	s.audit = append(s.audit, entry)
	return nil
}

func (s *InMemoryStore) ListAuditLog(_ context.Context, filter AuditFilter) ([]AuditLogEntry, error) {
	s.mu.RLock()
	out := make([]AuditLogEntry, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		entry := s.audit[i]
		if filter.TargetType != "" && entry.TargetType != filter.TargetType {
			continue
		}
		if filter.TargetID != "" && entry.TargetID != filter.TargetID {
			continue
		}
		if filter.ActorID != "" && entry.ActorID != filter.ActorID {
			continue
		}
		out = append(out, entry)
	}
	s.mu.RUnlock()
	return page(out, filter.Limit, filter.Offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	limit, offset = pageBounds(limit, offset)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
