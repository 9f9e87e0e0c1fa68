package ledger

import (
	"github.com/shopspring/decimal"
)

// SeedAccount inserts or replaces an account directly in an in-memory store,
// bypassing the lifecycle and audit trail. Intended for tests and dev fixtures.
func SeedAccount(s *InMemoryStore, account Account) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if account.Status == "" {
		account.Status = AccountStatusActive
	}
	if account.Type == "" {
		account.Type = AccountTypeChecking
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	s.accounts[account.ID] = account
	return account
}

// MustAmount parses a decimal literal and panics on malformed input.
func MustAmount(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}
