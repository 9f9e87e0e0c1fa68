package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a referenced account or transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument covers malformed amounts, blank reasons and unknown operations.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientFunds occurs when a posting would drive a non-credit
	// account below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPermissionDenied is returned when the actor's role may not perform the call.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConflict indicates the account changed between read and write. The
	// caller should re-read and retry once.
	ErrConflict = errors.New("concurrent modification")

	// ErrAuditWriteFailed is never returned as the primary error: it wraps the
	// warning attached to a successful result whose audit insert failed.
	ErrAuditWriteFailed = errors.New("audit write failed")

	// ErrStore wraps transport and constraint failures from the backing store.
	ErrStore = errors.New("store error")

	// ErrTimeout wraps store calls that exceeded their deadline.
	ErrTimeout = errors.New("store timeout")
)

// Code returns the stable machine-readable tag for a ledger error.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAuditWriteFailed):
		return "audit_write_failed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "store_error"
	}
}

// AccountType classifies an account. Only credit accounts may go negative.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeBusiness   AccountType = "business"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeCredit     AccountType = "credit"
)

// ParseAccountType validates an account type tag.
func ParseAccountType(raw string) (AccountType, bool) {
	switch t := AccountType(strings.ToLower(strings.TrimSpace(raw))); t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeBusiness, AccountTypeInvestment, AccountTypeCredit:
		return t, true
	default:
		return "", false
	}
}

// AccountStatus is the enrollment state of an account.
type AccountStatus string

const (
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusActive   AccountStatus = "active"
	AccountStatusRejected AccountStatus = "rejected"
	AccountStatusInactive AccountStatus = "inactive"
)

// TransactionKind tags the business meaning of a balance change.
type TransactionKind string

const (
	KindDeposit         TransactionKind = "deposit"
	KindWithdrawal      TransactionKind = "withdrawal"
	KindAdjustment      TransactionKind = "adjustment"
	KindTransfer        TransactionKind = "transfer"
	KindFee             TransactionKind = "fee"
	KindAdminAdjustment TransactionKind = "admin_adjustment"
)

func (k TransactionKind) valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindAdjustment, KindTransfer, KindFee, KindAdminAdjustment:
		return true
	default:
		return false
	}
}

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// Audit actions and targets written by the back office.
const (
	ActionBalanceAdjustment    = "balance_adjustment"
	ActionAccountCreated       = "account_created"
	ActionAccountStatusChanged = "account_status_changed"

	TargetAccount = "account"
)

// Account is a ledger record holding a balance for one owner.
type Account struct {
	ID        string
	OwnerID   string
	Type      AccountType
	Balance   decimal.Decimal
	Status    AccountStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is an immutable record of a balance change.
type Transaction struct {
	ID           string
	AccountID    string
	OwnerID      string
	Kind         TransactionKind
	SignedAmount decimal.Decimal
	Description  string
	Status       TransactionStatus
	CreatedAt    time.Time
}

// AuditLogEntry is an append-only record of an administrative action.
type AuditLogEntry struct {
	ID         string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Details    map[string]any
	CreatedAt  time.Time
}

// BalanceChange is the atomic unit the store persists for a balance
// operation: a conditional account update plus its transaction row.
type BalanceChange struct {
	AccountID       string
	ExpectedVersion int64
	NewBalance      decimal.Decimal
	Transaction     Transaction
}

// AccountFilter narrows account listings. Zero values mean "any".
type AccountFilter struct {
	Status  AccountStatus
	Type    AccountType
	OwnerID string
	Limit   int
	Offset  int
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	AccountID string
	Limit     int
	Offset    int
}

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	TargetType string
	TargetID   string
	ActorID    string
	Limit      int
	Offset     int
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Store is the row store behind the ledger. Implementations return
// ErrNotFound and ErrConflict for the conditions the service relies on.
type Store interface {
	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)
	// UpdateAccountStatus moves an account from one status to another and
	// fails with ErrConflict when the current status is not from.
	UpdateAccountStatus(ctx context.Context, id string, from, to AccountStatus) (Account, error)
	// ApplyBalanceChange writes the new balance only if the account version
	// still matches, and records the transaction in the same unit of work.
	ApplyBalanceChange(ctx context.Context, change BalanceChange) (Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

// AuditStore is the append-only audit log.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditLogEntry) error
	ListAuditLog(ctx context.Context, filter AuditFilter) ([]AuditLogEntry, error)
}
