package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/congo-pay/backoffice/internal/identity"
	"github.com/congo-pay/backoffice/internal/logging"
	"github.com/congo-pay/backoffice/internal/notification"
)

const (
	defaultStoreTimeout = 5 * time.Second
	defaultBulkWorkers  = 8
)

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	StoreTimeout time.Duration
	BulkWorkers  int
}

// Service owns the balance-mutation invariants: every successful operation
// produces one balance write, one transaction and (best effort) one audit entry.
type Service struct {
	store    Store
	audit    AuditStore
	notifier notification.Notifier
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
}

// NewService wires the ledger against its stores. The notifier may be nil.
func NewService(store Store, audit AuditStore, notifier notification.Notifier, logger *slog.Logger, opts Options) *Service {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.BulkWorkers <= 0 {
		opts.BulkWorkers = defaultBulkWorkers
	}
	return &Service{
		store:    store,
		audit:    audit,
		notifier: notifier,
		logger:   logging.Component(logger, "ledger"),
		opts:     opts,
		now:      time.Now,
	}
}

// BalanceRequest asks for one operation on one account. Reason is required
// for manual adjustments; system-originated calls may supply a Description
// instead. Kind overrides the recorded transaction kind for set/add/subtract.
type BalanceRequest struct {
	AccountID   string
	Operation   Operation
	Amount      decimal.Decimal
	Reason      string
	Description string
	Kind        TransactionKind
}

// BalanceResult is returned on success. Warning is non-nil (wrapping
// ErrAuditWriteFailed) when the financial write committed but the audit
// entry could not be recorded.
type BalanceResult struct {
	AccountID     string
	Before        decimal.Decimal
	After         decimal.Decimal
	TransactionID string
	Warning       error
}

func (r BalanceRequest) validate() error {
	if _, err := ParseOperation(string(r.Operation)); err != nil {
		return err
	}
	if err := ValidateAmount(r.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(r.Reason) == "" && strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidArgument)
	}
	if r.Kind != "" && !r.Kind.valid() {
		return fmt.Errorf("%w: unsupported transaction kind %q", ErrInvalidArgument, r.Kind)
	}
	return nil
}

func (r BalanceRequest) kind() TransactionKind {
	if r.Operation == OpDeposit || r.Operation == OpWithdrawal || r.Kind == "" {
		return r.Operation.kind()
	}
	return r.Kind
}

func (r BalanceRequest) description() string {
	if d := strings.TrimSpace(r.Description); d != "" {
		return d
	}
	return strings.TrimSpace(r.Reason)
}

// reason is what the audit trail records: the staff-supplied reason, or the
// description for system-originated calls that carry none.
func (r BalanceRequest) reason() string {
	if reason := strings.TrimSpace(r.Reason); reason != "" {
		return reason
	}
	return strings.TrimSpace(r.Description)
}

// ApplyBalanceOperation computes and persists a new balance for one account.
func (s *Service) ApplyBalanceOperation(ctx context.Context, actor identity.Actor, req BalanceRequest) (BalanceResult, error) {
	if err := authorizeMutation(actor); err != nil {
		return BalanceResult{}, err
	}
	if strings.TrimSpace(req.AccountID) == "" {
		return BalanceResult{}, fmt.Errorf("%w: account id is required", ErrInvalidArgument)
	}
	if err := req.validate(); err != nil {
		return BalanceResult{}, err
	}
	return s.apply(ctx, actor, req)
}

func (s *Service) apply(ctx context.Context, actor identity.Actor, req BalanceRequest) (BalanceResult, error) {
	var account Account
	if err := s.Call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.store.GetAccount(ctx, req.AccountID)
		return err
	}); err != nil {
		return BalanceResult{}, err
	}

	before := account.Balance
	after := req.Operation.Apply(before, req.Amount)
	if after.IsNegative() && account.Type != AccountTypeCredit {
		return BalanceResult{}, fmt.Errorf("%w: account %s holds %s, operation %s %s would leave %s",
			ErrInsufficientFunds, account.ID, before.StringFixed(currencyScale), req.Operation, req.Amount.StringFixed(currencyScale), after.StringFixed(currencyScale))
	}

	tx := Transaction{
		ID:           uuid.NewString(),
		AccountID:    account.ID,
		OwnerID:      account.OwnerID,
		Kind:         req.kind(),
		SignedAmount: after.Sub(before),
		Description:  req.description(),
		Status:       TransactionCompleted,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.Call(ctx, func(ctx context.Context) error {
		var err error
		tx, err = s.store.ApplyBalanceChange(ctx, BalanceChange{
			AccountID:       account.ID,
			ExpectedVersion: account.Version,
			NewBalance:      after,
			Transaction:     tx,
		})
		return err
	}); err != nil {
		return BalanceResult{}, err
	}

	result := BalanceResult{
		AccountID:     account.ID,
		Before:        before,
		After:         after,
		TransactionID: tx.ID,
	}

	entry := AuditLogEntry{
		ActorID:    actor.ID,
		Action:     ActionBalanceAdjustment,
		TargetType: TargetAccount,
		TargetID:   account.ID,
		Details: map[string]any{
			"operation":      string(req.Operation),
			"amount":         req.Amount.StringFixed(currencyScale),
			"before":         before.StringFixed(currencyScale),
			"after":          after.StringFixed(currencyScale),
			"reason":         req.reason(),
			"transaction_id": tx.ID,
		},
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		entry.Details["description"] = d
	}
	if err := s.recordAudit(ctx, entry); err != nil {
		s.logger.Error("audit write failed after committed balance change",
			slog.String("account_id", account.ID),
			slog.String("transaction_id", tx.ID),
			slog.String("actor_id", actor.ID),
			slog.Any("error", err),
		)
		result.Warning = fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
	}

	s.Notify(ctx, notification.Message{
		Kind:        notification.KindBalanceAdjusted,
		Destination: account.OwnerID,
		Body:        fmt.Sprintf("Balance changed from %s to %s", before.StringFixed(currencyScale), after.StringFixed(currencyScale)),
		Data: map[string]string{
			"account_id":     account.ID,
			"transaction_id": tx.ID,
			"kind":           string(tx.Kind),
			"signed_amount":  tx.SignedAmount.StringFixed(currencyScale),
		},
		OccurredAt: tx.CreatedAt,
	})

	return result, nil
}

// Outcome of one account inside a bulk operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// BulkRequest applies the same operation and amount to many accounts.
type BulkRequest struct {
	AccountIDs  []string
	Operation   Operation
	Amount      decimal.Decimal
	Reason      string
	Description string
	Kind        TransactionKind
}

// BulkItem is the per-account result of a bulk operation.
type BulkItem struct {
	AccountID string
	Outcome   Outcome
	Detail    string
	Result    BalanceResult
	Err       error
}

// ApplyBulkOperation runs ApplyBalanceOperation independently for each
// distinct account. One account failing does not stop the others; results
// come back in input order.
func (s *Service) ApplyBulkOperation(ctx context.Context, actor identity.Actor, req BulkRequest) ([]BulkItem, error) {
	if err := authorizeMutation(actor); err != nil {
		return nil, err
	}
	ids := dedupe(req.AccountIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one account id is required", ErrInvalidArgument)
	}
	template := BalanceRequest{
		Operation:   req.Operation,
		Amount:      req.Amount,
		Reason:      req.Reason,
		Description: req.Description,
		Kind:        req.Kind,
	}
	if err := template.validate(); err != nil {
		return nil, err
	}

	items := make([]BulkItem, len(ids))
	var g errgroup.Group
	g.SetLimit(s.opts.BulkWorkers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			single := template
			single.AccountID = id
			res, err := s.apply(ctx, actor, single)
			items[i] = bulkItem(id, res, err)
			return nil
		})
	}
	_ = g.Wait()

	return items, nil
}

func bulkItem(id string, res BalanceResult, err error) BulkItem {
	if err != nil {
		return BulkItem{AccountID: id, Outcome: OutcomeError, Detail: err.Error(), Err: err}
	}
	item := BulkItem{AccountID: id, Outcome: OutcomeSuccess, Result: res}
	if res.Warning != nil {
		item.Detail = res.Warning.Error()
	}
	return item
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// GetAccount returns one account.
func (s *Service) GetAccount(ctx context.Context, actor identity.Actor, id string) (Account, error) {
	if err := authorizeRead(actor); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.Call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.store.GetAccount(ctx, id)
		return err
	})
	return account, err
}

// ListAccounts returns accounts matching the filter.
func (s *Service) ListAccounts(ctx context.Context, actor identity.Actor, filter AccountFilter) ([]Account, error) {
	if err := authorizeRead(actor); err != nil {
		return nil, err
	}
	var accounts []Account
	err := s.Call(ctx, func(ctx context.Context) error {
		var err error
		accounts, err = s.store.ListAccounts(ctx, filter)
		return err
	})
	return accounts, err
}

// ListTransactions returns transactions newest first.
func (s *Service) ListTransactions(ctx context.Context, actor identity.Actor, filter TransactionFilter) ([]Transaction, error) {
	if err := authorizeRead(actor); err != nil {
		return nil, err
	}
	var txs []Transaction
	err := s.Call(ctx, func(ctx context.Context) error {
		var err error
		txs, err = s.store.ListTransactions(ctx, filter)
		return err
	})
	return txs, err
}

// ListAuditLog returns audit entries newest first.
func (s *Service) ListAuditLog(ctx context.Context, actor identity.Actor, filter AuditFilter) ([]AuditLogEntry, error) {
	if err := authorizeRead(actor); err != nil {
		return nil, err
	}
	var entries []AuditLogEntry
	err := s.Call(ctx, func(ctx context.Context) error {
		var err error
		entries, err = s.audit.ListAuditLog(ctx, filter)
		return err
	})
	return entries, err
}

// RecordAudit appends an audit entry for actions performed outside the
// balance flow (account lifecycle). Failures are logged and returned as a
// warning wrapping ErrAuditWriteFailed.
func (s *Service) RecordAudit(ctx context.Context, entry AuditLogEntry) error {
	if err := s.recordAudit(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			slog.String("action", entry.Action),
			slog.String("target_id", entry.TargetID),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %v", ErrAuditWriteFailed, err)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, entry AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	return s.Call(ctx, func(ctx context.Context) error {
		return s.audit.AppendAudit(ctx, entry)
	})
}

// Notify forwards a message to the configured notifier, logging failures.
func (s *Service) Notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	if err := s.notifier.Send(callCtx, msg); err != nil {
		s.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}

// Call runs one store operation under the per-call deadline and maps
// unexpected failures onto ErrTimeout or ErrStore.
func (s *Service) Call(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return classify(fn(callCtx))
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrTimeout), errors.Is(err, ErrStore):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
}

func authorizeMutation(actor identity.Actor) error {
	if actor.ID == "" || !actor.Role.CanMutate() {
		return fmt.Errorf("%w: role %q may not modify the ledger", ErrPermissionDenied, actor.Role)
	}
	return nil
}

func authorizeRead(actor identity.Actor) error {
	if actor.ID == "" || !actor.Role.CanRead() {
		return fmt.Errorf("%w: role %q may not read the ledger", ErrPermissionDenied, actor.Role)
	}
	return nil
}
