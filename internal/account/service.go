package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/backoffice/internal/identity"
	"github.com/congo-pay/backoffice/internal/ledger"
	"github.com/congo-pay/backoffice/internal/logging"
	"github.com/congo-pay/backoffice/internal/notification"
)

// Transition names an enrollment action staff may take on an account.
type Transition string

const (
	Approve    Transition = "approve"
	Reject     Transition = "reject"
	Deactivate Transition = "deactivate"
	Reactivate Transition = "reactivate"
)

var transitions = map[Transition]struct{ from, to ledger.AccountStatus }{
	Approve:    {ledger.AccountStatusPending, ledger.AccountStatusActive},
	Reject:     {ledger.AccountStatusPending, ledger.AccountStatusRejected},
	Deactivate: {ledger.AccountStatusActive, ledger.AccountStatusInactive},
	Reactivate: {ledger.AccountStatusInactive, ledger.AccountStatusActive},
}

// Service manages account enrollment on top of the ledger.
type Service struct {
	store  ledger.Store
	ledger *ledger.Service
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds an account service instance.
func NewService(store ledger.Store, ledgerSvc *ledger.Service, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		ledger: ledgerSvc,
		logger: logging.Component(logger, "account"),
		now:    time.Now,
	}
}

// OpenInput captures data required to open an account.
type OpenInput struct {
	OwnerID        string
	Type           string
	InitialDeposit decimal.Decimal
}

// OpenResult is the created account plus the outcome of the optional
// initial deposit. Warning carries audit failures from either step.
type OpenResult struct {
	Account ledger.Account
	Deposit *ledger.BalanceResult
	Warning error
}

// Open creates a pending account and, when requested, funds it.
func (s *Service) Open(ctx context.Context, actor identity.Actor, input OpenInput) (OpenResult, error) {
	if !actor.Role.CanMutate() || actor.ID == "" {
		return OpenResult{}, fmt.Errorf("%w: role %q may not open accounts", ledger.ErrPermissionDenied, actor.Role)
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return OpenResult{}, fmt.Errorf("%w: owner id is required", ledger.ErrInvalidArgument)
	}
	kind, ok := ledger.ParseAccountType(input.Type)
	if !ok {
		return OpenResult{}, fmt.Errorf("%w: unsupported account type %q", ledger.ErrInvalidArgument, input.Type)
	}
	if !input.InitialDeposit.IsZero() {
		if err := ledger.ValidateAmount(input.InitialDeposit); err != nil {
			return OpenResult{}, fmt.Errorf("initial deposit: %w", err)
		}
	}

	account := ledger.Account{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Type:      kind,
		Balance:   decimal.Zero,
		Status:    ledger.AccountStatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.ledger.Call(ctx, func(ctx context.Context) error {
		return s.store.CreateAccount(ctx, account)
	}); err != nil {
		return OpenResult{}, err
	}

	var result OpenResult
	result.Warning = s.ledger.RecordAudit(ctx, ledger.AuditLogEntry{
		ActorID:    actor.ID,
		Action:     ledger.ActionAccountCreated,
		TargetType: ledger.TargetAccount,
		TargetID:   account.ID,
		Details: map[string]any{
			"owner_id": ownerID,
			"type":     string(kind),
		},
	})

	if input.InitialDeposit.IsPositive() {
		deposit, err := s.ledger.ApplyBalanceOperation(ctx, actor, ledger.BalanceRequest{
			AccountID:   account.ID,
			Operation:   ledger.OpDeposit,
			Amount:      input.InitialDeposit,
			Description: "initial deposit",
		})
		if err != nil {
			return OpenResult{}, fmt.Errorf("account %s created but initial deposit failed: %w", account.ID, err)
		}
		result.Deposit = &deposit
		if deposit.Warning != nil {
			result.Warning = deposit.Warning
		}
	}

	fresh, err := s.get(ctx, account.ID)
	if err != nil {
		return OpenResult{}, err
	}
	result.Account = fresh

	s.logger.Info("account opened",
		slog.String("account_id", account.ID),
		slog.String("owner_id", ownerID),
		slog.String("type", string(kind)),
		slog.String("actor_id", actor.ID),
	)
	return result, nil
}

// StatusResult is the account after a transition. Warning is non-nil when
// the audit entry could not be written.
type StatusResult struct {
	Account ledger.Account
	Warning error
}

// ChangeStatus applies an enrollment transition.
func (s *Service) ChangeStatus(ctx context.Context, actor identity.Actor, id string, action Transition) (StatusResult, error) {
	if !actor.Role.CanMutate() || actor.ID == "" {
		return StatusResult{}, fmt.Errorf("%w: role %q may not change account status", ledger.ErrPermissionDenied, actor.Role)
	}
	rule, ok := transitions[action]
	if !ok {
		return StatusResult{}, fmt.Errorf("%w: unknown transition %q", ledger.ErrInvalidArgument, action)
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return StatusResult{}, err
	}
	if current.Status != rule.from {
		return StatusResult{}, fmt.Errorf("%w: cannot %s an account that is %s", ledger.ErrInvalidArgument, action, current.Status)
	}

	var updated ledger.Account
	if err := s.ledger.Call(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.store.UpdateAccountStatus(ctx, id, rule.from, rule.to)
		return err
	}); err != nil {
		return StatusResult{}, err
	}

	warning := s.ledger.RecordAudit(ctx, ledger.AuditLogEntry{
		ActorID:    actor.ID,
		Action:     ledger.ActionAccountStatusChanged,
		TargetType: ledger.TargetAccount,
		TargetID:   id,
		Details: map[string]any{
			"action": string(action),
			"from":   string(rule.from),
			"to":     string(rule.to),
		},
	})

	s.ledger.Notify(ctx, notification.Message{
		Kind:        notification.KindAccountStatusChanged,
		Destination: updated.OwnerID,
		Body:        fmt.Sprintf("Account status changed from %s to %s", rule.from, rule.to),
		Data: map[string]string{
			"account_id": id,
			"from":       string(rule.from),
			"to":         string(rule.to),
		},
		OccurredAt: updated.UpdatedAt,
	})

	return StatusResult{Account: updated, Warning: warning}, nil
}

func (s *Service) get(ctx context.Context, id string) (ledger.Account, error) {
	var account ledger.Account
	err := s.ledger.Call(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.store.GetAccount(ctx, id)
		return err
	})
	return account, err
}
