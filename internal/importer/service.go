package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/congo-pay/backoffice/internal/identity"
	"github.com/congo-pay/backoffice/internal/ledger"
	"github.com/congo-pay/backoffice/internal/logging"
)

// Service turns pasted statements into ledger postings.
type Service struct {
	ledger *ledger.Service
	logger *slog.Logger
}

// NewService wires the importer to the ledger.
func NewService(ledgerSvc *ledger.Service, logger *slog.Logger) *Service {
	return &Service{ledger: ledgerSvc, logger: logging.Component(logger, "importer")}
}

// IntentResult pairs a parsed intent with the per-account outcomes of
// posting it.
type IntentResult struct {
	Intent Intent
	Items  []ledger.BulkItem
}

// ApplyResult is the outcome of an import.
type ApplyResult struct {
	Intents []IntentResult
	Skipped int
}

// Preview parses the text without touching any balance.
func (s *Service) Preview(actor identity.Actor, text string) (ParseResult, error) {
	if actor.ID == "" || !actor.Role.CanRead() {
		return ParseResult{}, fmt.Errorf("%w: role %q may not preview imports", ledger.ErrPermissionDenied, actor.Role)
	}
	return Parse(text), nil
}

// Apply posts every parsed intent, in order, to each selected account.
// Credits become deposits, debits become withdrawals. Every intent is checked
// before the first posting; once posting starts, failures are reported per
// account and never abort the remaining intents.
func (s *Service) Apply(ctx context.Context, actor identity.Actor, text string, accountIDs []string) (ApplyResult, error) {
	if actor.ID == "" || !actor.Role.CanMutate() {
		return ApplyResult{}, fmt.Errorf("%w: role %q may not apply imports", ledger.ErrPermissionDenied, actor.Role)
	}
	if len(accountIDs) == 0 {
		return ApplyResult{}, fmt.Errorf("%w: at least one account id is required", ledger.ErrInvalidArgument)
	}

	ids := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ApplyResult{}, fmt.Errorf("%w: at least one account id is required", ledger.ErrInvalidArgument)
	}

	parsed := Parse(text)
	for _, intent := range parsed.Intents {
		if err := ledger.ValidateAmount(intent.Amount); err != nil {
			return ApplyResult{}, fmt.Errorf("import line %q: %w", intent.Description, err)
		}
	}

	result := ApplyResult{Intents: make([]IntentResult, 0, len(parsed.Intents)), Skipped: parsed.Skipped}
	for _, intent := range parsed.Intents {
		op := ledger.OpWithdrawal
		if intent.Kind == Credit {
			op = ledger.OpDeposit
		}
		items, err := s.ledger.ApplyBulkOperation(ctx, actor, ledger.BulkRequest{
			AccountIDs:  ids,
			Operation:   op,
			Amount:      intent.Amount,
			Description: intent.Description,
		})
		if err != nil {
			s.logger.Error("import line rejected",
				slog.String("description", intent.Description),
				slog.Any("error", err),
			)
			items = failedItems(ids, err)
		}
		result.Intents = append(result.Intents, IntentResult{Intent: intent, Items: items})
	}

	s.logger.Info("statement imported",
		slog.String("actor_id", actor.ID),
		slog.Int("intents", len(result.Intents)),
		slog.Int("skipped", result.Skipped),
		slog.Int("accounts", len(accountIDs)),
	)
	return result, nil
}

func failedItems(ids []string, err error) []ledger.BulkItem {
	items := make([]ledger.BulkItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, ledger.BulkItem{AccountID: id, Outcome: ledger.OutcomeError, Detail: err.Error(), Err: err})
	}
	return items
}
