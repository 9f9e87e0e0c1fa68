package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/backoffice/internal/identity"
)

// ActorFunc extracts the authenticated actor from the request.
type ActorFunc func(c *fiber.Ctx) (identity.Actor, bool)

// Handler exposes ledger HTTP endpoints.
type Handler struct {
	service *Service
	actor   ActorFunc
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service, actor ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

// StatusFor maps a ledger error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

// RespondError writes the error envelope used by every back-office route.
func RespondError(c *fiber.Ctx, err error) error {
	return c.Status(StatusFor(err)).JSON(fiber.Map{
		"error": fiber.Map{"code": Code(err), "message": err.Error()},
	})
}

// AccountResponse is the wire form of an account.
type AccountResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Type      string    `json:"type"`
	Balance   string    `json:"balance"`
	Status    string    `json:"status"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccountResponse renders an account for JSON output.
func NewAccountResponse(a Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		OwnerID:   a.OwnerID,
		Type:      string(a.Type),
		Balance:   a.Balance.StringFixed(currencyScale),
		Status:    string(a.Status),
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type transactionResponse struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	OwnerID      string    `json:"owner_id"`
	Kind         string    `json:"kind"`
	SignedAmount string    `json:"signed_amount"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type auditResponse struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

type balanceRequest struct {
	Operation   string          `json:"operation"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	Description string          `json:"description"`
	Kind        string          `json:"kind"`
}

// BalanceResponse is the wire form of a committed balance operation.
type BalanceResponse struct {
	AccountID     string `json:"account_id"`
	Before        string `json:"before"`
	After         string `json:"after"`
	TransactionID string `json:"transaction_id"`
	Warning       string `json:"warning,omitempty"`
}

// NewBalanceResponse renders a balance result for JSON output.
func NewBalanceResponse(res BalanceResult) BalanceResponse {
	out := BalanceResponse{
		AccountID:     res.AccountID,
		Before:        res.Before.StringFixed(currencyScale),
		After:         res.After.StringFixed(currencyScale),
		TransactionID: res.TransactionID,
	}
	if res.Warning != nil {
		out.Warning = res.Warning.Error()
	}
	return out
}

type bulkRequest struct {
	AccountIDs  []string        `json:"account_ids"`
	Operation   string          `json:"operation"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	Description string          `json:"description"`
	Kind        string          `json:"kind"`
}

type bulkItemResponse struct {
	AccountID     string `json:"account_id"`
	Outcome       string `json:"outcome"`
	Code          string `json:"code,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Before        string `json:"before,omitempty"`
	After         string `json:"after,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// BulkResponse summarises a bulk run.
type BulkResponse struct {
	Results   []bulkItemResponse `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// NewBulkResponse renders bulk items for JSON output.
func NewBulkResponse(items []BulkItem) BulkResponse {
	out := BulkResponse{Results: make([]bulkItemResponse, 0, len(items))}
	for _, item := range items {
		row := bulkItemResponse{AccountID: item.AccountID, Outcome: string(item.Outcome), Detail: item.Detail}
		if item.Outcome == OutcomeSuccess {
			out.Succeeded++
			row.Before = item.Result.Before.StringFixed(currencyScale)
			row.After = item.Result.After.StringFixed(currencyScale)
			row.TransactionID = item.Result.TransactionID
		} else {
			out.Failed++
			row.Code = Code(item.Err)
		}
		out.Results = append(out.Results, row)
	}
	return out
}

// GetAccount returns one account.
func (h *Handler) GetAccount(c *fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	account, err := h.service.GetAccount(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(NewAccountResponse(account))
}

// ListAccounts lists accounts filtered by status, type and owner.
func (h *Handler) ListAccounts(c *fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	accounts, err := h.service.ListAccounts(c.UserContext(), actor, AccountFilter{
		Status:  AccountStatus(c.Query("status")),
		Type:    AccountType(c.Query("type")),
		OwnerID: c.Query("owner_id"),
		Limit:   c.QueryInt("limit"),
		Offset:  c.QueryInt("offset"),
	})
	if err != nil {
		return RespondError(c, err)
	}
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, NewAccountResponse(a))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"accounts": out})
}

// ApplyBalance applies one operation to the account in the path.
func (h *Handler) ApplyBalance(c *fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req balanceRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondError(c, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	// Manual adjustments need a staff reason.
	if strings.TrimSpace(req.Reason) == "" {
		return RespondError(c, fmt.Errorf("%w: reason is required", ErrInvalidArgument))
	}
	op, err := ParseOperation(req.Operation)
	if err != nil {
		return RespondError(c, err)
	}
	res, err := h.service.ApplyBalanceOperation(c.UserContext(), actor, BalanceRequest{
		AccountID:   c.Params("id"),
		Operation:   op,
		Amount:      req.Amount,
		Reason:      req.Reason,
		Description: req.Description,
		Kind:        TransactionKind(req.Kind),
	})
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(NewBalanceResponse(res))
}

// ApplyBulk applies one operation to many accounts.
func (h *Handler) ApplyBulk(c *fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req bulkRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondError(c, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	op, err := ParseOperation(req.Operation)
	if err != nil {
		return RespondError(c, err)
	}
	items, err := h.service.ApplyBulkOperation(c.UserContext(), actor, BulkRequest{
		AccountIDs:  req.AccountIDs,
		Operation:   op,
		Amount:      req.Amount,
		Reason:      req.Reason,
		Description: req.Description,
		Kind:        TransactionKind(req.Kind),
	})
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(NewBulkResponse(items))
}

// ListTransactions lists transactions, optionally for one account.
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	txs, err := h.service.ListTransactions(c.UserContext(), actor, TransactionFilter{
		AccountID: c.Query("account_id"),
		Limit:     c.QueryInt("limit"),
		Offset:    c.QueryInt("offset"),
	})
	if err != nil {
		return RespondError(c, err)
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse{
			ID:           tx.ID,
			AccountID:    tx.AccountID,
			OwnerID:      tx.OwnerID,
			Kind:         string(tx.Kind),
			SignedAmount: tx.SignedAmount.StringFixed(currencyScale),
			Description:  tx.Description,
			Status:       string(tx.Status),
			CreatedAt:    tx.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// ListAuditLog lists audit entries.
func (h *Handler) ListAuditLog(c *fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	entries, err := h.service.ListAuditLog(c.UserContext(), actor, AuditFilter{
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
		ActorID:    c.Query("actor_id"),
		Limit:      c.QueryInt("limit"),
		Offset:     c.QueryInt("offset"),
	})
	if err != nil {
		return RespondError(c, err)
	}
	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"audit_logs": out})
}
