package account

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/backoffice/internal/ledger"
)

// Handler exposes account lifecycle HTTP endpoints.
type Handler struct {
	service *Service
	actor   ledger.ActorFunc
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service, actor ledger.ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

type openRequest struct {
	OwnerID        string          `json:"owner_id"`
	Type           string          `json:"type"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
}

type openResponse struct {
	Account ledger.AccountResponse  `json:"account"`
	Deposit *ledger.BalanceResponse `json:"deposit,omitempty"`
	Warning string                  `json:"warning,omitempty"`
}

// Open creates a pending account for an owner.
func (h *Handler) Open(c *fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req openRequest
	if err := c.BodyParser(&req); err != nil {
		return ledger.RespondError(c, fmt.Errorf("%w: %v", ledger.ErrInvalidArgument, err))
	}
	res, err := h.service.Open(c.UserContext(), actor, OpenInput{
		OwnerID:        req.OwnerID,
		Type:           req.Type,
		InitialDeposit: req.InitialDeposit,
	})
	if err != nil {
		return ledger.RespondError(c, err)
	}
	out := openResponse{Account: ledger.NewAccountResponse(res.Account)}
	if res.Deposit != nil {
		dep := ledger.NewBalanceResponse(*res.Deposit)
		out.Deposit = &dep
	}
	if res.Warning != nil {
		out.Warning = res.Warning.Error()
	}
	return c.Status(http.StatusCreated).JSON(out)
}

// ChangeStatus returns a handler applying the given transition to :id.
func (h *Handler) ChangeStatus(action Transition) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := h.actor(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		res, err := h.service.ChangeStatus(c.UserContext(), actor, c.Params("id"), action)
		if err != nil {
			return ledger.RespondError(c, err)
		}
		body := fiber.Map{"account": ledger.NewAccountResponse(res.Account)}
		if res.Warning != nil {
			body["warning"] = res.Warning.Error()
		}
		return c.Status(http.StatusOK).JSON(body)
	}
}
