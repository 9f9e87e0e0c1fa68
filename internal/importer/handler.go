package importer

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/backoffice/internal/ledger"
)

// Handler exposes statement import endpoints.
type Handler struct {
	service *Service
	actor   ledger.ActorFunc
}

// NewHandler builds an import HTTP handler.
func NewHandler(service *Service, actor ledger.ActorFunc) *Handler {
	return &Handler{service: service, actor: actor}
}

type importRequest struct {
	Text       string   `json:"text"`
	AccountIDs []string `json:"account_ids"`
}

type intentResponse struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
}

func newIntentResponse(i Intent) intentResponse {
	return intentResponse{Description: i.Description, Amount: i.Amount.StringFixed(2), Kind: string(i.Kind)}
}

// Preview parses pasted text and returns the intents it would post.
func (h *Handler) Preview(c *fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req importRequest
	if err := c.BodyParser(&req); err != nil {
		return ledger.RespondError(c, fmt.Errorf("%w: %v", ledger.ErrInvalidArgument, err))
	}
	res, err := h.service.Preview(actor, req.Text)
	if err != nil {
		return ledger.RespondError(c, err)
	}
	intents := make([]intentResponse, 0, len(res.Intents))
	for _, i := range res.Intents {
		intents = append(intents, newIntentResponse(i))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"intents": intents, "skipped": res.Skipped})
}

// Apply parses pasted text and posts it to the selected accounts.
func (h *Handler) Apply(c *fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req importRequest
	if err := c.BodyParser(&req); err != nil {
		return ledger.RespondError(c, fmt.Errorf("%w: %v", ledger.ErrInvalidArgument, err))
	}
	res, err := h.service.Apply(c.UserContext(), actor, req.Text, req.AccountIDs)
	if err != nil {
		return ledger.RespondError(c, err)
	}
	type appliedIntent struct {
		intentResponse
		ledger.BulkResponse
	}
	out := make([]appliedIntent, 0, len(res.Intents))
	for _, r := range res.Intents {
		out = append(out, appliedIntent{intentResponse: newIntentResponse(r.Intent), BulkResponse: ledger.NewBulkResponse(r.Items)})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"intents": out, "skipped": res.Skipped})
}
