package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/backoffice/internal/account"
	"github.com/congo-pay/backoffice/internal/importer"
	"github.com/congo-pay/backoffice/internal/ledger"
)

// RegisterLedgerRoutes wires account, balance, transaction, audit and import
// endpoints. read guards viewing routes, write guards mutations.
func RegisterLedgerRoutes(r fiber.Router, lh *ledger.Handler, ah *account.Handler, ih *importer.Handler, read, write fiber.Handler) {
	r.Get("/accounts", read, lh.ListAccounts)
	r.Get("/accounts/:id", read, lh.GetAccount)
	r.Post("/accounts", write, ah.Open)
	r.Post("/accounts/:id/approve", write, ah.ChangeStatus(account.Approve))
	r.Post("/accounts/:id/reject", write, ah.ChangeStatus(account.Reject))
	r.Post("/accounts/:id/deactivate", write, ah.ChangeStatus(account.Deactivate))
	r.Post("/accounts/:id/reactivate", write, ah.ChangeStatus(account.Reactivate))
	r.Post("/accounts/:id/balance", write, lh.ApplyBalance)

	r.Post("/ledger/bulk", write, lh.ApplyBulk)
	r.Get("/transactions", read, lh.ListTransactions)
	r.Get("/audit-logs", read, lh.ListAuditLog)

	r.Post("/imports/preview", read, ih.Preview)
	r.Post("/imports/apply", write, ih.Apply)
}
