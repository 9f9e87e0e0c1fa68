package ledger

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/backoffice/internal/identity"
)

func newHandlerApp(store *InMemoryStore) *fiber.App {
	h := NewHandler(newTestService(store, store), func(*fiber.Ctx) (identity.Actor, bool) {
		return admin, true
	})
	app := fiber.New()
	app.Post("/accounts/:id/balance", h.ApplyBalance)
	app.Post("/ledger/bulk", h.ApplyBulk)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode, out
}

func TestHandler_ApplyBalanceRequiresReason(t *testing.T) {
	store := NewInMemory()
	SeedAccount(store, Account{ID: "acc", Balance: MustAmount("10")})
	app := newHandlerApp(store)

	status, body := postJSON(t, app, "/accounts/acc/balance", `{"operation":"add","amount":"5","description":"Adj 123"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 without reason, got %d %v", status, body)
	}
	txs, _ := store.ListTransactions(context.Background(), TransactionFilter{})
	if len(txs) != 0 {
		t.Fatalf("rejected request must not post, got %d", len(txs))
	}

	status, body = postJSON(t, app, "/accounts/acc/balance", `{"operation":"add","amount":"5","reason":"goodwill"}`)
	if status != fiber.StatusOK || body["after"] != "15.00" {
		t.Fatalf("unexpected response %d %v", status, body)
	}
}

func TestHandler_ApplyBulkPassesKind(t *testing.T) {
	store := NewInMemory()
	SeedAccount(store, Account{ID: "a1", Balance: MustAmount("10")})
	SeedAccount(store, Account{ID: "a2", Balance: MustAmount("10")})
	app := newHandlerApp(store)

	status, body := postJSON(t, app, "/ledger/bulk",
		`{"account_ids":["a1","a2"],"operation":"subtract","amount":"1","reason":"monthly fee","kind":"fee"}`)
	if status != fiber.StatusOK || body["succeeded"] != float64(2) {
		t.Fatalf("unexpected response %d %v", status, body)
	}
	txs, _ := store.ListTransactions(context.Background(), TransactionFilter{})
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	for _, tx := range txs {
		if tx.Kind != KindFee {
			t.Fatalf("expected fee kind, got %+v", tx)
		}
	}
}
