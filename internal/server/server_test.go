package server

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/backoffice/internal/config"
	"github.com/congo-pay/backoffice/internal/logging"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:                "backoffice-test",
		Env:                    "test",
		JWTSecret:              "access",
		RefreshSecret:          "refresh",
		AccessTokenTTL:         time.Minute,
		RefreshTokenTTL:        time.Hour,
		StoreTimeout:           time.Second,
		BulkWorkers:            4,
		BootstrapAdminEmail:    "root@bank.test",
		BootstrapAdminPassword: "correct-horse",
	}
	srv, err := New(cfg, nil, nil, nil, logging.Discard())
	require.NoError(t, err)
	return srv.App()
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	status, body := call(t, app, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, status, "login body: %v", body)
	return body["access_token"].(string)
}

func errorCodeOf(body map[string]any) string {
	envelope, _ := body["error"].(map[string]any)
	code, _ := envelope["code"].(string)
	return code
}

func TestBackOfficeFlow(t *testing.T) {
	app := newTestApp(t)
	root := login(t, app, "root@bank.test", "correct-horse")

	status, body := call(t, app, fiber.MethodPost, "/api/v1/accounts", root, map[string]any{
		"owner_id": "customer-1", "type": "checking", "initial_deposit": "100.00",
	})
	require.Equal(t, fiber.StatusCreated, status, "%v", body)
	acct := body["account"].(map[string]any)
	id := acct["id"].(string)
	assert.Equal(t, "pending", acct["status"])
	assert.Equal(t, "100.00", acct["balance"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/accounts/"+id+"/approve", root, nil)
	require.Equal(t, fiber.StatusOK, status, "%v", body)

	status, body = call(t, app, fiber.MethodPost, "/api/v1/accounts/"+id+"/balance", root, map[string]any{
		"operation": "subtract", "amount": "150.00", "reason": "test",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "insufficient_funds", errorCodeOf(body))

	status, body = call(t, app, fiber.MethodPost, "/api/v1/accounts/"+id+"/balance", root, map[string]any{
		"operation": "subtract", "amount": 40, "reason": "chargeback",
	})
	require.Equal(t, fiber.StatusOK, status, "%v", body)
	assert.Equal(t, "100.00", body["before"])
	assert.Equal(t, "60.00", body["after"])

	status, body = call(t, app, fiber.MethodPost, "/api/v1/accounts/"+id+"/balance", root, map[string]any{
		"operation": "add", "amount": "1", "reason": "",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_argument", errorCodeOf(body))

	status, body = call(t, app, fiber.MethodPost, "/api/v1/ledger/bulk", root, map[string]any{
		"account_ids": []string{id, "missing"}, "operation": "add", "amount": "5", "reason": "promo",
	})
	require.Equal(t, fiber.StatusOK, status, "%v", body)
	assert.EqualValues(t, 1, body["succeeded"])
	assert.EqualValues(t, 1, body["failed"])

	status, body = call(t, app, fiber.MethodGet, "/api/v1/transactions?account_id="+id, root, nil)
	require.Equal(t, fiber.StatusOK, status)
	txs := body["transactions"].([]any)
	require.Len(t, txs, 3)
	assert.Equal(t, "5.00", txs[0].(map[string]any)["signed_amount"])

	status, body = call(t, app, fiber.MethodGet, "/api/v1/audit-logs?target_id="+id, root, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["audit_logs"].([]any), 5)

	status, body = call(t, app, fiber.MethodGet, "/api/v1/accounts/"+id, root, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "65.00", body["balance"])
	assert.Equal(t, "active", body["status"])
}

func TestAuditorIsReadOnly(t *testing.T) {
	app := newTestApp(t)
	root := login(t, app, "root@bank.test", "correct-horse")

	status, body := call(t, app, fiber.MethodPost, "/api/v1/staff", root, map[string]string{
		"email": "audit@bank.test", "name": "Audit", "password": "auditor-pass", "role": "auditor",
	})
	require.Equal(t, fiber.StatusCreated, status, "%v", body)

	auditor := login(t, app, "audit@bank.test", "auditor-pass")

	status, _ = call(t, app, fiber.MethodGet, "/api/v1/accounts", auditor, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = call(t, app, fiber.MethodPost, "/api/v1/accounts", auditor, map[string]any{"owner_id": "c", "type": "savings"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "permission_denied", errorCodeOf(body))

	status, body = call(t, app, fiber.MethodPost, "/api/v1/imports/preview", auditor, map[string]string{
		"text": "Payment for feature film — $150,000\nLuxury jewelry purchase — $12,000",
	})
	require.Equal(t, fiber.StatusOK, status)
	intents := body["intents"].([]any)
	require.Len(t, intents, 2)
	assert.Equal(t, "150000.00", intents[0].(map[string]any)["amount"])
	assert.Equal(t, "credit", intents[0].(map[string]any)["kind"])
	assert.Equal(t, "debit", intents[1].(map[string]any)["kind"])

	status, _ = call(t, app, fiber.MethodPost, "/api/v1/staff", auditor, map[string]string{
		"email": "x@bank.test", "name": "X", "password": "whatever-pass", "role": "admin",
	})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestUnauthenticatedRequests(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, fiber.MethodGet, "/api/v1/accounts", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", errorCodeOf(body))

	status, _ = call(t, app, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "root@bank.test", "password": "nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = call(t, app, fiber.MethodGet, "/healthz", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestLogoutRevokesAccess(t *testing.T) {
	app := newTestApp(t)
	root := login(t, app, "root@bank.test", "correct-horse")

	status, _ := call(t, app, fiber.MethodPost, "/api/v1/auth/logout", root, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, app, fiber.MethodGet, "/api/v1/me", root, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
