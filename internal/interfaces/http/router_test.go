package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/application/receiving"
	"github.com/jhoicas/stock-ledger/internal/application/settlement"
	"github.com/jhoicas/stock-ledger/internal/application/transfer"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/metrics"
)

// fakeIdempotencyStore implementa pkgredis.IdempotencyStore en memoria.
// getDelay simula la latencia de red de Redis en las lecturas.
type fakeIdempotencyStore struct {
	mu       sync.Mutex
	data     map[string]string
	getDelay time.Duration
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{data: map[string]string{}}
}

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if f.getDelay > 0 {
		time.Sleep(f.getDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeIdempotencyStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	return nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "ledger:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

type apiFixture struct {
	t    *testing.T
	app  *fiber.App
	idem *fakeIdempotencyStore
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.New(time.Second)
	store.AddBranch(entity.Branch{ID: "b1", Name: "Centro", Active: true})
	store.AddBranch(entity.Branch{ID: "b2", Name: "Norte", Active: true})
	store.AddProduct(entity.Product{ID: "p1", Name: "Martillo", Unit: "pcs", ReorderLimit: decimal.NewFromInt(4), Active: true})
	store.AddClient(entity.Client{ID: "c1", Name: "Ana"})

	reg := prometheus.NewRegistry()
	engine := ledger.NewEngine(store, ledger.WithMetrics(metrics.NewLedgerMetrics(reg)))

	idem := newFakeIdempotencyStore()
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Engine:      engine,
		Transfers:   transfer.NewService(engine),
		Settlement:  settlement.NewService(engine),
		Receiving:   receiving.NewService(engine),
		JWTSecret:   testJWTSecret,
		JWTIssuer:   testIssuer,
		Idempotency: idem,
		Gatherer:    reg,
		ServiceName: "stock-ledger",
	})
	return &apiFixture{t: t, app: app, idem: idem}
}

type apiResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r apiResponse) json(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(r.body, &out), string(r.body))
	return out
}

func (f *apiFixture) do(method, path, auth string, body any, headers ...string) apiResponse {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	return apiResponse{status: resp.StatusCode, header: resp.Header, body: b}
}

func employeeAt(t *testing.T, branch string) string {
	return signToken(t, "emp-"+branch, branch, entity.RoleEmployee, time.Hour)
}

func adminToken(t *testing.T) string {
	return signToken(t, "root", "", entity.RoleAdmin, time.Hour)
}

func (f *apiFixture) receive(auth string, qty string) {
	f.t.Helper()
	res := f.do(http.MethodPost, "/api/receipts", auth, map[string]any{
		"branch_id": "b1",
		"items":     []map[string]any{{"product_id": "p1", "quantity": qty, "purchase_price": "5", "sale_price": "10"}},
	})
	require.Equal(f.t, http.StatusCreated, res.status, string(res.body))
}

func stockOf(t *testing.T, f *apiFixture, branch string) string {
	t.Helper()
	res := f.do(http.MethodGet, "/api/branches/"+branch+"/stock", adminToken(t), nil)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	var levels []map[string]any
	require.NoError(t, json.Unmarshal(res.body, &levels))
	for _, l := range levels {
		if l["product_id"] == "p1" {
			return l["quantity"].(string)
		}
	}
	return "0"
}

func TestHealth(t *testing.T) {
	f := newAPI(t)
	res := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.json(t)["status"])
}

func TestAPI_RequiresToken(t *testing.T) {
	f := newAPI(t)
	res := f.do(http.MethodGet, "/api/branches/b1/stock", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestAPI_ReceiptAndStock(t *testing.T) {
	f := newAPI(t)
	emp := employeeAt(t, "b1")
	f.receive(emp, "10")
	assert.Equal(t, "10", stockOf(t, f, "b1"))

	res := f.do(http.MethodGet, "/api/receipts?branch_id=b1", emp, nil)
	require.Equal(t, http.StatusOK, res.status)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(res.body, &list))
	require.Len(t, list, 1)

	id := list[0]["id"].(string)
	res = f.do(http.MethodPost, "/api/receipts/"+id+"/cancel", emp, nil)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.NotEmpty(t, res.json(t)["cancelled_at"])
	assert.Equal(t, "0", stockOf(t, f, "b1"))

	res = f.do(http.MethodPost, "/api/receipts/"+id+"/cancel", emp, nil)
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "INVALID_STATE", res.json(t)["code"])
}

func TestAPI_CheckoutErrors(t *testing.T) {
	f := newAPI(t)
	emp := employeeAt(t, "b1")
	f.receive(emp, "3")

	res := f.do(http.MethodPost, "/api/sales", emp, map[string]any{
		"branch_id": "b1",
		"items":     []map[string]any{{"product_id": "p1", "quantity": "5", "unit_price": "10"}},
		"cash":      "50",
	})
	require.Equal(t, http.StatusConflict, res.status, string(res.body))
	body := res.json(t)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "5", details["requested"])
	assert.Equal(t, "3", details["available"])

	res = f.do(http.MethodPost, "/api/sales", emp, map[string]any{
		"branch_id": "b1",
		"items":     []map[string]any{{"product_id": "p1", "quantity": "1", "unit_price": "10"}},
		"cash":      "7",
	})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "AMOUNT_MISMATCH", res.json(t)["code"])

	res = f.do(http.MethodPost, "/api/sales", emp, map[string]any{"branch_id": "b1", "items": []any{}})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION", res.json(t)["code"])

	res = f.do(http.MethodPost, "/api/sales", employeeAt(t, "b2"), map[string]any{
		"branch_id": "b1",
		"items":     []map[string]any{{"product_id": "p1", "quantity": "1", "unit_price": "10"}},
		"cash":      "10",
	})
	assert.Equal(t, http.StatusForbidden, res.status)

	assert.Equal(t, "3", stockOf(t, f, "b1"))
}

func TestAPI_CreditSaleReturnAndPayment(t *testing.T) {
	f := newAPI(t)
	emp := employeeAt(t, "b1")
	f.receive(emp, "10")

	res := f.do(http.MethodPost, "/api/sales", emp, map[string]any{
		"branch_id": "b1",
		"client_id": "c1",
		"items":     []map[string]any{{"product_id": "p1", "quantity": "10", "unit_price": "10"}},
		"cash":      "60",
		"credit":    "40",
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	sale := res.json(t)
	saleID := sale["id"].(string)
	lineID := sale["items"].([]any)[0].(map[string]any)["id"].(string)

	res = f.do(http.MethodPost, "/api/sales/"+saleID+"/returns", emp, map[string]any{
		"items": []map[string]any{{"sale_item_id": lineID, "quantity": "5"}},
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	ret := res.json(t)
	assert.Equal(t, "20", ret["credit_relief"])
	assert.Equal(t, "20", ret["client_debt"])

	res = f.do(http.MethodPost, "/api/sales/"+saleID+"/returns", emp, map[string]any{
		"items": []map[string]any{{"sale_item_id": lineID, "quantity": "6"}},
	})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "OVER_RETURN", res.json(t)["code"])

	res = f.do(http.MethodPost, "/api/clients/c1/payments", emp, map[string]any{"amount": "25"})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "OVERPAYMENT", res.json(t)["code"])

	res = f.do(http.MethodPost, "/api/clients/c1/payments", emp, map[string]any{"amount": "5"})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.Equal(t, "15", res.json(t)["debt"])

	res = f.do(http.MethodGet, "/api/clients/c1/debt", emp, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.json(t)["entries"], 3)

	res = f.do(http.MethodGet, "/api/sales/"+saleID, emp, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.json(t)["returns"], 1)
}

func TestAPI_MovementFlow(t *testing.T) {
	f := newAPI(t)
	from := employeeAt(t, "b1")
	to := employeeAt(t, "b2")
	f.receive(from, "8")

	res := f.do(http.MethodPost, "/api/movements", from, map[string]any{
		"from_branch_id": "b1",
		"to_branch_id":   "b2",
		"items":          []map[string]any{{"product_id": "p1", "quantity": "3"}},
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	id := res.json(t)["id"].(string)
	assert.Equal(t, "8", stockOf(t, f, "b1"))

	res = f.do(http.MethodPost, "/api/movements/"+id+"/accept", from, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = f.do(http.MethodPost, "/api/movements/"+id+"/accept", to, nil)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.Equal(t, "done", res.json(t)["status"])
	assert.Equal(t, "5", stockOf(t, f, "b1"))
	assert.Equal(t, "3", stockOf(t, f, "b2"))

	res = f.do(http.MethodPost, "/api/movements/"+id+"/reject", to, map[string]any{"reason": "tarde"})
	assert.Equal(t, http.StatusConflict, res.status)

	res = f.do(http.MethodGet, "/api/movements?status=done&branch_id=b2", to, nil)
	require.Equal(t, http.StatusOK, res.status)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(res.body, &list))
	assert.Len(t, list, 1)

	res = f.do(http.MethodGet, "/api/movements?status=lost", to, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = f.do(http.MethodGet, "/api/movements/nope", to, nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = f.do(http.MethodPost, "/api/movements", from, map[string]any{
		"from_branch_id": "b1",
		"to_branch_id":   "b1",
		"items":          []map[string]any{{"product_id": "p1", "quantity": "1"}},
	})
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestAPI_LedgerEventsAndReconcile(t *testing.T) {
	f := newAPI(t)
	emp := employeeAt(t, "b1")
	f.receive(emp, "4")
	f.receive(emp, "6")

	res := f.do(http.MethodGet, "/api/ledger/events?branch_id=b1&limit=1&offset=1", emp, nil)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	items := res.json(t)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "6", items[0].(map[string]any)["delta"])

	res = f.do(http.MethodGet, "/api/ledger/events?kind=BOGUS", emp, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = f.do(http.MethodGet, "/api/ledger/reconcile", emp, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = f.do(http.MethodGet, "/api/ledger/reconcile?branch_id=b1", adminToken(t), nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.json(t)["consistent"])

	res = f.do(http.MethodGet, "/api/branches/zz/stock", emp, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestAPI_Replenishment(t *testing.T) {
	f := newAPI(t)
	emp := employeeAt(t, "b1")
	f.receive(emp, "3")

	res := f.do(http.MethodGet, "/api/branches/b1/replenishment", emp, nil)
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	var items []map[string]any
	require.NoError(t, json.Unmarshal(res.body, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0]["product_id"])
	assert.Equal(t, "3", items[0]["suggested_qty"])

	f.receive(emp, "5")
	res = f.do(http.MethodGet, "/api/branches/b1/replenishment", emp, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.JSONEq(t, "[]", string(res.body))
}

func TestAPI_IdempotentCheckout(t *testing.T) {
	f := newAPI(t)
	emp := employeeAt(t, "b1")
	f.receive(emp, "10")

	body := map[string]any{
		"branch_id": "b1",
		"items":     []map[string]any{{"product_id": "p1", "quantity": "2", "unit_price": "10"}},
		"cash":      "20",
	}
	first := f.do(http.MethodPost, "/api/sales", emp, body, apphttp.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, first.status, string(first.body))

	second := f.do(http.MethodPost, "/api/sales", emp, body, apphttp.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusCreated, second.status)
	assert.Equal(t, "true", second.header.Get("Idempotent-Replay"))
	assert.Equal(t, first.json(t)["id"], second.json(t)["id"])
	assert.Equal(t, "8", stockOf(t, f, "b1"))

	body["cash"] = "21"
	third := f.do(http.MethodPost, "/api/sales", emp, body, apphttp.HeaderIdempotencyKey, "k-1")
	assert.Equal(t, http.StatusConflict, third.status)
	assert.Equal(t, "IDEMPOTENCY_MISMATCH", third.json(t)["code"])

	// sin cabecera cada POST es un comando nuevo
	body["cash"] = "20"
	f.do(http.MethodPost, "/api/sales", emp, body)
	assert.Equal(t, "6", stockOf(t, f, "b1"))
}

func TestAPI_IdempotentCheckout_ConcurrentRetries(t *testing.T) {
	f := newAPI(t)
	emp := employeeAt(t, "b1")
	f.receive(emp, "10")
	f.idem.getDelay = 50 * time.Millisecond

	body := map[string]any{
		"branch_id": "b1",
		"items":     []map[string]any{{"product_id": "p1", "quantity": "2", "unit_price": "10"}},
		"cash":      "20",
	}
	const attempts = 4
	results := make([]apiResponse, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.do(http.MethodPost, "/api/sales", emp, body, apphttp.HeaderIdempotencyKey, "retry-1")
		}(i)
	}
	wg.Wait()
	f.idem.getDelay = 0

	created := 0
	for _, res := range results {
		switch res.status {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			assert.Equal(t, "IDEMPOTENCY_IN_PROGRESS", res.json(t)["code"])
		default:
			t.Fatalf("estado inesperado %d: %s", res.status, res.body)
		}
	}
	assert.GreaterOrEqual(t, created, 1)
	assert.Equal(t, "8", stockOf(t, f, "b1"))

	// terminado el primero, los reintentos se repiten
	again := f.do(http.MethodPost, "/api/sales", emp, body, apphttp.HeaderIdempotencyKey, "retry-1")
	assert.Equal(t, http.StatusCreated, again.status)
	assert.Equal(t, "true", again.header.Get("Idempotent-Replay"))
	assert.Equal(t, "8", stockOf(t, f, "b1"))
}

func TestAPI_Metrics(t *testing.T) {
	f := newAPI(t)
	f.receive(employeeAt(t, "b1"), "1")

	res := f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	text := string(res.body)
	assert.Contains(t, text, `ledger_events_applied_total{kind="RECEIPT"} 1`)
	assert.Contains(t, text, `ledger_commands_total{command="receive_stock",outcome="ok"} 1`)
}
