package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyentrepreneur/internal/core/apperror"
	appctx "easyentrepreneur/internal/core/context"
	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/core/tenant"
	"easyentrepreneur/internal/domain"
	"easyentrepreneur/internal/domain/clients"
	"easyentrepreneur/internal/domain/documents"
	"easyentrepreneur/internal/domain/quota"
	"easyentrepreneur/internal/infrastructure/metrics"
	"easyentrepreneur/internal/infrastructure/storage/postgres"
	"easyentrepreneur/pkg/logger"
)

type tokenValidator struct{}

func (tokenValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token == "" || token == "bad" {
		return nil, errors.New("bad token")
	}
	return &appctx.UserContext{UserID: token, TenantID: token}, nil
}

type fakeDocs struct {
	mu        sync.Mutex
	createErr error
	creates   int
	docs      map[id.ID]*documents.Document
	next      map[numerator.Kind]int64
	panicOn   bool
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[id.ID]*documents.Document{}, next: map[numerator.Kind]int64{}}
}

func (f *fakeDocs) Create(_ context.Context, kind numerator.Kind, tenantID string, doc *documents.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn {
		panic("boom")
	}
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	f.next[kind]++
	doc.ID = id.New()
	doc.TenantID = tenantID
	doc.Number = numerator.Format(2025, f.next[kind], numerator.DefaultPadWidth)
	doc.CalculateTotals()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocs) GetByID(_ context.Context, kind numerator.Kind, tenantID string, docID id.ID) (*documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok || doc.TenantID != tenantID || doc.Kind != kind {
		return nil, apperror.NewNotFound(string(kind), docID)
	}
	return doc, nil
}

func (f *fakeDocs) GetByNumber(_ context.Context, kind numerator.Kind, tenantID, number string) (*documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.Number == number && doc.TenantID == tenantID && doc.Kind == kind {
			return doc, nil
		}
	}
	return nil, apperror.NewNotFound(string(kind), number)
}

func (f *fakeDocs) List(_ context.Context, kind numerator.Kind, tenantID string, filter domain.ListFilter) (domain.ListResult[*documents.Document], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*documents.Document
	for _, doc := range f.docs {
		if doc.TenantID == tenantID && doc.Kind == kind {
			items = append(items, doc)
		}
	}
	return domain.ListResult[*documents.Document]{Items: items, TotalCount: int64(len(items)), Limit: filter.Limit}, nil
}

func (f *fakeDocs) Delete(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID) error {
	doc, err := f.GetByID(ctx, kind, tenantID, docID)
	if err != nil {
		return err
	}
	doc.DeletionMark = true
	return nil
}

func (f *fakeDocs) History(context.Context, numerator.Kind, string, id.ID, int) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeClients struct {
	mu      sync.Mutex
	clients []*clients.Client
}

func (f *fakeClients) Create(_ context.Context, tenantID string, c *clients.Client) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = id.New()
	c.TenantID = tenantID
	f.clients = append(f.clients, c)
	return nil
}

func (f *fakeClients) GetByID(_ context.Context, tenantID string, clientID id.ID) (*clients.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		if c.ID == clientID && c.TenantID == tenantID {
			return c, nil
		}
	}
	return nil, apperror.NewNotFound("client", clientID.String())
}

func (f *fakeClients) List(_ context.Context, tenantID string) ([]*clients.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*clients.Client{}
	for _, c := range f.clients {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeUsage struct {
	usage quota.Usage
	err   error
}

func (f fakeUsage) Usage(context.Context, string) (quota.Usage, error) { return f.usage, f.err }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type memIdempotency struct {
	mu      sync.Mutex
	entries map[string]*postgres.IdempotencyReplay
	pending map[string]bool
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{entries: map[string]*postgres.IdempotencyReplay{}, pending: map[string]bool{}}
}

func (m *memIdempotency) Acquire(_ context.Context, userID, key, _, _ string) (*postgres.IdempotencyReplay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userID + "/" + key
	if r, ok := m.entries[k]; ok {
		return r, nil
	}
	if m.pending[k] {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	m.pending[k] = true
	return nil, nil
}

func (m *memIdempotency) Complete(_ context.Context, userID, key string, status int, ct string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userID + "/" + key
	delete(m.pending, k)
	m.entries[k] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: ct, Body: append([]byte(nil), body...)}
	return nil
}

func (m *memIdempotency) Release(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, userID+"/"+key)
	return nil
}

type testEnv struct {
	router  *gin.Engine
	docs    *fakeDocs
	clients *fakeClients
	idem   *memIdempotency
	reg    *prometheus.Registry
}

func newTestEnv(t *testing.T, usage fakeUsage, ping error) *testEnv {
	t.Helper()
	env := &testEnv{docs: newFakeDocs(), clients: &fakeClients{}, idem: newMemIdempotency(), reg: prometheus.NewRegistry()}
	env.router = NewRouter(RouterConfig{
		Logger:         logger.Nop(),
		JWTValidator:   tokenValidator{},
		Documents:      env.docs,
		Clients:        env.clients,
		Quota:          usage,
		Health:         fakePinger{err: ping},
		Idempotency:    env.idem,
		Metrics:        metrics.New(env.reg),
		MetricsHandler: promhttp.HandlerFor(env.reg, promhttp.HandlerOpts{}),
		Mode:           gin.TestMode,
	})
	return env
}

func (e *testEnv) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var invoiceBody = map[string]any{
	"client": map[string]any{"name": "ACME"},
	"lines": []map[string]any{
		{"description": "Consulting", "quantity": "2", "unitPrice": "100", "vatRate": "20"},
	},
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)

	w := env.do(http.MethodGet, "/api/v1/invoices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, decode(t, w)["code"])

	w = env.do(http.MethodGet, "/api/v1/invoices", "bad", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndFetchInvoice(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)

	w := env.do(http.MethodPost, "/api/v1/invoices", "u1", invoiceBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "2025-001", created["number"])
	assert.Equal(t, "invoice", created["kind"])
	assert.Equal(t, "200.00", created["totalHT"])
	assert.Equal(t, "40.00", created["totalVAT"])
	assert.Equal(t, "240.00", created["totalTTC"])

	w = env.do(http.MethodGet, "/api/v1/invoices/"+created["id"].(string), "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/invoices/number/2025-001", "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created["id"], decode(t, w)["id"])

	// Quotes have their own sequence and another tenant sees nothing.
	w = env.do(http.MethodPost, "/api/v1/quotes", "u1", invoiceBody)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "2025-001", decode(t, w)["number"])

	w = env.do(http.MethodGet, "/api/v1/invoices/"+created["id"].(string), "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/v1/invoices", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])

	w = env.do(http.MethodDelete, "/api/v1/invoices/"+created["id"].(string), "u1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/v1/invoices/"+created["id"].(string)+"/history", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["items"])
}

func TestCreate_BadRequests(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)

	w := env.do(http.MethodPost, "/api/v1/invoices", "u1", map[string]any{"client": map[string]any{"name": "x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/invoices/not-a-uuid", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.docs.creates)
}

func TestClientDirectory(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)

	w := env.do(http.MethodPost, "/api/v1/clients", "u1", map[string]any{"name": "ACME"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "address, zip, city and siret are required")

	w = env.do(http.MethodPost, "/api/v1/clients", "u1", map[string]any{
		"name": "ACME", "address": "12 rue de la Paix", "zip": "75002", "city": "Paris",
		"siret": "73282932000074", "vat": "FR44732829320",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "ACME", created["name"])
	assert.Equal(t, "FR44732829320", created["vat"])
	clientID := created["id"].(string)

	w = env.do(http.MethodGet, "/api/v1/clients/"+clientID, "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "75002", decode(t, w)["zip"])

	w = env.do(http.MethodGet, "/api/v1/clients/"+clientID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decode(t, w)["code"])

	w = env.do(http.MethodGet, "/api/v1/clients/not-a-uuid", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/clients", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = env.do(http.MethodGet, "/api/v1/clients", "u2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["items"])

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/clients", "", nil).Code)
}

func TestCreate_ByClientID(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)
	clientID := id.New()
	lines := invoiceBody["lines"]

	w := env.do(http.MethodPost, "/api/v1/invoices", "u1", map[string]any{"clientId": clientID.String(), "lines": lines})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, clientID.String(), decode(t, w)["clientId"])

	w = env.do(http.MethodPost, "/api/v1/invoices", "u1", map[string]any{"lines": lines})
	assert.Equal(t, http.StatusBadRequest, w.Code, "client or clientId is required")

	w = env.do(http.MethodPost, "/api/v1/invoices", "u1", map[string]any{"clientId": "nope", "lines": lines})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, env.docs.creates)
}

func TestCreate_QuotaExceeded(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)
	env.docs.createErr = apperror.NewQuotaExceeded("FREEMIUM", 5, 5)

	w := env.do(http.MethodPost, "/api/v1/invoices", "u1", invoiceBody)
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperror.CodeQuotaExceeded, body["code"])
	details := body["details"].(map[string]any)
	assert.EqualValues(t, 5, details["used"])
	assert.EqualValues(t, 5, details["max"])
}

func TestCreate_AllocationExhausted(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)
	env.docs.createErr = apperror.NewNumberAllocationExhausted("invoice", 10).
		WithCause(fmt.Errorf("%w after 10 attempts", numerator.ErrAllocationExhausted))

	w := env.do(http.MethodPost, "/api/v1/invoices", "u1", invoiceBody)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperror.CodeNumberAllocationExhausted, body["code"])
	assert.Equal(t, true, body["details"].(map[string]any)["retryable"])
}

func TestCreate_PanicIsRendered(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)
	env.docs.panicOn = true

	w := env.do(http.MethodPost, "/api/v1/invoices", "u1", invoiceBody)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, decode(t, w)["code"])
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)

	first := env.do(http.MethodPost, "/api/v1/invoices", "u1", invoiceBody, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.do(http.MethodPost, "/api/v1/invoices", "u1", invoiceBody, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, env.docs.creates)

	// Same key from another account is a different key.
	third := env.do(http.MethodPost, "/api/v1/invoices", "u2", invoiceBody, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, 2, env.docs.creates)
}

func TestIdempotency_FailureReleasesKey(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)
	env.docs.createErr = apperror.NewQuotaExceeded("FREEMIUM", 5, 5)

	w := env.do(http.MethodPost, "/api/v1/invoices", "u1", invoiceBody, "Idempotency-Key", "k-2")
	require.Equal(t, http.StatusForbidden, w.Code)

	env.docs.createErr = nil
	w = env.do(http.MethodPost, "/api/v1/invoices", "u1", invoiceBody, "Idempotency-Key", "k-2")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, env.docs.creates)
}

func TestQuotaEndpoint(t *testing.T) {
	window := quota.MonthWindow(time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC))
	max := 5
	env := newTestEnv(t, fakeUsage{usage: quota.Usage{Tier: tenant.TierFreemium, Used: 3, Max: &max, Window: window}}, nil)

	w := env.do(http.MethodGet, "/api/v1/quota", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["used"])
	assert.EqualValues(t, 5, body["max"])
	assert.EqualValues(t, 2, body["remaining"])
	assert.Equal(t, false, body["unlimited"])
	assert.Equal(t, "FREEMIUM", body["offer"])
	assert.Equal(t, "2025-02-01T00:00:00Z", body["windowStart"])

	unlimited := newTestEnv(t, fakeUsage{usage: quota.Usage{Tier: tenant.TierPremium, Used: 500, Window: window}}, nil)
	w = unlimited.do(http.MethodGet, "/api/v1/quota", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 99999, body["max"])
	assert.Equal(t, true, body["unlimited"])
	assert.Nil(t, body["remaining"])
	assert.Equal(t, "PREMIUM", body["offer"])

	failing := newTestEnv(t, fakeUsage{err: apperror.NewTenantNotFound("u1")}, nil)
	w = failing.do(http.MethodGet, "/api/v1/quota", "u1", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeTenantNotFound, decode(t, w)["code"])
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, fakeUsage{}, nil)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/ready", "", nil).Code)

	w := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "easyentrepreneur_http_request_duration_seconds")

	down := newTestEnv(t, fakeUsage{}, errors.New("connection refused"))
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/health/ready", "", nil).Code)
}
