package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	appPayment "github.com/cassiomorais/payorders/internal/application/payment"
	"github.com/cassiomorais/payorders/internal/domain/method"
	"github.com/cassiomorais/payorders/internal/infrastructure/config"
	"github.com/cassiomorais/payorders/internal/infrastructure/gateway"
	"github.com/cassiomorais/payorders/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/payorders/internal/middleware"
	"github.com/cassiomorais/payorders/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

type routerEnv struct {
	router  *chi.Mux
	gateway *gateway.MockGateway
	clock   *testutil.Clock
}

func newRouterEnv(t *testing.T, mutate func(*RouterDeps), gwOpts ...gateway.MockOption) *routerEnv {
	t.Helper()
	env := &routerEnv{
		gateway: gateway.NewMockGateway("mock", append([]gateway.MockOption{
			gateway.WithLatency(0), gateway.WithFailureRate(0),
		}, gwOpts...)...),
		clock: testutil.NewClock(testutil.Epoch),
	}
	catalog := method.DefaultCatalog()
	svc := appPayment.NewService(
		appPayment.DefaultConfig(),
		testutil.NewMockPaymentRepository(),
		catalog,
		env.gateway,
		testutil.NewRecordingPublisher(),
		appPayment.WithClock(env.clock.Now),
	)

	reg := prometheus.NewRegistry()
	deps := RouterDeps{
		Service:        svc,
		Catalog:        catalog,
		Metrics:        observability.NewMetrics("test", reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		IdempotencyTTL: time.Hour,
		Server:         config.ServerConfig{CORS: config.CORSConfig{AllowedOrigins: []string{"*"}}},
	}
	if mutate != nil {
		mutate(&deps)
	}
	env.router = NewRouter(deps)
	return env
}

func (e *routerEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func createBody() map[string]any {
	return map[string]any{
		"order_id":    "order-1",
		"customer_id": "user-1",
		"email":       "buyer@example.com",
		"phone":       "+1 415 555 2671",
		"amount":      "100.00",
		"currency":    "USD",
		"method":      "bank_transfer",
	}
}

func (e *routerEnv) create(t *testing.T) PaymentResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/payments", createBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp CreatePaymentResponse
	decodeInto(t, w, &resp)
	return resp.Payment
}

func TestRouter_CreatePayment(t *testing.T) {
	env := newRouterEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/payments", createBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp CreatePaymentResponse
	decodeInto(t, w, &resp)
	if resp.Payment.Status != "pending" {
		t.Errorf("expected pending, got %s", resp.Payment.Status)
	}
	if !resp.Payment.Fee.Equal(decimal.RequireFromString("0.60")) {
		t.Errorf("expected fee 0.60, got %s", resp.Payment.Fee)
	}
	if !resp.Payment.Total.Equal(decimal.RequireFromString("100.60")) {
		t.Errorf("expected total 100.60, got %s", resp.Payment.Total)
	}
	if resp.Payment.Phone != "+14155552671" {
		t.Errorf("expected normalized phone, got %q", resp.Payment.Phone)
	}
	want := "http://localhost:8080/api/v1/payments/" + resp.Payment.ID
	if resp.PaymentURL != want || w.Header().Get("Location") != want {
		t.Errorf("expected payment url %s, got %s", want, resp.PaymentURL)
	}
}

func TestRouter_CreatePayment_ValidationErrors(t *testing.T) {
	env := newRouterEnv(t, nil)

	body := createBody()
	delete(body, "amount")
	body["email"] = "not-an-email"
	w := env.do(t, http.MethodPost, "/api/v1/payments", body)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var resp ErrorResponse
	decodeInto(t, w, &resp)
	if resp.Code != "validation_error" {
		t.Errorf("expected validation_error, got %s", resp.Code)
	}
	fields := map[string]bool{}
	for _, d := range resp.Details {
		fields[d.Field] = true
	}
	if !fields["amount"] || !fields["email"] {
		t.Errorf("expected amount and email errors, got %+v", resp.Details)
	}
}

func TestRouter_CreatePayment_InvalidJSON(t *testing.T) {
	env := newRouterEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRouter_ProcessAndRefund(t *testing.T) {
	env := newRouterEnv(t, nil)
	p := env.create(t)

	w := env.do(t, http.MethodPost, "/api/v1/payments/"+p.ID+"/process", map[string]any{"token": "tok_1"})
	if w.Code != http.StatusOK {
		t.Fatalf("process: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var processed ProcessPaymentResponse
	decodeInto(t, w, &processed)
	if processed.Payment.Status != "completed" || processed.TransactionID == "" {
		t.Errorf("expected completed with transaction id, got %+v", processed)
	}

	w = env.do(t, http.MethodPost, "/api/v1/payments/"+p.ID+"/refund", map[string]any{"amount": "40.00", "reason": "damaged"})
	if w.Code != http.StatusOK {
		t.Fatalf("refund: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var refund RefundResponse
	decodeInto(t, w, &refund)
	if refund.Status != "completed" || !refund.Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("unexpected refund %+v", refund)
	}

	w = env.do(t, http.MethodPost, "/api/v1/payments/"+p.ID+"/refund", map[string]any{"amount": "10.00"})
	if w.Code != http.StatusConflict {
		t.Errorf("second refund: expected 409, got %d", w.Code)
	}
}

func TestRouter_ProcessWithoutBody(t *testing.T) {
	env := newRouterEnv(t, nil)
	p := env.create(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+p.ID+"/process", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_ProcessDeclined(t *testing.T) {
	env := newRouterEnv(t, nil, gateway.WithChargeOutcomes(errors.New("card declined")))
	p := env.create(t)

	w := env.do(t, http.MethodPost, "/api/v1/payments/"+p.ID+"/process", nil)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", w.Code, w.Body.String())
	}
	var resp ErrorResponse
	decodeInto(t, w, &resp)
	if resp.Error != "card declined" {
		t.Errorf("expected adapter message, got %q", resp.Error)
	}

	w = env.do(t, http.MethodGet, "/api/v1/payments/"+p.ID, nil)
	var status StatusResponse
	decodeInto(t, w, &status)
	if status.Payment == nil || status.Payment.Status != "pending" {
		t.Errorf("expected payment back to pending, got %+v", status.Payment)
	}
}

func TestRouter_ProcessExpired(t *testing.T) {
	env := newRouterEnv(t, nil)
	p := env.create(t)
	env.clock.Advance(31 * time.Minute)

	w := env.do(t, http.MethodPost, "/api/v1/payments/"+p.ID+"/process", nil)
	if w.Code != http.StatusGone {
		t.Errorf("expected 410, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_Cancel(t *testing.T) {
	env := newRouterEnv(t, nil)
	p := env.create(t)

	w := env.do(t, http.MethodPost, "/api/v1/payments/"+p.ID+"/cancel", map[string]any{"reason": "changed mind"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp PaymentResponse
	decodeInto(t, w, &resp)
	if resp.Status != "cancelled" || resp.CancelReason == nil || *resp.CancelReason != "changed mind" {
		t.Errorf("unexpected cancel response %+v", resp)
	}

	w = env.do(t, http.MethodPost, "/api/v1/payments/"+p.ID+"/cancel", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second cancel: expected 409, got %d", w.Code)
	}
}

func TestRouter_BadAndUnknownIDs(t *testing.T) {
	env := newRouterEnv(t, nil)

	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/api/v1/payments/not-a-uuid", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/payments/not-a-uuid/process", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/payments/4b4f2d4c-3b55-4c1e-9a62-0f3f8e2f6d11", http.StatusNotFound},
		{http.MethodPost, "/api/v1/payments/4b4f2d4c-3b55-4c1e-9a62-0f3f8e2f6d11/process", http.StatusNotFound},
		{http.MethodPost, "/api/v1/payments/4b4f2d4c-3b55-4c1e-9a62-0f3f8e2f6d11/cancel", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := env.do(t, tt.method, tt.path, nil)
		if w.Code != tt.status {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.status, w.Code)
		}
	}
}

func TestRouter_RefundRequiresAmount(t *testing.T) {
	env := newRouterEnv(t, nil)
	p := env.create(t)

	w := env.do(t, http.MethodPost, "/api/v1/payments/"+p.ID+"/refund", map[string]any{"reason": "x"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter_HistoryAndStatistics(t *testing.T) {
	env := newRouterEnv(t, nil)
	for i := 0; i < 3; i++ {
		env.create(t)
		env.clock.Advance(time.Second)
	}
	done := env.create(t)
	if w := env.do(t, http.MethodPost, "/api/v1/payments/"+done.ID+"/process", nil); w.Code != http.StatusOK {
		t.Fatalf("process: %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/users/user-1/payments?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	var page HistoryResponse
	decodeInto(t, w, &page)
	if page.Total != 4 || len(page.Payments) != 2 || !page.HasMore {
		t.Errorf("unexpected page total=%d len=%d more=%v", page.Total, len(page.Payments), page.HasMore)
	}
	if page.Payments[0].ID != done.ID {
		t.Errorf("expected newest first")
	}

	w = env.do(t, http.MethodGet, "/api/v1/users/user-1/payments?status=completed", nil)
	decodeInto(t, w, &page)
	if page.Total != 1 {
		t.Errorf("expected 1 completed, got %d", page.Total)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/users/user-1/payments?status=bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bogus status: expected 400, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/users/user-1/payments?start_date=soon", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad date: expected 422, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/statistics?user_id=user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("statistics: expected 200, got %d", w.Code)
	}
	var stats StatisticsResponse
	decodeInto(t, w, &stats)
	if stats.TotalPayments != 4 || stats.ByStatus["completed"] != 1 || stats.ByStatus["pending"] != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if !stats.CompletedAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected completed amount 100, got %s", stats.CompletedAmount)
	}
}

func TestRouter_Methods(t *testing.T) {
	env := newRouterEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/methods?currency=brl&amount=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var methods []MethodResponse
	decodeInto(t, w, &methods)
	ids := make([]string, 0, len(methods))
	for _, m := range methods {
		ids = append(ids, m.ID)
	}
	for _, id := range ids {
		if id == "bank_transfer" {
			t.Errorf("bank_transfer minimum is 10, should not be listed for 5: %v", ids)
		}
	}
	if len(ids) == 0 {
		t.Errorf("expected at least card and pix for BRL 5")
	}

	if w := env.do(t, http.MethodGet, "/api/v1/methods?amount=abc&currency=USD", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad amount, got %d", w.Code)
	}
}

type mapStore struct {
	mu sync.Mutex
	m  map[string]*customMW.IdempotencyEntry
}

func (s *mapStore) Get(_ context.Context, key string) (*customMW.IdempotencyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *mapStore) Set(_ context.Context, e *customMW.IdempotencyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[e.Key] = e
	return nil
}

func TestRouter_IdempotentCreate(t *testing.T) {
	env := newRouterEnv(t, func(d *RouterDeps) {
		d.Idempotency = &mapStore{m: map[string]*customMW.IdempotencyEntry{}}
	})

	first := env.do(t, http.MethodPost, "/api/v1/payments", createBody(), "Idempotency-Key", "abc")
	second := env.do(t, http.MethodPost, "/api/v1/payments", createBody(), "Idempotency-Key", "abc")

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("expected replayed body")
	}
	if second.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Errorf("expected replay header")
	}
}

func TestRouter_AuthEnabled(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	env := newRouterEnv(t, func(d *RouterDeps) {
		d.Auth = config.AuthConfig{Enabled: true, JWTSecret: secret}
	})

	if w := env.do(t, http.MethodGet, "/api/v1/statistics", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	token, err := customMW.IssueToken(secret, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/statistics", nil, "Authorization", "Bearer "+token); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/users/user-1/payments", nil, "Authorization", "Bearer "+token); w.Code != http.StatusOK {
		t.Errorf("expected own history to be readable, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/users/user-2/payments", nil, "Authorization", "Bearer "+token); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another user's history, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health must stay public, got %d", w.Code)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	env := newRouterEnv(t, func(d *RouterDeps) {
		d.Checks = map[string]Pinger{
			"database": PingFunc(func(ctx context.Context) error { return nil }),
			"redis":    PingFunc(func(ctx context.Context) error { return errors.New("down") }),
		}
	})

	if w := env.do(t, http.MethodGet, "/health/live", nil); w.Code != http.StatusOK {
		t.Errorf("live: expected 200, got %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/health/ready", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready: expected 503, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("redis unavailable")) {
		t.Errorf("expected redis reason, got %s", w.Body.String())
	}

	env.create(t)
	w = env.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`test_http_requests_total{method="POST",path="/api/v1/payments",status="201"}`)) {
		t.Errorf("expected create request in metrics output")
	}
}
