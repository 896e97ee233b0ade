package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/ratelimit"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/payment"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProcessor struct {
	HandleFunc func(ctx context.Context, provider string, headers http.Header, payload []byte) (*payment.WebhookResult, error)
	calls      int
}

func (f *fakeProcessor) HandleWebhook(ctx context.Context, provider string, headers http.Header, payload []byte) (*payment.WebhookResult, error) {
	f.calls++
	return f.HandleFunc(ctx, provider, headers, payload)
}

func newTestRouter(t *testing.T, p WebhookProcessor, limiter ratelimit.Limiter) *gin.Engine {
	t.Helper()
	router, err := NewRouter(RouterDeps{
		Webhooks: NewWebhookHandler(nil, p, limiter),
		Gatherer: prometheus.NewRegistry(),
		Checks: map[string]HealthCheck{
			"db": func(ctx context.Context) error { return nil },
		},
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return router
}

func postWebhook(t *testing.T, r http.Handler, provider, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, strings.NewReader(body))
	req.Header.Set("X-Test-Signature", "sig")
	req.RemoteAddr = "10.1.1.1:4242"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAcceptedPassesRawBody(t *testing.T) {
	p := &fakeProcessor{HandleFunc: func(ctx context.Context, provider string, headers http.Header, payload []byte) (*payment.WebhookResult, error) {
		if provider != "stripe" {
			t.Errorf("provider = %q", provider)
		}
		if string(payload) != `{"id":"evt_1"}` {
			t.Errorf("payload = %q", payload)
		}
		if headers.Get("X-Test-Signature") != "sig" {
			t.Errorf("signature header not forwarded")
		}
		return &payment.WebhookResult{Outcome: domain.WebhookApplied, EventID: "evt_1"}, nil
	}}

	rec := postWebhook(t, newTestRouter(t, p, nil), "stripe", `{"id":"evt_1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["outcome"] != string(domain.WebhookApplied) || body["event_id"] != "evt_1" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestWebhookErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"signature", domain.ErrSignatureInvalid, http.StatusUnauthorized},
		{"unknown provider", domain.ErrUnknownProvider, http.StatusNotFound},
		{"malformed", domain.ErrMalformedPayload, http.StatusBadRequest},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProcessor{HandleFunc: func(context.Context, string, http.Header, []byte) (*payment.WebhookResult, error) {
				return nil, tc.err
			}}
			if rec := postWebhook(t, newTestRouter(t, p, nil), "paystack", `{}`); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestWebhookForgeryThrottle(t *testing.T) {
	p := &fakeProcessor{HandleFunc: func(context.Context, string, http.Header, []byte) (*payment.WebhookResult, error) {
		return nil, domain.ErrSignatureInvalid
	}}
	router := newTestRouter(t, p, ratelimit.NewMemoryLimiter(2, time.Minute))

	if rec := postWebhook(t, router, "stripe", `{}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("first failure: status = %d", rec.Code)
	}
	if rec := postWebhook(t, router, "stripe", `{}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second failure: status = %d", rec.Code)
	}
	if rec := postWebhook(t, router, "stripe", `{}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("throttled request: status = %d", rec.Code)
	}
	if p.calls != 2 {
		t.Fatalf("throttled requests must not reach the processor, calls = %d", p.calls)
	}

	// Another provider gets its own budget.
	if rec := postWebhook(t, router, "paystack", `{}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("other provider: status = %d", rec.Code)
	}
}

func TestWebhookThrottleIgnoresForwardedFor(t *testing.T) {
	p := &fakeProcessor{HandleFunc: func(context.Context, string, http.Header, []byte) (*payment.WebhookResult, error) {
		return nil, domain.ErrSignatureInvalid
	}}
	router := newTestRouter(t, p, ratelimit.NewMemoryLimiter(2, time.Minute))

	for i, forwarded := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
		req.Header.Set("X-Forwarded-For", forwarded)
		req.RemoteAddr = "10.1.1.1:4242"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if i > 0 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d from %s: status = %d", i, forwarded, rec.Code)
		}
	}
	if p.calls != 2 {
		t.Fatalf("rotating X-Forwarded-For must not reset the budget, calls = %d", p.calls)
	}
}

func TestRouterTrustedProxy(t *testing.T) {
	var seen []string
	p := &fakeProcessor{HandleFunc: func(ctx context.Context, provider string, headers http.Header, payload []byte) (*payment.WebhookResult, error) {
		return &payment.WebhookResult{Outcome: domain.WebhookApplied}, nil
	}}
	router, err := NewRouter(RouterDeps{
		Webhooks:       NewWebhookHandler(nil, p, nil),
		TrustedProxies: []string{"10.0.0.0/8"},
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	router.GET("/ip", func(c *gin.Context) { seen = append(seen, c.ClientIP()) })

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.RemoteAddr = "10.1.1.1:4242"
	router.ServeHTTP(httptest.NewRecorder(), req)
	if len(seen) != 1 || seen[0] != "203.0.113.9" {
		t.Fatalf("expected forwarded client from trusted proxy, got %v", seen)
	}

	if _, err := NewRouter(RouterDeps{Webhooks: NewWebhookHandler(nil, p, nil), TrustedProxies: []string{"not-a-cidr"}}); err == nil {
		t.Fatal("expected invalid proxy list to be rejected")
	}
}

func TestWebhookBodyTooLarge(t *testing.T) {
	p := &fakeProcessor{HandleFunc: func(context.Context, string, http.Header, []byte) (*payment.WebhookResult, error) {
		t.Fatal("processor must not be called")
		return nil, nil
	}}
	rec := postWebhook(t, newTestRouter(t, p, nil), "stripe", strings.Repeat("a", MaxWebhookBody+1))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	router, err := NewRouter(RouterDeps{
		Webhooks: NewWebhookHandler(nil, &fakeProcessor{}, nil),
		Gatherer: prometheus.NewRegistry(),
		Checks: map[string]HealthCheck{
			"db": func(ctx context.Context) error { return errors.New("connection refused") },
		},
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("healthz body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}
