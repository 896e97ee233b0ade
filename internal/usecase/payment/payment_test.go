package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/config"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/memory"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/providers"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/webhook"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/currency"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

const (
	testProvider  = "flutterwave"
	testSigHeader = "X-Test-Signature"
	testSecret    = "whsec_test"
)

type stubProvider struct {
	webhook.SharedSecretScheme
	calls  atomic.Int32
	charge func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error)
}

func (p *stubProvider) Name() string { return testProvider }

func (p *stubProvider) Charge(ctx context.Context, intent *domain.PaymentIntent, data domain.PaymentData) (domain.ChargeResult, error) {
	p.calls.Add(1)
	return p.charge(ctx, intent)
}

type stubWebhook struct {
	ID       string `json:"id"`
	Tx       string `json:"tx"`
	Ref      string `json:"ref"`
	Status   string `json:"status"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Reason   string `json:"reason"`
}

func (p *stubProvider) ParseWebhook(payload []byte) (domain.WebhookEvent, error) {
	var hook stubWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	event := domain.WebhookEvent{
		EventID:         hook.ID,
		TransactionID:   hook.Tx,
		IntentReference: hook.Ref,
		Status:          domain.TransactionStatus(hook.Status),
		Reason:          hook.Reason,
		Currency:        hook.Currency,
	}
	if hook.Amount != "" {
		event.Amount = decimal.RequireFromString(hook.Amount)
	}
	return event, nil
}

// flakyLedger fails the next failures writes.
type flakyLedger struct {
	ledger.Ledger
	failures atomic.Int32
}

func (l *flakyLedger) fail() error {
	if l.failures.Add(-1) >= 0 {
		return errors.New("ledger store unavailable")
	}
	return nil
}

func (l *flakyLedger) Record(ctx context.Context, in ledger.RecordInput) (*domain.Transaction, error) {
	if err := l.fail(); err != nil {
		return nil, err
	}
	return l.Ledger.Record(ctx, in)
}

func (l *flakyLedger) ApplyWebhookStatus(ctx context.Context, transactionID string, status domain.TransactionStatus, reason string) (bool, error) {
	if err := l.fail(); err != nil {
		return false, err
	}
	return l.Ledger.ApplyWebhookStatus(ctx, transactionID, status, reason)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PaymentEvent
}

func (p *recordingPublisher) PublishPayment(ctx context.Context, event domain.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	uc        *DefaultPaymentUsecase
	provider  *stubProvider
	intents   *memory.IntentStore
	txs       *memory.TransactionStore
	events    *memory.WebhookEventStore
	publisher *recordingPublisher
	metrics   *metrics.PaymentMetrics
	clock     time.Time
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewPaymentMetrics(prometheus.NewRegistry())

	provider := &stubProvider{
		SharedSecretScheme: webhook.SharedSecretScheme{Header: testSigHeader, Secret: testSecret},
		charge: func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error) {
			return domain.ChargeResult{Outcome: domain.ChargeSucceeded, TransactionID: "flw_" + intent.ID}, nil
		},
	}
	registry := providers.NewEmptyRegistry()
	registry.Register(provider)

	converter := currency.NewDefaultConverter(memory.NewRateStore(), currency.Config{Supported: []string{"USD", "EUR", "XAF"}}, m, logger)
	h := &harness{
		provider:  provider,
		intents:   memory.NewIntentStore(),
		txs:       memory.NewTransactionStore(),
		events:    memory.NewWebhookEventStore(),
		publisher: &recordingPublisher{},
		metrics:   m,
		clock:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	uc, err := NewDefaultPaymentUsecase(Deps{
		Intents:       h.intents,
		WebhookEvents: h.events,
		Providers:     registry,
		Verifier:      webhook.NewVerifier(registry),
		Ledger:        ledger.NewDefaultLedger(h.txs, converter, logger),
		Currencies:    converter,
		Publisher:     h.publisher,
		Metrics:       m,
		Logger:        logger,
	}, opts)
	if err != nil {
		t.Fatalf("failed to build usecase: %v", err)
	}
	uc.now = func() time.Time { return h.clock }
	h.uc = uc
	return h
}

func (h *harness) createIntent(t *testing.T) *domain.PaymentIntent {
	t.Helper()
	intent, err := h.uc.CreateIntent(context.Background(), CreateIntentInput{
		Amount:        decimal.NewFromInt(100),
		Currency:      "EUR",
		OrderID:       "order-1",
		CustomerID:    "cust-1",
		PaymentMethod: testProvider,
	})
	if err != nil {
		t.Fatalf("failed to create intent: %v", err)
	}
	return intent
}

func (h *harness) status(t *testing.T, id string) domain.IntentStatus {
	t.Helper()
	intent, err := h.intents.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to load intent: %v", err)
	}
	return intent.Status
}

func (h *harness) sendWebhook(hook stubWebhook, signature string) (*WebhookResult, error) {
	payload, _ := json.Marshal(hook)
	headers := http.Header{}
	headers.Set(testSigHeader, signature)
	return h.uc.HandleWebhook(context.Background(), testProvider, headers, payload)
}

func TestCreateIntentValidation(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	valid := CreateIntentInput{Amount: decimal.NewFromInt(10), Currency: "EUR", PaymentMethod: testProvider}

	cases := []struct {
		name   string
		mutate func(in *CreateIntentInput)
		want   error
	}{
		{"zero amount", func(in *CreateIntentInput) { in.Amount = decimal.Zero }, domain.ErrInvalidAmount},
		{"negative amount", func(in *CreateIntentInput) { in.Amount = decimal.NewFromInt(-5) }, domain.ErrInvalidAmount},
		{"unsupported currency", func(in *CreateIntentInput) { in.Currency = "JPY" }, domain.ErrUnsupportedCurrency},
		{"unknown method", func(in *CreateIntentInput) { in.PaymentMethod = "paypal" }, domain.ErrUnknownPaymentMethod},
		{"card secret", func(in *CreateIntentInput) { in.Metadata = map[string]string{"CVV": "123"} }, domain.ErrSensitiveMetadata},
		{"account number", func(in *CreateIntentInput) { in.Metadata = map[string]string{"payer-account-number": "1"} }, domain.ErrSensitiveMetadata},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			if _, err := h.uc.CreateIntent(ctx, in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	in := valid
	in.Currency = "eur"
	in.Metadata = map[string]string{"shipping": "express"}
	intent, err := h.uc.CreateIntent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(intent.ID, "pi_") || len(intent.ID) != 24 {
		t.Fatalf("unexpected intent id %q", intent.ID)
	}
	if intent.Status != domain.IntentPending || intent.Currency != "EUR" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if !intent.ExpiresAt.Equal(h.clock.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", intent.ExpiresAt)
	}
}

func TestConcurrentProcessChargesOnce(t *testing.T) {
	h := newHarness(t, Options{})
	intent := h.createIntent(t)

	const callers = 8
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	errs := make(chan error, callers)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := h.uc.ProcessIntent(context.Background(), intent.ID, domain.PaymentData{"token": "tok"})
			if err != nil {
				errs <- err
				return
			}
			if res.Outcome == domain.ChargeSucceeded {
				succeeded.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, domain.ErrIntentNotProcessable) {
			t.Fatalf("expected not processable, got %v", err)
		}
	}
	if succeeded.Load() != 1 || h.provider.calls.Load() != 1 {
		t.Fatalf("expected exactly one charge, got %d successes and %d provider calls", succeeded.Load(), h.provider.calls.Load())
	}
	if h.txs.Len() != 1 {
		t.Fatalf("expected one ledger row, got %d", h.txs.Len())
	}

	_, err := h.uc.ProcessIntent(context.Background(), intent.ID, nil)
	if !domain.AlreadySucceeded(err) {
		t.Fatalf("expected already succeeded error, got %v", err)
	}
}

func TestProcessExpiredIntentCancels(t *testing.T) {
	h := newHarness(t, Options{})
	intent := h.createIntent(t)
	h.clock = intent.ExpiresAt.Add(time.Second)

	_, err := h.uc.ProcessIntent(context.Background(), intent.ID, nil)
	if !errors.Is(err, domain.ErrIntentExpired) {
		t.Fatalf("expected ErrIntentExpired, got %v", err)
	}
	if h.provider.calls.Load() != 0 {
		t.Fatal("expired intent must not reach the provider")
	}
	if got := h.status(t, intent.ID); got != domain.IntentCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}

	res, err := h.sendWebhook(stubWebhook{ID: "evt_late", Tx: "flw_x", Ref: intent.ID, Status: "succeeded"}, testSecret)
	if err != nil {
		t.Fatalf("late webhook must be accepted, got %v", err)
	}
	if res.Outcome != domain.WebhookDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", res.Outcome)
	}
	if got := h.status(t, intent.ID); got != domain.IntentCancelled {
		t.Fatalf("terminal status changed to %s", got)
	}
	if types := h.publisher.types(); len(types) != 1 || types[0] != domain.EventPaymentCancelled {
		t.Fatalf("unexpected events %v", types)
	}
	if recorded := h.events.All(); len(recorded) != 1 || recorded[0].Outcome != domain.WebhookDuplicate {
		t.Fatalf("duplicate notification must be recorded, got %+v", recorded)
	}
}

func TestProviderFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.provider.charge = func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error) {
		return domain.ChargeResult{Outcome: domain.ChargeFailed, Reason: "insufficient funds"}, nil
	}
	intent := h.createIntent(t)

	res, err := h.uc.ProcessIntent(context.Background(), intent.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != domain.ChargeFailed || res.Reason != "insufficient funds" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := h.status(t, intent.ID); got != domain.IntentFailed {
		t.Fatalf("expected failed, got %s", got)
	}

	txs, _ := h.uc.ListTransactions(context.Background(), intent.ID)
	if len(txs) != 1 || txs[0].Status != domain.TransactionFailed || *txs[0].ErrorMessage != "insufficient funds" {
		t.Fatalf("unexpected ledger %+v", txs)
	}
	if len(txs[0].Amounts) != 3 {
		t.Fatalf("expected amounts in every supported currency, got %v", txs[0].Amounts)
	}
}

func TestProviderTimeoutIsFailure(t *testing.T) {
	h := newHarness(t, Options{ProviderTimeout: 20 * time.Millisecond})
	h.provider.charge = func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error) {
		<-ctx.Done()
		return domain.ChargeResult{}, ctx.Err()
	}
	intent := h.createIntent(t)

	res, err := h.uc.ProcessIntent(context.Background(), intent.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != domain.ChargeFailed || res.Reason != "provider timeout" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := h.status(t, intent.ID); got != domain.IntentFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}

func TestAsyncSettlementThroughWebhook(t *testing.T) {
	h := newHarness(t, Options{})
	h.provider.charge = func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error) {
		return domain.ChargeResult{Outcome: domain.ChargePending, TransactionID: "flw_async"}, nil
	}
	intent := h.createIntent(t)

	res, err := h.uc.ProcessIntent(context.Background(), intent.ID, nil)
	if err != nil || res.Outcome != domain.ChargePending {
		t.Fatalf("expected pending result, got %+v %v", res, err)
	}
	if got := h.status(t, intent.ID); got != domain.IntentProcessing {
		t.Fatalf("expected processing, got %s", got)
	}

	hook := stubWebhook{ID: "evt_1", Tx: "flw_async", Status: "succeeded", Amount: "100", Currency: "EUR"}
	wr, err := h.sendWebhook(hook, testSecret)
	if err != nil || wr.Outcome != domain.WebhookApplied || wr.Status != domain.IntentSucceeded {
		t.Fatalf("expected applied webhook, got %+v %v", wr, err)
	}

	wr, err = h.sendWebhook(hook, testSecret)
	if err != nil || wr.Outcome != domain.WebhookDuplicate {
		t.Fatalf("expected redelivery to be a duplicate, got %+v %v", wr, err)
	}

	wr, err = h.sendWebhook(stubWebhook{ID: "evt_2", Tx: "flw_async", Status: "failed"}, testSecret)
	if err != nil || wr.Outcome != domain.WebhookDuplicate {
		t.Fatalf("expected conflicting webhook to be a duplicate, got %+v %v", wr, err)
	}
	if got := h.status(t, intent.ID); got != domain.IntentSucceeded {
		t.Fatalf("terminal status re-flipped to %s", got)
	}

	tx, err := h.txs.GetByTransactionID(context.Background(), "flw_async")
	if err != nil || tx.Status != domain.TransactionSucceeded {
		t.Fatalf("expected settled ledger entry, got %+v %v", tx, err)
	}
	if h.txs.Len() != 1 {
		t.Fatalf("expected one ledger row, got %d", h.txs.Len())
	}
	if n := testutil.ToFloat64(h.metrics.WebhooksTotal.WithLabelValues(testProvider, "applied")); n != 1 {
		t.Fatalf("expected one applied webhook metric, got %v", n)
	}
}

func TestInvalidSignatureChangesNothing(t *testing.T) {
	h := newHarness(t, Options{})
	h.provider.charge = func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error) {
		return domain.ChargeResult{Outcome: domain.ChargePending, TransactionID: "flw_async"}, nil
	}
	intent := h.createIntent(t)
	_, _ = h.uc.ProcessIntent(context.Background(), intent.ID, nil)

	for _, sig := range []string{"", "forged", testSecret + "x"} {
		_, err := h.sendWebhook(stubWebhook{ID: "evt_forged", Tx: "flw_async", Ref: intent.ID, Status: "succeeded"}, sig)
		if !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got %v", err)
		}
	}
	if got := h.status(t, intent.ID); got != domain.IntentProcessing {
		t.Fatalf("forged webhook changed status to %s", got)
	}
	if len(h.events.All()) != 0 {
		t.Fatal("forged webhook must not be recorded")
	}
	if n := testutil.ToFloat64(h.metrics.WebhookSignatureFailureTotal.WithLabelValues(testProvider)); n != 3 {
		t.Fatalf("expected three signature failures, got %v", n)
	}
}

func TestMalformedWebhookIsDistinct(t *testing.T) {
	h := newHarness(t, Options{})
	headers := http.Header{}
	headers.Set(testSigHeader, testSecret)

	_, err := h.uc.HandleWebhook(context.Background(), testProvider, headers, []byte(`{"id":`))
	if !errors.Is(err, domain.ErrMalformedPayload) || errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}

	_, err = h.uc.HandleWebhook(context.Background(), "unknown", headers, []byte(`{}`))
	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestWebhookIgnoredCases(t *testing.T) {
	h := newHarness(t, Options{})
	h.provider.charge = func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error) {
		return domain.ChargeResult{Outcome: domain.ChargePending, TransactionID: "flw_async"}, nil
	}
	pending := h.createIntent(t)
	processing := h.createIntent(t)
	_, _ = h.uc.ProcessIntent(context.Background(), processing.ID, nil)

	cases := []stubWebhook{
		{ID: "evt_a", Ref: pending.ID, Status: "succeeded"},
		{ID: "evt_b", Tx: "flw_async", Status: "processing"},
		{ID: "evt_c", Tx: "flw_async", Status: "succeeded", Amount: "1", Currency: "EUR"},
		{ID: "evt_d", Tx: "flw_async", Status: "succeeded", Amount: "100", Currency: "USD"},
		{ID: "evt_e", Tx: "nope", Status: "succeeded"},
	}
	for _, hook := range cases {
		res, err := h.sendWebhook(hook, testSecret)
		if err != nil || res.Outcome != domain.WebhookIgnored {
			t.Fatalf("%s: expected ignored, got %+v %v", hook.ID, res, err)
		}
	}
	if got := h.status(t, pending.ID); got != domain.IntentPending {
		t.Fatalf("pending intent changed to %s", got)
	}
	if got := h.status(t, processing.ID); got != domain.IntentProcessing {
		t.Fatalf("processing intent changed to %s", got)
	}
	if len(h.events.All()) != len(cases) {
		t.Fatalf("expected every accepted webhook to be recorded, got %d", len(h.events.All()))
	}
}

func TestSweepStaleProcessing(t *testing.T) {
	h := newHarness(t, Options{SettlementGrace: time.Hour})
	h.provider.charge = func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error) {
		return domain.ChargeResult{Outcome: domain.ChargePending, TransactionID: "flw_" + intent.ID}, nil
	}
	intent := h.createIntent(t)
	_, _ = h.uc.ProcessIntent(context.Background(), intent.ID, nil)

	h.clock = intent.ExpiresAt.Add(30 * time.Minute)
	if n, err := h.uc.SweepStaleProcessing(context.Background()); err != nil || n != 0 {
		t.Fatalf("intent inside grace must not be swept, got %d %v", n, err)
	}

	h.clock = intent.ExpiresAt.Add(2 * time.Hour)
	n, err := h.uc.SweepStaleProcessing(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected one swept intent, got %d %v", n, err)
	}

	swept, _ := h.intents.GetByID(context.Background(), intent.ID)
	if swept.Status != domain.IntentFailed || swept.FailureReason != settlementTimeoutReason {
		t.Fatalf("unexpected swept intent %+v", swept)
	}
	tx, _ := h.txs.GetByTransactionID(context.Background(), "flw_"+intent.ID)
	if tx.Status != domain.TransactionFailed {
		t.Fatalf("expected ledger entry failed, got %s", tx.Status)
	}
}

func TestSweepDisabledWithoutGrace(t *testing.T) {
	h := newHarness(t, Options{})
	if n, err := h.uc.SweepStaleProcessing(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected disabled sweep, got %d %v", n, err)
	}
}

func TestProcessRacingWebhookSettlesOnce(t *testing.T) {
	h := newHarness(t, Options{})
	entered := make(chan struct{})
	release := make(chan struct{})
	h.provider.charge = func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error) {
		close(entered)
		<-release
		return domain.ChargeResult{Outcome: domain.ChargeFailed, TransactionID: "flw_race", Reason: "declined"}, nil
	}
	intent := h.createIntent(t)

	type outcome struct {
		res *ProcessResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.uc.ProcessIntent(context.Background(), intent.ID, nil)
		done <- outcome{res, err}
	}()

	<-entered
	wr, err := h.sendWebhook(stubWebhook{ID: "evt_race", Tx: "flw_race", Ref: intent.ID, Status: "succeeded", Amount: "100", Currency: "EUR"}, testSecret)
	if err != nil || wr.Outcome != domain.WebhookApplied {
		t.Fatalf("expected the webhook to win, got %+v %v", wr, err)
	}
	close(release)

	got := <-done
	if got.err != nil {
		t.Fatalf("losing process call must not fail, got %v", got.err)
	}
	if got.res.Outcome != domain.ChargeSucceeded || got.res.Intent.Status != domain.IntentSucceeded {
		t.Fatalf("losing process call must report the current state, got %+v", got.res)
	}
	if status := h.status(t, intent.ID); status != domain.IntentSucceeded {
		t.Fatalf("expected succeeded, got %s", status)
	}

	txs, _ := h.uc.ListTransactions(context.Background(), intent.ID)
	if len(txs) != 1 || txs[0].Status != domain.TransactionSucceeded {
		t.Fatalf("expected one succeeded ledger row, got %+v", txs)
	}
	if types := h.publisher.types(); len(types) != 1 || types[0] != domain.EventPaymentSucceeded {
		t.Fatalf("expected one succeeded event, got %v", types)
	}
	if n := testutil.ToFloat64(h.metrics.IntentTransitionsTotal.WithLabelValues(testProvider, "processing", "succeeded")); n != 1 {
		t.Fatalf("expected one terminal transition, got %v", n)
	}
	if n := testutil.ToFloat64(h.metrics.IntentTransitionsTotal.WithLabelValues(testProvider, "processing", "failed")); n != 0 {
		t.Fatalf("losing outcome must not transition, got %v", n)
	}
}

func TestWebhookRedeliveryRepairsLedger(t *testing.T) {
	h := newHarness(t, Options{})
	h.provider.charge = func(ctx context.Context, intent *domain.PaymentIntent) (domain.ChargeResult, error) {
		return domain.ChargeResult{Outcome: domain.ChargePending, TransactionID: "flw_async"}, nil
	}
	flaky := &flakyLedger{Ledger: h.uc.Ledger}
	flaky.failures.Store(2)
	h.uc.Ledger = flaky
	intent := h.createIntent(t)

	if _, err := h.uc.ProcessIntent(context.Background(), intent.ID, nil); err == nil {
		t.Fatal("expected the pending ledger write to fail")
	}

	hook := stubWebhook{ID: "evt_1", Tx: "flw_async", Status: "succeeded", Amount: "100", Currency: "EUR"}
	if _, err := h.sendWebhook(hook, testSecret); err == nil {
		t.Fatal("expected the first delivery to fail so the provider retries")
	}
	if status := h.status(t, intent.ID); status != domain.IntentSucceeded {
		t.Fatalf("expected succeeded, got %s", status)
	}
	if h.txs.Len() != 0 {
		t.Fatalf("expected no ledger row yet, got %d", h.txs.Len())
	}

	wr, err := h.sendWebhook(hook, testSecret)
	if err != nil || wr.Outcome != domain.WebhookDuplicate {
		t.Fatalf("expected redelivery to be accepted as duplicate, got %+v %v", wr, err)
	}
	tx, err := h.txs.GetByTransactionID(context.Background(), "flw_async")
	if err != nil || tx.Status != domain.TransactionSucceeded || tx.IntentID != intent.ID {
		t.Fatalf("expected repaired ledger entry, got %+v %v", tx, err)
	}
	if types := h.publisher.types(); len(types) != 1 || types[0] != domain.EventPaymentSucceeded {
		t.Fatalf("expected the held back event once, got %v", types)
	}

	if _, err := h.sendWebhook(hook, testSecret); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.txs.Len() != 1 || len(h.publisher.types()) != 1 {
		t.Fatalf("repair must run once, got %d rows and %v", h.txs.Len(), h.publisher.types())
	}
}

func TestProcessRetryRepairsLedger(t *testing.T) {
	h := newHarness(t, Options{})
	flaky := &flakyLedger{Ledger: h.uc.Ledger}
	flaky.failures.Store(1)
	h.uc.Ledger = flaky
	intent := h.createIntent(t)

	if _, err := h.uc.ProcessIntent(context.Background(), intent.ID, nil); err == nil {
		t.Fatal("expected the ledger write to fail")
	}
	if status := h.status(t, intent.ID); status != domain.IntentSucceeded {
		t.Fatalf("expected succeeded, got %s", status)
	}

	_, err := h.uc.ProcessIntent(context.Background(), intent.ID, nil)
	if !domain.AlreadySucceeded(err) {
		t.Fatalf("expected already succeeded error, got %v", err)
	}
	txs, _ := h.uc.ListTransactions(context.Background(), intent.ID)
	if len(txs) != 1 || txs[0].Status != domain.TransactionSucceeded || txs[0].TransactionID != "flw_"+intent.ID {
		t.Fatalf("expected repaired ledger row, got %+v", txs)
	}
	if h.provider.calls.Load() != 1 {
		t.Fatalf("retry must not charge again, got %d calls", h.provider.calls.Load())
	}
	if types := h.publisher.types(); len(types) != 1 || types[0] != domain.EventPaymentSucceeded {
		t.Fatalf("expected one succeeded event, got %v", types)
	}
}

func TestIDLessProviderWebhooksSettleTheirOwnIntents(t *testing.T) {
	h := newHarness(t, Options{})
	flw := providers.NewFlutterwave(config.ProviderConfig{WebhookSecret: "hash"})
	registry := providers.NewEmptyRegistry()
	registry.Register(flw)
	h.uc.Providers = registry
	h.uc.Verifier = webhook.NewVerifier(registry)
	ctx := context.Background()

	first := h.createIntent(t)
	second := h.createIntent(t)
	for _, intent := range []*domain.PaymentIntent{first, second} {
		if err := h.intents.TransitionStatus(ctx, intent.ID, domain.IntentPending, domain.IntentProcessing, domain.IntentUpdate{}); err != nil {
			t.Fatalf("failed to mark processing: %v", err)
		}
	}

	headers := http.Header{}
	headers.Set("verif-hash", "hash")
	for _, intent := range []*domain.PaymentIntent{first, second} {
		payload := fmt.Sprintf(`{"event":"charge.completed","data":{"tx_ref":%q,"amount":100,"currency":"EUR","status":"successful"}}`, intent.ID)
		res, err := h.uc.HandleWebhook(ctx, providers.FlutterwaveName, headers, []byte(payload))
		if err != nil || res.Outcome != domain.WebhookApplied {
			t.Fatalf("%s: expected applied, got %+v %v", intent.ID, res, err)
		}
		if status := h.status(t, intent.ID); status != domain.IntentSucceeded {
			t.Fatalf("%s: expected succeeded, got %s", intent.ID, status)
		}
	}
	if h.txs.Len() != 2 {
		t.Fatalf("expected one ledger row per intent, got %d", h.txs.Len())
	}
}
