package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersUpdateCollectors(t *testing.T) {
	m := NewPaymentMetrics(prometheus.NewRegistry())

	m.RecordIntentCreated("flutterwave", "EUR", 100)
	m.RecordIntentCreated("flutterwave", "EUR", 50)
	m.RecordCurrencyFallback("EUR", "XAF")
	m.RecordSignatureFailure("stripe")
	m.RecordTransition("stripe", "pending", "processing")

	if got := testutil.ToFloat64(m.IntentsCreatedTotal.WithLabelValues("flutterwave", "EUR")); got != 2 {
		t.Fatalf("expected 2 intents, got %v", got)
	}
	if got := testutil.ToFloat64(m.IntentsCreatedAmountTotal.WithLabelValues("EUR")); got != 150 {
		t.Fatalf("expected amount 150, got %v", got)
	}
	if got := testutil.ToFloat64(m.CurrencyFallbackTotal.WithLabelValues("EUR", "XAF")); got != 1 {
		t.Fatalf("expected one fallback, got %v", got)
	}
	if got := testutil.ToFloat64(m.WebhookSignatureFailureTotal.WithLabelValues("stripe")); got != 1 {
		t.Fatalf("expected one signature failure, got %v", got)
	}
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	NewPaymentMetrics(prometheus.NewRegistry())
	NewPaymentMetrics(prometheus.NewRegistry())
}
