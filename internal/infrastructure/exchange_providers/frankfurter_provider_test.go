package exchangeproviders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFrankfurterFetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("from"); got != "EUR" {
			t.Errorf("from = %q", got)
		}
		if got := r.URL.Query().Get("to"); got != "USD,XAF" {
			t.Errorf("to = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"amount":1.0,"base":"EUR","date":"2024-05-02","rates":{"USD":1.0712}}`))
	}))
	defer srv.Close()

	p := NewFrankfurterProvider(srv.URL + "/")
	updates, err := p.FetchRates(context.Background(), "eur", []string{"USD", "XAF", "EUR"})
	if err != nil {
		t.Fatalf("FetchRates: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected 1 update (XAF unpublished), got %d", len(updates))
	}
	if updates[0].From != "EUR" || updates[0].To != "USD" || updates[0].Rate.String() != "1.0712" {
		t.Fatalf("unexpected update %+v", updates[0])
	}
}

func TestFrankfurterScalesByAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"amount":10,"base":"USD","rates":{"EUR":9.2}}`))
	}))
	defer srv.Close()

	updates, err := NewFrankfurterProvider(srv.URL).FetchRates(context.Background(), "USD", []string{"EUR"})
	if err != nil {
		t.Fatalf("FetchRates: %v", err)
	}
	if updates[0].Rate.String() != "0.92" {
		t.Fatalf("rate = %s, want 0.92", updates[0].Rate)
	}
}

func TestFrankfurterErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("from") {
		case "USD":
			w.WriteHeader(http.StatusBadGateway)
		case "GBP":
			_, _ = w.Write([]byte(`not json`))
		default:
			_, _ = w.Write([]byte(`{"amount":1,"base":"USD","rates":{}}`))
		}
	}))
	defer srv.Close()

	p := NewFrankfurterProvider(srv.URL)
	for _, base := range []string{"USD", "GBP", "EUR"} {
		if _, err := p.FetchRates(context.Background(), base, []string{"XAF"}); err == nil {
			t.Fatalf("%s: expected error", base)
		}
	}
	if updates, err := p.FetchRates(context.Background(), "EUR", []string{"EUR"}); err != nil || updates != nil {
		t.Fatalf("identity-only targets should be a no-op, got %v %v", updates, err)
	}
	if p.IsHealthy(context.Background()) {
		t.Fatal("mismatched base must not be healthy")
	}
}
