package exchangeproviders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/shopspring/decimal"
)

const FrankfurterName = "frankfurter"

// FrankfurterProvider reads reference rates published by the ECB.
type FrankfurterProvider struct {
	baseURL string
	client  *http.Client
}

type frankfurterResponse struct {
	Amount decimal.Decimal            `json:"amount"`
	Base   string                     `json:"base"`
	Date   string                     `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

func NewFrankfurterProvider(baseURL string) *FrankfurterProvider {
	return &FrankfurterProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (p *FrankfurterProvider) Name() string {
	return FrankfurterName
}

// FetchRates returns base->target updates for every target the provider
// publishes. Targets it does not know are left out of the result.
func (p *FrankfurterProvider) FetchRates(ctx context.Context, base string, targets []string) ([]domain.RateUpdate, error) {
	base = domain.NormalizeCurrency(base)
	wanted := make([]string, 0, len(targets))
	for _, t := range targets {
		t = domain.NormalizeCurrency(t)
		if t != "" && t != base {
			wanted = append(wanted, t)
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("from", base)
	query.Set("to", strings.Join(wanted, ","))
	endpoint := p.baseURL + "/latest?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get rates from frankfurter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("frankfurter API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed frankfurterResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse frankfurter response: %w", err)
	}
	if domain.NormalizeCurrency(parsed.Base) != base {
		return nil, fmt.Errorf("frankfurter answered for base %q, asked %q", parsed.Base, base)
	}

	// Rates are quoted for parsed.Amount units of base.
	amount := parsed.Amount
	if !amount.IsPositive() {
		amount = decimal.NewFromInt(1)
	}

	updates := make([]domain.RateUpdate, 0, len(parsed.Rates))
	for _, target := range wanted {
		rate, ok := parsed.Rates[target]
		if !ok || !rate.IsPositive() {
			continue
		}
		updates = append(updates, domain.RateUpdate{
			From: base,
			To:   target,
			Rate: rate.Div(amount),
		})
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].To < updates[j].To })
	return updates, nil
}

func (p *FrankfurterProvider) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := p.FetchRates(ctx, "EUR", []string{"USD"})
	return err == nil
}
