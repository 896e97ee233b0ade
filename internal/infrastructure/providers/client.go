package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultClientTimeout = 10 * time.Second
	maxResponseBytes     = 1 << 20
)

// apiClient is the thin HTTP layer shared by the adapters. It never retries.
type apiClient struct {
	name    string
	baseURL string
	client  *http.Client
}

func newAPIClient(name, baseURL, fallbackURL string) apiClient {
	if baseURL == "" {
		baseURL = fallbackURL
	}
	return apiClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: defaultClientTimeout,
		},
	}
}

type apiResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (c apiClient) do(ctx context.Context, method, path string, headers map[string]string, body io.Reader) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", c.name, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.name, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
	}
	return &apiResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func toMinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(domain.MinorUnits(currency)).Round(0).IntPart()
}

func fromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -domain.MinorUnits(currency))
}

func failed(reason string) domain.ChargeResult {
	return domain.ChargeResult{Outcome: domain.ChargeFailed, Reason: reason}
}
