package mappers

import (
	"fmt"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"
)

// Money travels as decimal strings so no precision is lost in float fields.

func IntentToMap(intent *domain.PaymentIntent) map[string]any {
	metadata := make(map[string]any, len(intent.Metadata))
	for k, v := range intent.Metadata {
		metadata[k] = v
	}
	return map[string]any{
		"id":                      intent.ID,
		"amount":                  intent.Amount.String(),
		"currency":                intent.Currency,
		"status":                  string(intent.Status),
		"payment_method":          intent.PaymentMethod,
		"order_id":                intent.OrderID,
		"customer_id":             intent.CustomerID,
		"metadata":                metadata,
		"provider_transaction_id": intent.ProviderTransactionID,
		"failure_reason":          intent.FailureReason,
		"created_at":              formatTime(intent.CreatedAt),
		"expires_at":              formatTime(intent.ExpiresAt),
		"updated_at":              formatTime(intent.UpdatedAt),
	}
}

func TransactionToMap(tx *domain.Transaction) map[string]any {
	out := map[string]any{
		"transaction_id":    tx.TransactionID,
		"intent_id":         tx.IntentID,
		"provider":          tx.Provider,
		"amount_original":   tx.AmountOriginal.String(),
		"currency_original": tx.CurrencyOriginal,
		"amounts":           AmountsToMap(tx.Amounts),
		"status":            string(tx.Status),
		"created_at":        formatTime(tx.CreatedAt),
		"updated_at":        formatTime(tx.UpdatedAt),
	}
	if tx.ErrorMessage != nil {
		out["error_message"] = *tx.ErrorMessage
	}
	return out
}

func AmountsToMap(amounts map[string]decimal.Decimal) map[string]any {
	out := make(map[string]any, len(amounts))
	for code, amount := range amounts {
		out[code] = amount.String()
	}
	return out
}

func RatesToList(rates []domain.CurrencyRate) []any {
	out := make([]any, 0, len(rates))
	for _, r := range rates {
		out = append(out, map[string]any{
			"from":       r.BaseCurrency,
			"to":         r.TargetCurrency,
			"rate":       r.Rate.String(),
			"updated_at": formatTime(r.UpdatedAt),
		})
	}
	return out
}

func RateChangesToList(changes []domain.RateChange) []any {
	out := make([]any, 0, len(changes))
	for _, c := range changes {
		entry := map[string]any{
			"id":         float64(c.ID),
			"from":       c.BaseCurrency,
			"to":         c.TargetCurrency,
			"new_rate":   c.NewRate.String(),
			"changed_by": c.ChangedBy,
			"source":     c.Source,
			"created_at": formatTime(c.CreatedAt),
		}
		if c.OldRate != nil {
			entry["old_rate"] = c.OldRate.String()
		}
		out = append(out, entry)
	}
	return out
}

// RateUpdatesFromList reads [{"from","to","rate"}] entries.
func RateUpdatesFromList(list *structpb.ListValue) ([]domain.RateUpdate, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]domain.RateUpdate, 0, len(list.Values))
	for i, v := range list.Values {
		entry := v.GetStructValue()
		if entry == nil {
			return nil, fmt.Errorf("rates[%d] must be an object", i)
		}
		rate, err := DecimalField(entry, "rate")
		if err != nil {
			return nil, fmt.Errorf("rates[%d]: %w", i, err)
		}
		out = append(out, domain.RateUpdate{
			From: StringField(entry, "from"),
			To:   StringField(entry, "to"),
			Rate: rate,
		})
	}
	return out, nil
}

func StringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

// DecimalField accepts both a decimal string and a JSON number.
func DecimalField(s *structpb.Struct, key string) (decimal.Decimal, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%s is required", key)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%s is not a decimal: %w", key, err)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(kind.NumberValue), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%s must be a string or number", key)
	}
}

// StringMapField flattens an object of scalars into a string map. Nested values are dropped.
func StringMapField(s *structpb.Struct, key string) map[string]string {
	inner := s.GetFields()[key].GetStructValue()
	if inner == nil {
		return nil
	}
	out := make(map[string]string, len(inner.Fields))
	for k, v := range inner.Fields {
		switch kind := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			out[k] = kind.StringValue
		case *structpb.Value_NumberValue:
			out[k] = decimal.NewFromFloat(kind.NumberValue).String()
		case *structpb.Value_BoolValue:
			out[k] = fmt.Sprintf("%t", kind.BoolValue)
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
