package grpcapi

import (
	"context"

	"github.com/LavaJover/shvark-payment-service/internal/delivery/grpcapi/mappers"
	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/usecase/payment"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultHistoryLimit = 50

type RateService interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) decimal.Decimal
	ConvertToAll(ctx context.Context, amount decimal.Decimal, from string) map[string]decimal.Decimal
	UpdateRates(ctx context.Context, batch []domain.RateUpdate, actor string) ([]domain.RateChange, error)
	GetRates(ctx context.Context) ([]domain.CurrencyRate, error)
	GetRateHistory(ctx context.Context, limit int) ([]domain.RateChange, error)
}

type PaymentHandler struct {
	uc    payment.PaymentUsecase
	rates RateService
}

func NewPaymentHandler(uc payment.PaymentUsecase, rates RateService) *PaymentHandler {
	return &PaymentHandler{uc: uc, rates: rates}
}

func (h *PaymentHandler) CreateIntent(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	amount, err := mappers.DecimalField(r, "amount")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	intent, err := h.uc.CreateIntent(ctx, payment.CreateIntentInput{
		Amount:        amount,
		Currency:      mappers.StringField(r, "currency"),
		OrderID:       mappers.StringField(r, "order_id"),
		CustomerID:    mappers.StringField(r, "customer_id"),
		PaymentMethod: mappers.StringField(r, "payment_method"),
		Metadata:      mappers.StringMapField(r, "metadata"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(map[string]any{"intent": mappers.IntentToMap(intent)})
}

func (h *PaymentHandler) ProcessIntent(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	intentID := mappers.StringField(r, "intent_id")
	if intentID == "" {
		return nil, status.Error(codes.InvalidArgument, "intent_id is required")
	}

	result, err := h.uc.ProcessIntent(ctx, intentID, domain.PaymentData(mappers.StringMapField(r, "payment_data")))
	if err != nil {
		return nil, toStatus(err)
	}

	out := map[string]any{
		"intent":         mappers.IntentToMap(result.Intent),
		"outcome":        string(result.Outcome),
		"transaction_id": result.TransactionID,
		"reason":         result.Reason,
	}
	if result.Transaction != nil {
		out["transaction"] = mappers.TransactionToMap(result.Transaction)
	}
	return respond(out)
}

func (h *PaymentHandler) GetIntent(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	intentID := mappers.StringField(r, "intent_id")
	if intentID == "" {
		return nil, status.Error(codes.InvalidArgument, "intent_id is required")
	}

	intent, err := h.uc.GetIntent(ctx, intentID)
	if err != nil {
		return nil, toStatus(err)
	}
	txs, err := h.uc.ListTransactions(ctx, intentID)
	if err != nil {
		return nil, toStatus(err)
	}

	list := make([]any, 0, len(txs))
	for _, tx := range txs {
		list = append(list, mappers.TransactionToMap(tx))
	}
	return respond(map[string]any{
		"intent":       mappers.IntentToMap(intent),
		"transactions": list,
	})
}

// Convert converts into "to" when given, otherwise into every supported currency.
func (h *PaymentHandler) Convert(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	amount, err := mappers.DecimalField(r, "amount")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	from := mappers.StringField(r, "from")
	if from == "" {
		return nil, status.Error(codes.InvalidArgument, "from is required")
	}

	if to := mappers.StringField(r, "to"); to != "" {
		converted := h.rates.Convert(ctx, amount, from, to)
		return respond(map[string]any{
			"amounts": map[string]any{domain.NormalizeCurrency(to): converted.String()},
		})
	}
	return respond(map[string]any{
		"amounts": mappers.AmountsToMap(h.rates.ConvertToAll(ctx, amount, from)),
	})
}

func (h *PaymentHandler) UpdateRates(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	actor := mappers.StringField(r, "actor")
	if actor == "" {
		return nil, status.Error(codes.InvalidArgument, "actor is required")
	}
	batch, err := mappers.RateUpdatesFromList(r.GetFields()["rates"].GetListValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	changes, err := h.rates.UpdateRates(ctx, batch, actor)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(map[string]any{"changes": mappers.RateChangesToList(changes)})
}

func (h *PaymentHandler) GetRates(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	rates, err := h.rates.GetRates(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(map[string]any{"rates": mappers.RatesToList(rates)})
}

func (h *PaymentHandler) GetRateHistory(ctx context.Context, r *structpb.Struct) (*structpb.Struct, error) {
	limit := int(r.GetFields()["limit"].GetNumberValue())
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	changes, err := h.rates.GetRateHistory(ctx, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(map[string]any{"changes": mappers.RateChangesToList(changes)})
}

func respond(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
