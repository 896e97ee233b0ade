package grpcapi

import (
	"context"
	"errors"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var codeBySentinel = []struct {
	err  error
	code codes.Code
}{
	{domain.ErrInvalidAmount, codes.InvalidArgument},
	{domain.ErrUnsupportedCurrency, codes.InvalidArgument},
	{domain.ErrUnknownPaymentMethod, codes.InvalidArgument},
	{domain.ErrSensitiveMetadata, codes.InvalidArgument},
	{domain.ErrInvalidRateUpdate, codes.InvalidArgument},
	{domain.ErrMalformedPayload, codes.InvalidArgument},
	{domain.ErrIntentExpired, codes.FailedPrecondition},
	{domain.ErrIntentNotProcessable, codes.AlreadyExists},
	{domain.ErrIntentNotFound, codes.NotFound},
	{domain.ErrTransactionNotFound, codes.NotFound},
	{domain.ErrRateNotFound, codes.NotFound},
	{domain.ErrSignatureInvalid, codes.Unauthenticated},
	{domain.ErrProviderNotConfigured, codes.Internal},
	{domain.ErrUnknownProvider, codes.Internal},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
	{context.Canceled, codes.Canceled},
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range codeBySentinel {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}
