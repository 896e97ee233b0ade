package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "payments.v1.PaymentService"

// PaymentServiceServer exchanges google.protobuf.Struct messages; field names
// are snake_case and money is always a decimal string.
type PaymentServiceServer interface {
	CreateIntent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessIntent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetIntent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Convert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateRates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRateHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv PaymentServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PaymentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PaymentServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var PaymentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateIntent", Handler: unaryHandler("CreateIntent", PaymentServiceServer.CreateIntent)},
		{MethodName: "ProcessIntent", Handler: unaryHandler("ProcessIntent", PaymentServiceServer.ProcessIntent)},
		{MethodName: "GetIntent", Handler: unaryHandler("GetIntent", PaymentServiceServer.GetIntent)},
		{MethodName: "Convert", Handler: unaryHandler("Convert", PaymentServiceServer.Convert)},
		{MethodName: "UpdateRates", Handler: unaryHandler("UpdateRates", PaymentServiceServer.UpdateRates)},
		{MethodName: "GetRates", Handler: unaryHandler("GetRates", PaymentServiceServer.GetRates)},
		{MethodName: "GetRateHistory", Handler: unaryHandler("GetRateHistory", PaymentServiceServer.GetRateHistory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payments/v1/payment_service.proto",
}

func RegisterPaymentServiceServer(s grpc.ServiceRegistrar, srv PaymentServiceServer) {
	s.RegisterService(&PaymentServiceDesc, srv)
}

// PaymentServiceClient is the caller side of PaymentServiceDesc.
type PaymentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPaymentServiceClient(cc grpc.ClientConnInterface) *PaymentServiceClient {
	return &PaymentServiceClient{cc: cc}
}

func (c *PaymentServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
