package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName gRPC 服務名稱
const ServiceName = "ledger.v1.LedgerService"

// LedgerServiceServer 帳本 gRPC 服務
//
// 訊息使用 protobuf well-known types，金額與餘額以十進位字串放在 Struct 中，
// 才能完整表示 uint64。
type LedgerServiceServer interface {
	// CreateAccount {id, balance} -> {ref_id}
	CreateAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Transfer {sender, receiver, amount} -> {ref_id}
	Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetBalance account id -> balance
	GetBalance(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	// GetBlock height (0 = latest) -> block
	GetBlock(context.Context, *wrapperspb.UInt64Value) (*structpb.Struct, error)
	// Tick -> {sealed, block}
	Tick(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterLedgerServiceServer 註冊服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// LedgerServiceDesc 手寫的 service descriptor
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateAccount",
			Handler:    unaryHandler("CreateAccount", LedgerServiceServer.CreateAccount),
		},
		{
			MethodName: "Transfer",
			Handler:    unaryHandler("Transfer", LedgerServiceServer.Transfer),
		},
		{
			MethodName: "GetBalance",
			Handler:    unaryHandler("GetBalance", LedgerServiceServer.GetBalance),
		},
		{
			MethodName: "GetBlock",
			Handler:    unaryHandler("GetBlock", LedgerServiceServer.GetBlock),
		},
		{
			MethodName: "Tick",
			Handler:    unaryHandler("Tick", LedgerServiceServer.Tick),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryHandler 將 LedgerServiceServer 的方法包成 grpc 的 unary handler
func unaryHandler[Req, Resp any](
	method string,
	call func(LedgerServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
