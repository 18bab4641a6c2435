package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-block-ledger/internal/app/core/usecase"
)

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) CreateAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	balance, err := uintField(req, "balance")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ref, err := s.core.CreateAccount(ctx, id, balance)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"ref_id": ref.String()})
}

func (s *GrpcServer) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// 金額是否大於 0 交給結算 worker 驗證
	amount, err := uintField(req, "amount")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ref, err := s.core.Transfer(ctx, stringField(req, "sender"), stringField(req, "receiver"), amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{"ref_id": ref.String()})
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	balance, err := s.core.GetAccountBalance(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(balance), nil
}

func (s *GrpcServer) GetBlock(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	block, err := s.core.GetBlock(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := blockToStruct(block)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GrpcServer) Tick(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	sealed, err := s.core.Tick(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"sealed": structpb.NewBoolValue(sealed != nil),
	}}
	if sealed != nil {
		b, err := blockToStruct(*sealed)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		out.Fields["block"] = structpb.NewStructValue(b)
	}
	return out, nil
}

// toStatus 將 domain 錯誤轉成 gRPC status
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, domain.ErrAccountExists):
		code = codes.AlreadyExists
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrBlockNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrInvalidAmount):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrLedgerClosed):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
