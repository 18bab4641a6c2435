package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

// Client LedgerService 的 gRPC 客戶端
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// CreateAccount 建立帳戶，回傳操作追蹤號
func (c *Client) CreateAccount(ctx context.Context, id string, balance uint64, opts ...grpc.CallOption) (string, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":      structpb.NewStringValue(id),
		"balance": structpb.NewStringValue(formatUint(balance)),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("CreateAccount"), req, out, opts...); err != nil {
		return "", err
	}
	return stringField(out, "ref_id"), nil
}

// Transfer 轉帳，回傳操作追蹤號
func (c *Client) Transfer(ctx context.Context, sender, receiver string, amount uint64, opts ...grpc.CallOption) (string, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"sender":   structpb.NewStringValue(sender),
		"receiver": structpb.NewStringValue(receiver),
		"amount":   structpb.NewStringValue(formatUint(amount)),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Transfer"), req, out, opts...); err != nil {
		return "", err
	}
	return stringField(out, "ref_id"), nil
}

// GetBalance 查詢餘額
func (c *Client) GetBalance(ctx context.Context, id string, opts ...grpc.CallOption) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, fullMethod("GetBalance"), wrapperspb.String(id), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}

// GetBlock 取得區塊，height 為 0 時取最新的
func (c *Client) GetBlock(ctx context.Context, height uint64, opts ...grpc.CallOption) (domain.Block, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetBlock"), wrapperspb.UInt64(height), out, opts...); err != nil {
		return domain.Block{}, err
	}
	return blockFromStruct(out)
}

// Tick 推進結算時鐘，沒有封存時回傳 nil
func (c *Client) Tick(ctx context.Context, opts ...grpc.CallOption) (*domain.Block, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Tick"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	if !out.GetFields()["sealed"].GetBoolValue() {
		return nil, nil
	}
	b, err := blockFromStruct(out.GetFields()["block"].GetStructValue())
	if err != nil {
		return nil, fmt.Errorf("decode sealed block: %w", err)
	}
	return &b, nil
}
