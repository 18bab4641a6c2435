package grpc

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

// maxExactFloat 超過這個值的 number 無法精確表示整數
const maxExactFloat = 1 << 53

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// uintField 讀取非負整數欄位，接受十進位字串或整數 number，沒有欄位時為 0
func uintField(s *structpb.Struct, name string) (uint64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(kind.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a non-negative integer", name, kind.StringValue)
		}
		return n, nil
	case *structpb.Value_NumberValue:
		f := kind.NumberValue
		if f < 0 || f > maxExactFloat || f != math.Trunc(f) {
			return 0, fmt.Errorf("%s: %v is not a non-negative integer", name, f)
		}
		return uint64(f), nil
	case *structpb.Value_NullValue:
		return 0, nil
	default:
		return 0, fmt.Errorf("%s: unsupported value type", name)
	}
}

func formatUint(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// blockToStruct 區塊轉成 Struct
func blockToStruct(b domain.Block) (*structpb.Struct, error) {
	transfers := make([]any, 0, len(b.Transfers))
	for _, t := range b.Transfers {
		transfers = append(transfers, map[string]any{
			"sender":   t.Sender,
			"receiver": t.Receiver,
			"amount":   formatUint(t.Amount),
		})
	}
	return structpb.NewStruct(map[string]any{
		"height":    formatUint(b.Height),
		"sealed_at": b.SealedAt.UTC().Format(time.RFC3339Nano),
		"transfers": transfers,
	})
}

// blockFromStruct Struct 轉回區塊
func blockFromStruct(s *structpb.Struct) (domain.Block, error) {
	height, err := uintField(s, "height")
	if err != nil {
		return domain.Block{}, err
	}
	sealedAt, err := time.Parse(time.RFC3339Nano, stringField(s, "sealed_at"))
	if err != nil {
		return domain.Block{}, fmt.Errorf("sealed_at: %w", err)
	}

	values := s.GetFields()["transfers"].GetListValue().GetValues()
	transfers := make([]domain.Transfer, 0, len(values))
	for i, v := range values {
		fields := v.GetStructValue()
		if fields == nil {
			return domain.Block{}, fmt.Errorf("transfers[%d]: not an object", i)
		}
		amount, err := uintField(fields, "amount")
		if err != nil {
			return domain.Block{}, fmt.Errorf("transfers[%d]: %w", i, err)
		}
		transfers = append(transfers, domain.NewTransfer(stringField(fields, "sender"), stringField(fields, "receiver"), amount))
	}

	return domain.Block{
		Height:    height,
		SealedAt:  sealedAt,
		Transfers: transfers,
	}, nil
}
