package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// OperationID 每一筆送進佇列的操作都會分配一個追蹤號
type OperationID = uuid.UUID

// NewOperationID 產生新的操作追蹤號
func NewOperationID() OperationID {
	return uuid.New()
}

// OperationKind 操作類型
type OperationKind uint8

const (
	// 建立帳戶
	OperationKindCreateAccount OperationKind = iota + 1
	// 轉帳
	OperationKindTransfer
	// 結算 tick
	OperationKindTick
)

func (k OperationKind) String() string {
	switch k {
	case OperationKindCreateAccount:
		return "create_account"
	case OperationKindTransfer:
		return "transfer"
	case OperationKindTick:
		return "tick"
	default:
		return "unknown"
	}
}

// Transfer 一筆已完成的轉帳紀錄，建立後不再修改
type Transfer struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Amount   uint64 `json:"amount"`
}

func NewTransfer(sender, receiver string, amount uint64) Transfer {
	return Transfer{
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
	}
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s -> %s : %d", t.Sender, t.Receiver, t.Amount)
}
