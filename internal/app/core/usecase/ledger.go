package usecase

import (
	"context"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

// Ledger 是帳本對外的入口 (Facade)
//
// Submit 系列方法只負責把操作放進佇列，不會等待結算；
// 結果透過回傳的 Completion 通知，剛好一次。
type Ledger interface {
	// SubmitCreateAccount 送出建立帳戶操作
	SubmitCreateAccount(id string, balance uint64) *domain.Completion
	// SubmitTransfer 送出轉帳操作
	SubmitTransfer(sender, receiver string, amount uint64) *domain.Completion
	// QueryBalance 直接讀取帳戶餘額，不經過佇列
	QueryBalance(id string) (uint64, error)
	// Tick 推進結算時鐘，時間未到回傳 nil
	Tick(ctx context.Context) (*domain.Block, error)
	// Block 取得指定高度的已封存區塊
	Block(height uint64) (domain.Block, error)
	// LatestBlock 取得最新的已封存區塊
	LatestBlock() (domain.Block, error)
}
