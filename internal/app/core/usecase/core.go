package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層，driving adapter (gRPC / HTTP) 都透過它操作帳本
type CoreUseCase struct {
	ledger Ledger
	logger zerolog.Logger
}

func NewCoreUseCase(ledger Ledger, logger zerolog.Logger) *CoreUseCase {
	return &CoreUseCase{
		ledger: ledger,
		logger: logger.With().Str("component", "usecase").Logger(),
	}
}

// CreateAccount 送出建立帳戶並等待結算 worker 的結果
func (c *CoreUseCase) CreateAccount(ctx context.Context, id string, balance uint64) (domain.OperationID, error) {
	done := c.ledger.SubmitCreateAccount(id, balance)
	err := done.Wait(ctx)
	if err != nil {
		c.logger.Debug().Str("op", done.ID().String()).Str("account", id).Err(err).Msg("create account rejected")
	}
	return done.ID(), err
}

// Transfer 送出轉帳並等待結算 worker 的結果
func (c *CoreUseCase) Transfer(ctx context.Context, sender, receiver string, amount uint64) (domain.OperationID, error) {
	done := c.ledger.SubmitTransfer(sender, receiver, amount)
	err := done.Wait(ctx)
	if err != nil {
		c.logger.Debug().Str("op", done.ID().String()).Str("from", sender).Str("to", receiver).
			Uint64("amount", amount).Err(err).Msg("transfer rejected")
	}
	return done.ID(), err
}

// GetAccountBalance 取得帳戶餘額
func (c *CoreUseCase) GetAccountBalance(ctx context.Context, accountID string) (uint64, error) {
	return c.ledger.QueryBalance(accountID)
}

// Tick 推進結算時鐘
func (c *CoreUseCase) Tick(ctx context.Context) (*domain.Block, error) {
	return c.ledger.Tick(ctx)
}

// GetBlock 取得已封存區塊，height 為 0 時回傳最新的區塊
func (c *CoreUseCase) GetBlock(ctx context.Context, height uint64) (domain.Block, error) {
	if height == 0 {
		return c.ledger.LatestBlock()
	}
	return c.ledger.Block(height)
}
