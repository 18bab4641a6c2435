package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

// SeedAccounts 送出創世帳戶並等待全部完成
//
// 已存在的帳戶只記錄 warning，其他錯誤會中斷並回傳。
//
// 回傳:
//
//	int: 實際建立的帳戶數
//	error: 等待或建立失敗
func (c *CoreUseCase) SeedAccounts(ctx context.Context, accounts []domain.Account) (int, error) {
	// 先全部放進佇列再等待，不用一筆一筆來回
	pending := make([]*domain.Completion, 0, len(accounts))
	for _, acc := range accounts {
		pending = append(pending, c.ledger.SubmitCreateAccount(acc.ID, acc.Balance))
	}

	created := 0
	for i, done := range pending {
		err := done.Wait(ctx)
		switch {
		case err == nil:
			created++
		case errors.Is(err, domain.ErrAccountExists):
			c.logger.Warn().Str("account", accounts[i].ID).Msg("genesis account already exists")
		default:
			return created, fmt.Errorf("seed account %s: %w", accounts[i].ID, err)
		}
	}
	c.logger.Info().Int("created", created).Int("requested", len(accounts)).Msg("genesis accounts seeded")
	return created, nil
}
