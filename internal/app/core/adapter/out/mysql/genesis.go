package mysql

import (
	"context"
	"fmt"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-block-ledger/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID      string `gorm:"primaryKey;size:191"`
	Balance uint64
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// GenesisLoader 從 MySQL 讀取創世帳戶，只讀不寫
//
// 帳本本身的狀態仍然只存在記憶體；資料庫只是啟動時的初始餘額來源。
type GenesisLoader struct {
	client *mysql.Client
}

func NewGenesisLoader(client *mysql.Client) *GenesisLoader {
	return &GenesisLoader{
		client: client,
	}
}

// LoadAccounts 依 ID 排序讀出所有帳戶
func (g *GenesisLoader) LoadAccounts(ctx context.Context) ([]domain.Account, error) {
	var rows []sqlAccount
	if err := g.client.DB().WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load genesis accounts: %w", err)
	}
	return toDomainAccounts(rows), nil
}

func toDomainAccounts(rows []sqlAccount) []domain.Account {
	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, domain.Account{ID: row.ID, Balance: row.Balance})
	}
	return accounts
}
