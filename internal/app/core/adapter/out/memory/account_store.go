package memory

import (
	"sync"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

// AccountStore 帳戶餘額的唯一來源
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	mu: 讀取 (查詢餘額) 用 RLock，寫入只透過 Update 取得 Lock
type AccountStore struct {
	accounts map[string]*domain.Account
	mu       sync.RWMutex
}

// NewAccountStore 建立空的 AccountStore
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.Account),
	}
}

// Balance 取得指定帳戶的當前餘額
//
// 參數:
//
//	id: 帳戶 ID
//
// 回傳:
//
//	uint64: 帳戶餘額
//	error: 帳戶不存在時回傳 AccountNotFoundError
func (s *AccountStore) Balance(id string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return 0, domain.AccountNotFound(id)
	}
	return account.Balance, nil
}

// Len 帳戶數量
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Snapshot 回傳所有帳戶餘額的複本
func (s *AccountStore) Snapshot() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]uint64, len(s.accounts))
	for id, account := range s.accounts {
		out[id] = account.Balance
	}
	return out
}

// Update 在獨佔鎖內執行 fn，fn 回傳後 (包含 panic) 一定會釋放鎖
//
// 一次 Update 內的多個修改對讀取端來說是原子的。
func (s *AccountStore) Update(fn func(w *StoreWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&StoreWriter{accounts: s.accounts})
}

// StoreWriter 只在 Update 期間有效的寫入介面
type StoreWriter struct {
	accounts map[string]*domain.Account
}

// Exists 帳戶是否存在
func (w *StoreWriter) Exists(id string) bool {
	_, ok := w.accounts[id]
	return ok
}

// Balance 取得餘額
func (w *StoreWriter) Balance(id string) (uint64, error) {
	account, ok := w.accounts[id]
	if !ok {
		return 0, domain.AccountNotFound(id)
	}
	return account.Balance, nil
}

// Create 建立帳戶，已存在時不做任何修改
func (w *StoreWriter) Create(id string, balance uint64) error {
	if _, ok := w.accounts[id]; ok {
		return domain.ErrAccountExists
	}
	w.accounts[id] = domain.NewAccount(id, balance)
	return nil
}

// Withdraw 檢查餘額後扣款
func (w *StoreWriter) Withdraw(id string, amount uint64) error {
	account, ok := w.accounts[id]
	if !ok {
		return domain.AccountNotFound(id)
	}
	return account.Withdraw(amount)
}

// Deposit 存款
func (w *StoreWriter) Deposit(id string, amount uint64) error {
	account, ok := w.accounts[id]
	if !ok {
		return domain.AccountNotFound(id)
	}
	account.Deposit(amount)
	return nil
}
