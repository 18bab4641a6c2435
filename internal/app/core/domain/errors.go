package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountExists 帳戶已存在
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount 轉帳金額必須大於 0
	ErrInvalidAmount = errors.New("transfer amount must be greater than 0")

	// ErrLedgerClosed 帳本已關閉，不再接受新的操作
	ErrLedgerClosed = errors.New("ledger closed")

	// ErrBlockNotFound 找不到區塊
	ErrBlockNotFound = errors.New("block not found")
)

// AccountNotFoundError 指出是哪一個帳戶不存在
type AccountNotFoundError struct {
	ID string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.ID)
}

// Is 讓 errors.Is(err, ErrAccountNotFound) 成立
func (e *AccountNotFoundError) Is(target error) bool {
	return target == ErrAccountNotFound
}

// AccountNotFound 建立帶有帳戶 ID 的 not found 錯誤
func AccountNotFound(id string) error {
	return &AccountNotFoundError{ID: id}
}
