package domain

// Account 帳戶，餘額永遠不為負數
type Account struct {
	ID      string
	Balance uint64
}

func NewAccount(id string, balance uint64) *Account {
	return &Account{
		ID:      id,
		Balance: balance,
	}
}

// Deposit 存款
func (a *Account) Deposit(amount uint64) {
	a.Balance += amount
}

// Withdraw 提款，餘額不足時不做任何修改
func (a *Account) Withdraw(amount uint64) error {
	if a.Balance < amount {
		return ErrInsufficientFunds
	}
	a.Balance -= amount
	return nil
}
