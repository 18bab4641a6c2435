package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-block-ledger/internal/app/core/usecase"
)

func newCore(t *testing.T) *usecase.CoreUseCase {
	t.Helper()
	ledger := memory.NewSettlementLedger(
		memory.WithInterval(time.Nanosecond),
		memory.WithManualSettlement(),
	)
	ctx, cancel := context.WithCancel(context.Background())
	ledger.Start(ctx)
	t.Cleanup(func() {
		cancel()
		ledger.Wait()
	})
	return usecase.NewCoreUseCase(ledger, zerolog.Nop())
}

func TestCoreUseCaseTransfer(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()

	id, err := core.CreateAccount(ctx, "A", 100)
	require.NoError(t, err)
	assert.NotEqual(t, domain.OperationID{}, id)

	_, err = core.CreateAccount(ctx, "B", 0)
	require.NoError(t, err)

	_, err = core.Transfer(ctx, "A", "B", 30)
	require.NoError(t, err)

	_, err = core.Transfer(ctx, "A", "C", 1)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	balance, err := core.GetAccountBalance(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, uint64(30), balance)

	sealed, err := core.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, sealed)

	latest, err := core.GetBlock(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, sealed.Height, latest.Height)

	first, err := core.GetBlock(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.Transfer{domain.NewTransfer("A", "B", 30)}, first.Transfers)
}

func TestCoreUseCaseWaitHonoursContext(t *testing.T) {
	// 沒有 Start 的帳本永遠不會回覆
	ledger := memory.NewSettlementLedger()
	core := usecase.NewCoreUseCase(ledger, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := core.Transfer(ctx, "A", "B", 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoreUseCaseSeedAccounts(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()

	_, err := core.CreateAccount(ctx, "existing", 7)
	require.NoError(t, err)

	created, err := core.SeedAccounts(ctx, []domain.Account{
		{ID: "alice", Balance: 100},
		{ID: "existing", Balance: 1},
		{ID: "bob", Balance: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	balance, err := core.GetAccountBalance(ctx, "existing")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), balance, "seeding must not overwrite an existing balance")

	balance, err = core.GetAccountBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), balance)
}

func TestCoreUseCaseSeedAccountsClosedLedger(t *testing.T) {
	ledger := memory.NewSettlementLedger()
	ctx, cancel := context.WithCancel(context.Background())
	ledger.Start(ctx)
	cancel()
	ledger.Wait()

	core := usecase.NewCoreUseCase(ledger, zerolog.Nop())
	_, err := core.SeedAccounts(context.Background(), []domain.Account{{ID: "alice", Balance: 1}})
	assert.ErrorIs(t, err, domain.ErrLedgerClosed)
}
