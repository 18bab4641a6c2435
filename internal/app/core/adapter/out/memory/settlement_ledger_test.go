package memory

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

const testInterval = 10 * time.Second

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLedger(t *testing.T) (*SettlementLedger, *manualClock) {
	t.Helper()
	clock := newManualClock()
	ledger := NewSettlementLedger(
		WithClock(clock),
		WithInterval(testInterval),
		WithManualSettlement(),
	)
	ctx, cancel := context.WithCancel(context.Background())
	ledger.Start(ctx)
	t.Cleanup(func() {
		cancel()
		ledger.Wait()
	})
	return ledger, clock
}

func wait(t *testing.T, c *domain.Completion) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Wait(ctx)
	assert.NotErrorIs(t, err, context.DeadlineExceeded, "operation %s never resolved", c.ID())
	return err
}

func tick(t *testing.T, l *SettlementLedger) *domain.Block {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b, err := l.Tick(ctx)
	require.NoError(t, err)
	return b
}

func balanceOf(t *testing.T, l *SettlementLedger, id string) uint64 {
	t.Helper()
	balance, err := l.QueryBalance(id)
	require.NoError(t, err)
	return balance
}

func TestSettlementTransferScenario(t *testing.T) {
	ledger, clock := newTestLedger(t)

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 100)))
	require.NoError(t, wait(t, ledger.SubmitCreateAccount("B", 0)))
	require.NoError(t, wait(t, ledger.SubmitTransfer("A", "B", 30)))

	clock.Advance(testInterval)
	sealed := tick(t, ledger)
	require.NotNil(t, sealed)

	assert.Equal(t, uint64(70), balanceOf(t, ledger, "A"))
	assert.Equal(t, uint64(30), balanceOf(t, ledger, "B"))

	latest, err := ledger.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), latest.Height)
	assert.Equal(t, []domain.Transfer{domain.NewTransfer("A", "B", 30)}, latest.Transfers)
	assert.Equal(t, latest, *sealed)
}

func TestSettlementReceiverNotFound(t *testing.T) {
	ledger, _ := newTestLedger(t)

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 10)))
	err := wait(t, ledger.SubmitTransfer("A", "B", 50))

	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	var nf *domain.AccountNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "B", nf.ID)

	assert.Equal(t, uint64(10), balanceOf(t, ledger, "A"))
}

func TestSettlementSenderNotFound(t *testing.T) {
	ledger, _ := newTestLedger(t)

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("B", 10)))
	err := wait(t, ledger.SubmitTransfer("A", "B", 5))

	var nf *domain.AccountNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "A", nf.ID)
}

func TestSettlementValidationOrder(t *testing.T) {
	ledger, _ := newTestLedger(t)

	// 金額檢查在帳戶檢查之前
	err := wait(t, ledger.SubmitTransfer("nobody", "nobody-else", 0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	// 付款方在收款方之前
	err = wait(t, ledger.SubmitTransfer("x", "y", 1))
	var nf *domain.AccountNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "x", nf.ID)
}

func TestSettlementZeroAmountProducesNoRecord(t *testing.T) {
	ledger, clock := newTestLedger(t)

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 100)))
	require.NoError(t, wait(t, ledger.SubmitCreateAccount("B", 0)))

	err := wait(t, ledger.SubmitTransfer("A", "B", 0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	clock.Advance(testInterval)
	sealed := tick(t, ledger)
	require.NotNil(t, sealed)
	assert.Empty(t, sealed.Transfers)
	assert.Equal(t, uint64(100), balanceOf(t, ledger, "A"))
}

func TestSettlementInsufficientFunds(t *testing.T) {
	ledger, clock := newTestLedger(t)

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 10)))
	require.NoError(t, wait(t, ledger.SubmitCreateAccount("B", 5)))

	err := wait(t, ledger.SubmitTransfer("A", "B", 11))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Equal(t, uint64(10), balanceOf(t, ledger, "A"))
	assert.Equal(t, uint64(5), balanceOf(t, ledger, "B"))

	// 失敗不影響後面的操作
	require.NoError(t, wait(t, ledger.SubmitTransfer("A", "B", 10)))
	clock.Advance(testInterval)
	sealed := tick(t, ledger)
	require.NotNil(t, sealed)
	assert.Equal(t, []domain.Transfer{domain.NewTransfer("A", "B", 10)}, sealed.Transfers)
}

func TestSettlementSelfTransfer(t *testing.T) {
	ledger, clock := newTestLedger(t)

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 100)))
	require.NoError(t, wait(t, ledger.SubmitTransfer("A", "A", 40)))
	assert.Equal(t, uint64(100), balanceOf(t, ledger, "A"))

	// 全額轉給自己也可以
	require.NoError(t, wait(t, ledger.SubmitTransfer("A", "A", 100)))
	assert.Equal(t, uint64(100), balanceOf(t, ledger, "A"))

	err := wait(t, ledger.SubmitTransfer("A", "A", 101))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	clock.Advance(testInterval)
	sealed := tick(t, ledger)
	require.NotNil(t, sealed)
	assert.Len(t, sealed.Transfers, 2)
}

func TestSettlementDuplicateAccount(t *testing.T) {
	ledger, clock := newTestLedger(t)

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 100)))
	err := wait(t, ledger.SubmitCreateAccount("A", 5))
	assert.ErrorIs(t, err, domain.ErrAccountExists)
	assert.Equal(t, uint64(100), balanceOf(t, ledger, "A"))

	// 建立帳戶不會寫進區塊
	clock.Advance(testInterval)
	sealed := tick(t, ledger)
	require.NotNil(t, sealed)
	assert.Empty(t, sealed.Transfers)
}

func TestSettlementTickBeforeInterval(t *testing.T) {
	ledger, clock := newTestLedger(t)

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 100)))
	require.NoError(t, wait(t, ledger.SubmitCreateAccount("B", 0)))
	require.NoError(t, wait(t, ledger.SubmitTransfer("A", "B", 1)))

	before := ledger.Balances()

	clock.Advance(testInterval - time.Nanosecond)
	assert.Nil(t, tick(t, ledger))
	assert.Nil(t, tick(t, ledger))

	assert.Zero(t, ledger.Height())
	assert.Equal(t, before, ledger.Balances())
	_, err := ledger.LatestBlock()
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)

	clock.Advance(time.Nanosecond)
	sealed := tick(t, ledger)
	require.NotNil(t, sealed)
	assert.Len(t, sealed.Transfers, 1)

	// 剛封存完，下一次還沒到期
	assert.Nil(t, tick(t, ledger))
	assert.Equal(t, uint64(1), ledger.Height())
	assert.Equal(t, before, ledger.Balances())
}

func TestSettlementEmptyBlocksAndHeights(t *testing.T) {
	ledger, clock := newTestLedger(t)

	for i := 1; i <= 3; i++ {
		clock.Advance(testInterval)
		sealed := tick(t, ledger)
		require.NotNil(t, sealed)
		assert.Equal(t, uint64(i), sealed.Height)
		assert.Empty(t, sealed.Transfers)
		assert.Equal(t, clock.Now(), sealed.SealedAt)
	}

	b, err := ledger.Block(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b.Height)

	_, err = ledger.Block(4)
	assert.ErrorIs(t, err, domain.ErrBlockNotFound)
}

func TestSettlementFIFO(t *testing.T) {
	ledger, clock := newTestLedger(t)

	// 只有依送出順序處理，這些操作才會全部成功
	ops := []*domain.Completion{
		ledger.SubmitCreateAccount("A", 100),
		ledger.SubmitCreateAccount("B", 0),
		ledger.SubmitTransfer("A", "B", 100),
		ledger.SubmitTransfer("B", "A", 60),
		ledger.SubmitTransfer("B", "A", 40),
	}
	for _, op := range ops {
		require.NoError(t, wait(t, op))
	}

	clock.Advance(testInterval)
	sealed := tick(t, ledger)
	require.NotNil(t, sealed)
	assert.Equal(t, []domain.Transfer{
		domain.NewTransfer("A", "B", 100),
		domain.NewTransfer("B", "A", 60),
		domain.NewTransfer("B", "A", 40),
	}, sealed.Transfers)

	// 收款方還沒建立前送出的轉帳會失敗
	early := ledger.SubmitTransfer("A", "C", 1)
	late := ledger.SubmitCreateAccount("C", 0)
	assert.ErrorIs(t, wait(t, early), domain.ErrAccountNotFound)
	assert.NoError(t, wait(t, late))
}

func TestSettlementTickSeesEarlierSubmissions(t *testing.T) {
	ledger, clock := newTestLedger(t)

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 100)))
	require.NoError(t, wait(t, ledger.SubmitCreateAccount("B", 0)))

	// 不等待結果就 Tick
	done := ledger.SubmitTransfer("A", "B", 30)
	clock.Advance(testInterval)
	sealed := tick(t, ledger)

	require.NoError(t, wait(t, done))
	require.NotNil(t, sealed)
	assert.Equal(t, []domain.Transfer{domain.NewTransfer("A", "B", 30)}, sealed.Transfers)
}

func TestSettlementConservation(t *testing.T) {
	ledger, clock := newTestLedger(t)

	const (
		accounts  = 10
		initial   = 1000
		workers   = 20
		perWorker = 100
	)
	ids := make([]string, accounts)
	for i := range ids {
		ids[i] = fmt.Sprintf("acc-%d", i)
		require.NoError(t, wait(t, ledger.SubmitCreateAccount(ids[i], initial)))
	}
	const total = accounts * initial

	stopReaders := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-stopReaders:
				return
			default:
			}
			var sum uint64
			for _, b := range ledger.Balances() {
				sum += b
			}
			if sum != total {
				t.Errorf("observed total %d, want %d", sum, total)
				return
			}
		}
	}()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < perWorker; i++ {
				from := ids[r.Intn(accounts)]
				to := ids[r.Intn(accounts)]
				amount := uint64(r.Intn(300))
				err := wait(t, ledger.SubmitTransfer(from, to, amount))
				switch {
				case err == nil:
					mu.Lock()
					applied++
					mu.Unlock()
				case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInvalidAmount):
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(int64(w))
	}
	wg.Wait()
	close(stopReaders)
	readers.Wait()

	var sum uint64
	for _, b := range ledger.Balances() {
		sum += b
	}
	assert.Equal(t, uint64(total), sum)

	clock.Advance(testInterval)
	sealed := tick(t, ledger)
	require.NotNil(t, sealed)
	assert.Len(t, sealed.Transfers, applied)
	for _, tr := range sealed.Transfers {
		assert.Positive(t, tr.Amount)
	}
}

func TestSettlementShutdownDrainsQueue(t *testing.T) {
	ledger := NewSettlementLedger(WithManualSettlement())

	// Start 之前送出的操作留在佇列
	pending := []*domain.Completion{
		ledger.SubmitCreateAccount("A", 10),
		ledger.SubmitCreateAccount("B", 0),
		ledger.SubmitTransfer("A", "B", 10),
	}

	ctx, cancel := context.WithCancel(context.Background())
	ledger.Start(ctx)
	cancel()
	ledger.Wait()

	for _, c := range pending {
		select {
		case <-c.Done():
			assert.NoError(t, c.Err())
		default:
			t.Fatalf("operation %s not resolved after shutdown", c.ID())
		}
	}
	assert.Equal(t, uint64(10), balanceOf(t, ledger, "B"))

	late := ledger.SubmitTransfer("B", "A", 1)
	assert.ErrorIs(t, late.Err(), domain.ErrLedgerClosed)

	_, err := ledger.Tick(context.Background())
	assert.ErrorIs(t, err, domain.ErrLedgerClosed)

	// 查詢仍然可以
	assert.Equal(t, uint64(0), balanceOf(t, ledger, "A"))
}

func TestSettlementAutoSeal(t *testing.T) {
	ledger := NewSettlementLedger(WithInterval(20 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	ledger.Start(ctx)
	defer func() {
		cancel()
		ledger.Wait()
	}()

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 5)))
	require.NoError(t, wait(t, ledger.SubmitCreateAccount("B", 5)))
	require.NoError(t, wait(t, ledger.SubmitTransfer("A", "B", 5)))

	// 沒有任何 Tick，worker 自己也會封存區塊 (包含空區塊)
	sealedTransfers := func() int {
		var n int
		for h := uint64(1); h <= ledger.Height(); h++ {
			b, err := ledger.Block(h)
			if err != nil {
				return -1
			}
			n += len(b.Transfers)
		}
		return n
	}
	require.Eventually(t, func() bool {
		return ledger.Height() >= 3 && sealedTransfers() == 1
	}, 5*time.Second, 5*time.Millisecond)

	for h := uint64(1); h <= 3; h++ {
		b, err := ledger.Block(h)
		require.NoError(t, err)
		assert.Equal(t, h, b.Height)
	}
}

func TestSettlementAutoSealUnderLoad(t *testing.T) {
	const interval = 20 * time.Millisecond
	ledger := NewSettlementLedger(WithInterval(interval))
	ctx, cancel := context.WithCancel(context.Background())
	ledger.Start(ctx)
	defer func() {
		cancel()
		ledger.Wait()
	}()

	require.NoError(t, wait(t, ledger.SubmitCreateAccount("A", 1000)))
	require.NoError(t, wait(t, ledger.SubmitCreateAccount("B", 1000)))

	// 持續送出轉帳，佇列一直不會清空
	stop := make(chan struct{})
	var producers sync.WaitGroup
	for i := 0; i < 4; i++ {
		producers.Add(1)
		go func(i int) {
			defer producers.Done()
			from, to := "A", "B"
			if i%2 == 1 {
				from, to = to, from
			}
			for {
				select {
				case <-stop:
					return
				default:
					ledger.SubmitTransfer(from, to, 1)
				}
			}
		}(i)
	}
	defer func() {
		close(stop)
		producers.Wait()
	}()

	start := ledger.Height()
	require.Eventually(t, func() bool {
		return ledger.Height() >= start+5
	}, 2*time.Second, interval, "blocks must keep sealing while operations are flowing")
}
