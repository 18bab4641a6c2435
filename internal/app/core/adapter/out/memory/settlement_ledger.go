package memory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-block-ledger/internal/app/core/usecase"
)

// DefaultSettlementInterval 預設每 10 秒封存一個區塊
const DefaultSettlementInterval = 10 * time.Second

// Option 設定 SettlementLedger
type Option func(*SettlementLedger)

// WithInterval 設定結算週期
func WithInterval(d time.Duration) Option {
	return func(l *SettlementLedger) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithClock 設定時間來源
func WithClock(c Clock) Option {
	return func(l *SettlementLedger) {
		l.clock = c
	}
}

// WithLogger 設定 logger
func WithLogger(logger zerolog.Logger) Option {
	return func(l *SettlementLedger) {
		l.logger = logger.With().Str("component", "settlement").Logger()
	}
}

// WithManualSettlement 關閉 worker 自己的計時器，只在 Tick 時檢查是否封存
func WithManualSettlement() Option {
	return func(l *SettlementLedger) {
		l.autoSeal = false
	}
}

// SettlementLedger 單一 worker 結算的帳本
//
// Submit(不等待) -> TransactionQueue -> run loop (唯一的寫入者) -> AccountStore / 當前 Block -> Completion
//
// 結構:
//
//	store: 帳戶餘額，查詢直接讀取
//	queue: 待處理的操作，依送出順序處理
//	chain: 已封存的區塊
//	current, lastSeal: 只有 worker goroutine 會碰
type SettlementLedger struct {
	store    *AccountStore
	queue    *TransactionQueue
	chain    *Chain
	clock    Clock
	interval time.Duration
	autoSeal bool
	logger   zerolog.Logger

	current  *domain.Block
	lastSeal time.Time

	started atomic.Bool
	stopped chan struct{}
}

// NewSettlementLedger 建立一個新的 SettlementLedger，需要呼叫 Start 才會開始結算
func NewSettlementLedger(opts ...Option) *SettlementLedger {
	ledger := &SettlementLedger{
		store:    NewAccountStore(),
		queue:    NewTransactionQueue(),
		chain:    NewChain(),
		clock:    SystemClock,
		interval: DefaultSettlementInterval,
		autoSeal: true,
		logger:   zerolog.Nop(),
		current:  domain.NewBlock(),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ledger)
	}
	ledger.lastSeal = ledger.clock.Now()
	return ledger
}

// Start 啟動結算 worker (非同步)，ctx 結束時處理完佇列中剩下的操作後停止
func (l *SettlementLedger) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	l.lastSeal = l.clock.Now()
	go l.run(ctx)
}

// Wait 等待 worker 結束，必須先呼叫 Start
func (l *SettlementLedger) Wait() {
	<-l.stopped
}

// SubmitCreateAccount 送出建立帳戶操作
func (l *SettlementLedger) SubmitCreateAccount(id string, balance uint64) *domain.Completion {
	op := &pendingOperation{
		kind:    domain.OperationKindCreateAccount,
		account: id,
		amount:  balance,
		done:    domain.NewCompletion(domain.NewOperationID(), domain.OperationKindCreateAccount),
	}
	l.submit(op)
	return op.done
}

// SubmitTransfer 送出轉帳操作，驗證只在結算時做一次
func (l *SettlementLedger) SubmitTransfer(sender, receiver string, amount uint64) *domain.Completion {
	op := &pendingOperation{
		kind:     domain.OperationKindTransfer,
		sender:   sender,
		receiver: receiver,
		amount:   amount,
		done:     domain.NewCompletion(domain.NewOperationID(), domain.OperationKindTransfer),
	}
	l.submit(op)
	return op.done
}

func (l *SettlementLedger) submit(op *pendingOperation) {
	// worker 可能在 Push 之後立刻 Pop 並 Dec，所以要先 Inc
	mQueueDepth.Inc()
	if !l.queue.Push(op) {
		mQueueDepth.Dec()
		mOperations.WithLabelValues(op.kind.String(), operationResult(domain.ErrLedgerClosed)).Inc()
		op.done.Resolve(domain.ErrLedgerClosed)
	}
}

// QueryBalance 直接讀取 AccountStore，不經過佇列
func (l *SettlementLedger) QueryBalance(id string) (uint64, error) {
	return l.store.Balance(id)
}

// Tick 推進結算時鐘
//
// Tick 跟其他操作走同一個佇列，所以會看到在它之前送出的所有操作。
// 週期尚未到期時回傳 nil，不會封存也不會修改任何餘額。
func (l *SettlementLedger) Tick(ctx context.Context) (*domain.Block, error) {
	op := &pendingOperation{
		kind:       domain.OperationKindTick,
		done:       domain.NewCompletion(domain.NewOperationID(), domain.OperationKindTick),
		tickResult: make(chan *domain.Block, 1),
	}
	mQueueDepth.Inc()
	if !l.queue.Push(op) {
		mQueueDepth.Dec()
		return nil, domain.ErrLedgerClosed
	}
	if err := op.done.Wait(ctx); err != nil {
		return nil, err
	}
	return <-op.tickResult, nil
}

// Block 取得指定高度的已封存區塊
func (l *SettlementLedger) Block(height uint64) (domain.Block, error) {
	return l.chain.At(height)
}

// LatestBlock 取得最新的已封存區塊
func (l *SettlementLedger) LatestBlock() (domain.Block, error) {
	return l.chain.Latest()
}

// Height 已封存的區塊數量
func (l *SettlementLedger) Height() uint64 {
	return l.chain.Len()
}

// Balances 所有帳戶餘額的複本
func (l *SettlementLedger) Balances() map[string]uint64 {
	return l.store.Snapshot()
}

func (l *SettlementLedger) run(ctx context.Context) {
	defer close(l.stopped)

	var timer *time.Timer
	var timerC <-chan time.Time
	if l.autoSeal {
		timer = time.NewTimer(l.untilNextSeal())
		defer timer.Stop()
		timerC = timer.C
	}

	l.logger.Info().Dur("interval", l.interval).Bool("auto_seal", l.autoSeal).Msg("settlement worker started")
	for {
		select {
		case <-ctx.Done():
			// 不再接受新的操作，把已經在佇列裡的處理完
			l.queue.Close()
			l.drain()
			l.logger.Info().Uint64("height", l.chain.Len()).Msg("settlement worker stopped")
			return
		case <-l.queue.Ready():
			l.drain()
		case <-timerC:
			l.sealIfDue()
		}
		if timer != nil {
			timer.Reset(l.untilNextSeal())
		}
	}
}

// drain 處理佇列直到清空
//
// 自動封存時每處理一筆就檢查一次週期，佇列一直有資料也不會延後封存。
func (l *SettlementLedger) drain() {
	for {
		op, ok := l.queue.Pop()
		if !ok {
			return
		}
		l.process(op)
		if l.autoSeal {
			l.sealIfDue()
		}
	}
}

// untilNextSeal 距離下一次封存的時間
func (l *SettlementLedger) untilNextSeal() time.Duration {
	d := l.lastSeal.Add(l.interval).Sub(l.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

// process 處理單筆操作並回傳結果
func (l *SettlementLedger) process(op *pendingOperation) {
	mQueueDepth.Dec()

	var err error
	switch op.kind {
	case domain.OperationKindCreateAccount:
		err = l.applyCreateAccount(op)
	case domain.OperationKindTransfer:
		err = l.applyTransfer(op)
	case domain.OperationKindTick:
		op.tickResult <- l.sealIfDue()
		op.done.Resolve(nil)
		return
	}

	mOperations.WithLabelValues(op.kind.String(), operationResult(err)).Inc()
	if err != nil {
		l.logger.Warn().Str("op", op.done.ID().String()).Stringer("kind", op.kind).Err(err).Msg("operation rejected")
	} else {
		l.logger.Debug().Str("op", op.done.ID().String()).Stringer("kind", op.kind).Msg("operation applied")
	}
	op.done.Resolve(err)
}

// applyCreateAccount 建立帳戶，不會記錄到區塊
func (l *SettlementLedger) applyCreateAccount(op *pendingOperation) error {
	return l.store.Update(func(w *StoreWriter) error {
		return w.Create(op.account, op.amount)
	})
}

// applyTransfer 依序驗證: 金額 > 0、付款方存在、收款方存在、餘額足夠
// 任何一項失敗都不會修改餘額
func (l *SettlementLedger) applyTransfer(op *pendingOperation) error {
	if op.amount == 0 {
		return domain.ErrInvalidAmount
	}
	return l.store.Update(func(w *StoreWriter) error {
		if !w.Exists(op.sender) {
			return domain.AccountNotFound(op.sender)
		}
		if !w.Exists(op.receiver) {
			return domain.AccountNotFound(op.receiver)
		}
		if err := w.Withdraw(op.sender, op.amount); err != nil {
			return err
		}
		if err := w.Deposit(op.receiver, op.amount); err != nil {
			return err
		}
		l.current.Append(domain.NewTransfer(op.sender, op.receiver, op.amount))
		return nil
	})
}

// sealIfDue 週期到期時封存當前區塊並換一個新的空區塊，沒有轉帳也照樣封存
func (l *SettlementLedger) sealIfDue() *domain.Block {
	now := l.clock.Now()
	if now.Sub(l.lastSeal) < l.interval {
		return nil
	}

	sealed := l.current.Seal(l.chain.Len()+1, now)
	l.chain.Append(sealed)
	l.current = domain.NewBlock()
	l.lastSeal = now

	mBlocksSealed.Inc()
	mBlockTransfers.Observe(float64(len(sealed.Transfers)))
	l.logger.Info().Uint64("height", sealed.Height).Int("transfers", len(sealed.Transfers)).Msg("block sealed")

	out := sealed.Clone()
	return &out
}

var _ usecase.Ledger = (*SettlementLedger)(nil)
