package memory

import (
	"sync"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

// pendingOperation 佇列中的一筆待處理操作
//
// 依 kind 只會使用部分欄位：
//
//	CreateAccount: account, amount (初始餘額)
//	Transfer: sender, receiver, amount
//	Tick: tickResult
type pendingOperation struct {
	kind     domain.OperationKind
	account  string
	sender   string
	receiver string
	amount   uint64
	// done 每筆操作剛好回報一次
	done *domain.Completion
	// tickResult 只有 Tick 使用，buffer 1 讓 worker 不會卡住
	tickResult chan *domain.Block
}

// TransactionQueue 沒有上限的 FIFO 佇列
//
// Push 永遠不會因為結算而阻塞；worker 透過 Ready 得知有新資料，
// 再用 Pop 依送出順序取出。
type TransactionQueue struct {
	mu     sync.Mutex
	items  []*pendingOperation
	head   int
	closed bool
	// ready buffer 1，Push 後非阻塞地通知 worker
	ready chan struct{}
}

// NewTransactionQueue 建立空的佇列
func NewTransactionQueue() *TransactionQueue {
	return &TransactionQueue{
		items: make([]*pendingOperation, 0, 64),
		ready: make(chan struct{}, 1),
	}
}

// Push 放入一筆操作，佇列已關閉時回傳 false
func (q *TransactionQueue) Push(op *pendingOperation) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, op)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Pop 取出最早放入的操作，佇列為空時回傳 false
func (q *TransactionQueue) Pop() (*pendingOperation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return nil, false
	}
	op := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	// 全部取完就重用底層陣列
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return op, true
}

// Len 尚未處理的操作數量
func (q *TransactionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Ready 有新操作時會收到通知
func (q *TransactionQueue) Ready() <-chan struct{} {
	return q.ready
}

// Close 停止接受新的操作，已在佇列中的仍可 Pop
func (q *TransactionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Closed 佇列是否已關閉
func (q *TransactionQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
