package domain

import (
	"context"
	"sync/atomic"
)

// Completion 一次性的完成通知，對應到一筆送進佇列的操作
//
// 結算 worker 會呼叫 Resolve 剛好一次，呼叫端用 Wait 或 Done 等待結果。
// 第二次 Resolve 代表程式邏輯錯誤，會直接 panic。
type Completion struct {
	id       OperationID
	kind     OperationKind
	done     chan struct{}
	err      error
	resolved atomic.Bool
}

// NewCompletion 建立尚未完成的 Completion
func NewCompletion(id OperationID, kind OperationKind) *Completion {
	return &Completion{
		id:   id,
		kind: kind,
		done: make(chan struct{}),
	}
}

// ID 操作追蹤號
func (c *Completion) ID() OperationID {
	return c.id
}

// Kind 操作類型
func (c *Completion) Kind() OperationKind {
	return c.kind
}

// Resolve 回報結果，nil 代表成功
func (c *Completion) Resolve(err error) {
	if !c.resolved.CompareAndSwap(false, true) {
		panic("completion " + c.id.String() + " resolved twice")
	}
	c.err = err
	close(c.done)
}

// Done 完成時關閉的 channel
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err 回傳結果，尚未完成前呼叫只會得到 nil
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait 等待結果或 ctx 結束
//
// ctx 結束並不會取消已送出的操作，操作仍然會被套用或明確失敗。
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
