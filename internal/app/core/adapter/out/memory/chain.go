package memory

import (
	"sync"

	"github.com/JoeShih716/go-block-ledger/internal/app/core/domain"
)

// Chain 已封存區塊的歷史，只能附加
//
// 只有結算 worker 會呼叫 Append；讀取端拿到的都是複本。
type Chain struct {
	mu     sync.RWMutex
	blocks []domain.Block
}

func NewChain() *Chain {
	return &Chain{
		blocks: make([]domain.Block, 0),
	}
}

// Append 附加一個已封存區塊
func (c *Chain) Append(b domain.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = append(c.blocks, b)
}

// Len 已封存的區塊數量，也就是最新的高度
func (c *Chain) Len() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.blocks))
}

// At 取得指定高度 (從 1 開始) 的區塊
func (c *Chain) At(height uint64) (domain.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if height == 0 || height > uint64(len(c.blocks)) {
		return domain.Block{}, domain.ErrBlockNotFound
	}
	return c.blocks[height-1].Clone(), nil
}

// Latest 取得最新的區塊
func (c *Chain) Latest() (domain.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return domain.Block{}, domain.ErrBlockNotFound
	}
	return c.blocks[len(c.blocks)-1].Clone(), nil
}
