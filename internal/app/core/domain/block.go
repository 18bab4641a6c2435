package domain

import (
	"slices"
	"time"
)

// Block 一個結算週期內驗證通過的轉帳紀錄
//
// 結構:
//
//	Height: 封存後的區塊高度 (從 1 開始)，尚未封存時為 0
//	SealedAt: 封存時間，尚未封存時為零值
//	Transfers: 依套用順序排列的轉帳紀錄
type Block struct {
	Height    uint64     `json:"height"`
	SealedAt  time.Time  `json:"sealed_at"`
	Transfers []Transfer `json:"transfers"`
}

// NewBlock 建立一個空的區塊
func NewBlock() *Block {
	return &Block{
		Transfers: make([]Transfer, 0),
	}
}

// Append 加入一筆轉帳紀錄，只有結算 worker 會呼叫
func (b *Block) Append(t Transfer) {
	b.Transfers = append(b.Transfers, t)
}

// Len 區塊內的轉帳數量
func (b *Block) Len() int {
	return len(b.Transfers)
}

// Seal 回傳封存後的副本，原本的區塊不受影響
func (b *Block) Seal(height uint64, at time.Time) Block {
	return Block{
		Height:    height,
		SealedAt:  at,
		Transfers: slices.Clone(b.Transfers),
	}
}

// Clone 深拷貝，讓讀取端拿到的區塊無法修改歷史
func (b Block) Clone() Block {
	b.Transfers = slices.Clone(b.Transfers)
	if b.Transfers == nil {
		b.Transfers = make([]Transfer, 0)
	}
	return b
}
