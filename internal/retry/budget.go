package retry

import (
	"errors"
	"sync/atomic"
)

// ErrBudgetExhausted is returned when the search budget has no units left.
var ErrBudgetExhausted = errors.New("search budget exhausted")

// Budget is the number of supplementary search calls a run may still make.
// It only ever decreases and never goes below zero. Safe for concurrent use.
type Budget struct {
	initial   int64
	remaining atomic.Int64
}

// NewBudget creates a budget of n units. Negative n is treated as zero.
func NewBudget(n int) *Budget {
	b := &Budget{initial: int64(max(n, 0))}
	b.remaining.Store(b.initial)
	return b
}

// TryConsume takes n units if that many remain. It reports whether it did.
func (b *Budget) TryConsume(n int64) bool {
	if n <= 0 {
		return true
	}
	for {
		cur := b.remaining.Load()
		if cur < n {
			return false
		}
		if b.remaining.CompareAndSwap(cur, cur-n) {
			return true
		}
	}
}

// Remaining returns the units left.
func (b *Budget) Remaining() int64 {
	return b.remaining.Load()
}

// Used returns the units spent so far.
func (b *Budget) Used() int64 {
	return b.initial - b.remaining.Load()
}

// Exhausted reports whether no units remain.
func (b *Budget) Exhausted() bool {
	return b.remaining.Load() == 0
}
