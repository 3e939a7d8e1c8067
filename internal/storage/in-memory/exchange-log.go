package in_memory

import (
	"context"
	"sync"

	"github.com/iamvkosarev/ai-chat-proxy/internal/model"
)

const DefaultExchangeLogCapacity = 256

// ExchangeLog keeps the most recent exchanges in a fixed-size ring.
type ExchangeLog struct {
	mu        sync.Mutex
	exchanges []model.Exchange
	next      int
	full      bool
}

func NewExchangeLog(capacity int) *ExchangeLog {
	if capacity <= 0 {
		capacity = DefaultExchangeLogCapacity
	}
	return &ExchangeLog{
		exchanges: make([]model.Exchange, capacity),
	}
}

func (e *ExchangeLog) Record(_ context.Context, exchange model.Exchange) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exchanges[e.next] = exchange
	e.next = (e.next + 1) % len(e.exchanges)
	if e.next == 0 {
		e.full = true
	}
	return nil
}

// Recent returns up to limit exchanges, newest first. limit <= 0 means all.
func (e *ExchangeLog) Recent(_ context.Context, limit int) ([]model.Exchange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	size := e.next
	if e.full {
		size = len(e.exchanges)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	recent := make([]model.Exchange, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (e.next - i + len(e.exchanges)) % len(e.exchanges)
		recent = append(recent, e.exchanges[idx])
	}
	return recent, nil
}
