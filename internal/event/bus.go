package event

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

const defaultPoolSize = 16

type HandlerFunc func(raw any)

// Publisher is the side of the bus controllers depend on.
type Publisher interface {
	Publish(eventName string, evt any)
}

// Bus fans events out to subscribers on a bounded worker pool. Handlers run
// concurrently and must not assume delivery order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	pool     *ants.Pool
	inflight sync.WaitGroup
}

func NewBus(poolSize int) (*Bus, error) {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(r any) {
		slog.Error("Event handler panicked", "panic", r)
	}))
	if err != nil {
		return nil, fmt.Errorf("create event pool: %w", err)
	}
	return &Bus{
		handlers: make(map[string][]HandlerFunc),
		pool:     pool,
	}, nil
}

func (b *Bus) Subscribe(eventName string, handler HandlerFunc) {
	if b == nil || handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

func (b *Bus) Publish(eventName string, evt any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]HandlerFunc, len(b.handlers[eventName]))
	copy(handlers, b.handlers[eventName])
	b.mu.RUnlock()

	for _, handler := range handlers {
		h := handler
		b.inflight.Add(1)
		task := func() {
			defer b.inflight.Done()
			h(evt)
		}
		if err := b.pool.Submit(task); err != nil {
			// Pool closed: deliver inline so no event is silently lost.
			slog.Debug("Event pool rejected task", "event", eventName, "error", err)
			runRecovered(eventName, task)
		}
	}
}

// Drain blocks until every published event has been handled.
func (b *Bus) Drain() {
	if b == nil {
		return
	}
	b.inflight.Wait()
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.Drain()
	b.pool.Release()
}

func runRecovered(eventName string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked", "event", eventName, "panic", r)
		}
	}()
	fn()
}
