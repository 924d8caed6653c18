package service

import (
	"sync"
	"time"

	"storefront/internal/domain"
)

type pendingBatch struct {
	orders []domain.Order
	timer  *time.Timer
}

// batcher coalesces alerts of the same type raised within one window. The
// first alert opens the window; whoever removes a batch from the map (the
// window timer or flushAll) owns flushing it, so a batch is sent exactly once.
type batcher struct {
	window time.Duration
	wg     *sync.WaitGroup
	flush  func(typ domain.NotificationType, orders []domain.Order)

	mu      sync.Mutex
	batches map[domain.NotificationType]*pendingBatch
}

func newBatcher(window time.Duration, wg *sync.WaitGroup, flush func(domain.NotificationType, []domain.Order)) *batcher {
	return &batcher{
		window:  window,
		wg:      wg,
		flush:   flush,
		batches: make(map[domain.NotificationType]*pendingBatch),
	}
}

func (b *batcher) add(typ domain.NotificationType, order domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pb, ok := b.batches[typ]; ok {
		pb.orders = append(pb.orders, order)
		return
	}

	pb := &pendingBatch{orders: []domain.Order{order}}
	b.batches[typ] = pb
	b.wg.Add(1)
	pb.timer = time.AfterFunc(b.window, func() { b.expire(typ, pb) })
}

func (b *batcher) expire(typ domain.NotificationType, pb *pendingBatch) {
	b.mu.Lock()
	if b.batches[typ] != pb {
		b.mu.Unlock()
		return
	}
	delete(b.batches, typ)
	orders := pb.orders
	b.mu.Unlock()

	defer b.wg.Done()
	b.flush(typ, orders)
}

func (b *batcher) flushAll() {
	b.mu.Lock()
	taken := b.batches
	b.batches = make(map[domain.NotificationType]*pendingBatch)
	for _, pb := range taken {
		pb.timer.Stop()
	}
	b.mu.Unlock()

	for typ, pb := range taken {
		b.flush(typ, pb.orders)
		b.wg.Done()
	}
}

func (b *batcher) size(typ domain.NotificationType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pb, ok := b.batches[typ]; ok {
		return len(pb.orders)
	}
	return 0
}
