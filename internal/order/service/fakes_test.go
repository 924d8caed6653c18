package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
)

// memStore is an in-memory OrderRepository and ItemRepository that honours
// filters, ordering, pagination and the version check.
type memStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	items  map[string][]domain.OrderItem
	seq    map[int]int64

	insertItemsErr error
	// beforeUpdate runs inside UpdateLifecycle before the version check.
	beforeUpdate func(id string)
	deleted      []string
}

func newMemStore() *memStore {
	return &memStore{
		orders: map[string]domain.Order{},
		items:  map[string][]domain.OrderItem{},
		seq:    map[int]int64{},
	}
}

func (m *memStore) NextSequence(ctx context.Context, year int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[year]++
	return m.seq[year], nil
}

func (m *memStore) Insert(ctx context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.OrderNumber == o.OrderNumber {
			return apperrors.NewConflictError("duplicate order number")
		}
	}
	c := o.Clone()
	c.Items = nil
	m.orders[o.ID] = *c
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return apperrors.NewNotFoundError("order not found")
	}
	delete(m.orders, id)
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
	}
	return o.Clone(), nil
}

func (m *memStore) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return o.Clone(), nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", number))
}

func (m *memStore) match(f domain.OrderFilter) []domain.Order {
	var out []domain.Order
	q := strings.ToUpper(strings.TrimSpace(f.OrderNumberContains))
	for _, o := range m.orders {
		if !f.Matches(o) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToUpper(o.OrderNumber), q) {
			continue
		}
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return domain.LessNewestFirst(out[i], out[j]) })
	return out
}

func (m *memStore) Find(ctx context.Context, f domain.OrderFilter, p domain.Page) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.match(f)
	if p.PageSize == 0 {
		return all, nil
	}
	start := p.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + p.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *memStore) Count(ctx context.Context, f domain.OrderFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.match(f)), nil
}

func (m *memStore) UpdateLifecycle(ctx context.Context, o *domain.Order, expectedVersion int) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(o.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[o.ID]
	if !ok || stored.Version != expectedVersion {
		return apperrors.NewConflictError("order was modified concurrently, reload and retry")
	}
	c := o.Clone()
	c.Items = nil
	c.Version = expectedVersion + 1
	m.orders[o.ID] = *c
	return nil
}

func (m *memStore) InsertBatch(ctx context.Context, items []domain.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertItemsErr != nil {
		return m.insertItemsErr
	}
	for _, it := range items {
		m.items[it.OrderID] = append(m.items[it.OrderID], it)
	}
	return nil
}

func (m *memStore) FindByOrderIDs(ctx context.Context, ids []string) (map[string][]domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]domain.OrderItem{}
	for _, id := range ids {
		if items, ok := m.items[id]; ok {
			out[id] = append([]domain.OrderItem(nil), items...)
		}
	}
	return out, nil
}

// put stores an order directly, bypassing CreateOrder.
func (m *memStore) put(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = *o.Clone()
}

func (m *memStore) get(id string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	return *o.Clone()
}

type notifierEvent struct {
	kind  string
	order domain.Order
	from  domain.OrderStatus
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifierEvent
}

func (n *fakeNotifier) record(kind string, o *domain.Order, from domain.OrderStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifierEvent{kind: kind, order: *o.Clone(), from: from})
}

func (n *fakeNotifier) OrderCreated(ctx context.Context, o *domain.Order) {
	n.record("created", o, "")
}

func (n *fakeNotifier) StatusChanged(ctx context.Context, o *domain.Order, from domain.OrderStatus) {
	n.record("status", o, from)
}

func (n *fakeNotifier) OrderCancelled(ctx context.Context, o *domain.Order) {
	n.record("cancelled", o, "")
}

func (n *fakeNotifier) all() []notifierEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifierEvent(nil), n.events...)
}

type mockCouponUsage struct {
	IncrementUsageFunc func(ctx context.Context, code string) error
}

func (m *mockCouponUsage) IncrementUsage(ctx context.Context, code string) error {
	return m.IncrementUsageFunc(ctx, code)
}
