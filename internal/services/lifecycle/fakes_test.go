package lifecycle

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/BearBump/FabOrders/internal/models"
)

// memStore повторяет условную запись pgorders: UPDATE ... WHERE status = From.
type memStore struct {
	mu      sync.Mutex
	orders  map[uint64]*models.Order
	changes []models.StatusChange
	gets    int

	// beforeUpdate вызывается перед CAS, под мьютексом стора не держится.
	beforeUpdate func(change models.StatusChange)
}

func newMemStore(orders ...*models.Order) *memStore {
	st := &memStore{orders: make(map[uint64]*models.Order)}
	for _, o := range orders {
		st.orders[o.ID] = o
	}
	return st
}

func (m *memStore) GetByID(_ context.Context, id uint64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	o, ok := m.orders[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "order %d", id)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, change models.StatusChange) (*models.Order, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(change)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[change.OrderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if o.Status != change.From {
		return nil, errors.Wrapf(models.ErrStatusConflict, "order %d", change.OrderID)
	}
	change.Apply(o)
	m.changes = append(m.changes, change)
	cp := *o
	return &cp, nil
}

func (m *memStore) status(id uint64) models.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *memStore) changeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.changes)
}

type notifyCall struct {
	OrderID uint64
	Status  models.OrderStatus
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
	hook  func(orderID uint64, status models.OrderStatus)
}

func (n *recordingNotifier) SendOrderStatusNotification(_ context.Context, orderID uint64, status models.OrderStatus) error {
	if n.hook != nil {
		n.hook(orderID, status)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{OrderID: orderID, Status: status})
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type activityEntry struct {
	ActorID     uint64
	Action      string
	Description string
}

type memActivity struct {
	mu      sync.Mutex
	entries []activityEntry
}

func (a *memActivity) Record(_ context.Context, actorID uint64, action, desc string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, activityEntry{ActorID: actorID, Action: action, Description: desc})
}
