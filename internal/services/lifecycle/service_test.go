package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/FabOrders/internal/activitylog"
	"github.com/BearBump/FabOrders/internal/models"
)

var allStatuses = []models.OrderStatus{
	models.OrderStatusNew,
	models.OrderStatusProcessing,
	models.OrderStatusCompleted,
	models.OrderStatusDelivered,
	models.OrderStatusCancelled,
}

var fixedNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func newTestService(orders ...*models.Order) (*Service, *memStore, *recordingNotifier, *memActivity) {
	st := newMemStore(orders...)
	n := &recordingNotifier{}
	act := &memActivity{}
	svc := New(st, n, act, nil).WithClock(func() time.Time { return fixedNow })
	return svc, st, n, act
}

func TestRequestTransition_Grid(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				svc, st, n, act := newTestService(&models.Order{ID: 1, Status: from})

				got, err := svc.RequestTransition(context.Background(), 1, to, 7, "")
				switch {
				case from == to:
					require.NoError(t, err)
					require.Equal(t, from, got.Status)
					require.Zero(t, st.changeCount())
					require.Zero(t, n.count())
					require.Empty(t, act.entries)
				case CanTransition(from, to):
					require.NoError(t, err)
					require.Equal(t, to, got.Status)
					require.Equal(t, 1, st.changeCount())
					require.Equal(t, 1, n.count())
					require.Len(t, act.entries, 1)
				default:
					require.ErrorIs(t, err, models.ErrInvalidTransition)
					require.Contains(t, err.Error(), fmt.Sprintf("%s -> %s", from, to))
					require.Equal(t, from, st.status(1))
					require.Zero(t, n.count())
					require.Empty(t, act.entries)
				}
			})
		}
	}
}

func TestTransitionTable(t *testing.T) {
	require.True(t, CanTransition(models.OrderStatusNew, models.OrderStatusProcessing))
	require.True(t, CanTransition(models.OrderStatusNew, models.OrderStatusCancelled))
	require.True(t, CanTransition(models.OrderStatusProcessing, models.OrderStatusCompleted))
	require.True(t, CanTransition(models.OrderStatusCompleted, models.OrderStatusDelivered))
	require.True(t, CanTransition(models.OrderStatusCompleted, models.OrderStatusCancelled))
	require.False(t, CanTransition(models.OrderStatusNew, models.OrderStatusCompleted))
	require.False(t, CanTransition(models.OrderStatusCompleted, models.OrderStatusNew))
	require.False(t, CanTransition(models.OrderStatusNew, models.OrderStatusNew))

	for _, term := range []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled} {
		require.True(t, IsTerminal(term))
		require.Empty(t, AllowedTargets(term))
	}
	require.False(t, IsTerminal(models.OrderStatusNew))
	require.False(t, IsTerminal("bogus"))

	targets := AllowedTargets(models.OrderStatusNew)
	targets[0] = models.OrderStatusDelivered
	require.Equal(t, models.OrderStatusProcessing, AllowedTargets(models.OrderStatusNew)[0])
}

func TestRequestTransition_UnknownTarget(t *testing.T) {
	svc, st, _, _ := newTestService(&models.Order{ID: 1, Status: models.OrderStatusNew})

	_, err := svc.RequestTransition(context.Background(), 1, "shipped", 7, "")
	require.ErrorIs(t, err, models.ErrUnknownStatus)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	require.Zero(t, st.gets)
}

// no-op не трогает уже проставленные даты
func TestRequestTransition_SameStatusKeepsStamps(t *testing.T) {
	processed := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	completed := time.Date(2025, 1, 12, 17, 0, 0, 0, time.UTC)
	svc, st, n, act := newTestService(&models.Order{
		ID: 1, Status: models.OrderStatusCompleted, ProcessingDate: &processed, CompletionDate: &completed,
	})

	o, err := svc.RequestTransition(context.Background(), 1, models.OrderStatusCompleted, 7, "again")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, o.Status)
	require.Equal(t, processed, *o.ProcessingDate)
	require.Equal(t, completed, *o.CompletionDate)
	require.Nil(t, o.DeliveryDate)

	stored, err := st.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, processed, *stored.ProcessingDate)
	require.Equal(t, completed, *stored.CompletionDate)
	require.Zero(t, st.changeCount())
	require.Zero(t, n.count())
	require.Empty(t, act.entries)
}

func TestDelivery_RequiresActor(t *testing.T) {
	svc, st, n, act := newTestService(&models.Order{ID: 1, Status: models.OrderStatusCompleted})
	ctx := context.Background()

	_, err := svc.RequestTransition(ctx, 1, models.OrderStatusDelivered, 0, "")
	require.ErrorIs(t, err, models.ErrInvalidActor)

	_, err = svc.MarkDelivered(ctx, 1, 0, "data:image/png;base64,AAAA")
	require.ErrorIs(t, err, models.ErrInvalidActor)

	require.Equal(t, models.OrderStatusCompleted, st.status(1))
	require.Zero(t, st.changeCount())
	require.Zero(t, n.count())
	require.Empty(t, act.entries)

	// остальные переходы от имени системы (actor 0) разрешены
	_, err = svc.RequestTransition(ctx, 1, models.OrderStatusCancelled, 0, "")
	require.NoError(t, err)
}

func TestRequestTransition_NotFound(t *testing.T) {
	svc, _, n, _ := newTestService()
	_, err := svc.RequestTransition(context.Background(), 42, models.OrderStatusProcessing, 7, "")
	require.ErrorIs(t, err, models.ErrNotFound)
	require.Zero(t, n.count())
}

func TestRequestTransition_StampsDatesAndAudits(t *testing.T) {
	svc, st, n, act := newTestService(&models.Order{ID: 1, Status: models.OrderStatusNew})
	ctx := context.Background()

	o, err := svc.RequestTransition(ctx, 1, models.OrderStatusProcessing, 7, "  cutting started ")
	require.NoError(t, err)
	require.NotNil(t, o.ProcessingDate)
	require.Equal(t, fixedNow, *o.ProcessingDate)
	require.Nil(t, o.CompletionDate)

	require.Equal(t, "cutting started", st.changes[0].Note)
	require.Equal(t, uint64(7), st.changes[0].ActorID)

	require.Len(t, act.entries, 1)
	require.Equal(t, activitylog.ActionOrderStatusChange, act.entries[0].Action)
	require.Equal(t, "order 1: new -> processing: cutting started", act.entries[0].Description)
	require.Equal(t, uint64(7), act.entries[0].ActorID)

	require.Equal(t, []notifyCall{{OrderID: 1, Status: models.OrderStatusProcessing}}, n.calls)
}

// processing -> completed проходит, затем completed -> new отклоняется, статус остаётся completed.
func TestRequestTransition_ProcessingCompletedThenBackToNew(t *testing.T) {
	svc, st, n, _ := newTestService(&models.Order{ID: 1, Status: models.OrderStatusProcessing})
	ctx := context.Background()

	o, err := svc.RequestTransition(ctx, 1, models.OrderStatusCompleted, 7, "")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, o.Status)
	require.Equal(t, fixedNow, *o.CompletionDate)

	_, err = svc.RequestTransition(ctx, 1, models.OrderStatusNew, 7, "")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	require.Contains(t, err.Error(), "completed -> new")
	require.Equal(t, models.OrderStatusCompleted, st.status(1))
	require.Equal(t, 1, n.count())
}

func TestRequestTransition_NotifierFailureDoesNotFail(t *testing.T) {
	svc, st, n, _ := newTestService(&models.Order{ID: 1, Status: models.OrderStatusNew})
	n.err = errors.New("whatsapp down")

	o, err := svc.RequestTransition(context.Background(), 1, models.OrderStatusProcessing, 7, "")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusProcessing, o.Status)
	require.Equal(t, models.OrderStatusProcessing, st.status(1))
}

func TestRequestTransition_NotifierRunsAfterCommitAndUnlock(t *testing.T) {
	svc, st, n, _ := newTestService(&models.Order{ID: 1, Status: models.OrderStatusNew})

	var nested atomic.Bool
	n.hook = func(orderID uint64, status models.OrderStatus) {
		require.Equal(t, status, st.status(orderID))
		if !nested.CompareAndSwap(false, true) {
			return
		}
		// лок заказа свободен: повторный переход того же заказа не блокируется
		done := make(chan error, 1)
		go func() {
			_, err := svc.RequestTransition(context.Background(), orderID, models.OrderStatusCancelled, 8, "")
			done <- err
		}()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("order lock still held while notifying")
		}
	}

	_, err := svc.RequestTransition(context.Background(), 1, models.OrderStatusProcessing, 7, "")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCancelled, st.status(1))
}

func TestRequestTransition_ConcurrentSameOrderWritesOnce(t *testing.T) {
	svc, st, n, _ := newTestService(&models.Order{ID: 1, Status: models.OrderStatusNew})

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RequestTransition(context.Background(), 1, models.OrderStatusProcessing, 7, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, st.changeCount())
	require.Equal(t, 1, n.count())
	require.Zero(t, svc.locks.size())
}

func TestRequestTransition_DifferentOrdersDoNotContend(t *testing.T) {
	svc, _, _, _ := newTestService(
		&models.Order{ID: 1, Status: models.OrderStatusNew},
		&models.Order{ID: 2, Status: models.OrderStatusNew},
	)

	unlock := svc.locks.Lock(1)
	defer unlock()

	done := make(chan error, 1)
	go func() {
		_, err := svc.RequestTransition(context.Background(), 2, models.OrderStatusProcessing, 7, "")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("order 2 blocked by order 1 lock")
	}
}

func TestRequestTransition_LostCompareAndSet(t *testing.T) {
	svc, st, n, act := newTestService(&models.Order{ID: 1, Status: models.OrderStatusNew})
	// другой процесс успел поменять статус между чтением и записью
	st.beforeUpdate = func(change models.StatusChange) {
		st.mu.Lock()
		st.orders[change.OrderID].Status = models.OrderStatusCancelled
		st.mu.Unlock()
	}

	_, err := svc.RequestTransition(context.Background(), 1, models.OrderStatusProcessing, 7, "")
	require.ErrorIs(t, err, models.ErrStatusConflict)
	require.Zero(t, n.count())
	require.Empty(t, act.entries)
}

func TestMarkDelivered(t *testing.T) {
	svc, st, n, act := newTestService(
		&models.Order{ID: 1, Status: models.OrderStatusCompleted},
		&models.Order{ID: 2, Status: models.OrderStatusProcessing},
	)
	ctx := context.Background()

	_, err := svc.MarkDelivered(ctx, 1, 9, "   ")
	require.ErrorIs(t, err, models.ErrEmptySignature)
	require.Zero(t, st.gets)

	_, err = svc.MarkDelivered(ctx, 2, 9, "data:image/png;base64,AAAA")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	require.Equal(t, models.OrderStatusProcessing, st.status(2))

	o, err := svc.MarkDelivered(ctx, 1, 9, "data:image/png;base64,AAAA")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusDelivered, o.Status)
	require.Equal(t, "data:image/png;base64,AAAA", *o.DeliverySignature)
	require.Equal(t, uint64(9), *o.DeliveredBy)
	require.Equal(t, fixedNow, *o.DeliveryDate)
	require.Equal(t, activitylog.ActionOrderDelivered, act.entries[0].Action)
	require.Equal(t, 1, n.count())

	// уже доставлен: повтор не no-op
	_, err = svc.MarkDelivered(ctx, 1, 9, "data:image/png;base64,AAAA")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	require.Equal(t, 1, st.changeCount())
}

func TestKeyLock_ReleasesEntries(t *testing.T) {
	k := newKeyLock()
	u1 := k.Lock(1)
	u2 := k.Lock(2)
	require.Equal(t, 2, k.size())
	u1()
	u1()
	u2()
	require.Zero(t, k.size())
}
