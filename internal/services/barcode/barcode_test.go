package barcode

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/FabOrders/internal/cache/rediscache"
	"github.com/BearBump/FabOrders/internal/models"
)

type storeMock struct{ mock.Mock }

func (m *storeMock) GetByID(ctx context.Context, id uint64) (*models.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *storeMock) GetByBarcode(ctx context.Context, code string) (*models.Order, error) {
	args := m.Called(ctx, code)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *storeMock) BarcodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

// seqRand отдаёт заранее заданные числа по кругу.
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) Intn(n int) int {
	v := r.vals[r.i%len(r.vals)] % n
	r.i++
	return v
}

func newCache(t *testing.T) (*rediscache.BarcodeCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	return rediscache.NewBarcodeCache(rediscache.New(mr.Addr()), time.Minute), mr
}

func TestResolveByBarcode_EmptyIsNotFound(t *testing.T) {
	st := &storeMock{}
	r := NewResolver(st, nil, nil)

	_, err := r.ResolveByBarcode(context.Background(), "   ")
	require.ErrorIs(t, err, models.ErrNotFound)
	st.AssertNotCalled(t, "GetByBarcode", mock.Anything, mock.Anything)
}

func TestResolveByBarcode_TrimsAndCaches(t *testing.T) {
	st := &storeMock{}
	cache, _ := newCache(t)
	order := &models.Order{ID: 17, Barcode: "AF2501150042", Status: models.OrderStatusNew}
	st.On("GetByBarcode", mock.Anything, "AF2501150042").Return(order, nil).Once()

	r := NewResolver(st, cache, nil)
	got, err := r.ResolveByBarcode(context.Background(), "  AF2501150042\n")
	require.NoError(t, err)
	require.Equal(t, uint64(17), got.ID)

	// второй скан: id из кэша, заказ свежий из БД по id
	fresh := &models.Order{ID: 17, Barcode: "AF2501150042", Status: models.OrderStatusProcessing}
	st.On("GetByID", mock.Anything, uint64(17)).Return(fresh, nil).Once()
	got, err = r.ResolveByBarcode(context.Background(), "AF2501150042")
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusProcessing, got.Status)
	st.AssertExpectations(t)
}

func TestResolveByBarcode_NotFound(t *testing.T) {
	st := &storeMock{}
	st.On("GetByBarcode", mock.Anything, "NOPE").Return(nil, models.ErrNotFound).Once()

	r := NewResolver(st, nil, nil)
	_, err := r.ResolveByBarcode(context.Background(), "NOPE")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestResolveByBarcode_CacheDownFallsBackToDB(t *testing.T) {
	st := &storeMock{}
	cache, mr := newCache(t)
	mr.Close()

	order := &models.Order{ID: 3, Barcode: "AF1"}
	st.On("GetByBarcode", mock.Anything, "AF1").Return(order, nil).Once()

	r := NewResolver(st, cache, nil)
	got, err := r.ResolveByBarcode(context.Background(), "AF1")
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.ID)
}

func TestResolveByBarcode_StaleCacheEntry(t *testing.T) {
	st := &storeMock{}
	cache, _ := newCache(t)
	require.NoError(t, cache.SetOrderID(context.Background(), "AF1", 99))

	st.On("GetByID", mock.Anything, uint64(99)).Return(nil, models.ErrNotFound).Once()
	st.On("GetByBarcode", mock.Anything, "AF1").Return(&models.Order{ID: 3, Barcode: "AF1"}, nil).Once()

	r := NewResolver(st, cache, nil)
	got, err := r.ResolveByBarcode(context.Background(), "AF1")
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.ID)

	id, ok, err := cache.GetOrderID(context.Background(), "AF1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), id)
}

func TestGenerateBarcode_Format(t *testing.T) {
	r := NewResolver(&storeMock{}, nil, nil).WithRand(&seqRand{vals: []int{427}})
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

	require.Equal(t, "AF2610190427", r.GenerateBarcode(now))

	r.WithPrefix("BK").WithRand(&seqRand{vals: []int{9999}})
	require.Equal(t, "BK2610199999", r.GenerateBarcode(now))

	r.WithRand(&seqRand{vals: []int{5}})
	require.Equal(t, "BK2610190005", r.GenerateBarcode(now))
}

func TestGenerateBarcode_RealRandShape(t *testing.T) {
	r := NewResolver(&storeMock{}, nil, nil)
	code := r.GenerateBarcode(time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))
	require.Len(t, code, 12)
	require.Regexp(t, `^AF250105\d{4}$`, code)
}

func TestGenerateUnique_RetriesCollisions(t *testing.T) {
	st := &storeMock{}
	st.On("BarcodeExists", mock.Anything, "AF2610190001").Return(true, nil).Once()
	st.On("BarcodeExists", mock.Anything, "AF2610190002").Return(false, nil).Once()

	r := NewResolver(st, nil, nil).WithRand(&seqRand{vals: []int{1, 2}})
	code, err := r.GenerateUnique(context.Background(), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), 3)
	require.NoError(t, err)
	require.Equal(t, "AF2610190002", code)
	st.AssertExpectations(t)
}

func TestGenerateUnique_Exhausted(t *testing.T) {
	st := &storeMock{}
	st.On("BarcodeExists", mock.Anything, mock.Anything).Return(true, nil)

	r := NewResolver(st, nil, nil).WithRand(&seqRand{vals: []int{1}})
	_, err := r.GenerateUnique(context.Background(), time.Now(), 2)
	require.ErrorIs(t, err, ErrBarcodeExhausted)
	st.AssertNumberOfCalls(t, "BarcodeExists", 2)
}

func TestGenerateUnique_StoreError(t *testing.T) {
	st := &storeMock{}
	st.On("BarcodeExists", mock.Anything, mock.Anything).Return(false, errors.New("db down"))

	r := NewResolver(st, nil, nil)
	_, err := r.GenerateUnique(context.Background(), time.Now(), 0)
	require.EqualError(t, err, "db down")
}
