// Package barcode resolves shop-floor barcode scans to orders and issues new codes.
package barcode

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/internal/logging"
	"github.com/BearBump/FabOrders/internal/models"
)

const (
	DefaultPrefix   = "AF"
	defaultAttempts = 5
)

var ErrBarcodeExhausted = errors.New("could not generate a unique barcode")

type Rand interface {
	Intn(n int) int
}

type OrderStore interface {
	GetByID(ctx context.Context, id uint64) (*models.Order, error)
	GetByBarcode(ctx context.Context, code string) (*models.Order, error)
	BarcodeExists(ctx context.Context, code string) (bool, error)
}

// Cache хранит barcode -> order id; значения заказа в кэше нет.
type Cache interface {
	GetOrderID(ctx context.Context, code string) (uint64, bool, error)
	SetOrderID(ctx context.Context, code string, orderID uint64) error
	Forget(ctx context.Context, code string) error
}

type Resolver struct {
	store  OrderStore
	cache  Cache
	log    *zap.Logger
	prefix string

	rmu sync.Mutex
	r   Rand
}

func NewResolver(store OrderStore, cache Cache, log *zap.Logger) *Resolver {
	return &Resolver{
		store:  store,
		cache:  cache,
		log:    logging.Or(log),
		prefix: DefaultPrefix,
		r:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Resolver) WithPrefix(prefix string) *Resolver {
	if p := strings.TrimSpace(prefix); p != "" {
		r.prefix = p
	}
	return r
}

func (r *Resolver) WithRand(rnd Rand) *Resolver {
	if rnd != nil {
		r.r = rnd
	}
	return r
}

// ResolveByBarcode returns the order for a scanned code. The code is trimmed
// and otherwise compared as is.
func (r *Resolver) ResolveByBarcode(ctx context.Context, code string) (*models.Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.Wrap(models.ErrNotFound, "empty barcode")
	}

	if o, ok := r.fromCache(ctx, code); ok {
		return o, nil
	}

	o, err := r.store.GetByBarcode(ctx, code)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetOrderID(ctx, code, o.ID); err != nil {
			r.log.Warn("barcode cache set failed", zap.String("barcode", code), zap.Error(err))
		}
	}
	return o, nil
}

// fromCache: промах, ошибка кэша и устаревшая запись: все ведут в БД.
func (r *Resolver) fromCache(ctx context.Context, code string) (*models.Order, bool) {
	if r.cache == nil {
		return nil, false
	}
	id, ok, err := r.cache.GetOrderID(ctx, code)
	if err != nil {
		r.log.Warn("barcode cache get failed", zap.String("barcode", code), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	o, err := r.store.GetByID(ctx, id)
	if err != nil || o.Barcode != code {
		_ = r.cache.Forget(ctx, code)
		return nil, false
	}
	return o, true
}

// GenerateBarcode returns prefix + YYMMDD + 4 random digits. It does not check
// uniqueness.
func (r *Resolver) GenerateBarcode(now time.Time) string {
	r.rmu.Lock()
	n := r.r.Intn(10000)
	r.rmu.Unlock()
	return fmt.Sprintf("%s%s%04d", r.prefix, now.Format("060102"), n)
}

func (r *Resolver) IsUnique(ctx context.Context, code string) (bool, error) {
	exists, err := r.store.BarcodeExists(ctx, strings.TrimSpace(code))
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// GenerateUnique retries GenerateBarcode until IsUnique holds. Collisions are
// retryable; ErrBarcodeExhausted after attempts.
func (r *Resolver) GenerateUnique(ctx context.Context, now time.Time, attempts int) (string, error) {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	for i := 0; i < attempts; i++ {
		code := r.GenerateBarcode(now)
		ok, err := r.IsUnique(ctx, code)
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
		r.log.Debug("barcode collision", zap.String("barcode", code), zap.Int("attempt", i+1))
	}
	return "", errors.Wrapf(ErrBarcodeExhausted, "%d attempts", attempts)
}
