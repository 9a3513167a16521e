package rediscache

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const barcodeKeyPrefix = "fab:barcode:"

// BarcodeCache хранит только соответствие barcode -> order id.
// Сам заказ всегда читается из БД, статус в кэше не живёт.
type BarcodeCache struct {
	rc  *RedisCache
	ttl time.Duration
}

func NewBarcodeCache(rc *RedisCache, ttl time.Duration) *BarcodeCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &BarcodeCache{rc: rc, ttl: ttl}
}

func barcodeKey(code string) string { return barcodeKeyPrefix + code }

func (b *BarcodeCache) GetOrderID(ctx context.Context, code string) (uint64, bool, error) {
	raw, ok, err := b.rc.Get(ctx, barcodeKey(code))
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		// мусор в кэше считаем промахом
		_ = b.rc.Delete(ctx, barcodeKey(code))
		return 0, false, nil
	}
	return id, true, nil
}

func (b *BarcodeCache) SetOrderID(ctx context.Context, code string, orderID uint64) error {
	return errors.Wrap(
		b.rc.Set(ctx, barcodeKey(code), []byte(strconv.FormatUint(orderID, 10)), b.ttl),
		"cache barcode",
	)
}

func (b *BarcodeCache) Forget(ctx context.Context, code string) error {
	return b.rc.Delete(ctx, barcodeKey(code))
}
