package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var knownStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus принимает только пять известных статусов.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range knownStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
}

func (s OrderStatus) Valid() bool {
	_, err := ParseOrderStatus(string(s))
	return err == nil
}

type Order struct {
	ID          uint64
	Barcode     string
	OrderNumber string
	Status      OrderStatus

	TotalAmount     decimal.Decimal
	AdvancePayment  decimal.Decimal
	RemainingAmount decimal.Decimal

	ProcessingDate    *time.Time
	CompletionDate    *time.Time
	DeliveryDate      *time.Time
	DeliveredBy       *uint64
	DeliverySignature *string

	CustomerID uint64
	SellerID   *uint64
	BranchID   *uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckAmounts enforces remaining = total - advance and remaining >= 0.
func (o *Order) CheckAmounts() error {
	remaining := o.TotalAmount.Sub(o.AdvancePayment)
	if remaining.IsNegative() {
		return errors.Errorf("order %d: advance payment %s exceeds total %s", o.ID, o.AdvancePayment, o.TotalAmount)
	}
	if !o.RemainingAmount.Equal(remaining) {
		return errors.Errorf("order %d: remaining amount %s, expected %s", o.ID, o.RemainingAmount, remaining)
	}
	return nil
}

// StatusChange is one accepted transition as it is written to storage.
type StatusChange struct {
	OrderID   uint64
	From      OrderStatus
	To        OrderStatus
	ActorID   uint64
	Note      string
	At        time.Time
	Signature *string
}

type StatusHistoryEntry struct {
	ID        uint64
	OrderID   uint64
	From      OrderStatus
	To        OrderStatus
	ActorID   uint64
	Note      *string
	ChangedAt time.Time
}

// Apply moves o to c.To and stamps the date that belongs to the new status.
func (c StatusChange) Apply(o *Order) {
	at := c.At
	o.Status = c.To
	o.UpdatedAt = at
	switch c.To {
	case OrderStatusProcessing:
		o.ProcessingDate = &at
	case OrderStatusCompleted:
		o.CompletionDate = &at
	case OrderStatusDelivered:
		actor := c.ActorID
		o.DeliveryDate = &at
		o.DeliveredBy = &actor
		if c.Signature != nil {
			o.DeliverySignature = c.Signature
		}
	}
}
