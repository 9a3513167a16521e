package models

import "github.com/shopspring/decimal"

// Размеры позиций хранятся в сантиметрах.
type ProfileItem struct {
	ID          uint64
	OrderID     uint64
	ProfileType string
	Color       string
	WidthCM     decimal.Decimal
	HeightCM    decimal.Decimal
	Quantity    int
	HingeCount  int

	// Pre-computed by order entry, display only.
	TotalLength decimal.Decimal
	TotalWeight decimal.Decimal
}

type GlassItem struct {
	ID        uint64
	OrderID   uint64
	GlassType string
	WidthCM   decimal.Decimal
	HeightCM  decimal.Decimal
	Quantity  int
	Offset    decimal.Decimal
}
