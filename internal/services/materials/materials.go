// Package materials derives manufacturing quantities from order line items.
// All functions are pure and safe for concurrent use.
package materials

import (
	"sort"
	"strings"

	"github.com/BearBump/FabOrders/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	MaterialProfile = "profile"
	MaterialGlass   = "glass"

	UnitMeter       = "m"
	UnitSquareMeter = "m2"

	unspecifiedLabel = "unspecified"
)

var (
	cmPerMeter = decimal.NewFromInt(100)
	two        = decimal.NewFromInt(2)
)

type ProfileLengths struct {
	Total  decimal.Decimal
	Side   decimal.Decimal
	Handle decimal.Decimal
}

type GroupKey struct {
	Material string
	Label    string
}

type Quantity struct {
	Value decimal.Decimal
	Unit  string
}

type Requirement struct {
	GroupKey
	Quantity
}

// ComputeProfileLengths returns total frame length in meters split into side
// and handle runs. The handle run is approximated by width x quantity.
func ComputeProfileLengths(items []models.ProfileItem) (ProfileLengths, error) {
	total := decimal.Zero
	handle := decimal.Zero
	for i := range items {
		it := &items[i]
		length, handleRun, err := profileLength(it)
		if err != nil {
			return ProfileLengths{}, err
		}
		total = total.Add(length)
		handle = handle.Add(handleRun)
	}
	return ProfileLengths{
		Total:  total,
		Side:   total.Sub(handle),
		Handle: handle,
	}, nil
}

// ComputeGlassArea returns the summed glass area in square meters.
func ComputeGlassArea(items []models.GlassItem) (decimal.Decimal, error) {
	area := decimal.Zero
	for i := range items {
		a, err := glassArea(&items[i])
		if err != nil {
			return decimal.Zero, err
		}
		area = area.Add(a)
	}
	return area, nil
}

// AggregateMaterialRequirements groups profile length by profile type and
// glass area by glass type.
func AggregateMaterialRequirements(profiles []models.ProfileItem, glass []models.GlassItem) (map[GroupKey]Quantity, error) {
	out := make(map[GroupKey]Quantity, len(profiles)+len(glass))

	for i := range profiles {
		it := &profiles[i]
		length, _, err := profileLength(it)
		if err != nil {
			return nil, err
		}
		add(out, GroupKey{Material: MaterialProfile, Label: label(it.ProfileType)}, length, UnitMeter)
	}

	for i := range glass {
		it := &glass[i]
		a, err := glassArea(it)
		if err != nil {
			return nil, err
		}
		add(out, GroupKey{Material: MaterialGlass, Label: label(it.GlassType)}, a, UnitSquareMeter)
	}

	return out, nil
}

// Sorted flattens requirements into a stable order: profiles first, then by label.
func Sorted(reqs map[GroupKey]Quantity) []Requirement {
	out := make([]Requirement, 0, len(reqs))
	for k, q := range reqs {
		out = append(out, Requirement{GroupKey: k, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Material != out[j].Material {
			return out[i].Material == MaterialProfile
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func profileLength(it *models.ProfileItem) (length, handleRun decimal.Decimal, err error) {
	if err := checkDims(it.ID, it.WidthCM, it.HeightCM, it.Quantity); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	qty := decimal.NewFromInt(int64(it.Quantity))
	w := it.WidthCM.Div(cmPerMeter)
	h := it.HeightCM.Div(cmPerMeter)

	perimeter := two.Mul(w.Add(h))
	return perimeter.Mul(qty), w.Mul(qty), nil
}

func glassArea(it *models.GlassItem) (decimal.Decimal, error) {
	if err := checkDims(it.ID, it.WidthCM, it.HeightCM, it.Quantity); err != nil {
		return decimal.Zero, err
	}
	qty := decimal.NewFromInt(int64(it.Quantity))
	return it.WidthCM.Div(cmPerMeter).Mul(it.HeightCM.Div(cmPerMeter)).Mul(qty), nil
}

func checkDims(itemID uint64, w, h decimal.Decimal, qty int) error {
	if w.IsNegative() || h.IsNegative() {
		return errors.Wrapf(models.ErrInvalidDimension, "item %d: %sx%s cm", itemID, w, h)
	}
	if qty < 0 {
		return errors.Wrapf(models.ErrInvalidDimension, "item %d: quantity %d", itemID, qty)
	}
	return nil
}

func add(m map[GroupKey]Quantity, k GroupKey, v decimal.Decimal, unit string) {
	q, ok := m[k]
	if !ok {
		q = Quantity{Value: decimal.Zero, Unit: unit}
	}
	q.Value = q.Value.Add(v)
	m[k] = q
}

func label(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return unspecifiedLabel
	}
	return s
}
