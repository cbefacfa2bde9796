// Package convert expresses an ingredient amount in another unit. It tries
// a direct same-dimension scale first, then the ingredient's density, then
// its per-item weight, and reports ErrConversionUnresolved rather than
// guessing when none of those apply.
package convert

import (
	"errors"
	"fmt"
	"math"

	"github.com/mwhite7112/woodpantry-reconcile/internal/density"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
	"github.com/mwhite7112/woodpantry-reconcile/internal/units"
)

var (
	ErrConversionUnresolved = errors.New("conversion unresolved")
	ErrInvalidAmount        = errors.New("invalid amount")
)

// Tier names the path a conversion took.
type Tier string

const (
	TierSameDimension Tier = "same_dimension"
	TierDensity       Tier = "density"
	TierCount         Tier = "count"
)

// Confidence reported by each tier.
const (
	ConfidenceDirect  = 1.0
	ConfidenceDensity = 0.85
	ConfidenceCount   = 0.7
)

// Result is a successful conversion. Amount keeps full precision; use
// Rounded for display.
type Result struct {
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
	Tier       Tier    `json:"tier"`
}

func (r Result) Rounded() float64 {
	return ingredient.Round2(r.Amount)
}

// Converter is safe for concurrent use; both tables it holds are immutable.
type Converter struct {
	catalog   *units.Catalog
	densities *density.Table
}

func New(catalog *units.Catalog, densities *density.Table) *Converter {
	return &Converter{catalog: catalog, densities: densities}
}

// Convert expresses amount of from as to. A nil from is a bare item count
// ("3 eggs"); a nil to is the catalog's count unit.
func (c *Converter) Convert(amount float64, from *units.Unit, ingredientName string, to *units.Unit) (Result, error) {
	return c.ConvertSized(amount, from, ingredientName, "", to)
}

// ConvertSized is Convert with a size descriptor ("large") that selects the
// per-item weight for count conversions.
func (c *Converter) ConvertSized(amount float64, from *units.Unit, ingredientName, size string, to *units.Unit) (Result, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Result{}, fmt.Errorf("%w: %g", ErrInvalidAmount, amount)
	}
	if from == nil {
		from = c.catalog.Each()
	}
	if to == nil {
		to = c.catalog.Each()
	}

	if r, ok := sameDimension(amount, from, to); ok {
		return r, nil
	}

	entry, ok := c.densities.Lookup(ingredientName)
	if !ok {
		return Result{}, fmt.Errorf("%w: no density data for %q (%s to %s)",
			ErrConversionUnresolved, ingredientName, from.Dimension, to.Dimension)
	}

	if from.Dimension != units.Count && to.Dimension != units.Count {
		if r, ok := viaDensity(amount, from, to, entry); ok {
			return r, nil
		}
		return Result{}, fmt.Errorf("%w: %q has no grams per milliliter", ErrConversionUnresolved, ingredientName)
	}

	if r, ok := viaItemWeight(amount, from, to, entry, size); ok {
		return r, nil
	}
	return Result{}, fmt.Errorf("%w: %q has no usable per-item weight (%s to %s)",
		ErrConversionUnresolved, ingredientName, from.Dimension, to.Dimension)
}

func sameDimension(amount float64, from, to *units.Unit) (Result, bool) {
	if from.Dimension != to.Dimension {
		return Result{}, false
	}
	return Result{
		Amount:     to.FromBaseAmount(from.ToBaseAmount(amount)),
		Confidence: ConfidenceDirect,
		Tier:       TierSameDimension,
	}, true
}

// viaDensity converts between volume and weight.
func viaDensity(amount float64, from, to *units.Unit, e *density.Entry) (Result, bool) {
	gPerML, ok := e.Density()
	if !ok {
		return Result{}, false
	}
	grams, ok := toGrams(from.ToBaseAmount(amount), from.Dimension, gPerML)
	if !ok {
		return Result{}, false
	}
	base, ok := fromGrams(grams, to.Dimension, gPerML)
	if !ok {
		return Result{}, false
	}
	return Result{Amount: to.FromBaseAmount(base), Confidence: ConfidenceDensity, Tier: TierDensity}, true
}

// viaItemWeight converts between item counts and weight or volume. Volume
// additionally needs the ingredient's density.
func viaItemWeight(amount float64, from, to *units.Unit, e *density.Entry, size string) (Result, bool) {
	perItem, ok := e.UnitWeight(size)
	if !ok || perItem <= 0 {
		return Result{}, false
	}
	gPerML, _ := e.Density()

	var grams float64
	if from.Dimension == units.Count {
		grams = from.ToBaseAmount(amount) * perItem
	} else {
		grams, ok = toGrams(from.ToBaseAmount(amount), from.Dimension, gPerML)
		if !ok {
			return Result{}, false
		}
	}

	var base float64
	if to.Dimension == units.Count {
		base = grams / perItem
	} else {
		base, ok = fromGrams(grams, to.Dimension, gPerML)
		if !ok {
			return Result{}, false
		}
	}
	return Result{Amount: to.FromBaseAmount(base), Confidence: ConfidenceCount, Tier: TierCount}, true
}

func toGrams(base float64, dim units.Dimension, gPerML float64) (float64, bool) {
	switch dim {
	case units.Weight:
		return base, true
	case units.Volume:
		if gPerML <= 0 {
			return 0, false
		}
		return base * gPerML, true
	}
	return 0, false
}

func fromGrams(grams float64, dim units.Dimension, gPerML float64) (float64, bool) {
	switch dim {
	case units.Weight:
		return grams, true
	case units.Volume:
		if gPerML <= 0 {
			return 0, false
		}
		return grams / gPerML, true
	}
	return 0, false
}
