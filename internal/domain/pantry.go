// Package domain defines the records exchanged with the pantry collaborator
// and the error kinds shared across the reconciliation packages.
package domain

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// PantryItem is one stock record owned by the pantry service.
type PantryItem struct {
	ID             string     `json:"id" validate:"required"`
	Name           string     `json:"name" validate:"required"`
	QuantityAmount float64    `json:"quantity"`
	QuantityUnit   string     `json:"unit"`
	Category       string     `json:"category,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural fields of an item arriving from outside.
// Stock levels are checked separately by CheckStock so that a corrupt
// quantity is reported as a data-integrity failure, not a bad request.
func (p PantryItem) Validate() error {
	return validate.Struct(p)
}

// CheckStock returns a DataIntegrityError naming every item whose quantity
// is negative or not a number.
func CheckStock(items []PantryItem) error {
	var bad []Violation
	for _, it := range items {
		if it.QuantityAmount < 0 || math.IsNaN(it.QuantityAmount) || math.IsInf(it.QuantityAmount, 0) {
			bad = append(bad, Violation{ItemID: it.ID, Name: it.Name, Quantity: it.QuantityAmount})
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &DataIntegrityError{Violations: bad}
}

// PantryDelta is the net consumption to apply to one pantry item, in the
// item's own unit.
type PantryDelta struct {
	ItemID    string  `json:"item_id"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Consumed  float64 `json:"consumed"`
	Remaining float64 `json:"remaining"`
	Exhausted bool    `json:"exhausted"`
}
