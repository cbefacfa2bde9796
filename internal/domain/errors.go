package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used across layers.
var (
	ErrDataIntegrity  = errors.New("pantry data integrity violation")
	ErrRecipeNotFound = errors.New("recipe not found")
)

// Violation describes one pantry record with an unusable stock quantity.
type Violation struct {
	ItemID   string  `json:"item_id"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// DataIntegrityError reports pantry records that cannot be reasoned about.
// It matches ErrDataIntegrity with errors.Is.
type DataIntegrityError struct {
	Violations []Violation
}

func (e *DataIntegrityError) Error() string {
	ids := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		ids = append(ids, fmt.Sprintf("%s=%g", v.ItemID, v.Quantity))
	}
	return fmt.Sprintf("%s: negative or invalid quantity on %s", ErrDataIntegrity, strings.Join(ids, ", "))
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }
