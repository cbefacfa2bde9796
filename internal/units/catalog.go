// Package units holds the measurement unit catalog used to read recipe
// quantities and pantry stock levels. A Catalog is built once and never
// mutated; share it freely between goroutines.
package units

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Dimension is the measurement category a unit belongs to. Units of the same
// dimension convert through a multiplicative factor; units of different
// dimensions need ingredient density data.
type Dimension string

const (
	Volume Dimension = "volume" // base unit: milliliter
	Weight Dimension = "weight" // base unit: gram
	Count  Dimension = "count"  // base unit: one item
)

func (d Dimension) valid() bool {
	switch d {
	case Volume, Weight, Count:
		return true
	}
	return false
}

// Unit is a named unit of measure.
type Unit struct {
	Name      string    `json:"name"`
	Dimension Dimension `json:"dimension"`
	ToBase    float64   `json:"to_base"`
	Aliases   []string  `json:"aliases"`
}

// ToBaseAmount converts amount of u into the base unit of its dimension.
func (u *Unit) ToBaseAmount(amount float64) float64 {
	return amount * u.ToBase
}

// FromBaseAmount converts an amount in the dimension's base unit into u.
func (u *Unit) FromBaseAmount(base float64) float64 {
	return base / u.ToBase
}

var (
	ErrUnknownUnit = errors.New("unknown unit")
	ErrInvalidData = errors.New("invalid unit catalog")
)

// Catalog is an immutable lookup table of units keyed by every alias.
type Catalog struct {
	version int
	units   []*Unit
	byAlias map[string]*Unit
	each    *Unit
}

type catalogFile struct {
	Version int    `json:"version"`
	Units   []Unit `json:"units"`
}

//go:embed units.json
var defaultData []byte

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("units: embedded catalog: %v", err))
	}
	return c
})

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	return defaultCatalog()
}

// LoadFile reads a catalog from a JSON file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from its JSON representation. Every alias must be
// unique across the catalog and every unit needs a known dimension and a
// positive base factor.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode unit catalog: %w", err)
	}

	c := &Catalog{
		version: f.Version,
		units:   make([]*Unit, 0, len(f.Units)),
		byAlias: make(map[string]*Unit),
	}
	for i := range f.Units {
		u := f.Units[i]
		if u.Name == "" {
			return nil, fmt.Errorf("%w: unit %d has no name", ErrInvalidData, i)
		}
		if !u.Dimension.valid() {
			return nil, fmt.Errorf("%w: unit %q has dimension %q", ErrInvalidData, u.Name, u.Dimension)
		}
		if u.ToBase <= 0 {
			return nil, fmt.Errorf("%w: unit %q has non-positive factor", ErrInvalidData, u.Name)
		}

		unit := &u
		for _, alias := range append([]string{u.Name}, u.Aliases...) {
			key := normalizeToken(alias)
			if key == "" {
				continue
			}
			if prev, ok := c.byAlias[key]; ok {
				return nil, fmt.Errorf("%w: alias %q used by %q and %q", ErrInvalidData, alias, prev.Name, u.Name)
			}
			c.byAlias[key] = unit
		}
		c.units = append(c.units, unit)
		if u.Dimension == Count && u.ToBase == 1 && c.each == nil {
			c.each = unit
		}
	}
	if c.each == nil {
		return nil, fmt.Errorf("%w: no count unit with factor 1", ErrInvalidData)
	}
	return c, nil
}

// Version is the data version declared by the catalog file.
func (c *Catalog) Version() int { return c.version }

// Each is the count base unit, used for bare counts like "2 onions".
func (c *Catalog) Each() *Unit { return c.each }

// Units returns the catalog's units in declaration order.
func (c *Catalog) Units() []*Unit {
	out := make([]*Unit, len(c.units))
	copy(out, c.units)
	return out
}

// Lookup finds a unit by name, alias or plural form. Matching ignores case
// and a trailing period ("Tbsp." finds tablespoon).
func (c *Catalog) Lookup(token string) (*Unit, bool) {
	key := normalizeToken(token)
	if key == "" {
		return nil, false
	}
	if u, ok := c.byAlias[key]; ok {
		return u, true
	}
	for _, suffix := range []string{"es", "s"} {
		if len(key) > len(suffix)+1 && strings.HasSuffix(key, suffix) {
			if u, ok := c.byAlias[strings.TrimSuffix(key, suffix)]; ok {
				return u, true
			}
		}
	}
	return nil, false
}

// Resolve maps a pantry unit string to a Unit. An empty string means the
// stock is counted in whole items.
func (c *Catalog) Resolve(s string) (*Unit, error) {
	if strings.TrimSpace(s) == "" {
		return c.each, nil
	}
	u, ok := c.Lookup(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
	}
	return u, nil
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".")
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}
