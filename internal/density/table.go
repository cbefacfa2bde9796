// Package density holds per-ingredient equivalence data used to convert
// between volume, weight and item counts. A Table is an immutable snapshot;
// a Store publishes the current snapshot and swaps it atomically on reload.
package density

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
)

var ErrInvalidData = errors.New("invalid density table")

// DefaultDescriptor keys the per-item weight used when a recipe gives no
// size ("3 eggs" rather than "3 large eggs").
const DefaultDescriptor = "default"

// Entry is the equivalence data for one ingredient. At least one of
// GramsPerMilliliter and GramsPerUnit is set.
type Entry struct {
	Key                string             `json:"key"`
	GramsPerMilliliter *float64           `json:"grams_per_ml,omitempty"`
	GramsPerUnit       map[string]float64 `json:"grams_per_unit,omitempty"`
	Aliases            []string           `json:"aliases,omitempty"`
}

// Density returns grams per milliliter.
func (e *Entry) Density() (float64, bool) {
	if e.GramsPerMilliliter == nil || *e.GramsPerMilliliter <= 0 {
		return 0, false
	}
	return *e.GramsPerMilliliter, true
}

// UnitWeight returns the weight in grams of one item. The descriptor's own
// weight wins, then the default, then the only weight listed.
func (e *Entry) UnitWeight(descriptor string) (float64, bool) {
	if len(e.GramsPerUnit) == 0 {
		return 0, false
	}
	if descriptor != "" {
		if g, ok := e.GramsPerUnit[descriptor]; ok {
			return g, true
		}
	}
	if g, ok := e.GramsPerUnit[DefaultDescriptor]; ok {
		return g, true
	}
	if len(e.GramsPerUnit) == 1 {
		for _, g := range e.GramsPerUnit {
			return g, true
		}
	}
	return 0, false
}

func (e *Entry) usable() bool {
	if _, ok := e.Density(); ok {
		return true
	}
	for _, g := range e.GramsPerUnit {
		if g > 0 {
			return true
		}
	}
	return false
}

// Table is a read-only density snapshot keyed by normalized ingredient name.
type Table struct {
	version int
	entries []*Entry
	byKey   map[string]*Entry
}

type tableFile struct {
	Version     int     `json:"version"`
	Ingredients []Entry `json:"ingredients"`
}

//go:embed densities.json
var defaultData []byte

var defaultTable = sync.OnceValue(func() *Table {
	t, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("density: embedded table: %v", err))
	}
	return t
})

// Default returns the table compiled into the binary.
func Default() *Table {
	return defaultTable()
}

// LoadFile reads a table from a JSON file on disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read density table: %w", err)
	}
	return Parse(data)
}

// Parse builds a table from JSON. Entries without any usable figure and
// keys or aliases that collide after normalization are rejected.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode density table: %w", err)
	}
	return New(f.Version, f.Ingredients)
}

// New builds a table from entries.
func New(version int, entries []Entry) (*Table, error) {
	t := &Table{
		version: version,
		entries: make([]*Entry, 0, len(entries)),
		byKey:   make(map[string]*Entry, len(entries)),
	}
	for i := range entries {
		e := entries[i]
		e.Key = ingredient.Normalize(e.Key)
		if e.Key == "" {
			return nil, fmt.Errorf("%w: entry %d has no key", ErrInvalidData, i)
		}
		if !e.usable() {
			return nil, fmt.Errorf("%w: %q has neither grams_per_ml nor grams_per_unit", ErrInvalidData, e.Key)
		}
		if len(e.GramsPerUnit) > 0 {
			weights := make(map[string]float64, len(e.GramsPerUnit))
			for desc, g := range e.GramsPerUnit {
				weights[strings.ToLower(strings.TrimSpace(desc))] = g
			}
			e.GramsPerUnit = weights
		}

		entry := &e
		for _, name := range append([]string{e.Key}, e.Aliases...) {
			key := ingredient.Normalize(name)
			if key == "" {
				continue
			}
			if prev, ok := t.byKey[key]; ok {
				return nil, fmt.Errorf("%w: %q claimed by %q and %q", ErrInvalidData, key, prev.Key, e.Key)
			}
			t.byKey[key] = entry
		}
		t.entries = append(t.entries, entry)
	}
	return t, nil
}

func (t *Table) Version() int { return t.version }

func (t *Table) Len() int { return len(t.entries) }

// Entries returns the entries sorted by key.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Lookup finds the entry for an ingredient name. It tries the whole
// normalized name first, then drops leading words one at a time so that
// "all purpose flour" falls back to "flour".
func (t *Table) Lookup(name string) (*Entry, bool) {
	if t == nil {
		return nil, false
	}
	tokens := ingredient.Tokens(ingredient.Normalize(name))
	for i := range tokens {
		if e, ok := t.byKey[strings.Join(tokens[i:], " ")]; ok {
			return e, true
		}
	}
	return nil, false
}
