// Package matcher ranks pantry items against a recipe ingredient name. Tiers
// run in order: exact and containment, then category umbrellas, then edit
// distance. A later tier only runs when every earlier tier found nothing.
package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/mwhite7112/woodpantry-reconcile/internal/domain"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
)

// DefaultFuzzyThreshold is the minimum normalized similarity for the fuzzy tier.
const DefaultFuzzyThreshold = 0.75

type Tier string

const (
	TierExact       Tier = "exact"
	TierContainment Tier = "containment"
	TierCategory    Tier = "category"
	TierFuzzy       Tier = "fuzzy"
)

const (
	scoreExact    = 1.0
	scoreCategory = 0.4
	fuzzyWeight   = 0.3
)

// Candidate is one pantry item judged relevant to a query.
type Candidate struct {
	Item  domain.PantryItem `json:"item"`
	Index int               `json:"-"` // position in the slice passed to Match
	Score float64           `json:"score"`
	Tier  Tier              `json:"tier"`
}

type Matcher struct {
	fuzzyThreshold float64
}

type Option func(*Matcher)

// WithFuzzyThreshold overrides DefaultFuzzyThreshold. Values outside (0, 1]
// are ignored.
func WithFuzzyThreshold(t float64) Option {
	return func(m *Matcher) {
		if t > 0 && t <= 1 {
			m.fuzzyThreshold = t
		}
	}
}

func New(opts ...Option) *Matcher {
	m := &Matcher{fuzzyThreshold: DefaultFuzzyThreshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match returns the relevant items for ingredientName, best first. Ties go
// to the item that expires soonest, then to input order. No candidates is an
// empty result, not an error.
func (m *Matcher) Match(ingredientName string, items []domain.PantryItem) []Candidate {
	query := ingredient.Normalize(ingredientName)
	if query == "" || len(items) == 0 {
		return nil
	}

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = ingredient.Normalize(it.Name)
	}

	var out []Candidate
	for i, it := range items {
		if Exact(query, names[i]) {
			out = append(out, Candidate{Item: it, Index: i, Score: scoreExact, Tier: TierExact})
			continue
		}
		if s, ok := Containment(query, names[i]); ok {
			out = append(out, Candidate{Item: it, Index: i, Score: s, Tier: TierContainment})
		}
	}

	if len(out) == 0 {
		for i, it := range items {
			if Category(query, names[i], it.Category) {
				out = append(out, Candidate{Item: it, Index: i, Score: scoreCategory, Tier: TierCategory})
			}
		}
	}

	if len(out) == 0 {
		for i, it := range items {
			if sim := Similarity(query, names[i]); sim >= m.fuzzyThreshold {
				out = append(out, Candidate{Item: it, Index: i, Score: fuzzyWeight * sim, Tier: TierFuzzy})
			}
		}
	}

	rank(out)
	return out
}

func rank(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		a, b := cs[i].Item.ExpiresAt, cs[j].Item.ExpiresAt
		switch {
		case a != nil && b != nil:
			return a.Before(*b)
		case a != nil:
			return true
		}
		return false
	})
}

// Exact reports whether two normalized names are equal.
func Exact(query, name string) bool {
	return query != "" && query == name
}

// Containment scores two normalized names when one appears inside the other
// on word boundaries. The score sits in (0.5, 0.95] and grows as the lengths
// converge.
func Containment(query, name string) (float64, bool) {
	if query == "" || name == "" || query == name {
		return 0, false
	}
	short, long := query, name
	if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
		short, long = long, short
	}
	if !containsWords(long, short) {
		return 0, false
	}
	ratio := float64(utf8.RuneCountInString(short)) / float64(utf8.RuneCountInString(long))
	return 0.5 + 0.45*ratio, true
}

// containsWords reports whether the words of needle occur contiguously in
// haystack. "oil" is in "olive oil" but not in "foil".
func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// minWindowRunes is the shortest word window a one-word query is compared
// against. Shorter words differ from unrelated words by a single letter
// ("salt" and "malt").
const minWindowRunes = 6

// Similarity is the best normalized edit-distance similarity between query
// and either the whole name or any run of the name's words as long as the
// query. A one-word query only uses windows when both it and the window are
// at least minWindowRunes long.
func Similarity(query, name string) float64 {
	if query == "" || name == "" {
		return 0
	}
	best := similarity(query, name)

	qn := len(ingredient.Tokens(query))
	words := ingredient.Tokens(name)
	for i := 0; i+qn <= len(words) && qn < len(words); i++ {
		window := strings.Join(words[i:i+qn], " ")
		if qn == 1 && (utf8.RuneCountInString(query) < minWindowRunes || utf8.RuneCountInString(window) < minWindowRunes) {
			continue
		}
		if s := similarity(query, window); s > best {
			best = s
		}
	}
	return best
}

func similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
