// Package ingredient turns free-text recipe lines into structured quantities
// and normalizes ingredient names so recipe terms and pantry product names
// compare on equal footing.
package ingredient

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var articles = map[string]bool{"a": true, "an": true, "the": true}

// singulars lists ingredient nouns whose plural form may be reduced to the
// singular. Words missing from this list keep their trailing "s", which
// protects names like "oats" or "greens".
var singulars = setOf(
	"almond", "anchovy", "apple", "apricot", "aubergine", "avocado", "bagel", "banana", "bean",
	"beet", "berry", "biscuit", "blackberry", "blueberry", "breast", "bun", "capsicum", "caper",
	"carrot", "cashew", "cherry", "chickpea", "chili", "chip", "chop", "clam",
	"clove", "cookie", "courgette", "cracker", "cranberry", "crouton", "cube", "cucumber", "cutlet",
	"date", "drumstick", "egg", "fig", "fillet", "grape", "hazelnut", "herb",
	"jalapeno", "kidney", "leek", "lemon", "lentil", "lime", "mango", "muffin",
	"mushroom", "mussel", "noodle", "olive", "onion", "orange", "oyster", "pea",
	"peach", "peanut", "pear", "pecan", "pepper", "pickle", "pineapple", "plum",
	"potato", "prawn", "radish", "raisin", "raspberry", "roll", "sardine", "sausage", "scallion",
	"scallop", "shallot", "slice", "sprig", "sprout", "stalk", "steak", "strawberry",
	"tangerine", "thigh", "tomato", "tortilla", "turnip", "walnut", "wing", "yam",
	"zucchini",
)

var irregularPlurals = map[string]string{
	"leaves":   "leaf",
	"halves":   "half",
	"loaves":   "loaf",
	"knives":   "knife",
	"potatoes": "potato",
	"tomatoes": "tomato",
}

// Normalize reduces an ingredient or product name to its comparable form:
// lowercase, accents folded, punctuation replaced by spaces, leading articles
// dropped, whitespace collapsed and known plurals singularized.
func Normalize(name string) string {
	// Chained transformers carry buffers, so each call builds its own.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)

	tokens := strings.Fields(cleaned)
	for len(tokens) > 0 && articles[tokens[0]] {
		tokens = tokens[1:]
	}
	for i, tok := range tokens {
		tokens[i] = Singular(tok)
	}
	return strings.Join(tokens, " ")
}

// Singular returns the singular form of word when that form is a known
// ingredient noun, otherwise word unchanged.
func Singular(word string) string {
	if s, ok := irregularPlurals[word]; ok {
		return s
	}
	if singulars[word] {
		return word
	}
	if strings.HasSuffix(word, "ies") {
		if s := strings.TrimSuffix(word, "ies") + "y"; singulars[s] {
			return s
		}
	}
	if strings.HasSuffix(word, "es") {
		if s := strings.TrimSuffix(word, "es"); singulars[s] {
			return s
		}
	}
	if strings.HasSuffix(word, "s") {
		if s := strings.TrimSuffix(word, "s"); singulars[s] {
			return s
		}
	}
	return word
}

// Tokens splits a normalized name into words.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
