package ingredient

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mwhite7112/woodpantry-reconcile/internal/units"
)

// ParsedLine is the structured form of one recipe ingredient string.
type ParsedLine struct {
	RawText             string
	Quantity            *float64    // nil when the amount is vague or missing
	Unit                *units.Unit // nil means a count of the ingredient itself ("2 onions")
	IngredientName      string      // normalized
	PreparationNote     string
	SizeDescriptor      string // "small", "large", ...; selects a per-item weight
	IsAmbiguousQuantity bool
}

// Amount returns the quantity, or 0 when there is none.
func (l ParsedLine) Amount() float64 {
	if l.Quantity == nil {
		return 0
	}
	return *l.Quantity
}

// UnitName is the canonical unit name, or "" for a bare count.
func (l ParsedLine) UnitName() string {
	if l.Unit == nil {
		return ""
	}
	return l.Unit.Name
}

// Display renders the line as "2 cup flour" for messages.
func (l ParsedLine) Display() string {
	var parts []string
	if l.Quantity != nil {
		parts = append(parts, FormatAmount(*l.Quantity))
	}
	if l.Unit != nil {
		parts = append(parts, l.Unit.Name)
	}
	parts = append(parts, l.IngredientName)
	return strings.Join(parts, " ")
}

type parsedLineJSON struct {
	RawText             string   `json:"raw_text"`
	Quantity            *float64 `json:"quantity"`
	Unit                string   `json:"unit,omitempty"`
	IngredientName      string   `json:"ingredient_name"`
	PreparationNote     string   `json:"preparation_note,omitempty"`
	SizeDescriptor      string   `json:"size_descriptor,omitempty"`
	IsAmbiguousQuantity bool     `json:"is_ambiguous_quantity"`
}

// MarshalJSON writes the unit by canonical name.
func (l ParsedLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(parsedLineJSON{
		RawText:             l.RawText,
		Quantity:            l.Quantity,
		Unit:                l.UnitName(),
		IngredientName:      l.IngredientName,
		PreparationNote:     l.PreparationNote,
		SizeDescriptor:      l.SizeDescriptor,
		IsAmbiguousQuantity: l.IsAmbiguousQuantity,
	})
}

// FormatAmount prints an amount rounded to two decimals without trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(Round2(v), 'f', -1, 64)
}

// Round2 rounds to two decimal places for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var (
	quantityPattern = regexp.MustCompile(
		`^(\d+\s+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?|\.\d+)(?:\s*(?:-|to)\s*(\d+\s+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?))?`)
	parenthetical = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

	vulgarFractions = strings.NewReplacer(
		"½", " 1/2", "⅓", " 1/3", "⅔", " 2/3", "¼", " 1/4", "¾", " 3/4",
		"⅕", " 1/5", "⅖", " 2/5", "⅗", " 3/5", "⅘", " 4/5", "⅙", " 1/6",
		"⅚", " 5/6", "⅛", " 1/8", "⅜", " 3/8", "⅝", " 5/8", "⅞", " 7/8",
		"⁄", "/", "–", "-", "—", "-",
	)
)

// vaguePhrases mark a line whose amount cannot be measured. They are
// stripped from the ingredient name.
var vaguePhrases = []string{
	"to taste", "as needed", "as required", "as desired", "if needed",
}

// vagueLeads open a line with an unmeasurable amount ("a pinch of salt").
var vagueLeads = []string{
	"a pinch of", "a pinch", "pinch of", "a dash of", "a dash", "dash of",
	"a handful of", "a handful", "handful of", "a splash of", "a splash",
	"a few", "a little", "some",
}

// vagueUnits are unit-like words that carry no measurable size.
var vagueUnits = setOf("pinch", "pinches", "dash", "dashes", "handful", "handfuls", "splash", "sprinkle", "drizzle")

var numberWords = map[string]float64{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"half": 0.5, "quarter": 0.25,
}

var sizeWords = []string{"extra large", "extra-large", "small", "medium", "large", "jumbo"}

// Parser reads ingredient lines against a unit catalog.
type Parser struct {
	catalog *units.Catalog
}

func NewParser(catalog *units.Catalog) *Parser {
	return &Parser{catalog: catalog}
}

// Parse never fails: an amount it cannot read leaves Quantity nil and sets
// IsAmbiguousQuantity. Empty input yields an empty IngredientName.
func (p *Parser) Parse(raw string) ParsedLine {
	line := ParsedLine{RawText: raw}

	work := strings.ToLower(strings.TrimSpace(raw))
	work = vulgarFractions.Replace(work)
	work = parenthetical.ReplaceAllString(work, " ")
	work = strings.Join(strings.Fields(work), " ")
	if work == "" {
		line.IsAmbiguousQuantity = true
		return line
	}

	rest, qty, ok := leadingQuantity(work)
	if ok {
		line.Quantity = &qty
	} else {
		line.IsAmbiguousQuantity = true
	}

	if ok {
		rest = strings.TrimLeft(rest, " -")
		var unit *units.Unit
		unit, rest = p.leadingUnit(rest)
		line.Unit = unit
		if unit == nil {
			if word, after := firstWord(rest); vagueUnits[word] {
				line.Quantity = nil
				line.IsAmbiguousQuantity = true
				rest = after
			}
		}
		rest = strings.TrimPrefix(rest, "of ")
	}

	name, note, _ := strings.Cut(rest, ",")
	note = strings.TrimSpace(note)
	for _, phrase := range vaguePhrases {
		if strings.Contains(name, phrase) {
			name = strings.Replace(name, phrase, " ", 1)
			line.IsAmbiguousQuantity = true
			line.Quantity = nil
			line.Unit = nil
		}
		if strings.HasPrefix(note, phrase) {
			line.IsAmbiguousQuantity = true
			line.Quantity = nil
			line.Unit = nil
		}
	}

	line.SizeDescriptor, name = extractSize(name)
	line.IngredientName = Normalize(name)
	line.PreparationNote = note
	return line
}

// leadingQuantity reads a numeric amount, a range, a number word or a
// vague lead from the start of s. It reports false when s opens with a
// vague lead or no amount at all.
func leadingQuantity(s string) (string, float64, bool) {
	for _, lead := range vagueLeads {
		if s == lead || strings.HasPrefix(s, lead+" ") {
			return strings.TrimSpace(strings.TrimPrefix(s, lead)), 0, false
		}
	}

	if m := quantityPattern.FindStringSubmatchIndex(s); m != nil {
		low, lowOK := parseNumber(s[m[2]:m[3]])
		if lowOK {
			v := low
			if m[4] >= 0 {
				if high, highOK := parseNumber(s[m[4]:m[5]]); highOK {
					v = Round2((low + high) / 2)
				}
			}
			return s[m[1]:], v, true
		}
		return s[m[1]:], 0, false
	}

	word, after := firstWord(s)
	if v, ok := numberWords[word]; ok {
		next, _ := firstWord(after)
		// "half and half" names a product, not an amount.
		if next == "" || next == "and" {
			return s, 0, false
		}
		// "a 2 lb chicken"
		if (word == "a" || word == "an") && quantityPattern.MatchString(after) {
			return leadingQuantity(after)
		}
		// "half an onion", "a quarter cup"
		if (word == "half" || word == "quarter") && (next == "a" || next == "an") {
			_, after = firstWord(after)
		}
		if (word == "a" || word == "an") && numberWords[next] > 0 && numberWords[next] < 1 {
			_, after = firstWord(after)
			v = numberWords[next]
		}
		return after, v, true
	}
	return s, 0, false
}

// parseNumber reads "2", "1.5", ".5", "1/2" or "1 1/2".
func parseNumber(s string) (float64, bool) {
	fields := strings.Fields(s)
	total := 0.0
	for _, f := range fields {
		if num, den, ok := strings.Cut(f, "/"); ok {
			n, err1 := strconv.ParseFloat(num, 64)
			d, err2 := strconv.ParseFloat(den, 64)
			if err1 != nil || err2 != nil || d == 0 {
				return 0, false
			}
			total += n / d
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, false
		}
		total += v
	}
	return total, len(fields) > 0
}

// leadingUnit consumes a one- or two-word unit token from s.
func (p *Parser) leadingUnit(s string) (*units.Unit, string) {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil, s
	}
	if len(words) >= 2 {
		if u, ok := p.catalog.Lookup(strings.TrimRight(words[0]+" "+words[1], ",")); ok {
			return u, strings.Join(words[2:], " ")
		}
	}
	// A unit word with nothing after it is read as the ingredient itself.
	if len(words) >= 2 {
		if u, ok := p.catalog.Lookup(strings.TrimRight(words[0], ",")); ok {
			return u, strings.Join(words[1:], " ")
		}
	}
	return nil, s
}

func extractSize(name string) (string, string) {
	padded := " " + strings.TrimSpace(name) + " "
	for _, size := range sizeWords {
		if strings.Contains(padded, " "+size+" ") {
			padded = strings.Replace(padded, " "+size+" ", " ", 1)
			return strings.ReplaceAll(size, "-", " "), strings.TrimSpace(padded)
		}
	}
	return "", strings.TrimSpace(name)
}

func firstWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	word, after, _ := strings.Cut(s, " ")
	return word, strings.TrimSpace(after)
}
