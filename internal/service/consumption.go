package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/mwhite7112/woodpantry-reconcile/internal/convert"
	"github.com/mwhite7112/woodpantry-reconcile/internal/density"
	"github.com/mwhite7112/woodpantry-reconcile/internal/domain"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
	"github.com/mwhite7112/woodpantry-reconcile/internal/matcher"
	"github.com/mwhite7112/woodpantry-reconcile/internal/units"
)

type Outcome string

const (
	OutcomeExact       Outcome = "exact"
	OutcomePartial     Outcome = "partial"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeSkipped     Outcome = "skipped"
)

// Issue explains why a line was not fully satisfied.
type Issue string

const (
	IssueNone                 Issue = ""
	IssueAmbiguousQuantity    Issue = "ambiguous_quantity"
	IssueNoPantryMatch        Issue = "no_pantry_match"
	IssueConversionUnresolved Issue = "conversion_unresolved"
	IssueInsufficientStock    Issue = "insufficient_stock"
)

// Consumption is the amount to take from one pantry item, in that item's unit.
type Consumption struct {
	ItemID         string       `json:"item_id"`
	ItemName       string       `json:"item_name"`
	Unit           string       `json:"unit"`
	Amount         float64      `json:"amount"`
	Confidence     float64      `json:"confidence"`
	MatchTier      matcher.Tier `json:"match_tier"`
	ConversionTier convert.Tier `json:"conversion_tier"`
}

// UsagePlan is the calculator's verdict for one ingredient line. Shortfall
// is in the requested unit. Confidence is nil when nothing was consumed.
type UsagePlan struct {
	RawText            string        `json:"raw_text"`
	IngredientName     string        `json:"ingredient_name"`
	RequestedQuantity  *float64      `json:"requested_quantity"`
	RequestedUnit      string        `json:"requested_unit,omitempty"`
	MatchedPantryItems []Consumption `json:"matched_pantry_items"`
	Shortfall          float64       `json:"shortfall"`
	Confidence         *float64      `json:"conversion_confidence"`
	Outcome            Outcome       `json:"outcome"`
	Issue              Issue         `json:"issue,omitempty"`
	Skipped            bool          `json:"skipped"`
	UnresolvedItemIDs  []string      `json:"unresolved_item_ids,omitempty"`
}

// Rounded returns a copy with amounts rounded to two decimals for display.
func (p UsagePlan) Rounded() UsagePlan {
	out := p
	if p.RequestedQuantity != nil {
		q := ingredient.Round2(*p.RequestedQuantity)
		out.RequestedQuantity = &q
	}
	out.Shortfall = ingredient.Round2(p.Shortfall)
	out.MatchedPantryItems = make([]Consumption, len(p.MatchedPantryItems))
	for i, c := range p.MatchedPantryItems {
		c.Amount = ingredient.Round2(c.Amount)
		out.MatchedPantryItems[i] = c
	}
	return out
}

func (p UsagePlan) requested() string {
	q := ""
	if p.RequestedQuantity != nil {
		q = ingredient.FormatAmount(*p.RequestedQuantity) + " "
	}
	if p.RequestedUnit != "" {
		q += p.RequestedUnit + " "
	}
	return q + p.IngredientName
}

// fullMatch tolerates float noise when deciding a candidate covers the need.
const fullMatch = 1e-9

// Calculator turns parsed lines and a pantry snapshot into usage plans. It
// holds immutable reference data only and is safe for concurrent use.
type Calculator struct {
	catalog   *units.Catalog
	matcher   *matcher.Matcher
	converter *convert.Converter
}

func NewCalculator(catalog *units.Catalog, densities *density.Table, m *matcher.Matcher) *Calculator {
	if m == nil {
		m = matcher.New()
	}
	return &Calculator{
		catalog:   catalog,
		matcher:   m,
		converter: convert.New(catalog, densities),
	}
}

// ComputeUsagePlan plans consumption for every line, greedily drawing from
// the best-ranked pantry candidates. Stock drawn by one line is not offered
// to the next. Per-line problems are reported in the plan; the only error is
// a *domain.DataIntegrityError for negative or non-numeric stock.
func (c *Calculator) ComputeUsagePlan(lines []ingredient.ParsedLine, items []domain.PantryItem) ([]UsagePlan, error) {
	if err := domain.CheckStock(items); err != nil {
		return nil, err
	}

	stock := make([]float64, len(items))
	for i, it := range items {
		stock[i] = it.QuantityAmount
	}

	plans := make([]UsagePlan, 0, len(lines))
	for _, line := range lines {
		plans = append(plans, c.planLine(line, items, stock))
	}
	return plans, nil
}

func (c *Calculator) planLine(line ingredient.ParsedLine, items []domain.PantryItem, stock []float64) UsagePlan {
	plan := UsagePlan{
		RawText:            line.RawText,
		IngredientName:     line.IngredientName,
		RequestedQuantity:  line.Quantity,
		RequestedUnit:      line.UnitName(),
		MatchedPantryItems: []Consumption{},
	}

	if line.IsAmbiguousQuantity || line.Quantity == nil || line.IngredientName == "" {
		plan.RequestedQuantity = nil
		plan.Outcome = OutcomeSkipped
		plan.Issue = IssueAmbiguousQuantity
		plan.Skipped = true
		return plan
	}

	need := *line.Quantity
	if need <= 0 {
		plan.Outcome = OutcomeExact
		return plan
	}

	candidates := c.matcher.Match(line.IngredientName, items)
	if len(candidates) == 0 {
		plan.Shortfall = need
		plan.Outcome = OutcomeUnavailable
		plan.Issue = IssueNoPantryMatch
		return plan
	}

	remaining := need
	confidence := 1.0
	converted := false
	for _, cand := range candidates {
		available := stock[cand.Index]
		res, err := c.toItemUnit(remaining, line, cand.Item)
		if err != nil {
			plan.UnresolvedItemIDs = append(plan.UnresolvedItemIDs, cand.Item.ID)
			continue
		}
		converted = true
		if available <= 0 || res.Amount <= 0 {
			continue
		}

		var take float64
		if available+fullMatch*math.Max(1, res.Amount) >= res.Amount {
			take = math.Min(available, res.Amount)
			remaining = 0
		} else {
			take = available
			remaining -= remaining * take / res.Amount
		}
		stock[cand.Index] = available - take

		plan.MatchedPantryItems = append(plan.MatchedPantryItems, Consumption{
			ItemID:         cand.Item.ID,
			ItemName:       cand.Item.Name,
			Unit:           cand.Item.QuantityUnit,
			Amount:         take,
			Confidence:     res.Confidence,
			MatchTier:      cand.Tier,
			ConversionTier: res.Tier,
		})
		confidence = math.Min(confidence, res.Confidence)

		if remaining <= 0 {
			remaining = 0
			break
		}
	}

	plan.Shortfall = remaining
	if len(plan.MatchedPantryItems) > 0 {
		plan.Confidence = &confidence
	}

	switch {
	case len(plan.MatchedPantryItems) == 0 && !converted:
		plan.Outcome = OutcomeUnavailable
		plan.Issue = IssueConversionUnresolved
	case len(plan.MatchedPantryItems) == 0:
		plan.Outcome = OutcomeUnavailable
		plan.Issue = IssueInsufficientStock
	case remaining > 0:
		plan.Outcome = OutcomePartial
		plan.Issue = IssueInsufficientStock
	default:
		plan.Outcome = OutcomeExact
	}
	return plan
}

// toItemUnit expresses amount of the line's ingredient in the item's unit.
// Density data is looked up under the recipe's name first, then the
// product's.
func (c *Calculator) toItemUnit(amount float64, line ingredient.ParsedLine, item domain.PantryItem) (convert.Result, error) {
	to, err := c.catalog.Resolve(item.QuantityUnit)
	if err != nil {
		return convert.Result{}, fmt.Errorf("%w: %w", convert.ErrConversionUnresolved, err)
	}
	res, err := c.converter.ConvertSized(amount, line.Unit, line.IngredientName, line.SizeDescriptor, to)
	if errors.Is(err, convert.ErrConversionUnresolved) {
		return c.converter.ConvertSized(amount, line.Unit, item.Name, line.SizeDescriptor, to)
	}
	return res, err
}

// PantryDeltas totals the consumption in plans per pantry item, in the order
// items are given. Items nothing was drawn from are omitted.
func PantryDeltas(plans []UsagePlan, items []domain.PantryItem) []domain.PantryDelta {
	consumed := make(map[string]float64)
	for _, p := range plans {
		for _, m := range p.MatchedPantryItems {
			consumed[m.ItemID] += m.Amount
		}
	}

	deltas := make([]domain.PantryDelta, 0, len(consumed))
	for _, it := range items {
		used, ok := consumed[it.ID]
		if !ok || used <= 0 {
			continue
		}
		left := it.QuantityAmount - used
		if left <= fullMatch*math.Max(1, it.QuantityAmount) {
			left = 0
		}
		deltas = append(deltas, domain.PantryDelta{
			ItemID:    it.ID,
			Name:      it.Name,
			Unit:      it.QuantityUnit,
			Consumed:  used,
			Remaining: left,
			Exhausted: left == 0,
		})
		delete(consumed, it.ID)
	}
	return deltas
}

// Warnings renders the plans' problems as messages for the user.
func Warnings(plans []UsagePlan) []string {
	var out []string
	for _, p := range plans {
		switch {
		case p.Skipped:
			out = append(out, fmt.Sprintf("%q has no measurable quantity; confirm it manually", p.RawText))
			continue
		case p.Shortfall > 0:
			out = append(out, fmt.Sprintf("could not fully account for %s: %s %s short (%s)",
				p.requested(), ingredient.FormatAmount(p.Shortfall), unitLabel(p.RequestedUnit), reason(p.Issue)))
		}
		if p.Confidence != nil && *p.Confidence < 1 {
			out = append(out, fmt.Sprintf("%s was deducted using an estimated conversion (confidence %s); please verify",
				p.requested(), ingredient.FormatAmount(*p.Confidence)))
		}
		for _, m := range p.MatchedPantryItems {
			if m.MatchTier == matcher.TierCategory || m.MatchTier == matcher.TierFuzzy {
				out = append(out, fmt.Sprintf("matched %s as a substitute for %s; please verify",
					m.ItemName, p.IngredientName))
			}
		}
	}
	return out
}

func unitLabel(u string) string {
	if u == "" {
		return "each"
	}
	return u
}

func reason(i Issue) string {
	switch i {
	case IssueNoPantryMatch:
		return "nothing in the pantry matches"
	case IssueConversionUnresolved:
		return "pantry units cannot be converted"
	case IssueInsufficientStock:
		return "not enough in stock"
	}
	return string(i)
}
