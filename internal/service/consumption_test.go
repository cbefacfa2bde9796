package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhite7112/woodpantry-reconcile/internal/convert"
	"github.com/mwhite7112/woodpantry-reconcile/internal/density"
	"github.com/mwhite7112/woodpantry-reconcile/internal/domain"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
	"github.com/mwhite7112/woodpantry-reconcile/internal/matcher"
	"github.com/mwhite7112/woodpantry-reconcile/internal/units"
)

func newCalculator() *Calculator {
	return NewCalculator(units.Default(), density.Default(), matcher.New())
}

func parse(lines ...string) []ingredient.ParsedLine {
	p := ingredient.NewParser(units.Default())
	out := make([]ingredient.ParsedLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, p.Parse(l))
	}
	return out
}

func pantry(id, name string, qty float64, unit string) domain.PantryItem {
	return domain.PantryItem{ID: id, Name: name, QuantityAmount: qty, QuantityUnit: unit}
}

func planOne(t *testing.T, c *Calculator, line string, items ...domain.PantryItem) UsagePlan {
	t.Helper()
	plans, err := c.ComputeUsagePlan(parse(line), items)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	return plans[0]
}

func TestFlourByVolumeFromGrams(t *testing.T) {
	plan := planOne(t, newCalculator(), "2 cups flour", pantry("f", "All-Purpose Flour", 500, "g"))

	assert.Equal(t, OutcomeExact, plan.Outcome)
	assert.Equal(t, 0.0, plan.Shortfall)
	require.NotNil(t, plan.Confidence)
	assert.Equal(t, convert.ConfidenceDensity, *plan.Confidence)
	require.Len(t, plan.MatchedPantryItems, 1)
	assert.Equal(t, "f", plan.MatchedPantryItems[0].ItemID)
	assert.InDelta(t, 2*236.5882365*0.53, plan.MatchedPantryItems[0].Amount, 1e-6)
	assert.Equal(t, convert.TierDensity, plan.MatchedPantryItems[0].ConversionTier)
	assert.Equal(t, 250.78, plan.Rounded().MatchedPantryItems[0].Amount)
}

func TestLargeEggsByCount(t *testing.T) {
	plan := planOne(t, newCalculator(), "3 large eggs", pantry("e", "Eggs", 6, "each"))

	assert.Equal(t, OutcomeExact, plan.Outcome)
	assert.Equal(t, 0.0, plan.Shortfall)
	require.Len(t, plan.MatchedPantryItems, 1)
	assert.Equal(t, 3.0, plan.MatchedPantryItems[0].Amount)
	require.NotNil(t, plan.Confidence)
	assert.Equal(t, 1.0, *plan.Confidence)
}

func TestHalfOnionDiced(t *testing.T) {
	lines := parse("1/2 onion, diced")
	assert.Equal(t, "onion", lines[0].IngredientName)
	assert.Equal(t, "diced", lines[0].PreparationNote)

	plans, err := newCalculator().ComputeUsagePlan(lines, []domain.PantryItem{pantry("o", "Yellow Onions", 4, "each")})
	require.NoError(t, err)
	plan := plans[0]

	require.Len(t, plan.MatchedPantryItems, 1)
	assert.Equal(t, 0.5, plan.MatchedPantryItems[0].Amount)
	assert.Equal(t, matcher.TierContainment, plan.MatchedPantryItems[0].MatchTier)
	assert.Equal(t, 0.0, plan.Shortfall)
}

func TestSaltToTasteIsSkipped(t *testing.T) {
	plan := planOne(t, newCalculator(), "salt to taste", pantry("s", "Salt", 500, "g"))

	assert.True(t, plan.Skipped)
	assert.Equal(t, OutcomeSkipped, plan.Outcome)
	assert.Equal(t, IssueAmbiguousQuantity, plan.Issue)
	assert.Nil(t, plan.RequestedQuantity)
	assert.Equal(t, 0.0, plan.Shortfall)
	assert.Empty(t, plan.MatchedPantryItems)
	assert.Nil(t, plan.Confidence)
}

func TestMilkVolumeNeedsNoDensity(t *testing.T) {
	empty, err := density.New(1, nil)
	require.NoError(t, err)
	c := NewCalculator(units.Default(), empty, nil)

	plan := planOne(t, c, "2 cups milk", pantry("m", "Almond Milk", 1, "L"))

	assert.Equal(t, OutcomeExact, plan.Outcome)
	assert.Equal(t, 0.0, plan.Shortfall)
	require.NotNil(t, plan.Confidence)
	assert.Equal(t, 1.0, *plan.Confidence)
	require.Len(t, plan.MatchedPantryItems, 1)
	assert.InDelta(t, 0.473176473, plan.MatchedPantryItems[0].Amount, 1e-9)
}

func TestChickenWeightAgainstCountIsUnresolved(t *testing.T) {
	plan := planOne(t, newCalculator(), "200g chicken breast", pantry("c", "Chicken Thighs", 3, "each"))

	assert.Empty(t, plan.MatchedPantryItems)
	assert.Equal(t, 200.0, plan.Shortfall)
	assert.Equal(t, "gram", plan.RequestedUnit)
	assert.Nil(t, plan.Confidence)
	assert.Equal(t, OutcomeUnavailable, plan.Outcome)
	assert.Equal(t, IssueConversionUnresolved, plan.Issue)
	assert.Equal(t, []string{"c"}, plan.UnresolvedItemIDs)
}

func TestNoPantryMatch(t *testing.T) {
	plan := planOne(t, newCalculator(), "1 tsp saffron", pantry("f", "Flour", 1, "kg"))

	assert.Equal(t, OutcomeUnavailable, plan.Outcome)
	assert.Equal(t, IssueNoPantryMatch, plan.Issue)
	assert.Equal(t, 1.0, plan.Shortfall)
	assert.Nil(t, plan.Confidence)
}

func TestEmptyStockIsInsufficientNotUnresolved(t *testing.T) {
	plan := planOne(t, newCalculator(), "1 cup flour", pantry("f", "Flour", 0, "g"))

	assert.Equal(t, OutcomeUnavailable, plan.Outcome)
	assert.Equal(t, IssueInsufficientStock, plan.Issue)
	assert.Equal(t, 1.0, plan.Shortfall)
}

func TestUnknownPantryUnitIsUnresolved(t *testing.T) {
	plan := planOne(t, newCalculator(), "2 apples", pantry("a", "Apples", 1, "bushel"))

	assert.Equal(t, IssueConversionUnresolved, plan.Issue)
	assert.Equal(t, 2.0, plan.Shortfall)
}

func TestGreedyExhaustsExactly(t *testing.T) {
	plan := planOne(t, newCalculator(), "2 cups milk",
		pantry("whole", "Whole Milk", 1, "cup"),
		pantry("skim", "Skim Milk", 1, "cup"),
	)

	assert.Equal(t, OutcomeExact, plan.Outcome)
	assert.Equal(t, 0.0, plan.Shortfall, "shortfall must be exactly zero")
	require.Len(t, plan.MatchedPantryItems, 2)
	// The shorter name scores higher on containment.
	assert.Equal(t, "skim", plan.MatchedPantryItems[0].ItemID)
	assert.Equal(t, "whole", plan.MatchedPantryItems[1].ItemID)
}

func TestGreedyPartialAcrossUnits(t *testing.T) {
	plan := planOne(t, newCalculator(), "1 l milk",
		pantry("a", "Milk", 500, "ml"),
		pantry("b", "Whole Milk", 2, "cups"),
	)

	assert.Equal(t, OutcomePartial, plan.Outcome)
	assert.Equal(t, IssueInsufficientStock, plan.Issue)
	require.Len(t, plan.MatchedPantryItems, 2)
	assert.InDelta(t, 500, plan.MatchedPantryItems[0].Amount, 1e-9)
	assert.InDelta(t, 2, plan.MatchedPantryItems[1].Amount, 1e-9)
	assert.InDelta(t, 1-0.5-0.473176473, plan.Shortfall, 1e-9)
}

func TestConfidenceIsWeakestTierUsed(t *testing.T) {
	plan := planOne(t, newCalculator(), "1 cup flour",
		pantry("g", "Flour", 100, "g"),
		pantry("c", "All-Purpose Flour", 2, "cup"),
	)

	assert.Equal(t, OutcomeExact, plan.Outcome)
	require.Len(t, plan.MatchedPantryItems, 2)
	assert.Equal(t, 100.0, plan.MatchedPantryItems[0].Amount)
	assert.InDelta(t, 1-100/(236.5882365*0.53), plan.MatchedPantryItems[1].Amount, 1e-9)
	require.NotNil(t, plan.Confidence)
	assert.Equal(t, convert.ConfidenceDensity, *plan.Confidence)
}

func TestStockIsSharedAcrossLines(t *testing.T) {
	items := []domain.PantryItem{pantry("e", "Eggs", 4, "each")}
	plans, err := newCalculator().ComputeUsagePlan(parse("2 eggs", "3 eggs"), items)
	require.NoError(t, err)
	require.Len(t, plans, 2)

	assert.Equal(t, OutcomeExact, plans[0].Outcome)
	assert.Equal(t, OutcomePartial, plans[1].Outcome)
	assert.Equal(t, 2.0, plans[1].MatchedPantryItems[0].Amount)
	assert.Equal(t, 1.0, plans[1].Shortfall)

	deltas := PantryDeltas(plans, items)
	require.Len(t, deltas, 1)
	assert.Equal(t, 4.0, deltas[0].Consumed)
	assert.Equal(t, 0.0, deltas[0].Remaining)
	assert.True(t, deltas[0].Exhausted)

	assert.Equal(t, 4.0, items[0].QuantityAmount, "input items are not mutated")
}

func TestNegativeStockIsDataIntegrityError(t *testing.T) {
	plans, err := newCalculator().ComputeUsagePlan(parse("1 cup flour"), []domain.PantryItem{
		pantry("ok", "Sugar", 1, "kg"),
		pantry("bad", "Flour", -3, "g"),
	})
	require.ErrorIs(t, err, domain.ErrDataIntegrity)
	assert.Nil(t, plans)
	assert.Contains(t, err.Error(), "bad")
}

func TestPlansAreDeterministicAndNonNegative(t *testing.T) {
	lines := parse(
		"2 cups flour", "3 large eggs", "1/2 onion, diced", "salt to taste",
		"2 cups milk", "200g chicken breast", "1 lb butter", "4 tbsp olive oil",
		"2 cups flour", "12 eggs",
	)
	items := []domain.PantryItem{
		pantry("1", "All-Purpose Flour", 500, "g"),
		pantry("2", "Eggs", 6, "each"),
		pantry("3", "Yellow Onions", 4, ""),
		pantry("4", "Almond Milk", 1, "L"),
		pantry("5", "Chicken Thighs", 3, "each"),
		pantry("6", "Butter", 2, "stick"),
		pantry("7", "Butter", 100, "g"),
		pantry("8", "Extra Virgin Olive Oil", 0.5, "cup"),
	}

	c := newCalculator()
	first, err := c.ComputeUsagePlan(lines, items)
	require.NoError(t, err)
	second, err := c.ComputeUsagePlan(lines, items)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	used := make(map[string]float64)
	for _, p := range first {
		assert.GreaterOrEqual(t, p.Shortfall, 0.0, p.RawText)
		for _, m := range p.MatchedPantryItems {
			assert.Greater(t, m.Amount, 0.0)
			used[m.ItemID] += m.Amount
		}
	}
	for _, it := range items {
		assert.LessOrEqual(t, used[it.ID], it.QuantityAmount+1e-9, it.Name)
	}
}

func TestWarnings(t *testing.T) {
	plans, err := newCalculator().ComputeUsagePlan(
		parse("salt to taste", "2 cups flour", "200g chicken breast", "2 eggs"),
		[]domain.PantryItem{
			pantry("f", "Flour", 500, "g"),
			pantry("c", "Chicken Thighs", 3, "each"),
			pantry("e", "Eggs", 6, "each"),
		},
	)
	require.NoError(t, err)

	warnings := Warnings(plans)
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], `"salt to taste"`)
	assert.Contains(t, warnings[1], "estimated conversion (confidence 0.85)")
	assert.Contains(t, warnings[2], "could not fully account for 200 gram chicken breast: 200 gram short")
}

func TestWarningsNameSubstitutes(t *testing.T) {
	plans, err := newCalculator().ComputeUsagePlan(
		parse("3 scallions", "2 tomatoe", "2 eggs"),
		[]domain.PantryItem{
			pantry("g", "Green Onions", 5, "each"),
			pantry("t", "Tomatoes", 4, "each"),
			pantry("e", "Eggs", 6, "each"),
		},
	)
	require.NoError(t, err)
	require.Equal(t, matcher.TierCategory, plans[0].MatchedPantryItems[0].MatchTier)
	require.Equal(t, matcher.TierFuzzy, plans[1].MatchedPantryItems[0].MatchTier)

	warnings := Warnings(plans)
	assert.Equal(t, []string{
		"matched Green Onions as a substitute for scallion; please verify",
		"matched Tomatoes as a substitute for tomatoe; please verify",
	}, warnings)
}
