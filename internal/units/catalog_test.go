package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLookup(t *testing.T) {
	c := Default()

	tests := []struct {
		token     string
		wantName  string
		wantDim   Dimension
		wantFound bool
	}{
		{"cup", "cup", Volume, true},
		{"Cups", "cup", Volume, true},
		{"tbsp.", "tablespoon", Volume, true},
		{"Tablespoons", "tablespoon", Volume, true},
		{"tsp", "teaspoon", Volume, true},
		{"fl oz", "fluid ounce", Volume, true},
		{"L", "liter", Volume, true},
		{"ml", "milliliter", Volume, true},
		{"g", "gram", Weight, true},
		{"grams", "gram", Weight, true},
		{"lbs", "pound", Weight, true},
		{"ounces", "ounce", Weight, true},
		{"kg", "kilogram", Weight, true},
		{"each", "each", Count, true},
		{"pieces", "each", Count, true},
		{"dozen", "dozen", Count, true},
		{"onion", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			u, ok := c.Lookup(tt.token)
			require.Equal(t, tt.wantFound, ok)
			if !tt.wantFound {
				return
			}
			assert.Equal(t, tt.wantName, u.Name)
			assert.Equal(t, tt.wantDim, u.Dimension)
		})
	}
}

func TestResolveEmptyMeansEach(t *testing.T) {
	c := Default()

	u, err := c.Resolve("  ")
	require.NoError(t, err)
	assert.Same(t, c.Each(), u)

	_, err = c.Resolve("bag")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestEveryUnitHasOneDimension(t *testing.T) {
	for _, u := range Default().Units() {
		assert.True(t, u.Dimension.valid(), u.Name)
		assert.Greater(t, u.ToBase, 0.0, u.Name)
	}
}

func TestBaseAmountRoundTrip(t *testing.T) {
	c := Default()
	cup, _ := c.Lookup("cup")
	assert.InDelta(t, 473.176473, cup.ToBaseAmount(2), 1e-6)
	assert.InDelta(t, 2.0, cup.FromBaseAmount(cup.ToBaseAmount(2)), 1e-9)
}

func TestParseRejectsBadData(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{`},
		{"unknown dimension", `{"units":[{"name":"each","dimension":"count","to_base":1},{"name":"foo","dimension":"length","to_base":1}]}`},
		{"zero factor", `{"units":[{"name":"each","dimension":"count","to_base":1},{"name":"cup","dimension":"volume","to_base":0}]}`},
		{"duplicate alias", `{"units":[{"name":"each","dimension":"count","to_base":1,"aliases":["ea"]},{"name":"eaux","dimension":"count","to_base":2,"aliases":["EA"]}]}`},
		{"no count base", `{"units":[{"name":"cup","dimension":"volume","to_base":236}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
