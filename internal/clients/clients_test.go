package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhite7112/woodpantry-reconcile/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body) //nolint:errcheck
}

func TestGetPantry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pantry", r.URL.Path)
		writeJSON(w, http.StatusOK, `[
			{"id":"1","name":"All-Purpose Flour","quantity":500,"unit":"g","category":"Baking"},
			{"id":"2","name":"Eggs","quantity":6,"unit":"each","expires_at":"2026-11-01T00:00:00Z"}
		]`)
	}))
	defer srv.Close()

	items, err := NewPantryClient(srv.URL).GetPantry(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "All-Purpose Flour", items[0].Name)
	assert.Equal(t, 500.0, items[0].QuantityAmount)
	assert.Equal(t, "g", items[0].QuantityUnit)
	require.NotNil(t, items[1].ExpiresAt)
	assert.Equal(t, 2026, items[1].ExpiresAt.Year())
}

func TestGetPantryRejectsInvalidItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"1","quantity":5,"unit":"g"}]`)
	}))
	defer srv.Close()

	_, err := NewPantryClient(srv.URL).GetPantry(context.Background())
	assert.ErrorContains(t, err, "validate pantry item 0")
}

func TestGetPantryUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"error":"boom"}`)
	}))
	defer srv.Close()

	_, err := NewPantryClient(srv.URL).GetPantry(context.Background())
	assert.ErrorContains(t, err, "pantry service returned 500")
}

func TestApplyConsumption(t *testing.T) {
	var got consumeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pantry/consume", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewPantryClient(srv.URL).ApplyConsumption(context.Background(), "r1", []domain.PantryDelta{
		{ItemID: "1", Name: "Flour", Unit: "g", Consumed: 250.78, Remaining: 249.22},
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RecipeID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 250.78, got.Items[0].Consumed)
}

func TestGetRecipe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/recipes/pancakes":
			writeJSON(w, http.StatusOK, `{"id":"pancakes","title":"Pancakes","ingredient_lines":["2 cups flour","2 eggs"]}`)
		case "/recipes/structured":
			writeJSON(w, http.StatusOK, `{"id":"structured","title":"Omelette","ingredients":[
				{"name":"eggs","quantity":3,"unit":""},
				{"name":"milk","quantity":0.25,"unit":"cup"},
				{"name":"chives","quantity":1,"unit":"tbsp","is_optional":true}
			]}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
		}
	}))
	defer srv.Close()

	c := NewRecipeClient(srv.URL)

	recipe, err := c.GetRecipe(context.Background(), "pancakes")
	require.NoError(t, err)
	assert.Equal(t, "Pancakes", recipe.Title)
	assert.Equal(t, []string{"2 cups flour", "2 eggs"}, recipe.Lines())

	recipe, err = c.GetRecipe(context.Background(), "structured")
	require.NoError(t, err)
	assert.Equal(t, []string{"3 eggs", "0.25 cup milk"}, recipe.Lines())

	_, err = c.GetRecipe(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestGetDensities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ingredients/densities", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"version":9,"ingredients":[{"key":"flour","grams_per_ml":0.6}]}`)
	}))
	defer srv.Close()

	table, err := NewDictionaryClient(srv.URL).GetDensities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, table.Version())
	e, ok := table.Lookup("bread flour")
	require.True(t, ok)
	d, _ := e.Density()
	assert.Equal(t, 0.6, d)
}

func TestGetDensitiesRejectsBadTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"version":9,"ingredients":[{"key":"flour"}]}`)
	}))
	defer srv.Close()

	_, err := NewDictionaryClient(srv.URL).GetDensities(context.Background())
	assert.ErrorContains(t, err, "parse densities")
}
