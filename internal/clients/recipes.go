package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/mwhite7112/woodpantry-reconcile/internal/domain"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ingredient"
)

// RecipeIngredient is a structured ingredient row, used by recipes that were
// imported without their original text.
type RecipeIngredient struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	IsOptional bool    `json:"is_optional"`
}

type Recipe struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	IngredientLines []string           `json:"ingredient_lines"`
	Ingredients     []RecipeIngredient `json:"ingredients"`
}

// Lines returns the recipe's ingredient text. Structured rows are rendered
// as "2 cup flour" when no text is stored; optional rows are left out.
func (r Recipe) Lines() []string {
	if len(r.IngredientLines) > 0 {
		return r.IngredientLines
	}
	lines := make([]string, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if ing.IsOptional {
			continue
		}
		parts := make([]string, 0, 3)
		if ing.Quantity > 0 {
			parts = append(parts, ingredient.FormatAmount(ing.Quantity))
		}
		if ing.Unit != "" {
			parts = append(parts, ing.Unit)
		}
		parts = append(parts, ing.Name)
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines
}

type RecipeClient struct {
	http *resty.Client
}

func NewRecipeClient(baseURL string) *RecipeClient {
	return &RecipeClient{http: newHTTP(baseURL)}
}

func (c *RecipeClient) GetRecipe(ctx context.Context, id string) (*Recipe, error) {
	var recipe Recipe
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&recipe).
		Get("/recipes/" + url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("recipe %s: %w", id, domain.ErrRecipeNotFound)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("recipe service returned %d", resp.StatusCode())
	}
	return &recipe, nil
}
