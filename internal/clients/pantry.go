package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mwhite7112/woodpantry-reconcile/internal/domain"
)

const defaultTimeout = 10 * time.Second

func newHTTP(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json")
}

type PantryClient struct {
	http *resty.Client
}

func NewPantryClient(baseURL string) *PantryClient {
	return &PantryClient{http: newHTTP(baseURL)}
}

// GetPantry fetches the current stock. Items missing an id or name are
// rejected here so the rest of the service can rely on them.
func (c *PantryClient) GetPantry(ctx context.Context) ([]domain.PantryItem, error) {
	var items []domain.PantryItem
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&items).
		Get("/pantry")
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("pantry service returned %d", resp.StatusCode())
	}

	for i, it := range items {
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("validate pantry item %d: %w", i, err)
		}
	}
	return items, nil
}

type consumeRequest struct {
	RecipeID string               `json:"recipe_id"`
	Items    []domain.PantryDelta `json:"items"`
}

// ApplyConsumption asks the pantry service to deduct deltas in one
// transaction on its side.
func (c *PantryClient) ApplyConsumption(ctx context.Context, recipeID string, deltas []domain.PantryDelta) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(consumeRequest{RecipeID: recipeID, Items: deltas}).
		Post("/pantry/consume")
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent:
		return nil
	}
	return fmt.Errorf("pantry service returned %d", resp.StatusCode())
}
