package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/mwhite7112/woodpantry-reconcile/internal/density"
)

// DictionaryClient reads reference data from the Ingredient Dictionary
// service.
type DictionaryClient struct {
	http *resty.Client
}

func NewDictionaryClient(baseURL string) *DictionaryClient {
	return &DictionaryClient{http: newHTTP(baseURL)}
}

// GetDensities fetches the density table. The response uses the same JSON
// layout as the density file.
func (c *DictionaryClient) GetDensities(ctx context.Context) (*density.Table, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/ingredients/densities")
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("dictionary service returned %d", resp.StatusCode())
	}

	table, err := density.Parse(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("parse densities: %w", err)
	}
	return table, nil
}
