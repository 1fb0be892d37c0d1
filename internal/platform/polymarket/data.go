package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// DataClient queries the Polymarket Data API for on-chain holdings.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new Data API client.
//
// baseURL is the Data API root, e.g. "https://data-api.polymarket.com".
func NewDataClient(baseURL string) *DataClient {
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type dataPosition struct {
	Asset string  `json:"asset"`
	Size  float64 `json:"size"`
}

// GetBalance returns the wallet's current holding of an outcome token. A
// wallet with no position in the token yields zero, not an error.
func (c *DataClient) GetBalance(ctx context.Context, wallet, tokenID string) (float64, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("asset", tokenID)

	body, err := doGet(ctx, c.httpClient, c.baseURL+"/positions?"+params.Encode())
	if err != nil {
		return 0, fmt.Errorf("polymarket/data: positions %s/%s: %w", wallet, tokenID, err)
	}

	var positions []dataPosition
	if err := json.Unmarshal(body, &positions); err != nil {
		return 0, fmt.Errorf("polymarket/data: decode positions %s/%s: %w", wallet, tokenID, err)
	}

	for _, p := range positions {
		if p.Asset == tokenID {
			return p.Size, nil
		}
	}
	return 0, nil
}

var _ domain.PositionSource = (*DataClient)(nil)
