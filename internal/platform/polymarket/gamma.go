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

// GammaClient queries the Gamma metadata API for market lifecycle state.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type gammaMarket struct {
	ID       string `json:"id"`
	Closed   bool   `json:"closed"`
	Archived bool   `json:"archived"`
	Active   bool   `json:"active"`
	// UMA resolution status is populated once the oracle settles.
	UmaResolutionStatus string `json:"umaResolutionStatus"`
}

// GetStatus returns the lifecycle status of a market. Resolved takes
// precedence over closed because a resolved market has a settlement price
// and positions in it can no longer be sold.
func (c *GammaClient) GetStatus(ctx context.Context, marketID string) (domain.MarketStatus, error) {
	params := url.Values{}
	params.Set("id", marketID)

	body, err := doGet(ctx, c.httpClient, c.baseURL+"/markets?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("polymarket/gamma: get market %s: %w", marketID, err)
	}

	var markets []gammaMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return "", fmt.Errorf("polymarket/gamma: decode market %s: %w", marketID, err)
	}
	if len(markets) == 0 {
		return "", fmt.Errorf("polymarket/gamma: market %s: %w", marketID, domain.ErrNotFound)
	}

	m := markets[0]
	switch {
	case m.UmaResolutionStatus == "resolved" || m.Archived:
		return domain.MarketStatusResolved, nil
	case m.Closed || !m.Active:
		return domain.MarketStatusClosed, nil
	default:
		return domain.MarketStatusActive, nil
	}
}

var _ domain.MarketStatusSource = (*GammaClient)(nil)
