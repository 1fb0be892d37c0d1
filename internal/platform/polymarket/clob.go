// Package polymarket provides thin REST clients for the external Polymarket
// services this monitor consumes: the CLOB price endpoint, the Gamma
// metadata API, the Data API for on-chain positions, and the relayed
// execution service used to place liquidating sells.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB price endpoint. It
// is rate-limited upstream, which is why the cascade only consults it as
// the last tier.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchPrice returns the current best-bid price for an outcome token. The
// sell side is queried because the monitor values what the holder could
// liquidate at.
func (c *ClobClient) FetchPrice(ctx context.Context, tokenID string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", "sell")

	body, err := doGet(ctx, c.httpClient, c.baseURL+"/price?"+params.Encode())
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: fetch price %s: %w", tokenID, err)
	}

	var resp struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode price %s: %w", tokenID, err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: parse price %q for %s: %w", resp.Price, tokenID, err)
	}
	return price, nil
}

// doGet issues a GET request and returns the raw response body, mapping
// non-2xx statuses to errors.
func doGet(ctx context.Context, client *http.Client, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ domain.MarketDataSource = (*ClobClient)(nil)
