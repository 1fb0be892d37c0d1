package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/skudskud/polycool-copy-sub000/internal/domain"
)

// RelayerClient places gasless market sells through the relayed execution
// service that custodies order signing on behalf of proxy wallets. The
// monitor never holds keys; the relayer authenticates the wallet server-side.
type RelayerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRelayerClient creates a new relayed-execution client.
func NewRelayerClient(baseURL, apiKey string) *RelayerClient {
	return &RelayerClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			// Sells wait for settlement, so this client tolerates slower
			// responses than the read-only ones.
			Timeout: 60 * time.Second,
		},
	}
}

type sellRequest struct {
	Wallet   string `json:"wallet"`
	TokenID  string `json:"token_id"`
	Quantity string `json:"quantity"`
	Side     string `json:"side"`
	Type     string `json:"type"`
}

type sellResponse struct {
	Success         bool   `json:"success"`
	AvgPrice        string `json:"avg_price"`
	TransactionHash string `json:"transaction_hash"`
	Error           string `json:"error"`
}

// Sell places a market sell for the given quantity of an outcome token and
// returns the realized fill. A fill price of zero means the venue did not
// report one.
func (c *RelayerClient) Sell(ctx context.Context, wallet, tokenID string, quantity float64) (domain.Fill, error) {
	reqBody := sellRequest{
		Wallet:   wallet,
		TokenID:  tokenID,
		Quantity: strconv.FormatFloat(quantity, 'f', -1, 64),
		Side:     "sell",
		Type:     "market",
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket/relayer: encode sell %s: %w", tokenID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders/market", bytes.NewReader(payload))
	if err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket/relayer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket/relayer: sell %s: %w", tokenID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket/relayer: read sell response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.Fill{}, domain.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Fill{}, fmt.Errorf("polymarket/relayer: sell %s: status %d: %s", tokenID, resp.StatusCode, truncate(body, 256))
	}

	var sr sellResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return domain.Fill{}, fmt.Errorf("polymarket/relayer: decode sell response: %w", err)
	}
	if !sr.Success {
		return domain.Fill{}, fmt.Errorf("polymarket/relayer: sell %s rejected: %s", tokenID, sr.Error)
	}

	fill := domain.Fill{SettlementRef: sr.TransactionHash}
	if sr.AvgPrice != "" {
		price, err := strconv.ParseFloat(sr.AvgPrice, 64)
		if err != nil {
			return domain.Fill{}, fmt.Errorf("polymarket/relayer: parse avg_price %q: %w", sr.AvgPrice, err)
		}
		fill.Price = price
	}
	return fill, nil
}

var _ domain.LiquidationExecutor = (*RelayerClient)(nil)
