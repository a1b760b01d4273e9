package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// BridgeClient talks to the cross-chain credit bridge over HTTP. The bridge
// settles collateral onto the target chain from funds held elsewhere.
type BridgeClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBridgeClient creates a bridge client against the configured endpoint.
func NewBridgeClient(baseURL string) *BridgeClient {
	return &BridgeClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type creditRequest struct {
	FromChain      string `json:"from_chain"`
	ToChain        string `json:"to_chain"`
	EvmAddress     string `json:"evm_address"`
	SolanaAddress  string `json:"solana_address,omitempty"`
	AmountUsdCents int64  `json:"amount_usd_cents"`
}

type creditResponse struct {
	OK                  bool   `json:"ok"`
	CreditedAmountCents int64  `json:"credited_amount_cents"`
	Error               string `json:"error,omitempty"`
}

type balanceResponse struct {
	OK              bool   `json:"ok"`
	BalanceUsdCents int64  `json:"balance_usd_cents"`
	Error           string `json:"error,omitempty"`
}

// CollateralUsdCents reads the user's settled collateral on one chain, so
// the BridgeClient also serves as the router's collateral source.
func (c *BridgeClient) CollateralUsdCents(ctx context.Context, chainName, evmAddress, solanaAddress string) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/balances", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build balance request: %w", err)
	}
	q := httpReq.URL.Query()
	q.Set("chain", chainName)
	q.Set("evm_address", evmAddress)
	if solanaAddress != "" {
		q.Set("solana_address", solanaAddress)
	}
	httpReq.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("bridge balance request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}

	var out balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}
	if !out.OK {
		return 0, fmt.Errorf("bridge balance read failed: %s", out.Error)
	}
	return out.BalanceUsdCents, nil
}

// Credit bridges collateral onto toChain and returns the credited amount.
func (c *BridgeClient) Credit(ctx context.Context, req CreditParams) (int64, error) {
	body, err := json.Marshal(creditRequest{
		FromChain:      req.FromChain,
		ToChain:        req.ToChain,
		EvmAddress:     req.EvmAddress,
		SolanaAddress:  req.SolanaAddress,
		AmountUsdCents: req.AmountUsdCents,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal credit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/credit", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build credit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("bridge credit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}

	var out creditResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode bridge response: %w", err)
	}
	if !out.OK {
		return 0, fmt.Errorf("bridge rejected credit: %s", out.Error)
	}

	return out.CreditedAmountCents, nil
}
