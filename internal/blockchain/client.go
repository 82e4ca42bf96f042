// Package blockchain talks to the ledger bridge service. Every call
// degrades to a mock result when the bridge is unreachable so that core
// flows never block on the chain.
package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/playguard/playguard/internal/errors"
	"github.com/playguard/playguard/pkg/config"
)

// Client is an HTTP client for the blockchain bridge, guarded by a
// circuit breaker.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *apperrors.CircuitBreaker
	log     *slog.Logger
}

// NewClient constructs a bridge client from configuration.
func NewClient(cfg config.BlockchainConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: apperrors.NewCircuitBreaker("blockchain_bridge"),
		log:     log,
	}
}

// VerifyResult is the outcome of an identity verification call.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Wallet   string `json:"wallet_address"`
	Mock     bool   `json:"mock"`
}

// BalanceResult is the outcome of a balance query.
type BalanceResult struct {
	Balance float64 `json:"balance"`
	Wallet  string  `json:"wallet_address"`
	Mock    bool    `json:"mock"`
}

// TransactionData is the payload mirrored to the chain for a ledger entry.
type TransactionData struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
}

// TxResult is the outcome of mirroring a transaction.
type TxResult struct {
	TxHash  string `json:"tx_hash"`
	OnChain bool   `json:"on_chain"`
	Mock    bool   `json:"mock"`
}

// VerifyIdentity asks the bridge whether the wallet belongs to a verified
// identity. On bridge failure the result is mocked as verified so that
// registration is never blocked by an outage.
func (c *Client) VerifyIdentity(ctx context.Context, wallet string) VerifyResult {
	var result VerifyResult
	err := c.call(ctx, http.MethodPost, "/verify", map[string]string{"wallet_address": wallet}, &result)
	if err != nil {
		c.log.Warn("bridge verify unavailable, using mock response",
			slog.String("wallet_address", wallet),
			slog.Any("error", err),
		)
		return VerifyResult{Verified: true, Wallet: wallet, Mock: true}
	}

	result.Wallet = wallet
	return result
}

// GetBalance fetches the wallet balance from the bridge. On failure a
// zero balance is returned with the mock flag set.
func (c *Client) GetBalance(ctx context.Context, wallet string) BalanceResult {
	var result BalanceResult
	err := c.call(ctx, http.MethodGet, "/balance/"+wallet, nil, &result)
	if err != nil {
		c.log.Warn("bridge balance unavailable, using mock response",
			slog.String("wallet_address", wallet),
			slog.Any("error", err),
		)
		return BalanceResult{Balance: 0, Wallet: wallet, Mock: true}
	}

	result.Wallet = wallet
	return result
}

// LogTransaction mirrors a ledger entry to the chain. On failure a mock
// hash is returned and the entry stays local-only.
func (c *Client) LogTransaction(ctx context.Context, data TransactionData) TxResult {
	var result TxResult
	err := c.call(ctx, http.MethodPost, "/transactions", data, &result)
	if err != nil {
		c.log.Warn("bridge transaction logging unavailable, using mock response",
			slog.String("transaction_id", data.TransactionID),
			slog.Any("error", err),
		)
		return TxResult{
			TxHash: "mock-" + uuid.NewString(),
			Mock:   true,
		}
	}

	result.OnChain = true
	return result
}

// Healthy reports whether the breaker currently admits calls.
func (c *Client) Healthy() bool {
	return c.breaker.State() != apperrors.StateOpen
}

// call runs one bridge request behind the breaker, retrying transient
// failures with backoff before the caller degrades to a mock result.
func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	return c.breaker.Call(func() error {
		return apperrors.WithRetry(ctx, func() error {
			return c.request(ctx, method, path, payload, out)
		})
	})
}

func (c *Client) request(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal bridge payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build bridge request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewExternalAPIError("blockchain_bridge", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewExternalAPIError(
			"blockchain_bridge",
			fmt.Errorf("unexpected status %d for %s %s", resp.StatusCode, method, path),
		)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode bridge response: %w", err)
		}
	}

	return nil
}
