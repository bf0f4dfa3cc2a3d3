// Package binanceclient implements ports.Exchange against Binance USD-M
// futures. Credentials are supplied per call because each follower account
// carries its own API keys.
package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"signalTrackerBot/internal/domain"
	"signalTrackerBot/internal/ports"
)

const (
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client implements the ports.Exchange interface using the go-binance library.
type Client struct {
	baseURL string
	logger  ports.Logger
}

// Config holds configuration for the Binance exchange adapter.
type Config struct {
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance exchange adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	baseURL := baseURLProduction
	if cfg.UseTestnet {
		baseURL = baseURLTestnet
	}
	cfg.Logger.Info(context.Background(), "Binance exchange adapter configured", map[string]interface{}{"baseURL": baseURL})
	return &Client{baseURL: baseURL, logger: cfg.Logger}, nil
}

// futuresClient builds a per-call client bound to one follower's keys.
func (c *Client) futuresClient(creds domain.Credentials) *futures.Client {
	client := futures.NewClient(creds.APIKey, creds.SecretKey)
	client.BaseURL = c.baseURL
	return client
}

// AccountBalance returns the wallet balance for one asset.
func (c *Client) AccountBalance(ctx context.Context, creds domain.Credentials, asset string) (float64, error) {
	balances, err := c.futuresClient(creds).NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "AccountBalance")
	}
	for _, b := range balances {
		if b.Asset != asset {
			continue
		}
		balance, err := strconv.ParseFloat(b.Balance, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse balance %q for asset %s: %w", b.Balance, asset, err)
		}
		return balance, nil
	}
	return 0, nil // Asset not held
}

// PositionPNL returns the summed unrealized profit across both sides of a
// symbol's position.
func (c *Client) PositionPNL(ctx context.Context, creds domain.Credentials, symbol string) (float64, error) {
	positions, err := c.futuresClient(creds).NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "PositionPNL")
	}

	var total float64
	for _, p := range positions {
		pnl, err := strconv.ParseFloat(p.UnRealizedProfit, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse unrealized profit %q for %s: %w", p.UnRealizedProfit, symbol, err)
		}
		total += pnl
	}
	return total, nil
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		c.logger.Warn(ctx, "Binance API error", map[string]interface{}{
			"operation": operation,
			"code":      apiErr.Code,
			"message":   apiErr.Message,
		})
		switch apiErr.Code {
		case -1022, -2014, -2015: // Bad signature / invalid API key or permissions
			return fmt.Errorf("%s: %s: %w", operation, apiErr.Message, ports.ErrAuthenticationFailed)
		default:
			return fmt.Errorf("%s: binance error %d: %s: %w", operation, apiErr.Code, apiErr.Message, ports.ErrExchangeUnavailable)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
