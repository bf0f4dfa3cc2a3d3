package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	minLeverage = 1.0
	maxLeverage = 50.0
)

// Config holds the exchange-side floors used by order validation.
type Config struct {
	MinNotional float64 // Minimum quantity*price value an order may carry
	MinQuantity float64 // Exchange precision floor for quantity
}

// Calculator derives leverage and order quantity for mirrored trades from a
// follower's risk settings. All methods are pure.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator with the given validation floors.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Leverage derives the leverage needed to carry quantity at entryPrice on
// fundAmount, clamped to [1, 50] and rounded to 2 decimals.
func (c *Calculator) Leverage(quantity, entryPrice, fundAmount float64) float64 {
	if quantity <= 0 || entryPrice <= 0 || fundAmount <= 0 {
		return minLeverage
	}
	lev := quantity * entryPrice / fundAmount
	lev = math.Max(minLeverage, math.Min(maxLeverage, lev))
	out, _ := decimal.NewFromFloat(lev).Round(2).Float64()
	return out
}

// Quantity sizes an order so that the loss at stopPrice equals
// fundAmount*riskPercent/100, rounded to 6 decimals. Fails closed: returns 0
// for any non-positive input or when entry and stop coincide, and the caller
// must treat 0 as "do not place order".
func (c *Calculator) Quantity(fundAmount, riskPercent, entryPrice, stopPrice float64) float64 {
	if fundAmount <= 0 || riskPercent <= 0 || entryPrice <= 0 || stopPrice <= 0 {
		return 0
	}
	dist := math.Abs(entryPrice - stopPrice)
	if dist == 0 {
		return 0
	}
	qty := fundAmount * riskPercent / 100 / dist
	out, _ := decimal.NewFromFloat(qty).Round(6).Float64()
	return out
}

// ValidateOrder rejects orders that cannot be placed on the exchange:
// non-positive quantity or price, notional below the minimum, or quantity
// under the precision floor.
func (c *Calculator) ValidateOrder(quantity, price float64) error {
	if quantity <= 0 {
		return fmt.Errorf("order quantity %f must be positive", quantity)
	}
	if price <= 0 {
		return fmt.Errorf("order price %f must be positive", price)
	}
	if notional := quantity * price; notional < c.cfg.MinNotional {
		return fmt.Errorf("order notional %.8f below minimum %.8f", notional, c.cfg.MinNotional)
	}
	if quantity < c.cfg.MinQuantity {
		return fmt.Errorf("order quantity %.8f below exchange floor %.8f", quantity, c.cfg.MinQuantity)
	}
	return nil
}
