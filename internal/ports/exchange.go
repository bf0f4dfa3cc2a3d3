package ports

import (
	"context"

	"signalTrackerBot/internal/domain"
)

// Exchange exposes the read-only exchange calls the scheduler needs. Each
// call authenticates with the follower's own credentials; transport and
// signing details live in the adapter.
type Exchange interface {
	// AccountBalance returns the available balance for the given asset.
	AccountBalance(ctx context.Context, creds domain.Credentials, asset string) (float64, error)
	// PositionPNL returns the unrealized profit of the open position on symbol.
	PositionPNL(ctx context.Context, creds domain.Credentials, symbol string) (float64, error)
}
