// Package history supplies metric histories for symbols.
//
// A provider returns a nil frame when it has no data for a symbol; callers
// treat that the same as an empty frame.
package history

import (
	"context"
	"time"

	"github.com/rewired-gh/alertbell/internal/models"
)

// Provider fetches the full history of one metric for a symbol.
type Provider interface {
	History(ctx context.Context, symbol models.Symbol) (*models.Frame, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, symbol models.Symbol) (*models.Frame, error)

func (f Func) History(ctx context.Context, symbol models.Symbol) (*models.Frame, error) {
	return f(ctx, symbol)
}

// Static serves fixed frames keyed by symbol name. Unknown symbols have no data.
type Static map[string]*models.Frame

func (s Static) History(_ context.Context, symbol models.Symbol) (*models.Frame, error) {
	return s[symbol.Name()], nil
}

// WithTimeout bounds every History call of p by d. A non-positive d returns p.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return Func(func(ctx context.Context, symbol models.Symbol) (*models.Frame, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return p.History(ctx, symbol)
	})
}
