package ports

import (
	"context"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

// PriceFeed obtiene el payload de precios off-chain firmado.
type PriceFeed interface {
	FetchSigned(ctx context.Context) (domain.SignedPriceFeed, error)
}
