package ports

import (
	"context"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

// Chain construye, estima fees, firma y envía transacciones con la cuenta propia.
type Chain interface {
	// Account devuelve el script hash de la cuenta firmante.
	Account() domain.ScriptHash

	// Build arma la tx con expiración nueva y fija ambas fees. Si alguna de las dos
	// sondas no termina en HALT devuelve un error envuelto en domain.ErrFeeEstimation.
	Build(ctx context.Context, call domain.ContractCall) (*domain.Transaction, error)

	// Send firma y envía. Devuelve el hash asignado por la red. Nunca reintenta.
	Send(ctx context.Context, tx *domain.Transaction) (string, error)
}
