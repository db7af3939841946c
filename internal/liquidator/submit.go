package liquidator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
)

// Submitter envía transacciones ya construidas. En dry run nunca toca la red.
type Submitter struct {
	chain  ports.Chain
	dryRun bool
}

// NewSubmitter crea un Submitter.
func NewSubmitter(chain ports.Chain, dryRun bool) *Submitter {
	return &Submitter{chain: chain, dryRun: dryRun}
}

// Submit envía la tx y devuelve su hash. En dry run devuelve "" sin error.
// Un fallo se devuelve envuelto en domain.ErrSubmission y nunca se reintenta.
func (s *Submitter) Submit(ctx context.Context, tx *domain.Transaction, description string) (string, error) {
	if s.dryRun {
		slog.Info("not submitting transaction since dry run",
			"action", description,
			"network_fee", tx.NetworkFee,
			"system_fee", tx.SystemFee,
		)
		return "", nil
	}

	slog.Info("submitting transaction", "action", description,
		"network_fee", tx.NetworkFee, "system_fee", tx.SystemFee)
	txID, err := s.chain.Send(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("liquidator.Submit: %s: %w: %w", description, domain.ErrSubmission, err)
	}
	slog.Info("transaction submitted", "action", description, "tx", txID)
	return txID, nil
}
