package ports

import (
	"context"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

// Notifier publica alertas hacia fuera (webhook, consola).
type Notifier interface {
	// Notify es fire-and-forget: no bloquea el loop y sus fallos se ignoran.
	Notify(ctx context.Context, alert domain.Alert)
}
