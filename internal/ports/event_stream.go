package ports

import (
	"context"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

// EventStream registra listeners de notificaciones de contratos.
type EventStream interface {
	// Subscribe registra un listener para (contract, event). El listener queda activo
	// hasta que se llame a Close en la suscripción devuelta.
	Subscribe(ctx context.Context, contract domain.ScriptHash, event string) (Subscription, error)
}

// Subscription es un listener activo.
type Subscription interface {
	// Events entrega las notificaciones ya decodificadas.
	Events() <-chan domain.ChainEvent
	// Close desregistra el listener. Llamarla más de una vez no tiene efecto.
	Close() error
}
