package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
)

// Journal persiste el historial de intentos y ciclos para auditoría.
type Journal interface {
	// SaveAttempt inserta o actualiza un intento por ID.
	SaveAttempt(ctx context.Context, attempt domain.Attempt) error

	// SaveCycle registra el resumen de un ciclo.
	SaveCycle(ctx context.Context, cycle domain.CycleSummary) error

	// GetAttempts devuelve los intentos creados en el rango, más recientes primero.
	GetAttempts(ctx context.Context, from, to time.Time) ([]domain.Attempt, error)

	// GetCycles devuelve los ciclos iniciados en el rango, más recientes primero.
	GetCycles(ctx context.Context, from, to time.Time) ([]domain.CycleSummary, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
