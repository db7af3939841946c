package notify

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
)

// Multi reparte cada alerta entre varios notificadores.
type Multi []ports.Notifier

func (m Multi) Notify(ctx context.Context, alert domain.Alert) {
	for _, n := range m {
		n.Notify(ctx, alert)
	}
}

// Log registra las alertas con slog, con el nivel según su gravedad.
type Log struct{}

func (Log) Notify(ctx context.Context, alert domain.Alert) {
	level := slog.LevelInfo
	switch alert.Kind {
	case domain.AlertLowBalance,
		domain.AlertLiquidateUnconfirmed, domain.AlertSwapUnconfirmed, domain.AlertExitUnconfirmed:
		level = slog.LevelWarn
	case domain.AlertLiquidateFailure, domain.AlertSwapFailure, domain.AlertExitFailure:
		level = slog.LevelError
	}
	slog.Log(ctx, level, "alert", "kind", string(alert.Kind), "message", alert.Message(), "tx", alert.TxID)
}
