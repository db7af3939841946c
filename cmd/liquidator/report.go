package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/liquidator/internal/adapters/notify"
	"github.com/alejandrodnm/liquidator/internal/adapters/storage"
)

// runReport imprime los intentos y ciclos del journal en la ventana indicada.
func runReport(dsn string, window time.Duration) error {
	store, err := storage.NewSQLiteStorage(dsn)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	to := time.Now()
	from := to.Add(-window)

	attempts, err := store.GetAttempts(ctx, from, to)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	cycles, err := store.GetCycles(ctx, from, to)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	notify.NewConsole().PrintReport(notify.ReportInput{
		From:     from,
		To:       to,
		Attempts: attempts,
		Cycles:   cycles,
	})
	return nil
}
