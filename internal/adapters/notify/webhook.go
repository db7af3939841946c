package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"golang.org/x/time/rate"
)

// Webhook publica alertas como {"content": "..."} en una URL (Discord y compatibles).
// El envío es asíncrono: Notify nunca bloquea el loop y los errores solo se registran.
type Webhook struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	wg      sync.WaitGroup
}

// NewWebhook crea el notificador. Limita a 1 mensaje/s con ráfagas de 5.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:     url,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(1, 5),
	}
}

func (w *Webhook) Notify(ctx context.Context, alert domain.Alert) {
	msg := alert.Message()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// Desacoplado del ctx del ciclo: una alerta ya emitida se entrega aunque el ciclo termine.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := w.post(sendCtx, msg); err != nil {
			slog.Debug("webhook delivery failed", "kind", alert.Kind, "err", err)
		}
	}()
}

// Flush espera a que terminen los envíos en curso.
func (w *Webhook) Flush() {
	w.wg.Wait()
}

func (w *Webhook) post(ctx context.Context, msg string) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	body, err := json.Marshal(map[string]string{"content": msg})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
