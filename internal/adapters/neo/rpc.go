package neo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

const (
	defaultRatePerSec = 20
	maxRetries        = 3
	baseRetryWait     = 500 * time.Millisecond
)

// RPC is the JSON-RPC 2.0 transport to a NEO N3 node with rate limiting.
// Read calls are retried with exponential backoff; SendRaw never is.
type RPC struct {
	client  *rpc.Client
	limiter *rate.Limiter
}

// DialRPC connects to the node's HTTP JSON-RPC endpoint.
func DialRPC(ctx context.Context, url string, ratePerSec float64) (*RPC, error) {
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	client, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(&http.Client{Timeout: 15 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("neo.DialRPC: %s: %w", url, err)
	}
	return &RPC{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), int(math.Max(1, ratePerSec/2))),
	}, nil
}

// Close releases the underlying connection.
func (r *RPC) Close() {
	r.client.Close()
}

// call runs an idempotent method with retries.
func (r *RPC) call(ctx context.Context, out any, method string, params ...any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		err := r.client.CallContext(ctx, out, method, params...)
		if err == nil {
			return nil
		}
		lastErr = err

		// Un error JSON-RPC es una respuesta definitiva del nodo: no se reintenta.
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) || ctx.Err() != nil {
			break
		}
		if attempt < maxRetries {
			slog.Debug("neo rpc retry", "method", method, "attempt", attempt+1, "err", err)
			r.sleep(ctx, attempt)
		}
	}
	return fmt.Errorf("%s: %w", method, lastErr)
}

// callOnce runs a non-idempotent method exactly once.
func (r *RPC) callOnce(ctx context.Context, out any, method string, params ...any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if err := r.client.CallContext(ctx, out, method, params...); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// sleep waits with exponential backoff, honoring the context.
func (r *RPC) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
