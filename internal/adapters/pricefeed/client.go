package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	ratePerSec    = 2
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client lee el payload de precios firmado del feed off-chain.
type Client struct {
	http    *http.Client
	url     string
	limiter *rate.Limiter
}

// NewClient crea un Client contra la URL del feed.
func NewClient(url string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		url:     url,
		limiter: rate.NewLimiter(ratePerSec, 2),
	}
}

// signedResponse es el JSON devuelto por el feed.
type signedResponse struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Data      struct {
		Decimals *int32                     `json:"decimals"`
		Prices   map[string]decimal.Decimal `json:"prices"`
	} `json:"data"`
}

// FetchSigned implementa ports.PriceFeed. Cualquier fallo se envuelve en domain.ErrPriceFeed.
func (c *Client) FetchSigned(ctx context.Context) (domain.SignedPriceFeed, error) {
	var resp signedResponse
	if err := c.get(ctx, &resp); err != nil {
		return domain.SignedPriceFeed{}, fmt.Errorf("pricefeed.FetchSigned: %w: %w", domain.ErrPriceFeed, err)
	}
	if resp.Payload == "" || resp.Signature == "" {
		return domain.SignedPriceFeed{}, fmt.Errorf("pricefeed.FetchSigned: missing payload or signature: %w", domain.ErrPriceFeed)
	}
	if resp.Data.Decimals == nil || *resp.Data.Decimals < 0 {
		return domain.SignedPriceFeed{}, fmt.Errorf("pricefeed.FetchSigned: missing decimals: %w", domain.ErrPriceFeed)
	}
	if len(resp.Data.Prices) == 0 {
		return domain.SignedPriceFeed{}, fmt.Errorf("pricefeed.FetchSigned: empty price map: %w", domain.ErrPriceFeed)
	}
	return domain.SignedPriceFeed{
		Payload:   resp.Payload,
		Signature: resp.Signature,
		Decimals:  *resp.Data.Decimals,
		Prices:    resp.Data.Prices,
	}, nil
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("price feed unavailable, retrying", "status", resp.StatusCode, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
