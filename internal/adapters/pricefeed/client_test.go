package pricefeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alejandrodnm/liquidator/internal/adapters/pricefeed"
	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchSigned_OK(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, `{
		"payload": "AQID",
		"signature": "deadbeef",
		"data": {"decimals": 8, "prices": {"bNEO": "1234500000", "FLM": 5000000}}
	}`)

	feed, err := pricefeed.NewClient(srv.URL).FetchSigned(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AQID", feed.Payload)
	assert.Equal(t, "deadbeef", feed.Signature)
	assert.Equal(t, int32(8), feed.Decimals)
	assert.Equal(t, "1234500000", feed.Prices["bNEO"].String())
	assert.Equal(t, "5000000", feed.Prices["FLM"].String())
}

func TestFetchSigned_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `<html>`,
		"missing signature": `{"payload":"x","data":{"decimals":8,"prices":{"a":1}}}`,
		"missing decimals":  `{"payload":"x","signature":"y","data":{"prices":{"a":1}}}`,
		"empty prices":      `{"payload":"x","signature":"y","data":{"decimals":8,"prices":{}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := serve(t, http.StatusOK, body)
			_, err := pricefeed.NewClient(srv.URL).FetchSigned(context.Background())
			assert.ErrorIs(t, err, domain.ErrPriceFeed)
		})
	}
}

func TestFetchSigned_ClientErrorNotRetried(t *testing.T) {
	srv, hits := serve(t, http.StatusNotFound, "nope")
	_, err := pricefeed.NewClient(srv.URL).FetchSigned(context.Background())
	require.ErrorIs(t, err, domain.ErrPriceFeed)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchSigned_CancelledContext(t *testing.T) {
	srv, _ := serve(t, http.StatusServiceUnavailable, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pricefeed.NewClient(srv.URL).FetchSigned(ctx)
	assert.ErrorIs(t, err, domain.ErrPriceFeed)
}
