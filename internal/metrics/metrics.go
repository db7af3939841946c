// Package metrics provides Prometheus instrumentation for the liquidator.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts control loop cycles by outcome (ok, error).
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquidator_cycles_total",
		Help: "Total control loop cycles",
	}, []string{"outcome"})

	// CycleDuration tracks how long a full cycle takes, sleep excluded.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liquidator_cycle_duration_seconds",
		Help:    "Control loop cycle duration in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// VaultsEvaluated counts vault evaluations by result (eligible, healthy, below_threshold, no_collateral).
	VaultsEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquidator_vaults_evaluated_total",
		Help: "Vaults evaluated by the decision engine",
	}, []string{"result"})

	// MalformedPages counts vault pages discarded as malformed.
	MalformedPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liquidator_malformed_pages_total",
		Help: "Vault pages discarded because the ledger returned malformed data",
	})

	// Attempts counts actions by kind (liquidate, swap, exit) and outcome.
	Attempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liquidator_attempts_total",
		Help: "Submitted actions by kind and outcome",
	}, []string{"kind", "outcome"})

	// ConfirmationLatency tracks time from submission to confirmation event.
	ConfirmationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liquidator_confirmation_latency_seconds",
		Help:    "Time between submission and the matching chain event",
		Buckets: []float64{1, 5, 10, 15, 20, 30, 45, 60},
	}, []string{"kind"})

	// WalletBalance tracks the liquidator's balances in human units.
	WalletBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "liquidator_wallet_balance",
		Help: "Liquidator wallet balance in token units",
	}, []string{"symbol"})

	// LastCycleTimestamp is the unix time of the last completed cycle.
	LastCycleTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liquidator_last_cycle_timestamp_seconds",
		Help: "Unix time of the last completed cycle",
	})
)

var lastCycle atomic.Int64

// MarkCycle records a completed cycle.
func MarkCycle(at time.Time, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	CyclesTotal.WithLabelValues(outcome).Inc()
	CycleDuration.Observe(d.Seconds())
	LastCycleTimestamp.Set(float64(at.Unix()))
	lastCycle.Store(at.Unix())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Router serves /metrics and /healthz. The health check fails when no cycle
// completed within staleAfter.
func Router(staleAfter time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status, code := health(time.Now(), staleAfter)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
	r.Handle("/metrics", Handler())
	return r
}

type healthStatus struct {
	Status    string `json:"status"`
	LastCycle int64  `json:"last_cycle,omitempty"`
}

func health(now time.Time, staleAfter time.Duration) (healthStatus, int) {
	last := lastCycle.Load()
	if last == 0 {
		return healthStatus{Status: "starting"}, http.StatusOK
	}
	if staleAfter > 0 && now.Sub(time.Unix(last, 0)) > staleAfter {
		return healthStatus{Status: "stale", LastCycle: last}, http.StatusServiceUnavailable
	}
	return healthStatus{Status: "ok", LastCycle: last}, http.StatusOK
}
