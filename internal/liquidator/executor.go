package liquidator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/metrics"
	"github.com/alejandrodnm/liquidator/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// alertKinds son las cuatro alertas que emite una acción a lo largo de su vida.
type alertKinds struct {
	initiated, success, failure, unconfirmed domain.AlertKind
}

var (
	liquidateAlerts = alertKinds{domain.AlertLiquidateInitiated, domain.AlertLiquidateSuccess, domain.AlertLiquidateFailure, domain.AlertLiquidateUnconfirmed}
	swapAlerts      = alertKinds{domain.AlertSwapInitiated, domain.AlertSwapSuccess, domain.AlertSwapFailure, domain.AlertSwapUnconfirmed}
	exitAlerts      = alertKinds{domain.AlertExitInitiated, domain.AlertExitSuccess, domain.AlertExitFailure, domain.AlertExitUnconfirmed}
)

// action describe una escritura completa: qué se envía, qué evento la confirma
// y cómo se reporta.
type action struct {
	kind        domain.AttemptKind
	call        domain.ContractCall
	description string

	watch domain.ScriptHash // contrato que emite el evento de confirmación
	event string
	match Matcher

	alerts   alertKinds
	from, to string
	in       decimal.Decimal // unidades humanas

	// settle extrae las cantidades reales del evento que confirma la acción.
	settle func(domain.ChainEvent) (in, out decimal.Decimal)

	// campos extra para el journal
	account     string
	loanToValue decimal.Decimal
	price       decimal.Decimal
}

// Outcome es cómo terminó una acción.
type Outcome struct {
	State     domain.AttemptState
	TxID      string
	InAmount  decimal.Decimal
	OutAmount decimal.Decimal
}

// Sent indica si la acción salió (o habría salido, en dry run).
func (o Outcome) Sent() bool {
	return o.State != domain.AttemptFailed
}

// Executor ejecuta acciones de una en una: listener → build → submit → wait.
type Executor struct {
	chain     ports.Chain
	submitter *Submitter
	confirmer *Confirmer
	notifier  ports.Notifier
	journal   ports.Journal // opcional
	name      string
	dryRun    bool
}

// NewExecutor crea un Executor. journal puede ser nil.
func NewExecutor(chain ports.Chain, confirmer *Confirmer, notifier ports.Notifier, journal ports.Journal, name string, dryRun bool) *Executor {
	return &Executor{
		chain:     chain,
		submitter: NewSubmitter(chain, dryRun),
		confirmer: confirmer,
		notifier:  notifier,
		journal:   journal,
		name:      name,
		dryRun:    dryRun,
	}
}

// Execute lleva una acción hasta su estado final. El listener se registra antes
// del envío para no perder una confirmación rápida; el plazo empieza tras el envío.
// Devuelve error solo si la acción no llegó a salir.
func (e *Executor) Execute(ctx context.Context, a action) (Outcome, error) {
	attempt := domain.Attempt{
		ID:          uuid.NewString(),
		Kind:        a.kind,
		Account:     a.account,
		FromSymbol:  a.from,
		ToSymbol:    a.to,
		Quantity:    a.in,
		LoanToValue: a.loanToValue,
		Price:       a.price,
		CreatedAt:   time.Now(),
	}
	kind := strings.ToLower(string(a.kind))

	pending, err := e.confirmer.Listen(ctx, a.watch, a.event, a.match)
	if err != nil {
		return e.fail(ctx, a, attempt, fmt.Errorf("liquidator.Execute: %w: %w", domain.ErrSubmission, err))
	}

	tx, err := e.chain.Build(ctx, a.call)
	if err != nil {
		pending.Cancel()
		return e.fail(ctx, a, attempt, fmt.Errorf("liquidator.Execute: build %s: %w", a.description, err))
	}

	txID, err := e.submitter.Submit(ctx, tx, a.description)
	if err != nil {
		pending.Cancel()
		return e.fail(ctx, a, attempt, err)
	}

	e.alert(ctx, a, a.alerts.initiated, a.in, decimal.Zero, txID)

	if e.dryRun {
		pending.Cancel()
		attempt.State = domain.AttemptDryRun
		e.record(ctx, attempt)
		metrics.Attempts.WithLabelValues(kind, "dry_run").Inc()
		return Outcome{State: domain.AttemptDryRun, InAmount: a.in}, nil
	}

	attempt.TxID = txID
	attempt.State = domain.AttemptSubmitted
	e.record(ctx, attempt)

	conf := pending.Wait(ctx)
	now := time.Now()
	attempt.ResolvedAt = &now

	switch conf.State {
	case Confirmed:
		in, out := a.in, decimal.Zero
		if a.settle != nil {
			in, out = a.settle(conf.Event)
		}
		slog.Info("action confirmed",
			"action", a.description,
			"tx", txID,
			"in", in.String(),
			"out", out.String(),
			"latency", conf.Latency.Round(time.Millisecond),
		)
		e.alert(ctx, a, a.alerts.success, in, out, txID)
		attempt.State = domain.AttemptConfirmed
		e.record(ctx, attempt)
		metrics.Attempts.WithLabelValues(kind, "confirmed").Inc()
		metrics.ConfirmationLatency.WithLabelValues(kind).Observe(conf.Latency.Seconds())
		return Outcome{State: domain.AttemptConfirmed, TxID: txID, InAmount: in, OutAmount: out}, nil

	default:
		slog.Warn("action unconfirmed, it may still have succeeded",
			"action", a.description, "tx", txID, "state", conf.State)
		e.alert(ctx, a, a.alerts.unconfirmed, a.in, decimal.Zero, txID)
		attempt.State = domain.AttemptUnconfirmed
		e.record(ctx, attempt)
		metrics.Attempts.WithLabelValues(kind, "unconfirmed").Inc()
		return Outcome{State: domain.AttemptUnconfirmed, TxID: txID, InAmount: a.in}, nil
	}
}

func (e *Executor) fail(ctx context.Context, a action, attempt domain.Attempt, err error) (Outcome, error) {
	slog.Error("funds have not been sent", "action", a.description, "err", err)
	e.alert(ctx, a, a.alerts.failure, a.in, decimal.Zero, "")

	now := time.Now()
	attempt.State = domain.AttemptFailed
	attempt.Error = err.Error()
	attempt.ResolvedAt = &now
	e.record(ctx, attempt)
	metrics.Attempts.WithLabelValues(strings.ToLower(string(a.kind)), "failed").Inc()
	return Outcome{State: domain.AttemptFailed}, err
}

func (e *Executor) alert(ctx context.Context, a action, kind domain.AlertKind, in, out decimal.Decimal, txID string) {
	e.notifier.Notify(ctx, domain.Alert{
		Kind:       kind,
		Liquidator: e.name,
		DryRun:     e.dryRun,
		FromSymbol: a.from,
		ToSymbol:   a.to,
		InAmount:   in,
		OutAmount:  out,
		TxID:       txID,
	})
}

// record persiste el intento. Un fallo del journal no debe parar al liquidador.
func (e *Executor) record(ctx context.Context, attempt domain.Attempt) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		slog.Warn("failed to save attempt", "id", attempt.ID, "err", err)
	}
}
