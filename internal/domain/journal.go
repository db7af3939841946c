package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AttemptKind identifica el tipo de acción enviada al ledger.
type AttemptKind string

const (
	AttemptLiquidate AttemptKind = "LIQUIDATE"
	AttemptSwap      AttemptKind = "SWAP"
	AttemptExit      AttemptKind = "EXIT"
)

// AttemptState es el estado final (o actual) de una acción.
type AttemptState string

const (
	AttemptSubmitted   AttemptState = "SUBMITTED"
	AttemptConfirmed   AttemptState = "CONFIRMED"
	AttemptUnconfirmed AttemptState = "UNCONFIRMED" // timeout: puede haber salido igualmente
	AttemptFailed      AttemptState = "FAILED"
	AttemptDryRun      AttemptState = "DRY_RUN"
)

// Attempt es una fila del journal de auditoría: qué se intentó, con qué datos y cómo terminó.
type Attempt struct {
	ID          string // UUID
	Kind        AttemptKind
	Account     string // vault liquidado (vacío para swaps/exits)
	FromSymbol  string
	ToSymbol    string
	Quantity    decimal.Decimal // unidades humanas
	LoanToValue decimal.Decimal
	Price       decimal.Decimal // precio combinado del colateral
	TxID        string
	State       AttemptState
	Error       string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// CycleSummary resume un ciclo del control loop.
type CycleSummary struct {
	StartedAt       time.Time
	Duration        time.Duration
	Pages           int
	VaultsEvaluated int
	Eligible        int
	Liquidated      bool
	FTokenBalance   decimal.Decimal // unidades humanas
	Error           string
}
