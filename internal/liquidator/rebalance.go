package liquidator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
	"github.com/shopspring/decimal"
)

// Rebalancer convierte el colateral recuperado de vuelta a fToken.
type Rebalancer struct {
	ledger    ports.Ledger
	exec      *Executor
	protocol  domain.Protocol
	router    domain.ScriptHash
	owner     domain.ScriptHash
	enabled   bool
	threshold decimal.Decimal // unidades mínimas del colateral
	now       func() time.Time
}

// NewRebalancer crea un Rebalancer.
func NewRebalancer(ledger ports.Ledger, exec *Executor, protocol domain.Protocol, router, owner domain.ScriptHash, enabled bool, threshold decimal.Decimal) *Rebalancer {
	return &Rebalancer{
		ledger:    ledger,
		exec:      exec,
		protocol:  protocol,
		router:    router,
		owner:     owner,
		enabled:   enabled,
		threshold: threshold,
		now:       time.Now,
	}
}

// ShouldRebalance indica si el balance de colateral supera el umbral de swap.
func (r *Rebalancer) ShouldRebalance(collateralBalance decimal.Decimal) bool {
	return r.enabled && collateralBalance.GreaterThan(r.threshold)
}

// Rebalance ejecuta el swap directo o, si el colateral está envuelto, el exit
// seguido del swap del subyacente. Las patas van en secuencia y un fallo no se
// reintenta en el mismo ciclo. Solo devuelve errores sin clasificar.
func (r *Rebalancer) Rebalance(ctx context.Context, collateralBalance decimal.Decimal) error {
	if !r.ShouldRebalance(collateralBalance) {
		return nil
	}
	p := r.protocol

	from := p.Collateral
	if p.IsWrappedCollateral() {
		if err := r.exit(ctx, *p.Wrapped, *p.Underlying); err != nil && !domain.IsRecoverable(err) {
			return fmt.Errorf("liquidator.Rebalance: %w", err)
		}
		// el swap se intenta igualmente con el subyacente que haya en el wallet
		from = *p.Underlying
	}

	if err := r.swap(ctx, from, p.FToken); err != nil && !domain.IsRecoverable(err) {
		return fmt.Errorf("liquidator.Rebalance: %w", err)
	}
	return nil
}

// exit canjea todo el balance del token envuelto por el subyacente.
func (r *Rebalancer) exit(ctx context.Context, wrapped, underlying domain.Token) error {
	qty, err := r.ledger.BalanceOf(ctx, wrapped.Hash, r.owner)
	if err != nil {
		return fmt.Errorf("exit: %w", err)
	}
	if !qty.IsPositive() {
		slog.Info("nothing to exit", "symbol", wrapped.Symbol)
		return nil
	}

	_, err = r.exec.Execute(ctx, action{
		kind:        domain.AttemptExit,
		call:        ExitCall(wrapped.Hash, r.owner, qty),
		description: fmt.Sprintf("%s::withdraw()", wrapped.Symbol),
		watch:       underlying.Hash,
		event:       eventTransfer,
		match:       ExitMatcher(wrapped.Hash, r.owner),
		alerts:      exitAlerts,
		from:        wrapped.Symbol,
		to:          underlying.Symbol,
		in:          wrapped.Scale(qty),
		settle: func(ev domain.ChainEvent) (decimal.Decimal, decimal.Decimal) {
			out, _ := ev.IntegerAt(2)
			return wrapped.Scale(qty), underlying.Scale(out)
		},
	})
	return err
}

// swap vende todo el balance de from por to. El mínimo de salida es 0.
func (r *Rebalancer) swap(ctx context.Context, from, to domain.Token) error {
	amount, err := r.ledger.BalanceOf(ctx, from.Hash, r.owner)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	if !amount.IsPositive() {
		slog.Info("nothing to swap", "symbol", from.Symbol)
		return nil
	}

	_, err = r.exec.Execute(ctx, action{
		kind:        domain.AttemptSwap,
		call:        SwapCall(r.router, r.owner, from.Hash, to.Hash, amount, decimal.Zero, r.now()),
		description: fmt.Sprintf("FlamingoSwapRouter::swapTokenInForTokenOut(%s, %s)", from.Symbol, to.Symbol),
		watch:       to.Hash,
		event:       eventTransfer,
		match:       SwapMatcher(r.owner),
		alerts:      swapAlerts,
		from:        from.Symbol,
		to:          to.Symbol,
		in:          from.Scale(amount),
		settle: func(ev domain.ChainEvent) (decimal.Decimal, decimal.Decimal) {
			out, _ := ev.IntegerAt(2)
			return from.Scale(amount), to.Scale(out)
		},
	})
	return err
}
