package liquidator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/shopspring/decimal"
)

// Liquidator convierte un LiquidationIntent elegible en una liquidación enviada.
type Liquidator struct {
	exec        *Executor
	protocol    domain.Protocol
	vault       domain.ScriptHash
	owner       domain.ScriptHash
	onChainOnly bool
}

// NewLiquidator crea un Liquidator. onChainOnly elige la variante LIQUIDATE_OCP.
func NewLiquidator(exec *Executor, protocol domain.Protocol, vault, owner domain.ScriptHash, onChainOnly bool) *Liquidator {
	return &Liquidator{exec: exec, protocol: protocol, vault: vault, owner: owner, onChainOnly: onChainOnly}
}

// Liquidate envía la liquidación y espera su confirmación en el evento
// LiquidateCollateral del vault.
func (l *Liquidator) Liquidate(ctx context.Context, intent domain.LiquidationIntent, prices domain.PriceData) (Outcome, error) {
	if !intent.Eligible {
		return Outcome{State: domain.AttemptFailed}, fmt.Errorf("liquidator.Liquidate: vault %s not eligible: %s", intent.Vault.Account, intent.Reason)
	}

	p := l.protocol
	liquidatee := intent.Vault.Account

	var call domain.ContractCall
	if l.onChainOnly {
		call = LiquidateOCPCall(p, l.vault, l.owner, liquidatee, intent.Quantity)
	} else {
		call = LiquidateCall(p, l.vault, l.owner, liquidatee, intent.Quantity, prices)
	}

	slog.Info("attempting liquidation",
		"account", liquidatee.Address(),
		"ltv", intent.LoanToValue.StringFixed(4),
		"quantity", p.FToken.Scale(intent.Quantity).String(),
		"symbol", p.FToken.Symbol,
	)

	return l.exec.Execute(ctx, action{
		kind:        domain.AttemptLiquidate,
		call:        call,
		description: fmt.Sprintf("%s::transfer(%s, %s)", p.FToken.Symbol, p.Collateral.Symbol, liquidatee.Address()),
		watch:       l.vault,
		event:       eventLiquidate,
		match:       LiquidationMatcher(p, l.owner, liquidatee),
		alerts:      liquidateAlerts,
		from:        p.Collateral.Symbol,
		to:          p.FToken.Symbol,
		in:          p.FToken.Scale(intent.Quantity),
		settle: func(ev domain.ChainEvent) (decimal.Decimal, decimal.Decimal) {
			fQty, _ := ev.IntegerAt(4)
			cQty, _ := ev.IntegerAt(5)
			return p.FToken.Scale(fQty), p.Collateral.Scale(cQty)
		},
		account:     liquidatee.Address(),
		loanToValue: intent.LoanToValue,
		price:       prices.CollateralCombinedPrice,
	})
}
