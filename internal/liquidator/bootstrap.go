package liquidator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
)

// LoadToken lee símbolo y decimales de un NEP-17.
func LoadToken(ctx context.Context, ledger ports.Ledger, hash domain.ScriptHash) (domain.Token, error) {
	symbol, err := ledger.Symbol(ctx, hash)
	if err != nil {
		return domain.Token{}, fmt.Errorf("liquidator.LoadToken: %s: %w", hash, err)
	}
	decimals, err := ledger.Decimals(ctx, hash)
	if err != nil {
		return domain.Token{}, fmt.Errorf("liquidator.LoadToken: %s: %w", hash, err)
	}
	return domain.Token{Hash: hash, Symbol: symbol, Decimals: decimals}, nil
}

// LoadProtocol lee una sola vez los parámetros del protocolo. El resultado es
// inmutable y se pasa explícitamente a cada componente.
func LoadProtocol(ctx context.Context, ledger ports.Ledger, fToken, collateral domain.ScriptHash, contracts Contracts) (domain.Protocol, error) {
	var (
		p   domain.Protocol
		err error
	)
	if p.FToken, err = LoadToken(ctx, ledger, fToken); err != nil {
		return domain.Protocol{}, fmt.Errorf("liquidator.LoadProtocol: ftoken: %w", err)
	}
	if p.Collateral, err = LoadToken(ctx, ledger, collateral); err != nil {
		return domain.Protocol{}, fmt.Errorf("liquidator.LoadProtocol: collateral: %w", err)
	}

	if !contracts.FLUND.IsZero() && !contracts.FLM.IsZero() {
		wrapped, err := LoadToken(ctx, ledger, contracts.FLUND)
		if err != nil {
			return domain.Protocol{}, fmt.Errorf("liquidator.LoadProtocol: wrapped: %w", err)
		}
		underlying, err := LoadToken(ctx, ledger, contracts.FLM)
		if err != nil {
			return domain.Protocol{}, fmt.Errorf("liquidator.LoadProtocol: underlying: %w", err)
		}
		p.Wrapped, p.Underlying = &wrapped, &underlying
	}

	if p.MaxLoanToValue, err = ledger.MaxLoanToValue(ctx, collateral); err != nil {
		return domain.Protocol{}, fmt.Errorf("liquidator.LoadProtocol: %w", err)
	}
	if p.LiquidationLimit, err = ledger.LiquidationLimit(ctx, collateral); err != nil {
		return domain.Protocol{}, fmt.Errorf("liquidator.LoadProtocol: %w", err)
	}
	if p.LiquidationBonus, err = ledger.LiquidationBonus(ctx, collateral); err != nil {
		return domain.Protocol{}, fmt.Errorf("liquidator.LoadProtocol: %w", err)
	}
	if !p.MaxLoanToValue.IsPositive() || p.LiquidationBonus.IsNegative() {
		return domain.Protocol{}, fmt.Errorf("liquidator.LoadProtocol: invalid parameters max_ltv=%s bonus=%s",
			p.MaxLoanToValue, p.LiquidationBonus)
	}

	slog.Info("protocol loaded",
		"ftoken", p.FToken.Symbol,
		"collateral", p.Collateral.Symbol,
		"max_ltv", p.MaxLoanToValue.String(),
		"liquidation_limit", p.LiquidationLimit.String(),
		"liquidation_bonus", p.LiquidationBonus.String(),
		"wrapped_collateral", p.IsWrappedCollateral(),
	)
	return p, nil
}
