package neo

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/shopspring/decimal"
)

// Ledger implements ports.Ledger with read-only invokefunction calls.
type Ledger struct {
	rpc   *RPC
	vault domain.ScriptHash
}

// NewLedger creates the read client for the given vault contract.
func NewLedger(r *RPC, vault domain.ScriptHash) *Ledger {
	return &Ledger{rpc: r, vault: vault}
}

func (l *Ledger) invoke(ctx context.Context, contract domain.ScriptHash, op string, args ...domain.Param) (domain.StackValue, error) {
	var res invokeResult
	if err := l.rpc.call(ctx, &res, "invokefunction", contract.String(), op, toRPCParams(args)); err != nil {
		return domain.StackValue{}, fmt.Errorf("%w: %w", domain.ErrLedgerUnavailable, err)
	}
	v, err := res.first()
	if err != nil {
		return domain.StackValue{}, fmt.Errorf("%s::%s: %w: %w", contract, op, domain.ErrLedgerUnavailable, err)
	}
	return v, nil
}

func (l *Ledger) invokeInteger(ctx context.Context, contract domain.ScriptHash, op string, args ...domain.Param) (decimal.Decimal, error) {
	v, err := l.invoke(ctx, contract, op, args...)
	if err != nil {
		return decimal.Zero, err
	}
	n, ok := v.Integer()
	if !ok {
		return decimal.Zero, fmt.Errorf("%s::%s: unexpected %s item: %w", contract, op, v.Type, domain.ErrLedgerUnavailable)
	}
	return n, nil
}

func (l *Ledger) Symbol(ctx context.Context, token domain.ScriptHash) (string, error) {
	v, err := l.invoke(ctx, token, "symbol")
	if err != nil {
		return "", fmt.Errorf("neo.Ledger.Symbol: %w", err)
	}
	s, ok := v.Text()
	if !ok {
		return "", fmt.Errorf("neo.Ledger.Symbol: %s: unexpected %s item: %w", token, v.Type, domain.ErrLedgerUnavailable)
	}
	return s, nil
}

func (l *Ledger) Decimals(ctx context.Context, token domain.ScriptHash) (int32, error) {
	n, err := l.invokeInteger(ctx, token, "decimals")
	if err != nil {
		return 0, fmt.Errorf("neo.Ledger.Decimals: %w", err)
	}
	if n.IsNegative() || n.GreaterThan(decimal.NewFromInt(36)) {
		return 0, fmt.Errorf("neo.Ledger.Decimals: %s: out of range %s: %w", token, n, domain.ErrLedgerUnavailable)
	}
	return int32(n.IntPart()), nil
}

func (l *Ledger) BalanceOf(ctx context.Context, token, account domain.ScriptHash) (decimal.Decimal, error) {
	n, err := l.invokeInteger(ctx, token, "balanceOf", domain.Hash160Param(account))
	if err != nil {
		return decimal.Zero, fmt.Errorf("neo.Ledger.BalanceOf: %w", err)
	}
	return n, nil
}

func (l *Ledger) MaxLoanToValue(ctx context.Context, collateral domain.ScriptHash) (decimal.Decimal, error) {
	n, err := l.invokeInteger(ctx, l.vault, "getMaxLoanToValue", domain.Hash160Param(collateral))
	if err != nil {
		return decimal.Zero, fmt.Errorf("neo.Ledger.MaxLoanToValue: %w", err)
	}
	return n, nil
}

func (l *Ledger) LiquidationLimit(ctx context.Context, collateral domain.ScriptHash) (decimal.Decimal, error) {
	n, err := l.invokeInteger(ctx, l.vault, "getLiquidationLimit", domain.Hash160Param(collateral))
	if err != nil {
		return decimal.Zero, fmt.Errorf("neo.Ledger.LiquidationLimit: %w", err)
	}
	return n, nil
}

func (l *Ledger) LiquidationBonus(ctx context.Context, collateral domain.ScriptHash) (decimal.Decimal, error) {
	n, err := l.invokeInteger(ctx, l.vault, "getLiquidationBonus", domain.Hash160Param(collateral))
	if err != nil {
		return decimal.Zero, fmt.Errorf("neo.Ledger.LiquidationBonus: %w", err)
	}
	return n, nil
}

func (l *Ledger) OnChainPrice(ctx context.Context, token domain.ScriptHash, decimals int32) (decimal.Decimal, error) {
	n, err := l.invokeInteger(ctx, l.vault, "getOnChainPrice", domain.Hash160Param(token), domain.Int64Param(int64(decimals)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("neo.Ledger.OnChainPrice: %w", err)
	}
	return n, nil
}

// Vaults reads one page of getAllVaults. Each entry is a struct
// [account ByteString, collateralBalance Integer, fTokenBalance Integer].
func (l *Ledger) Vaults(ctx context.Context, collateral, fToken domain.ScriptHash, pageSize, pageNum int) ([]domain.Vault, error) {
	v, err := l.invoke(ctx, l.vault, "getAllVaults",
		domain.Hash160Param(collateral),
		domain.Hash160Param(fToken),
		domain.Int64Param(int64(pageSize)),
		domain.Int64Param(int64(pageNum)),
	)
	if err != nil {
		return nil, fmt.Errorf("neo.Ledger.Vaults: page %d: %w", pageNum, err)
	}
	items, ok := v.Array()
	if !ok {
		return nil, fmt.Errorf("neo.Ledger.Vaults: page %d: %s item: %w", pageNum, v.Type, domain.ErrVaultData)
	}

	vaults := make([]domain.Vault, 0, len(items))
	for i, item := range items {
		vault, err := parseVault(item)
		if err != nil {
			return nil, fmt.Errorf("neo.Ledger.Vaults: page %d entry %d: %v: %w", pageNum, i, err, domain.ErrVaultData)
		}
		vaults = append(vaults, vault)
	}
	return vaults, nil
}

func parseVault(item domain.StackValue) (domain.Vault, error) {
	fields, ok := item.Array()
	if !ok || len(fields) < 3 {
		return domain.Vault{}, fmt.Errorf("expected struct of 3 fields")
	}
	account, ok := fields[0].ScriptHash()
	if !ok {
		return domain.Vault{}, fmt.Errorf("invalid account")
	}
	collateral, ok := fields[1].Integer()
	if !ok {
		return domain.Vault{}, fmt.Errorf("invalid collateral balance")
	}
	debt, ok := fields[2].Integer()
	if !ok {
		return domain.Vault{}, fmt.Errorf("invalid ftoken balance")
	}
	vault := domain.Vault{Account: account, CollateralBalance: collateral, FTokenBalance: debt}
	if err := vault.Validate(); err != nil {
		return domain.Vault{}, err
	}
	return vault, nil
}
