package ports

import (
	"context"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/shopspring/decimal"
)

// Ledger agrupa las lecturas síncronas contra los contratos del ledger.
type Ledger interface {
	// Symbol y Decimals leen los metadatos NEP-17 de un token.
	Symbol(ctx context.Context, token domain.ScriptHash) (string, error)
	Decimals(ctx context.Context, token domain.ScriptHash) (int32, error)

	// BalanceOf devuelve el balance en unidades mínimas.
	BalanceOf(ctx context.Context, token, account domain.ScriptHash) (decimal.Decimal, error)

	// Parámetros del protocolo por colateral (porcentajes).
	MaxLoanToValue(ctx context.Context, collateral domain.ScriptHash) (decimal.Decimal, error)
	LiquidationLimit(ctx context.Context, collateral domain.ScriptHash) (decimal.Decimal, error)
	LiquidationBonus(ctx context.Context, collateral domain.ScriptHash) (decimal.Decimal, error)

	// OnChainPrice devuelve el precio del oráculo on-chain con la precisión pedida.
	OnChainPrice(ctx context.Context, token domain.ScriptHash, decimals int32) (decimal.Decimal, error)

	// Vaults devuelve una página del registro de vaults. Una página vacía marca el final.
	// Una respuesta malformada se devuelve envuelta en domain.ErrVaultData.
	Vaults(ctx context.Context, collateral, fToken domain.ScriptHash, pageSize, pageNum int) ([]domain.Vault, error)
}
