package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Vault es la foto de la deuda y el colateral de una cuenta en el contrato Vault.
// Se obtiene en cada scan y nunca se modifica localmente: la fuente de verdad es el ledger.
type Vault struct {
	Account           ScriptHash
	CollateralBalance decimal.Decimal // unidades mínimas del colateral
	FTokenBalance     decimal.Decimal // deuda en unidades mínimas del fToken
}

// HasCollateral indica si el vault puede evaluarse sin dividir por cero.
func (v Vault) HasCollateral() bool {
	return v.CollateralBalance.IsPositive()
}

// Validate rechaza balances que el contrato nunca devolvería.
func (v Vault) Validate() error {
	if v.Account.IsZero() {
		return fmt.Errorf("vault: empty account")
	}
	if v.CollateralBalance.IsNegative() || v.FTokenBalance.IsNegative() {
		return fmt.Errorf("vault %s: negative balance", v.Account)
	}
	if !v.CollateralBalance.IsInteger() || !v.FTokenBalance.IsInteger() {
		return fmt.Errorf("vault %s: fractional balance", v.Account)
	}
	return nil
}
