package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CollateralHaircutPct es el margen conservador aplicado al colateral disponible.
// Si el vault ya está por debajo del pago con bonus, liquidar el 100% haría abortar la tx.
const CollateralHaircutPct = 90

var (
	hundred = decimal.NewFromInt(100)
	haircut = decimal.NewFromInt(CollateralHaircutPct)
)

// LiquidationIntent es el resultado de evaluar un vault en un ciclo. No se persiste.
type LiquidationIntent struct {
	Vault       Vault
	LoanToValue decimal.Decimal // porcentaje
	Eligible    bool
	Quantity    decimal.Decimal // unidades mínimas de fToken, entero
	Reason      string          // por qué no se liquida (vacío si Eligible)

	DebtCap       decimal.Decimal
	CollateralCap decimal.Decimal // en unidades de colateral
	ConvertedCap  decimal.Decimal // CollateralCap expresado en fToken
	WalletCap     decimal.Decimal
}

// LoanToValue calcula 100 * deuda * pF * mC / (colateral * pC * mF).
// Devuelve 0 si no hay deuda. Llamarla con colateral 0 es un error del caller.
func LoanToValue(v Vault, prices PriceData, p Protocol) decimal.Decimal {
	numerator := v.FTokenBalance.
		Mul(prices.FTokenPrice).
		Mul(p.Collateral.Multiplier())
	if numerator.IsZero() {
		return decimal.Zero
	}
	denominator := v.CollateralBalance.
		Mul(prices.CollateralCombinedPrice).
		Mul(p.FToken.Multiplier())
	return hundred.Mul(numerator).Div(denominator)
}

// Evaluate decide si un vault es liquidable y cuánto. Es una función pura:
// mismo input → mismo output, sin estado entre vaults.
//
// walletBalance es el balance propio de fToken (unidades mínimas) y minQuantity el
// umbral mínimo rentable en unidades humanas de fToken.
func Evaluate(v Vault, prices PriceData, p Protocol, walletBalance, minQuantity decimal.Decimal) LiquidationIntent {
	intent := LiquidationIntent{Vault: v, LoanToValue: decimal.Zero, Quantity: decimal.Zero}

	if !v.HasCollateral() {
		intent.Reason = "no collateral"
		return intent
	}
	if !prices.FTokenPrice.IsPositive() || !prices.CollateralCombinedPrice.IsPositive() {
		intent.Reason = "non-positive price"
		return intent
	}

	intent.LoanToValue = LoanToValue(v, prices, p)
	if !intent.LoanToValue.GreaterThan(p.MaxLoanToValue) {
		intent.Reason = fmt.Sprintf("loanToValue=%s <= maxLoanToValue=%s",
			intent.LoanToValue.StringFixed(4), p.MaxLoanToValue)
		return intent
	}

	intent.DebtCap, intent.CollateralCap, intent.ConvertedCap = liquidationCaps(v, prices, p)
	intent.WalletCap = decimal.Max(walletBalance, decimal.Zero)

	qty := decimal.Min(intent.DebtCap, intent.ConvertedCap, intent.WalletCap).Floor()
	if qty.IsNegative() {
		qty = decimal.Zero
	}
	intent.Quantity = qty

	scaled := p.FToken.Scale(qty)
	if !scaled.GreaterThan(minQuantity) {
		intent.Reason = fmt.Sprintf("liquidateQuantity=%s <= liquidateThreshold=%s", scaled, minQuantity)
		return intent
	}

	intent.Eligible = true
	return intent
}

// liquidationCaps devuelve los tres topes independientes antes de aplicar el del wallet:
// el de deuda (límite del protocolo), el de colateral con haircut y ese mismo convertido a fToken.
func liquidationCaps(v Vault, prices PriceData, p Protocol) (debtCap, collateralCap, converted decimal.Decimal) {
	debtCap = p.LiquidationLimit.Mul(v.FTokenBalance).Div(hundred)

	collateralCap = haircut.Mul(v.CollateralBalance).Div(hundred.Add(p.LiquidationBonus))

	converted = collateralCap.
		Mul(prices.CollateralCombinedPrice).
		Mul(p.FToken.Multiplier()).
		Div(prices.FTokenPrice.Mul(p.Collateral.Multiplier()))
	return debtCap, collateralCap, converted
}
