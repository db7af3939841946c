package domain

import "github.com/shopspring/decimal"

// Token describe un NEP-17 con sus metadatos leídos al arrancar.
type Token struct {
	Hash     ScriptHash
	Symbol   string
	Decimals int32
}

// Multiplier devuelve 10^Decimals.
func (t Token) Multiplier() decimal.Decimal {
	return decimal.New(1, t.Decimals)
}

// Scale convierte unidades mínimas a unidades humanas.
func (t Token) Scale(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(-t.Decimals)
}

// Protocol contiene los parámetros del protocolo leídos una sola vez al arrancar.
// Es inmutable durante la vida del proceso y se pasa explícitamente a cada componente.
type Protocol struct {
	FToken           Token
	Collateral       Token
	MaxLoanToValue   decimal.Decimal // porcentaje
	LiquidationLimit decimal.Decimal // porcentaje de la deuda liquidable por acción
	LiquidationBonus decimal.Decimal // porcentaje

	// Solo para colateral envuelto (FLUND → FLM).
	Wrapped    *Token
	Underlying *Token
}

// IsWrappedCollateral indica si el colateral necesita un exit antes del swap.
func (p Protocol) IsWrappedCollateral() bool {
	return p.Wrapped != nil && p.Underlying != nil && p.Wrapped.Hash == p.Collateral.Hash
}
