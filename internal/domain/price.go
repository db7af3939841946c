package domain

import "github.com/shopspring/decimal"

// OnChainPriceDecimals es la precisión fija usada cuando solo se leen precios on-chain.
const OnChainPriceDecimals int32 = 20

// PriceData agrupa los precios de un ciclo. Se recalcula en cada ciclo, nunca se cachea.
// Payload y Signature se reenvían tal cual al contrato, que vuelve a verificar la firma.
type PriceData struct {
	Payload                 string
	Signature               string
	Decimals                int32
	FTokenPrice             decimal.Decimal
	CollateralOnChainPrice  decimal.Decimal
	CollateralOffChainPrice decimal.Decimal
	CollateralCombinedPrice decimal.Decimal
}

// SignedPriceFeed es la respuesta del feed off-chain firmado.
type SignedPriceFeed struct {
	Payload   string
	Signature string
	Decimals  int32
	Prices    map[string]decimal.Decimal // symbol → precio a Decimals de precisión
}

// CombinePrices devuelve la media aritmética de los precios on-chain y off-chain.
func CombinePrices(onChain, offChain decimal.Decimal) decimal.Decimal {
	return onChain.Add(offChain).Div(decimal.NewFromInt(2))
}
