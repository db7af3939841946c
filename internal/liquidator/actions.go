package liquidator

import (
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	liquidateTag    = "LIQUIDATE"
	liquidateOCPTag = "LIQUIDATE_OCP"

	// swapMaxDelay es la validez del deadline que se pasa al router.
	swapMaxDelay = 60 * time.Second

	eventLiquidate = "LiquidateCollateral"
	eventTransfer  = "Transfer"
)

// LiquidateCall arma la variante con precio combinado: fToken.transfer hacia el vault
// con el payload firmado del feed, que el contrato verifica de nuevo.
func LiquidateCall(p domain.Protocol, vault, owner, liquidatee domain.ScriptHash, quantity decimal.Decimal, prices domain.PriceData) domain.ContractCall {
	return domain.ContractCall{
		Contract:  p.FToken.Hash,
		Operation: "transfer",
		Args: []domain.Param{
			domain.Hash160Param(owner),
			domain.Hash160Param(vault),
			domain.IntegerParam(quantity.BigInt()),
			domain.ArrayParam(
				domain.StringParam(liquidateTag),
				domain.Hash160Param(p.Collateral.Hash),
				domain.Hash160Param(liquidatee),
				domain.StringParam(prices.Payload),
				domain.StringParam(prices.Signature),
			),
		},
		Scope: domain.ScopeCalledByEntry,
	}
}

// LiquidateOCPCall arma la variante que usa solo el precio on-chain.
func LiquidateOCPCall(p domain.Protocol, vault, owner, liquidatee domain.ScriptHash, quantity decimal.Decimal) domain.ContractCall {
	return domain.ContractCall{
		Contract:  p.FToken.Hash,
		Operation: "transfer",
		Args: []domain.Param{
			domain.Hash160Param(owner),
			domain.Hash160Param(vault),
			domain.IntegerParam(quantity.BigInt()),
			domain.ArrayParam(
				domain.StringParam(liquidateOCPTag),
				domain.Hash160Param(p.Collateral.Hash),
				domain.Hash160Param(liquidatee),
			),
		},
		Scope: domain.ScopeCalledByEntry,
	}
}

// SwapCall arma router.swapTokenInForTokenOut. El testigo solo vale para el router
// y el token de origen.
func SwapCall(router, owner, from, to domain.ScriptHash, amount, minOut decimal.Decimal, now time.Time) domain.ContractCall {
	deadline := now.Add(swapMaxDelay).UnixMilli()
	return domain.ContractCall{
		Contract:  router,
		Operation: "swapTokenInForTokenOut",
		Args: []domain.Param{
			domain.Hash160Param(owner),
			domain.IntegerParam(amount.BigInt()),
			domain.IntegerParam(minOut.BigInt()),
			domain.ArrayParam(domain.Hash160Param(from), domain.Hash160Param(to)),
			domain.Int64Param(deadline),
		},
		Scope:            domain.ScopeCustomContracts,
		AllowedContracts: []domain.ScriptHash{router, from},
	}
}

// ExitCall arma wrapped.withdraw(quantity, owner): canjea el colateral envuelto 1:1.
func ExitCall(wrapped, owner domain.ScriptHash, quantity decimal.Decimal) domain.ContractCall {
	return domain.ContractCall{
		Contract:  wrapped,
		Operation: "withdraw",
		Args: []domain.Param{
			domain.IntegerParam(quantity.BigInt()),
			domain.Hash160Param(owner),
		},
		Scope: domain.ScopeCalledByEntry,
	}
}

// LiquidationMatcher reconoce el LiquidateCollateral de nuestra propia liquidación:
// [collateral, fToken, liquidator, liquidatee, fTokenQty, collateralQty].
func LiquidationMatcher(p domain.Protocol, owner, liquidatee domain.ScriptHash) Matcher {
	return func(ev domain.ChainEvent) bool {
		return ev.Name == eventLiquidate &&
			hashIs(ev, 0, p.Collateral.Hash) &&
			hashIs(ev, 1, p.FToken.Hash) &&
			hashIs(ev, 2, owner) &&
			hashIs(ev, 3, liquidatee)
	}
}

// SwapMatcher reconoce el Transfer del token destino hacia nuestra cuenta: [from, to, amount].
func SwapMatcher(owner domain.ScriptHash) Matcher {
	return func(ev domain.ChainEvent) bool {
		return ev.Name == eventTransfer && hashIs(ev, 1, owner)
	}
}

// ExitMatcher reconoce el Transfer del subyacente emitido por el contrato envuelto.
func ExitMatcher(wrapped, owner domain.ScriptHash) Matcher {
	return func(ev domain.ChainEvent) bool {
		return ev.Name == eventTransfer && hashIs(ev, 0, wrapped) && hashIs(ev, 1, owner)
	}
}

func hashIs(ev domain.ChainEvent, i int, want domain.ScriptHash) bool {
	got, ok := ev.HashAt(i)
	return ok && got == want
}
