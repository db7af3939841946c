package domain_test

import (
	"math/rand/v2"
	"testing"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func makeProtocol(fDecimals, cDecimals int32) domain.Protocol {
	return domain.Protocol{
		FToken:           domain.Token{Symbol: "fUSD", Decimals: fDecimals},
		Collateral:       domain.Token{Symbol: "bNEO", Decimals: cDecimals},
		MaxLoanToValue:   dec("80"),
		LiquidationLimit: dec("50"),
		LiquidationBonus: dec("10"),
	}
}

func makePrices(fToken, collateral string) domain.PriceData {
	return domain.PriceData{
		Decimals:                domain.OnChainPriceDecimals,
		FTokenPrice:             dec(fToken),
		CollateralOnChainPrice:  dec(collateral),
		CollateralOffChainPrice: dec(collateral),
		CollateralCombinedPrice: dec(collateral),
	}
}

func makeVault(debt, collateral string) domain.Vault {
	return domain.Vault{
		Account:           domain.MustParseScriptHash("0x1111111111111111111111111111111111111111"),
		FTokenBalance:     dec(debt),
		CollateralBalance: dec(collateral),
	}
}

func TestLoanToValue_Example(t *testing.T) {
	// 100 * 1000 * 1.00 * 1 / (5000 * 0.20 * 1) = 100%
	ltv := domain.LoanToValue(makeVault("1000", "5000"), makePrices("1.00", "0.20"), makeProtocol(0, 0))
	assert.True(t, ltv.Equal(dec("100")), "ltv=%s", ltv)
}

func TestLoanToValue_ZeroDebt(t *testing.T) {
	for _, coll := range []string{"0", "1", "5000", "99999999999"} {
		ltv := domain.LoanToValue(makeVault("0", coll), makePrices("1", "0.2"), makeProtocol(8, 8))
		assert.True(t, ltv.IsZero(), "collateral=%s", coll)
	}
}

func TestEvaluate_ZeroDebtNeverEligible(t *testing.T) {
	intent := domain.Evaluate(makeVault("0", "5000"), makePrices("1", "0.2"), makeProtocol(0, 0), dec("1000000"), dec("0"))
	assert.False(t, intent.Eligible)
	assert.True(t, intent.LoanToValue.IsZero())
}

func TestEvaluate_ZeroCollateralDoesNotDivide(t *testing.T) {
	intent := domain.Evaluate(makeVault("1000", "0"), makePrices("1", "0.2"), makeProtocol(0, 0), dec("1000000"), dec("0"))
	assert.False(t, intent.Eligible)
	assert.Equal(t, "no collateral", intent.Reason)
}

func TestEvaluate_EligibleExample(t *testing.T) {
	p := makeProtocol(0, 0)
	intent := domain.Evaluate(makeVault("1000", "5000"), makePrices("1.00", "0.20"), p, dec("1000000"), dec("1"))

	require.True(t, intent.Eligible, intent.Reason)
	// debt cap = 50% * 1000 = 500
	assert.True(t, intent.DebtCap.Equal(dec("500")), "debtCap=%s", intent.DebtCap)
	// collateral cap = 90 * 5000 / 110 ≈ 4090.9 → * 0.20 / 1.00 ≈ 818.18 fToken
	assert.InDelta(t, 4090.909, intent.CollateralCap.InexactFloat64(), 0.001)
	assert.InDelta(t, 818.18, intent.ConvertedCap.InexactFloat64(), 0.01)
	assert.True(t, intent.Quantity.Equal(dec("500")), "qty=%s", intent.Quantity)
}

func TestEvaluate_NotAboveMaxLTV(t *testing.T) {
	p := makeProtocol(0, 0)
	p.MaxLoanToValue = dec("100")
	intent := domain.Evaluate(makeVault("1000", "5000"), makePrices("1.00", "0.20"), p, dec("1000000"), dec("0"))
	assert.False(t, intent.Eligible, "LTV == max no es elegible")
	assert.True(t, intent.Quantity.IsZero())
}

func TestEvaluate_WalletCapAndFloor(t *testing.T) {
	p := makeProtocol(0, 0)
	intent := domain.Evaluate(makeVault("1000", "5000"), makePrices("1.00", "0.20"), p, dec("123.9"), dec("1"))
	require.True(t, intent.Eligible)
	assert.True(t, intent.Quantity.Equal(dec("123")), "qty=%s", intent.Quantity)
}

func TestEvaluate_CollateralCapBinds(t *testing.T) {
	p := makeProtocol(0, 0)
	p.LiquidationLimit = dec("100")
	// deuda muy alta frente a colateral: LTV >> 100
	intent := domain.Evaluate(makeVault("5000", "5000"), makePrices("1.00", "0.20"), p, dec("1000000"), dec("1"))
	require.True(t, intent.Eligible)
	assert.True(t, intent.Quantity.Equal(dec("818")), "qty=%s", intent.Quantity)
}

func TestEvaluate_BelowThresholdRejected(t *testing.T) {
	p := makeProtocol(8, 8)
	// qty = 500 unidades mínimas = 0.000005 fUSD
	intent := domain.Evaluate(makeVault("1000", "5000"), makePrices("1.00", "0.20"), p, dec("1000000"), dec("10"))
	assert.Greater(t, intent.LoanToValue.InexactFloat64(), 80.0)
	assert.False(t, intent.Eligible)
	assert.Contains(t, intent.Reason, "liquidateThreshold")
}

func TestEvaluate_ThresholdIsStrict(t *testing.T) {
	p := makeProtocol(0, 0)
	intent := domain.Evaluate(makeVault("1000", "5000"), makePrices("1.00", "0.20"), p, dec("1000000"), dec("500"))
	assert.False(t, intent.Eligible, "qty == threshold se rechaza")
}

func TestEvaluate_MultipliersScaleLTV(t *testing.T) {
	// fUSD con 8 decimales, bNEO con 8: mismo LTV que sin decimales
	p := makeProtocol(8, 8)
	intent := domain.Evaluate(makeVault("100000000000", "500000000000"), makePrices("1.00", "0.20"), p, dec("100000000000"), dec("1"))
	assert.True(t, intent.LoanToValue.Equal(dec("100")), "ltv=%s", intent.LoanToValue)
	require.True(t, intent.Eligible)
	assert.True(t, intent.Quantity.Equal(dec("50000000000")))
}

func TestEvaluate_QuantityNeverExceedsCaps(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	p := makeProtocol(8, 0)

	for i := 0; i < 500; i++ {
		debt := decimal.NewFromInt(rng.Int64N(1_000_000_000_000))
		coll := decimal.NewFromInt(rng.Int64N(1_000_000) + 1)
		wallet := decimal.NewFromInt(rng.Int64N(1_000_000_000_000))
		prices := makePrices("1", decimal.NewFromFloat(0.01+rng.Float64()*50).String())

		intent := domain.Evaluate(makeVault(debt.String(), coll.String()), prices, p, wallet, decimal.Zero)

		assert.False(t, intent.Quantity.IsNegative())
		assert.True(t, intent.Quantity.IsInteger())
		if intent.Eligible {
			assert.True(t, intent.Quantity.LessThanOrEqual(intent.DebtCap))
			assert.True(t, intent.Quantity.LessThanOrEqual(intent.ConvertedCap))
			assert.True(t, intent.Quantity.LessThanOrEqual(wallet))
		}
	}
}
