package liquidator

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
	"github.com/shopspring/decimal"
)

// PriceAggregator obtiene los precios del ciclo. Nunca cachea entre ciclos.
type PriceAggregator struct {
	ledger      ports.Ledger
	feed        ports.PriceFeed
	protocol    domain.Protocol
	onChainOnly bool
}

// NewPriceAggregator crea el agregador. feed puede ser nil en modo solo on-chain.
func NewPriceAggregator(ledger ports.Ledger, feed ports.PriceFeed, protocol domain.Protocol, onChainOnly bool) *PriceAggregator {
	return &PriceAggregator{ledger: ledger, feed: feed, protocol: protocol, onChainOnly: onChainOnly}
}

// Prices devuelve el PriceData del ciclo. Cualquier fallo se clasifica como domain.ErrPriceFeed.
func (a *PriceAggregator) Prices(ctx context.Context) (domain.PriceData, error) {
	if a.onChainOnly {
		return a.onChainPrices(ctx)
	}
	return a.mixedPrices(ctx)
}

func (a *PriceAggregator) onChainPrices(ctx context.Context) (domain.PriceData, error) {
	fPrice, cPrice, err := a.readOnChain(ctx, domain.OnChainPriceDecimals)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("liquidator.Prices: %w", err)
	}
	return domain.PriceData{
		Decimals:                domain.OnChainPriceDecimals,
		FTokenPrice:             fPrice,
		CollateralOnChainPrice:  cPrice,
		CollateralOffChainPrice: cPrice,
		CollateralCombinedPrice: cPrice,
	}, nil
}

func (a *PriceAggregator) mixedPrices(ctx context.Context) (domain.PriceData, error) {
	if a.feed == nil {
		return domain.PriceData{}, fmt.Errorf("liquidator.Prices: no price feed configured: %w", domain.ErrPriceFeed)
	}
	feed, err := a.feed.FetchSigned(ctx)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("liquidator.Prices: %w", err)
	}

	fPrice, cOnChain, err := a.readOnChain(ctx, feed.Decimals)
	if err != nil {
		return domain.PriceData{}, fmt.Errorf("liquidator.Prices: %w", err)
	}

	symbol := a.protocol.Collateral.Symbol
	cOffChain, ok := feed.Prices[symbol]
	if !ok {
		return domain.PriceData{}, fmt.Errorf("liquidator.Prices: feed has no price for %s: %w", symbol, domain.ErrPriceFeed)
	}
	if !cOffChain.IsPositive() {
		return domain.PriceData{}, fmt.Errorf("liquidator.Prices: off-chain %s price %s: %w", symbol, cOffChain, domain.ErrPriceFeed)
	}

	return domain.PriceData{
		Payload:                 feed.Payload,
		Signature:               feed.Signature,
		Decimals:                feed.Decimals,
		FTokenPrice:             fPrice,
		CollateralOnChainPrice:  cOnChain,
		CollateralOffChainPrice: cOffChain,
		CollateralCombinedPrice: domain.CombinePrices(cOnChain, cOffChain),
	}, nil
}

// readOnChain lee los precios on-chain de fToken y colateral a la precisión dada.
func (a *PriceAggregator) readOnChain(ctx context.Context, decimals int32) (fToken, collateral decimal.Decimal, err error) {
	fToken, err = a.ledger.OnChainPrice(ctx, a.protocol.FToken.Hash, decimals)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("on-chain %s price: %w: %w", a.protocol.FToken.Symbol, domain.ErrPriceFeed, err)
	}
	collateral, err = a.ledger.OnChainPrice(ctx, a.protocol.Collateral.Hash, decimals)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("on-chain %s price: %w: %w", a.protocol.Collateral.Symbol, domain.ErrPriceFeed, err)
	}
	if !fToken.IsPositive() || !collateral.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("non-positive on-chain price (%s=%s, %s=%s): %w",
			a.protocol.FToken.Symbol, fToken, a.protocol.Collateral.Symbol, collateral, domain.ErrPriceFeed)
	}
	return fToken, collateral, nil
}
