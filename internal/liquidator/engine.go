package liquidator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/metrics"
	"github.com/alejandrodnm/liquidator/internal/ports"
	"github.com/shopspring/decimal"
)

// Engine es el control loop: precios → balance → páginas de vaults → liquidación
// → rebalanceo → sleep. Solo hay una acción en vuelo a la vez.
type Engine struct {
	cfg      Config
	protocol domain.Protocol
	owner    domain.ScriptHash
	ledger   ports.Ledger
	notifier ports.Notifier
	journal  ports.Journal

	prices     *PriceAggregator
	scanner    *VaultScanner
	liquidator *Liquidator
	rebalancer *Rebalancer
}

// Deps agrupa los puertos que necesita el Engine. Journal y PriceFeed son opcionales.
type Deps struct {
	Ledger    ports.Ledger
	Chain     ports.Chain
	Stream    ports.EventStream
	PriceFeed ports.PriceFeed
	Notifier  ports.Notifier
	Journal   ports.Journal
}

// New crea un Engine con todas las dependencias inyectadas.
func New(cfg Config, protocol domain.Protocol, contracts Contracts, deps Deps) *Engine {
	owner := deps.Chain.Account()
	exec := NewExecutor(deps.Chain, NewConfirmer(deps.Stream, cfg.VerifyWait), deps.Notifier, deps.Journal, cfg.Name, cfg.DryRun)

	return &Engine{
		cfg:        cfg,
		protocol:   protocol,
		owner:      owner,
		ledger:     deps.Ledger,
		notifier:   deps.Notifier,
		journal:    deps.Journal,
		prices:     NewPriceAggregator(deps.Ledger, deps.PriceFeed, protocol, cfg.OnChainPriceOnly),
		scanner:    NewVaultScanner(deps.Ledger, protocol, cfg.MaxPageSize, cfg.ShuffleSeed),
		liquidator: NewLiquidator(exec, protocol, contracts.Vault, owner, cfg.OnChainPriceOnly),
		rebalancer: NewRebalancer(deps.Ledger, exec, protocol, contracts.Router, owner, cfg.AutoSwap, cfg.SwapThreshold),
	}
}

// Init lee el balance inicial y envía la alerta de arranque.
func (e *Engine) Init(ctx context.Context) error {
	balance, err := e.ledger.BalanceOf(ctx, e.protocol.FToken.Hash, e.owner)
	if err != nil {
		return fmt.Errorf("liquidator.Init: balance: %w", err)
	}
	scaled := e.protocol.FToken.Scale(balance)

	slog.Info("liquidator initialized",
		"name", e.cfg.Name,
		"account", e.owner.Address(),
		"pair", e.protocol.Collateral.Symbol+"/"+e.protocol.FToken.Symbol,
		"balance", scaled.String(),
		"dry_run", e.cfg.DryRun,
	)
	e.notifier.Notify(ctx, domain.Alert{
		Kind:       domain.AlertInit,
		Liquidator: e.cfg.Name,
		DryRun:     e.cfg.DryRun,
		FromSymbol: e.protocol.Collateral.Symbol,
		ToSymbol:   e.protocol.FToken.Symbol,
		InAmount:   scaled,
	})
	return nil
}

// Run ejecuta el loop hasta que el contexto se cancele. Los errores clasificados
// se registran y el loop sigue; cualquier otro error termina Run.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("control loop starting",
		"interval", e.cfg.Interval,
		"verify_wait", e.cfg.VerifyWait,
		"on_chain_price_only", e.cfg.OnChainPriceOnly,
		"auto_swap", e.cfg.AutoSwap,
	)

	if err := e.Init(ctx); err != nil {
		return err
	}

	for {
		start := time.Now()
		if _, err := e.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				slog.Info("liquidator stopped")
				return nil
			}
			if !domain.IsRecoverable(err) {
				return fmt.Errorf("liquidator.Run: %w", err)
			}
			slog.Error("cycle failed", "err", err)
		}

		wait := max(e.cfg.Interval-time.Since(start), 0)
		slog.Debug("sleeping", "wait", wait.Round(time.Millisecond))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("liquidator stopped")
			return nil
		case <-timer.C:
		}
	}
}

// RunCycle ejecuta un ciclo completo y persiste su resumen.
func (e *Engine) RunCycle(ctx context.Context) (domain.CycleSummary, error) {
	summary := domain.CycleSummary{StartedAt: time.Now(), FTokenBalance: decimal.Zero}

	err := e.cycle(ctx, &summary)

	summary.Duration = time.Since(summary.StartedAt)
	if err != nil {
		summary.Error = err.Error()
	}
	metrics.MarkCycle(summary.StartedAt, summary.Duration, err)

	if e.journal != nil {
		if jerr := e.journal.SaveCycle(context.WithoutCancel(ctx), summary); jerr != nil {
			slog.Warn("failed to save cycle", "err", jerr)
		}
	}

	slog.Info("cycle complete",
		"pages", summary.Pages,
		"evaluated", summary.VaultsEvaluated,
		"eligible", summary.Eligible,
		"liquidated", summary.Liquidated,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, err
}

func (e *Engine) cycle(ctx context.Context, summary *domain.CycleSummary) error {
	p := e.protocol

	prices, err := e.prices.Prices(ctx)
	if err != nil {
		return fmt.Errorf("liquidator.cycle: %w", err)
	}
	slog.Debug("prices",
		"ftoken", prices.FTokenPrice.String(),
		"collateral_on_chain", prices.CollateralOnChainPrice.String(),
		"collateral_off_chain", prices.CollateralOffChainPrice.String(),
		"collateral_combined", prices.CollateralCombinedPrice.String(),
	)

	balance, err := e.ledger.BalanceOf(ctx, p.FToken.Hash, e.owner)
	if err != nil {
		return fmt.Errorf("liquidator.cycle: ftoken balance: %w", err)
	}
	scaled := p.FToken.Scale(balance)
	summary.FTokenBalance = scaled
	metrics.WalletBalance.WithLabelValues(p.FToken.Symbol).Set(scaled.InexactFloat64())
	e.checkLowBalance(ctx, scaled)

	if err := e.scan(ctx, prices, balance, summary); err != nil {
		return err
	}

	collateralBalance, err := e.ledger.BalanceOf(ctx, p.Collateral.Hash, e.owner)
	if err != nil {
		return fmt.Errorf("liquidator.cycle: collateral balance: %w", err)
	}
	metrics.WalletBalance.WithLabelValues(p.Collateral.Symbol).Set(p.Collateral.Scale(collateralBalance).InexactFloat64())
	slog.Info("collateral balance", "symbol", p.Collateral.Symbol, "balance", p.Collateral.Scale(collateralBalance).String())

	if err := e.rebalancer.Rebalance(ctx, collateralBalance); err != nil {
		return fmt.Errorf("liquidator.cycle: %w", err)
	}
	return nil
}

// scan recorre las páginas y liquida el primer vault elegible que salga bien.
func (e *Engine) scan(ctx context.Context, prices domain.PriceData, balance decimal.Decimal, summary *domain.CycleSummary) error {
	p := e.protocol

	for page, err := range e.scanner.Pages(ctx) {
		if err != nil {
			if errors.Is(err, domain.ErrVaultData) {
				metrics.MalformedPages.Inc()
				slog.Warn("discarding malformed page", "page", page.Number, "err", err)
				continue
			}
			return fmt.Errorf("liquidator.scan: %w", err)
		}
		summary.Pages++
		slog.Debug("scanning page", "page", page.Number, "vaults", len(page.Vaults))

		for _, vault := range page.Vaults {
			if !vault.HasCollateral() {
				metrics.VaultsEvaluated.WithLabelValues("no_collateral").Inc()
				continue
			}

			intent := domain.Evaluate(vault, prices, p, balance, e.cfg.LiquidateThreshold)
			summary.VaultsEvaluated++
			metrics.VaultsEvaluated.WithLabelValues(evaluationResult(intent, p)).Inc()

			if !intent.Eligible {
				slog.Debug("not liquidating vault",
					"account", vault.Account.Address(),
					"ltv", intent.LoanToValue.StringFixed(4),
					"reason", intent.Reason,
				)
				continue
			}
			summary.Eligible++

			outcome, err := e.liquidator.Liquidate(ctx, intent, prices)
			if err != nil {
				if !domain.IsRecoverable(err) {
					return fmt.Errorf("liquidator.scan: %w", err)
				}
				slog.Error("liquidation failed", "account", vault.Account.Address(), "err", err)
				continue
			}
			if outcome.Sent() {
				summary.Liquidated = true
				return nil
			}
		}
	}
	return nil
}

func (e *Engine) checkLowBalance(ctx context.Context, scaled decimal.Decimal) {
	if !scaled.LessThan(e.cfg.LowBalanceThreshold) {
		return
	}
	slog.Warn("low balance",
		"symbol", e.protocol.FToken.Symbol,
		"balance", scaled.String(),
		"threshold", e.cfg.LowBalanceThreshold.String(),
	)
	e.notifier.Notify(ctx, domain.Alert{
		Kind:       domain.AlertLowBalance,
		Liquidator: e.cfg.Name,
		DryRun:     e.cfg.DryRun,
		FromSymbol: e.protocol.Collateral.Symbol,
		ToSymbol:   e.protocol.FToken.Symbol,
		InAmount:   scaled,
		Threshold:  e.cfg.LowBalanceThreshold,
	})
}

func evaluationResult(intent domain.LiquidationIntent, p domain.Protocol) string {
	switch {
	case intent.Eligible:
		return "eligible"
	case intent.LoanToValue.GreaterThan(p.MaxLoanToValue):
		return "below_threshold"
	default:
		return "healthy"
	}
}
