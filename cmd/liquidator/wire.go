package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/liquidator/config"
	"github.com/alejandrodnm/liquidator/internal/adapters/neo"
	"github.com/alejandrodnm/liquidator/internal/adapters/notify"
	"github.com/alejandrodnm/liquidator/internal/adapters/pricefeed"
	"github.com/alejandrodnm/liquidator/internal/adapters/storage"
	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/liquidator"
	"github.com/alejandrodnm/liquidator/internal/ports"
	"github.com/shopspring/decimal"
)

// app agrupa el engine y los recursos que hay que cerrar al salir.
type app struct {
	engine  *liquidator.Engine
	closers []func()
}

// Close libera los recursos en orden inverso. Es idempotente.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// wire conecta adapters y engine a partir de la configuración ya validada.
func wire(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	contracts, fToken, collateral, err := parseContracts(cfg)
	if err != nil {
		return nil, err
	}

	rpc, err := neo.DialRPC(ctx, cfg.Network.RPCURL, cfg.Network.RequestsPerSecond)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rpc.Close)

	chain, err := newChain(cfg, rpc)
	if err != nil {
		return fail(err)
	}

	stream, err := neo.DialStream(ctx, cfg.Network.WSURL, nil)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, func() { _ = stream.Close() })

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, func() { _ = store.Close() })

	notifiers := notify.Multi{notify.Log{}}
	if cfg.Webhook.URL != "" {
		webhook := notify.NewWebhook(cfg.Webhook.URL)
		notifiers = append(notifiers, webhook)
		a.closers = append(a.closers, webhook.Flush)
	}

	var feed ports.PriceFeed
	if !cfg.Liquidator.OnChainPriceOnly {
		feed = pricefeed.NewClient(cfg.PriceFeed.URL)
	}

	ledger := neo.NewLedger(rpc, contracts.Vault)
	protocol, err := liquidator.LoadProtocol(ctx, ledger, fToken, collateral, contracts)
	if err != nil {
		return fail(err)
	}

	a.engine = liquidator.New(engineConfig(cfg), protocol, contracts, liquidator.Deps{
		Ledger:    ledger,
		Chain:     chain,
		Stream:    stream,
		PriceFeed: feed,
		Notifier:  notifiers,
		Journal:   store,
	})
	return a, nil
}

// newChain crea el cliente firmante o, en dry run sin clave, uno de solo lectura.
func newChain(cfg *config.Config, rpc *neo.RPC) (*neo.Client, error) {
	magic := cfg.Network.NetworkMagic
	if cfg.Liquidator.PrivateKey == "" {
		owner, err := config.ParseHash(cfg.Liquidator.Account)
		if err != nil {
			return nil, fmt.Errorf("wire: account: %w", err)
		}
		slog.Warn("no private key configured, running watch-only", "account", owner.Address())
		return neo.NewWatchOnlyClient(rpc, magic, owner), nil
	}

	signer, err := neo.ParseAccount(cfg.Liquidator.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("wire: private key: %w", err)
	}
	if cfg.Liquidator.Account != "" {
		if owner, err := config.ParseHash(cfg.Liquidator.Account); err == nil && owner != signer.ScriptHash() {
			slog.Warn("liquidator.account does not match the private key, using the key's account",
				"configured", owner.Address(), "signer", signer.ScriptHash().Address())
		}
	}
	return neo.NewClient(rpc, magic, signer), nil
}

func parseContracts(cfg *config.Config) (contracts liquidator.Contracts, fToken, collateral domain.ScriptHash, err error) {
	parse := func(s string) domain.ScriptHash {
		h, perr := config.ParseHash(s)
		if perr != nil && err == nil {
			err = perr
		}
		return h
	}
	contracts = liquidator.Contracts{
		Vault:  parse(cfg.Contracts.Vault),
		Router: parse(cfg.Contracts.Router),
		FLM:    parse(cfg.Contracts.FLM),
		FLUND:  parse(cfg.Contracts.FLUND),
	}
	fToken = parse(cfg.Liquidator.FTokenScriptHash)
	collateral = parse(cfg.Liquidator.CollateralScriptHash)
	if err != nil {
		return liquidator.Contracts{}, domain.ZeroScriptHash, domain.ZeroScriptHash, fmt.Errorf("wire: %w", err)
	}
	return contracts, fToken, collateral, nil
}

func engineConfig(cfg *config.Config) liquidator.Config {
	lc := liquidator.DefaultConfig()
	lc.Name = cfg.Liquidator.Name
	lc.DryRun = cfg.Liquidator.DryRun
	lc.OnChainPriceOnly = cfg.Liquidator.OnChainPriceOnly
	lc.LiquidateThreshold = decimal.NewFromFloat(cfg.Liquidator.LiquidateThreshold)
	lc.LowBalanceThreshold = decimal.NewFromFloat(cfg.Liquidator.LowBalanceThreshold)
	lc.MaxPageSize = cfg.Liquidator.MaxPageSize
	lc.AutoSwap = cfg.Liquidator.AutoSwap
	lc.SwapThreshold = decimal.NewFromInt(cfg.Liquidator.SwapThreshold)
	lc.VerifyWait = cfg.VerifyWait()
	lc.Interval = cfg.Interval()
	lc.ShuffleSeed = cfg.Liquidator.ShuffleSeed
	return lc
}
