package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AlertKind identifica cada notificación saliente.
type AlertKind string

const (
	AlertInit                 AlertKind = "init"
	AlertLowBalance           AlertKind = "low_balance"
	AlertLiquidateInitiated   AlertKind = "liquidate_initiated"
	AlertLiquidateSuccess     AlertKind = "liquidate_success"
	AlertLiquidateFailure     AlertKind = "liquidate_failure"
	AlertLiquidateUnconfirmed AlertKind = "liquidate_unconfirmed"
	AlertSwapInitiated        AlertKind = "swap_initiated"
	AlertSwapSuccess          AlertKind = "swap_success"
	AlertSwapFailure          AlertKind = "swap_failure"
	AlertSwapUnconfirmed      AlertKind = "swap_unconfirmed"
	AlertExitInitiated        AlertKind = "exit_initiated"
	AlertExitSuccess          AlertKind = "exit_success"
	AlertExitFailure          AlertKind = "exit_failure"
	AlertExitUnconfirmed      AlertKind = "exit_unconfirmed"
)

// Alert es una notificación fire-and-forget hacia el exterior (webhook, logs).
// Las cantidades ya vienen escaladas a unidades humanas.
type Alert struct {
	Kind       AlertKind
	Liquidator string
	DryRun     bool
	FromSymbol string
	ToSymbol   string
	InAmount   decimal.Decimal
	OutAmount  decimal.Decimal
	Threshold  decimal.Decimal
	TxID       string
}

// Message devuelve el texto legible de la alerta.
func (a Alert) Message() string {
	prefix := ""
	if a.DryRun {
		prefix = "[DRY RUN] "
	}
	pair := fmt.Sprintf("%s/%s", a.FromSymbol, a.ToSymbol)
	tx := a.TxID
	if tx == "" {
		tx = "n/a"
	}

	var body string
	switch a.Kind {
	case AlertInit:
		body = fmt.Sprintf("Initialized for %s, balance %s %s", pair, a.InAmount, a.ToSymbol)
	case AlertLowBalance:
		body = fmt.Sprintf("Low balance: %s %s < %s", a.InAmount, a.ToSymbol, a.Threshold)
	case AlertLiquidateInitiated:
		body = fmt.Sprintf("Liquidation initiated: %s %s for %s (tx %s)", a.InAmount, a.ToSymbol, a.FromSymbol, tx)
	case AlertLiquidateSuccess:
		body = fmt.Sprintf("Liquidation succeeded: repaid %s %s, received %s %s (tx %s)", a.InAmount, a.ToSymbol, a.OutAmount, a.FromSymbol, tx)
	case AlertLiquidateFailure:
		body = fmt.Sprintf("Liquidation failed for %s, funds have not been sent", pair)
	case AlertLiquidateUnconfirmed:
		body = fmt.Sprintf("Liquidation %s unconfirmed, it may still have succeeded", pair)
	case AlertSwapInitiated:
		body = fmt.Sprintf("Swap initiated: %s %s -> %s (tx %s)", a.InAmount, a.FromSymbol, a.ToSymbol, tx)
	case AlertSwapSuccess:
		body = fmt.Sprintf("Swap succeeded: %s %s -> %s %s (tx %s)", a.InAmount, a.FromSymbol, a.OutAmount, a.ToSymbol, tx)
	case AlertSwapFailure:
		body = fmt.Sprintf("Swap %s failed, funds have not been sent", pair)
	case AlertSwapUnconfirmed:
		body = fmt.Sprintf("Swap %s unconfirmed, it may still have succeeded", pair)
	case AlertExitInitiated:
		body = fmt.Sprintf("Exit initiated: %s %s (tx %s)", a.InAmount, a.FromSymbol, tx)
	case AlertExitSuccess:
		body = fmt.Sprintf("Exit succeeded: %s %s -> %s %s (tx %s)", a.InAmount, a.FromSymbol, a.OutAmount, a.ToSymbol, tx)
	case AlertExitFailure:
		body = fmt.Sprintf("Exit %s failed, funds have not been sent", a.FromSymbol)
	case AlertExitUnconfirmed:
		body = fmt.Sprintf("Exit %s unconfirmed, it may still have succeeded", a.FromSymbol)
	default:
		body = string(a.Kind)
	}
	return fmt.Sprintf("%s%s: %s", prefix, a.Liquidator, body)
}
