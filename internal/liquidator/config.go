package liquidator

import (
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/shopspring/decimal"
)

// Config contiene la configuración del liquidador.
type Config struct {
	Name   string
	DryRun bool

	// OnChainPriceOnly selecciona a la vez el modo de precios y la variante de liquidación.
	OnChainPriceOnly bool

	LiquidateThreshold  decimal.Decimal // unidades humanas de fToken
	LowBalanceThreshold decimal.Decimal // unidades humanas de fToken
	MaxPageSize         int

	AutoSwap      bool
	SwapThreshold decimal.Decimal // unidades mínimas del colateral

	VerifyWait  time.Duration
	Interval    time.Duration
	ShuffleSeed uint64 // 0 = aleatorio por proceso
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		Name:                "liquidator",
		DryRun:              true,
		LiquidateThreshold:  decimal.NewFromInt(10),
		LowBalanceThreshold: decimal.NewFromInt(100),
		MaxPageSize:         50,
		VerifyWait:          30 * time.Second,
		Interval:            60 * time.Second,
	}
}

// Contracts agrupa los contratos fijos del protocolo.
type Contracts struct {
	Vault  domain.ScriptHash
	Router domain.ScriptHash
	FLM    domain.ScriptHash // token subyacente del colateral envuelto
	FLUND  domain.ScriptHash // colateral envuelto
}
