package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del liquidador.
type Config struct {
	Liquidator LiquidatorConfig `yaml:"liquidator"`
	Network    NetworkConfig    `yaml:"network"`
	Contracts  ContractsConfig  `yaml:"contracts"`
	PriceFeed  PriceFeedConfig  `yaml:"price_feed"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// LiquidatorConfig controla el comportamiento del control loop.
type LiquidatorConfig struct {
	Name                 string  `yaml:"name"`
	DryRun               bool    `yaml:"dry_run"`
	FTokenScriptHash     string  `yaml:"ftoken_script_hash"`
	CollateralScriptHash string  `yaml:"collateral_script_hash"`
	OnChainPriceOnly     bool    `yaml:"on_chain_price_only"` // también elige LIQUIDATE_OCP
	LiquidateThreshold   float64 `yaml:"liquidate_threshold"`   // unidades humanas de fToken
	LowBalanceThreshold  float64 `yaml:"low_balance_threshold"` // unidades humanas de fToken
	MaxPageSize          int     `yaml:"max_page_size"`
	AutoSwap             bool    `yaml:"auto_swap"`
	SwapThreshold        int64   `yaml:"swap_threshold"` // unidades mínimas del colateral
	VerifyWaitMillis     int     `yaml:"verify_wait_millis"`
	SleepMillis          int     `yaml:"sleep_millis"`
	ShuffleSeed          uint64  `yaml:"shuffle_seed"` // 0 = aleatorio por proceso

	// Account permite un dry run sin clave: dirección o script hash de la cuenta a observar.
	Account string `yaml:"account"`

	// PrivateKey solo se lee de LIQUIDATOR_PRIVATE_KEY, nunca del YAML.
	PrivateKey string `yaml:"-"`
}

// NetworkConfig contiene los endpoints del nodo NEO.
type NetworkConfig struct {
	RPCURL            string  `yaml:"rpc_url"`
	WSURL             string  `yaml:"ws_url"`
	NetworkMagic      uint32  `yaml:"network_magic"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ContractsConfig contiene los contratos fijos del protocolo.
type ContractsConfig struct {
	Vault  string `yaml:"vault"`
	Router string `yaml:"router"`
	FLM    string `yaml:"flm"`
	FLUND  string `yaml:"flund"`
}

// PriceFeedConfig apunta al feed off-chain firmado.
type PriceFeedConfig struct {
	URL string `yaml:"url"`
}

// WebhookConfig apunta al webhook de alertas (vacío = sin webhook).
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig controla dónde se persiste el journal.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig controla el servidor de métricas.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // vacío = deshabilitado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// N3MainnetMagic es el magic de la red principal de NEO N3.
const N3MainnetMagic uint32 = 860833102

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	return &cfg, nil
}

// VerifyWait devuelve la espera máxima de confirmación.
func (c *Config) VerifyWait() time.Duration {
	return time.Duration(c.Liquidator.VerifyWaitMillis) * time.Millisecond
}

// Interval devuelve el periodo objetivo de un ciclo.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Liquidator.SleepMillis) * time.Millisecond
}

// Validate comprueba que la configuración es utilizable. Se llama después de
// aplicar los flags de la línea de comandos.
func (c *Config) Validate() error {
	var errs []error

	required := map[string]string{
		"liquidator.ftoken_script_hash":     c.Liquidator.FTokenScriptHash,
		"liquidator.collateral_script_hash": c.Liquidator.CollateralScriptHash,
		"contracts.vault":                   c.Contracts.Vault,
		"network.rpc_url":                   c.Network.RPCURL,
		"network.ws_url":                    c.Network.WSURL,
	}
	for key, v := range required {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	hashes := map[string]string{
		"liquidator.ftoken_script_hash":     c.Liquidator.FTokenScriptHash,
		"liquidator.collateral_script_hash": c.Liquidator.CollateralScriptHash,
		"contracts.vault":                   c.Contracts.Vault,
		"contracts.router":                  c.Contracts.Router,
		"contracts.flm":                     c.Contracts.FLM,
		"contracts.flund":                   c.Contracts.FLUND,
		"liquidator.account":                c.Liquidator.Account,
	}
	for key, v := range hashes {
		if _, err := ParseHash(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if c.Liquidator.PrivateKey == "" {
		if !c.Liquidator.DryRun {
			errs = append(errs, errors.New("LIQUIDATOR_PRIVATE_KEY is required unless dry_run"))
		} else if c.Liquidator.Account == "" {
			errs = append(errs, errors.New("dry run without LIQUIDATOR_PRIVATE_KEY needs liquidator.account"))
		}
	}
	if c.Liquidator.AutoSwap && c.Contracts.Router == "" {
		errs = append(errs, errors.New("contracts.router is required when auto_swap is on"))
	}
	if !c.Liquidator.OnChainPriceOnly && c.PriceFeed.URL == "" {
		errs = append(errs, errors.New("price_feed.url is required unless on_chain_price_only"))
	}
	if c.Liquidator.LiquidateThreshold < 0 || c.Liquidator.SwapThreshold < 0 {
		errs = append(errs, errors.New("thresholds must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config.Validate: %w", err)
	}
	return nil
}

// ParseHash acepta un script hash en hex (0x… big-endian) o una dirección N3.
// Una cadena vacía devuelve el hash cero.
func ParseHash(s string) (domain.ScriptHash, error) {
	var h domain.ScriptHash
	if err := h.UnmarshalText([]byte(s)); err != nil {
		return domain.ZeroScriptHash, err
	}
	return h, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	cfg.Liquidator.PrivateKey = os.Getenv("LIQUIDATOR_PRIVATE_KEY")

	if v := os.Getenv("LIQUIDATOR_DRY_RUN"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LIQUIDATOR_DRY_RUN=%q: %w", v, err)
		}
		cfg.Liquidator.DryRun = dryRun
	}
	if v := os.Getenv("NEO_RPC_URL"); v != "" {
		cfg.Network.RPCURL = v
	}
	if v := os.Getenv("NEO_WS_URL"); v != "" {
		cfg.Network.WSURL = v
	}
	if v := os.Getenv("PRICE_FEED_URL"); v != "" {
		cfg.PriceFeed.URL = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Liquidator.Name == "" {
		cfg.Liquidator.Name = "liquidator"
	}
	if cfg.Liquidator.MaxPageSize <= 0 {
		cfg.Liquidator.MaxPageSize = 50
	}
	if cfg.Liquidator.VerifyWaitMillis <= 0 {
		cfg.Liquidator.VerifyWaitMillis = 30_000
	}
	if cfg.Liquidator.SleepMillis <= 0 {
		cfg.Liquidator.SleepMillis = 60_000
	}
	if cfg.Network.NetworkMagic == 0 {
		cfg.Network.NetworkMagic = N3MainnetMagic
	}
	if cfg.Network.RequestsPerSecond <= 0 {
		cfg.Network.RequestsPerSecond = 20
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "liquidator.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
