package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

// Mode selects whether profitable plans run unattended.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Sizing modes mirror the executor ones; config keeps its own copy to stay import-free.
const (
	SizingInput   = "input"
	SizingBalance = "balance"
)

// Supported venue platforms.
const (
	PlatformBinance  = "binance"
	PlatformBybit    = "bybit"
	PlatformSimulate = "simulate"
)

type VenueConfig struct {
	Name     domain.Venue
	Platform string
}

type SettlementConfig struct {
	ReservePercent decimal.Decimal
	PollInterval   time.Duration
	MaxAttempts    int
}

type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  string
}

type SimulateConfig struct {
	// Balances initial free balance per asset, funded on every simulated venue.
	Balances map[string]decimal.Decimal
	// SpreadPercent price shift of the second simulated venue.
	SpreadPercent decimal.Decimal
	FeePercent    decimal.Decimal
	SettleDelay   time.Duration
}

type Config struct {
	Venues     []VenueConfig
	Pair       domain.Pair
	Scan       bool
	ScanBases  []string
	Amount     decimal.Decimal
	TickDelay  time.Duration
	AssetDelay time.Duration

	Mode          Mode
	Sizing        string
	SizePrecision int32
	Accessible    bool

	ProfitThreshold    decimal.Decimal
	LossAlertThreshold decimal.Decimal
	SellWithdrawFee    decimal.Decimal
	WithdrawBuffer     decimal.Decimal

	Network      string
	Networks     domain.SymbolTable
	Symbols      domain.SymbolTable
	WithdrawFees *domain.WithdrawFeeTable
	Settlement   SettlementConfig

	ReturnQuote bool
	Telegram    TelegramConfig
	StatusAddr  string
	Simulate    SimulateConfig
	LogLevel    string
}

type ConfigTmp struct {
	Venues []struct {
		Name     string `yaml:"name"`
		Platform string `yaml:"platform"`
	} `yaml:"venues"`
	Pair               string                       `yaml:"pair"`
	ScanBases          []string                     `yaml:"scan_bases,omitempty"`
	Amount             string                       `yaml:"amount"`
	TickDelay          time.Duration                `yaml:"tick_delay,omitempty"`
	AssetDelay         time.Duration                `yaml:"asset_delay,omitempty"`
	Mode               string                       `yaml:"mode,omitempty"`
	Sizing             string                       `yaml:"sizing,omitempty"`
	SizePrecision      *int32                       `yaml:"size_precision,omitempty"`
	Accessible         bool                         `yaml:"accessible,omitempty"`
	ProfitThreshold    string                       `yaml:"profit_threshold,omitempty"`
	LossAlertThreshold string                       `yaml:"loss_alert_threshold,omitempty"`
	SellWithdrawFee    string                       `yaml:"sell_withdraw_fee,omitempty"`
	WithdrawBuffer     string                       `yaml:"withdraw_buffer,omitempty"`
	Network            string                       `yaml:"network,omitempty"`
	Networks           map[string]map[string]string `yaml:"networks,omitempty"`
	Symbols            map[string]map[string]string `yaml:"symbols,omitempty"`
	WithdrawFees       struct {
		Default string                       `yaml:"default,omitempty"`
		Assets  map[string]string            `yaml:"assets,omitempty"`
		Venues  map[string]map[string]string `yaml:"venues,omitempty"`
	} `yaml:"withdraw_fees,omitempty"`
	Settlement struct {
		ReservePercent string        `yaml:"reserve_percent,omitempty"`
		PollInterval   time.Duration `yaml:"poll_interval,omitempty"`
		MaxAttempts    int           `yaml:"max_attempts,omitempty"`
	} `yaml:"settlement,omitempty"`
	ReturnQuote bool `yaml:"return_quote,omitempty"`
	Telegram    struct {
		Enabled bool   `yaml:"enabled,omitempty"`
		Token   string `yaml:"token,omitempty"`
		ChatID  string `yaml:"chat_id,omitempty"`
	} `yaml:"telegram,omitempty"`
	StatusAddr string `yaml:"status_addr,omitempty"`
	Simulate   struct {
		Balances      map[string]string `yaml:"balances,omitempty"`
		SpreadPercent string            `yaml:"spread_percent,omitempty"`
		FeePercent    string            `yaml:"fee_percent,omitempty"`
		SettleDelay   time.Duration     `yaml:"settle_delay,omitempty"`
	} `yaml:"simulate,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	fees := domain.NewWithdrawFeeTable(decimal.RequireFromString("0.005"))
	fees.Set(domain.AnyVenue, "TRUMP", decimal.RequireFromString("4.54"))
	fees.Set(domain.AnyVenue, "USDT", decimal.NewFromInt(2))

	return Config{
		Venues: []VenueConfig{
			{Name: PlatformBinance, Platform: PlatformBinance},
			{Name: PlatformBybit, Platform: PlatformBybit},
		},
		Pair:               domain.Pair{From: "XMR", To: "USDT"},
		Amount:             decimal.NewFromInt(10),
		TickDelay:          10 * time.Second,
		AssetDelay:         2 * time.Second,
		Mode:               ModeAuto,
		Sizing:             SizingInput,
		SizePrecision:      2,
		ProfitThreshold:    decimal.NewFromInt(1),
		LossAlertThreshold: decimal.NewFromInt(-5),
		SellWithdrawFee:    decimal.RequireFromString("2.5"),
		WithdrawBuffer:     decimal.Zero,
		Network:            "ERC20",
		Networks:           domain.SymbolTable{},
		Symbols:            domain.SymbolTable{},
		WithdrawFees:       fees,
		Settlement: SettlementConfig{
			ReservePercent: decimal.RequireFromString("0.02"),
			PollInterval:   3 * time.Second,
			MaxAttempts:    200,
		},
		Simulate: SimulateConfig{
			Balances:      map[string]decimal.Decimal{"USDT": decimal.NewFromInt(1000)},
			SpreadPercent: decimal.RequireFromString("0.5"),
			FeePercent:    decimal.RequireFromString("0.1"),
		},
		LogLevel: "info",
	}
}

// Get parses command line arguments: flags, then optional positional base, quote and amount.
func Get() (Config, error) {
	return Parse(os.Args[1:])
}

// Parse builds the configuration from defaults, the yaml file, environment and args, in that order.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("arbiter", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to yaml config")
	scan := fs.Bool("scan", false, "scan configured base assets instead of a single pair")
	simulate := fs.Bool("simulate", false, "trade against in-memory simulated venues")
	mode := fs.String("mode", "", "execution mode: auto or manual")
	sizing := fs.String("sizing", "", "buy sizing: input or balance")
	statusAddr := fs.String("status", "", "address of the status stream server, example: :8080")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if *configPath != "" {
		var err error
		cfg, err = getYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if *scan {
		cfg.Scan = true
	}
	if *simulate {
		cfg.Venues = []VenueConfig{
			{Name: "simulate-a", Platform: PlatformSimulate},
			{Name: "simulate-b", Platform: PlatformSimulate},
		}
	}
	if *mode != "" {
		cfg.Mode = Mode(strings.ToLower(*mode))
	}
	if *sizing != "" {
		cfg.Sizing = strings.ToLower(*sizing)
	}
	if *statusAddr != "" {
		cfg.StatusAddr = *statusAddr
	}

	if err := applyPositional(&cfg, fs.Args()); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyPositional reads [base] [quote] [amount].
func applyPositional(cfg *Config, args []string) error {
	if len(args) > 3 {
		return errors.Errorf("too many arguments, usage: arbiter [flags] [base] [quote] [amount]")
	}
	if len(args) > 0 {
		cfg.Pair.From = strings.ToUpper(args[0])
	}
	if len(args) > 1 {
		cfg.Pair.To = strings.ToUpper(args[1])
	}
	if len(args) > 2 {
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			return errors.Wrapf(err, "invalid amount %q", args[2])
		}
		cfg.Amount = amount
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPPORTUNITY_FIND"); v != "" {
		cfg.Mode = Mode(strings.ToLower(v))
	}
	if v := os.Getenv("TRADING_AMOUNT_BY"); v != "" {
		cfg.Sizing = strings.ToLower(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("TELEGRAM_MSG"); v != "" {
		cfg.Telegram.Enabled = strings.EqualFold(v, "yes") || strings.EqualFold(v, "true")
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if len(c.Venues) != 2 {
		return fmt.Errorf("exactly two venues are required, got %d", len(c.Venues))
	}
	if c.Venues[0].Name == c.Venues[1].Name {
		return fmt.Errorf("venues must differ, both are named %q", c.Venues[0].Name)
	}
	for _, v := range c.Venues {
		switch v.Platform {
		case PlatformBinance, PlatformBybit, PlatformSimulate:
		default:
			return fmt.Errorf("unsupported platform %q for venue %q", v.Platform, v.Name)
		}
	}
	if c.Pair.From == "" || c.Pair.To == "" {
		return fmt.Errorf("incomplete pair %q", c.Pair.String())
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", c.Amount.String())
	}
	if c.Scan && len(c.ScanBases) == 0 {
		return errors.New("scan mode needs at least one entry in scan_bases")
	}
	if c.Mode != ModeAuto && c.Mode != ModeManual {
		return fmt.Errorf("unknown mode %q, expected auto or manual", c.Mode)
	}
	if c.Sizing != SizingInput && c.Sizing != SizingBalance {
		return fmt.Errorf("unknown sizing %q, expected input or balance", c.Sizing)
	}
	if !c.ProfitThreshold.IsPositive() {
		return fmt.Errorf("profit_threshold must be positive, got %s", c.ProfitThreshold.String())
	}
	if c.LossAlertThreshold.GreaterThanOrEqual(c.ProfitThreshold) {
		return fmt.Errorf("loss_alert_threshold %s must be below profit_threshold %s",
			c.LossAlertThreshold.String(), c.ProfitThreshold.String())
	}
	if c.Settlement.ReservePercent.IsNegative() || c.Settlement.ReservePercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("settlement reserve_percent must be in [0, 100), got %s", c.Settlement.ReservePercent.String())
	}
	if c.Settlement.MaxAttempts < 1 {
		return fmt.Errorf("settlement max_attempts must be positive, got %d", c.Settlement.MaxAttempts)
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == "") {
		return errors.New("telegram is enabled but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID is empty")
	}
	return nil
}

func getYaml(path string) (Config, error) {
	var tmp ConfigTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse yaml config")
	}

	return fromTmp(tmp)
}

func fromTmp(c ConfigTmp) (Config, error) {
	cfg := Default()

	if len(c.Venues) > 0 {
		cfg.Venues = cfg.Venues[:0]
		for _, v := range c.Venues {
			name := v.Name
			if name == "" {
				name = v.Platform
			}
			cfg.Venues = append(cfg.Venues, VenueConfig{Name: domain.Venue(name), Platform: strings.ToLower(v.Platform)})
		}
	}

	if c.Pair != "" {
		pair, err := domain.ParsePair(c.Pair)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'pair' param in yaml config: %s, error: %w", c.Pair, err)
		}
		cfg.Pair = pair
	}
	for _, base := range c.ScanBases {
		cfg.ScanBases = append(cfg.ScanBases, strings.ToUpper(base))
	}

	decimals := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"amount", c.Amount, &cfg.Amount},
		{"profit_threshold", c.ProfitThreshold, &cfg.ProfitThreshold},
		{"loss_alert_threshold", c.LossAlertThreshold, &cfg.LossAlertThreshold},
		{"sell_withdraw_fee", c.SellWithdrawFee, &cfg.SellWithdrawFee},
		{"withdraw_buffer", c.WithdrawBuffer, &cfg.WithdrawBuffer},
		{"settlement.reserve_percent", c.Settlement.ReservePercent, &cfg.Settlement.ReservePercent},
		{"simulate.spread_percent", c.Simulate.SpreadPercent, &cfg.Simulate.SpreadPercent},
		{"simulate.fee_percent", c.Simulate.FeePercent, &cfg.Simulate.FeePercent},
	}
	for _, d := range decimals {
		if d.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", d.name, err)
		}
		*d.dst = v
	}

	if c.TickDelay > 0 {
		cfg.TickDelay = c.TickDelay
	}
	if c.AssetDelay > 0 {
		cfg.AssetDelay = c.AssetDelay
	}
	if c.Mode != "" {
		cfg.Mode = Mode(strings.ToLower(c.Mode))
	}
	if c.Sizing != "" {
		cfg.Sizing = strings.ToLower(c.Sizing)
	}
	if c.SizePrecision != nil {
		cfg.SizePrecision = *c.SizePrecision
	}
	cfg.Accessible = c.Accessible
	if c.Network != "" {
		cfg.Network = strings.ToUpper(c.Network)
	}
	if c.Settlement.PollInterval > 0 {
		cfg.Settlement.PollInterval = c.Settlement.PollInterval
	}
	if c.Settlement.MaxAttempts > 0 {
		cfg.Settlement.MaxAttempts = c.Settlement.MaxAttempts
	}

	for venue, m := range c.Networks {
		for canonical, local := range m {
			cfg.Networks.Set(domain.Venue(venue), canonical, local)
		}
	}
	for venue, m := range c.Symbols {
		for canonical, local := range m {
			cfg.Symbols.Set(domain.Venue(venue), canonical, local)
		}
	}

	if c.WithdrawFees.Default != "" {
		def, err := decimal.NewFromString(c.WithdrawFees.Default)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'withdraw_fees.default' param in yaml config, error: %w", err)
		}
		cfg.WithdrawFees.Default = def
	}
	for asset, raw := range c.WithdrawFees.Assets {
		fee, err := decimal.NewFromString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect withdraw fee for %s in yaml config, error: %w", asset, err)
		}
		cfg.WithdrawFees.Set(domain.AnyVenue, asset, fee)
	}
	for venue, assets := range c.WithdrawFees.Venues {
		for asset, raw := range assets {
			fee, err := decimal.NewFromString(raw)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect withdraw fee for %s on %s in yaml config, error: %w", asset, venue, err)
			}
			cfg.WithdrawFees.Set(domain.Venue(venue), asset, fee)
		}
	}

	cfg.ReturnQuote = c.ReturnQuote
	cfg.Telegram = TelegramConfig{Enabled: c.Telegram.Enabled, Token: c.Telegram.Token, ChatID: c.Telegram.ChatID}
	cfg.StatusAddr = c.StatusAddr

	if len(c.Simulate.Balances) > 0 {
		cfg.Simulate.Balances = make(map[string]decimal.Decimal, len(c.Simulate.Balances))
		for asset, raw := range c.Simulate.Balances {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect simulate balance for %s in yaml config, error: %w", asset, err)
			}
			cfg.Simulate.Balances[strings.ToUpper(asset)] = amount
		}
	}
	cfg.Simulate.SettleDelay = c.Simulate.SettleDelay

	if c.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(c.LogLevel)
	}

	return cfg, nil
}
