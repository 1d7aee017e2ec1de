// Package config loads and validates the bridge configuration from a YAML
// file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Duration wraps time.Duration so YAML values can use "10s"-style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration for the bridge.
type Config struct {
	Server   Server   `yaml:"server"`
	Terminal Terminal `yaml:"terminal"`
	Trading  Trading  `yaml:"trading"`
	Storage  Storage  `yaml:"storage"`
	Logging  Logging  `yaml:"logging"`
	Email    Email    `yaml:"email"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Terminal holds credentials and session parameters for the trading terminal.
type Terminal struct {
	Account     int64         `yaml:"account"`
	Password    string        `yaml:"password"`
	Server      string        `yaml:"server"`
	Path        string        `yaml:"path"`
	BridgeURL   string        `yaml:"bridge_url"`
	CallTimeout Duration      `yaml:"call_timeout"`
}

// Trading defines order defaults and execution parameters.
type Trading struct {
	DefaultVolume         float64 `yaml:"default_volume"`
	SymbolSuffix          string  `yaml:"symbol_suffix"`
	DefaultStopLossPips   float64 `yaml:"default_stop_loss_pips"`
	DefaultTakeProfitPips float64 `yaml:"default_take_profit_pips"`
	DeviationPoints       int     `yaml:"deviation_points"`
	MagicNumber           int     `yaml:"magic_number"`
	FlattenOpposite       bool    `yaml:"flatten_opposite"`
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Email configures optional SMTP alerts on executed orders and errors.
// Alerts are disabled when Sender is empty.
type Email struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Sender   string `yaml:"sender"`
	Password string `yaml:"password"`
	Receiver string `yaml:"receiver"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills in
// defaults for unset optional fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MT5_ACCOUNT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Terminal.Account = n
		}
	}
	if v := os.Getenv("MT5_PASSWORD"); v != "" {
		cfg.Terminal.Password = v
	}
	if v := os.Getenv("MT5_SERVER"); v != "" {
		cfg.Terminal.Server = v
	}
	if v := os.Getenv("MT5_PATH"); v != "" {
		cfg.Terminal.Path = v
	}
	if v := os.Getenv("MT5_BRIDGE_URL"); v != "" {
		cfg.Terminal.BridgeURL = v
	}
	if v := os.Getenv("MT5_DEFAULT_SUFFIX"); v != "" {
		cfg.Trading.SymbolSuffix = v
	}
	if v := os.Getenv("DEFAULT_VOLUME"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.DefaultVolume = f
		}
	}
	if v := os.Getenv("DEFAULT_STOP_LOSS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.DefaultStopLossPips = f
		}
	}
	if v := os.Getenv("DEFAULT_TAKE_PROFIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.DefaultTakeProfitPips = f
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("SMTP_SERVER"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = n
		}
	}
	if v := os.Getenv("SENDER_EMAIL"); v != "" {
		cfg.Email.Sender = v
	}
	if v := os.Getenv("SENDER_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}
	if v := os.Getenv("RECEIVER_EMAIL"); v != "" {
		cfg.Email.Receiver = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
}

// applyDefaults fills unset optional fields with the standard defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Terminal.BridgeURL == "" {
		cfg.Terminal.BridgeURL = "ws://127.0.0.1:8765/mt5"
	}
	if cfg.Terminal.CallTimeout == 0 {
		cfg.Terminal.CallTimeout = Duration(10 * time.Second)
	}
	if cfg.Trading.DefaultVolume == 0 {
		cfg.Trading.DefaultVolume = 0.01
	}
	if cfg.Trading.DeviationPoints == 0 {
		cfg.Trading.DeviationPoints = 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Email.SMTPHost == "" {
		cfg.Email.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
}

// Validate reports configuration problems that would prevent the bridge
// from operating. All problems are returned at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Terminal.Account == 0 {
		errs = append(errs, errors.New("terminal.account is required"))
	}
	if c.Terminal.Password == "" {
		errs = append(errs, errors.New("terminal.password is required"))
	}
	if c.Terminal.Server == "" {
		errs = append(errs, errors.New("terminal.server is required"))
	}
	if c.Trading.DefaultVolume <= 0 {
		errs = append(errs, fmt.Errorf("trading.default_volume must be positive, got %v", c.Trading.DefaultVolume))
	}
	if c.Terminal.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("terminal.call_timeout must be positive, got %v", c.Terminal.CallTimeout.Std()))
	}
	if c.Email.Sender != "" && c.Email.Receiver == "" {
		errs = append(errs, errors.New("email.receiver is required when email.sender is set"))
	}

	return errors.Join(errs...)
}
