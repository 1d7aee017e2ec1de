package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "mtbridge-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MT5_ACCOUNT", "MT5_PASSWORD", "MT5_SERVER", "MT5_PATH", "MT5_BRIDGE_URL",
		"MT5_DEFAULT_SUFFIX", "DEFAULT_VOLUME", "DEFAULT_STOP_LOSS", "DEFAULT_TAKE_PROFIT",
		"SQLITE_PATH", "LOG_LEVEL", "SERVER_HOST", "SERVER_PORT",
		"SMTP_SERVER", "SMTP_PORT", "SENDER_EMAIL", "SENDER_PASSWORD", "RECEIVER_EMAIL",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	path := writeTempConfig(t, `
server:
  host: "127.0.0.1"
  port: 5000
terminal:
  account: 12345678
  password: "secret"
  server: "Broker-Demo"
  path: "C:\\Program Files\\MetaTrader 5\\terminal64.exe"
  bridge_url: "ws://127.0.0.1:9000/mt5"
  call_timeout: 5s
trading:
  default_volume: 0.02
  symbol_suffix: ".pro"
  default_stop_loss_pips: 100
  default_take_profit_pips: 200
  deviation_points: 30
  magic_number: 42
  flatten_opposite: true
storage:
  sqlite_path: "/tmp/mtbridge/journal.db"
logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Terminal.Account != 12345678 {
		t.Errorf("Terminal.Account = %d, want %d", cfg.Terminal.Account, 12345678)
	}
	if cfg.Terminal.BridgeURL != "ws://127.0.0.1:9000/mt5" {
		t.Errorf("Terminal.BridgeURL = %q, want %q", cfg.Terminal.BridgeURL, "ws://127.0.0.1:9000/mt5")
	}
	if cfg.Terminal.CallTimeout.Std() != 5*time.Second {
		t.Errorf("Terminal.CallTimeout = %v, want %v", cfg.Terminal.CallTimeout.Std(), 5*time.Second)
	}
	if cfg.Trading.DefaultVolume != 0.02 {
		t.Errorf("Trading.DefaultVolume = %v, want %v", cfg.Trading.DefaultVolume, 0.02)
	}
	if cfg.Trading.SymbolSuffix != ".pro" {
		t.Errorf("Trading.SymbolSuffix = %q, want %q", cfg.Trading.SymbolSuffix, ".pro")
	}
	if cfg.Trading.DeviationPoints != 30 {
		t.Errorf("Trading.DeviationPoints = %d, want %d", cfg.Trading.DeviationPoints, 30)
	}
	if !cfg.Trading.FlattenOpposite {
		t.Error("Trading.FlattenOpposite = false, want true")
	}
	if cfg.Storage.SQLitePath != "/tmp/mtbridge/journal.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/mtbridge/journal.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error for complete config: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	path := writeTempConfig(t, `
terminal:
  account: 1
  password: "p"
  server: "s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, 5000)
	}
	if cfg.Terminal.BridgeURL != "ws://127.0.0.1:8765/mt5" {
		t.Errorf("Terminal.BridgeURL = %q, want default bridge URL", cfg.Terminal.BridgeURL)
	}
	if cfg.Terminal.CallTimeout.Std() != 10*time.Second {
		t.Errorf("Terminal.CallTimeout = %v, want default 10s", cfg.Terminal.CallTimeout.Std())
	}
	if cfg.Trading.DefaultVolume != 0.01 {
		t.Errorf("Trading.DefaultVolume = %v, want default 0.01", cfg.Trading.DefaultVolume)
	}
	if cfg.Trading.DeviationPoints != 20 {
		t.Errorf("Trading.DeviationPoints = %d, want default 20", cfg.Trading.DeviationPoints)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %q/%q, want info/json defaults", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)

	path := writeTempConfig(t, `
terminal:
  account: 1
  password: "yaml-password"
  server: "yaml-server"
trading:
  symbol_suffix: ".raw"
`)

	os.Setenv("MT5_ACCOUNT", "99")
	os.Setenv("MT5_DEFAULT_SUFFIX", ".pro")
	os.Setenv("DEFAULT_VOLUME", "0.5")
	os.Setenv("DEFAULT_STOP_LOSS", "150")
	os.Setenv("DEFAULT_TAKE_PROFIT", "300")
	os.Setenv("SMTP_SERVER", "smtp.env.example.com")
	os.Setenv("SMTP_PORT", "2525")
	os.Setenv("SENDER_EMAIL", "bot@env.example.com")
	os.Setenv("SENDER_PASSWORD", "env-app-password")
	os.Setenv("RECEIVER_EMAIL", "ops@env.example.com")
	defer clearEnv(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Terminal.Account != 99 {
		t.Errorf("Terminal.Account = %d, want %d (env override)", cfg.Terminal.Account, 99)
	}
	// password should remain from YAML since no env override was set.
	if cfg.Terminal.Password != "yaml-password" {
		t.Errorf("Terminal.Password = %q, want %q (from YAML)", cfg.Terminal.Password, "yaml-password")
	}
	if cfg.Trading.SymbolSuffix != ".pro" {
		t.Errorf("Trading.SymbolSuffix = %q, want %q (env override)", cfg.Trading.SymbolSuffix, ".pro")
	}
	if cfg.Trading.DefaultVolume != 0.5 {
		t.Errorf("Trading.DefaultVolume = %v, want %v (env override)", cfg.Trading.DefaultVolume, 0.5)
	}
	if cfg.Trading.DefaultStopLossPips != 150 {
		t.Errorf("Trading.DefaultStopLossPips = %v, want %v (env override)", cfg.Trading.DefaultStopLossPips, 150.0)
	}
	if cfg.Trading.DefaultTakeProfitPips != 300 {
		t.Errorf("Trading.DefaultTakeProfitPips = %v, want %v (env override)", cfg.Trading.DefaultTakeProfitPips, 300.0)
	}
	if cfg.Email.SMTPHost != "smtp.env.example.com" {
		t.Errorf("Email.SMTPHost = %q, want %q (env override)", cfg.Email.SMTPHost, "smtp.env.example.com")
	}
	if cfg.Email.SMTPPort != 2525 {
		t.Errorf("Email.SMTPPort = %d, want %d (env override)", cfg.Email.SMTPPort, 2525)
	}
	if cfg.Email.Sender != "bot@env.example.com" {
		t.Errorf("Email.Sender = %q, want %q (env override)", cfg.Email.Sender, "bot@env.example.com")
	}
	if cfg.Email.Password != "env-app-password" {
		t.Errorf("Email.Password = %q, want env override", cfg.Email.Password)
	}
	if cfg.Email.Receiver != "ops@env.example.com" {
		t.Errorf("Email.Receiver = %q, want %q (env override)", cfg.Email.Receiver, "ops@env.example.com")
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	clearEnv(t)

	path := writeTempConfig(t, `
logging:
  level: "info"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil for config without credentials, want error")
	}
	for _, want := range []string{"terminal.account", "terminal.password", "terminal.server"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}
