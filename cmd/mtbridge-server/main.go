package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mtbridge/internal/alert"
	"mtbridge/internal/config"
	"mtbridge/internal/engine"
	"mtbridge/internal/httpapi"
	"mtbridge/internal/journal"
	"mtbridge/internal/registry"
	sig "mtbridge/internal/signal"
	"mtbridge/internal/terminal"
	"mtbridge/internal/util"
)

func main() {
	// Load config.
	cfgPath := "config/mtbridge.yaml"
	if p := os.Getenv("MTBRIDGE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Setup logging.
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	// Open the signal journal.
	jnl, err := journal.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening signal journal: %v", err)
	}
	defer jnl.Close()

	// Establish the terminal session. Startup retries transient failures;
	// after that, reconnection is the session's own single-attempt policy.
	session := terminal.NewSession(terminal.Options{
		BridgeURL:   cfg.Terminal.BridgeURL,
		Account:     cfg.Terminal.Account,
		Password:    cfg.Terminal.Password,
		Server:      cfg.Terminal.Server,
		Path:        cfg.Terminal.Path,
		Deviation:   cfg.Trading.DeviationPoints,
		Magic:       cfg.Trading.MagicNumber,
		CallTimeout: cfg.Terminal.CallTimeout.Std(),
	}, logger)
	defer session.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := util.Retry(ctx, 5, 2*time.Second, func() error {
		return session.Connect(ctx)
	}); err != nil {
		log.Fatalf("connecting to terminal: %v", err)
	}

	mailer := alert.New(
		cfg.Email.SMTPHost, cfg.Email.SMTPPort,
		cfg.Email.Sender, cfg.Email.Password, cfg.Email.Receiver,
		logger,
	)
	if mailer.Enabled() {
		logger.Info("email alerts enabled", "receiver", cfg.Email.Receiver)
	}

	reg := registry.New(session, logger)
	eng := engine.New(session, reg, engine.Options{
		Suffix: cfg.Trading.SymbolSuffix,
		Defaults: sig.Defaults{
			Volume:         cfg.Trading.DefaultVolume,
			StopLossPips:   cfg.Trading.DefaultStopLossPips,
			TakeProfitPips: cfg.Trading.DefaultTakeProfitPips,
		},
		Deviation:       cfg.Trading.DeviationPoints,
		Magic:           cfg.Trading.MagicNumber,
		FlattenOpposite: cfg.Trading.FlattenOpposite,
	}, jnl, mailer, logger)

	api := httpapi.NewServer(eng, reg, session, jnl, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}

	go func() {
		logger.Info("mtbridge listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down mtbridge")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
