// Command browsercore runs the browser automation core behind its
// reference HTTP+WebSocket frontend.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/browsercore/browsercore/internal/config"
	"github.com/browsercore/browsercore/internal/coreapi"
	"github.com/browsercore/browsercore/internal/corelog"
	"github.com/browsercore/browsercore/internal/frontend"
)

func main() {
	var (
		bindAddr       = flag.String("bind", "0.0.0.0:8080", "HTTP bind address")
		configPath     = flag.String("config", "", "Path to a YAML config file; built-in defaults are used when empty")
		rateLimitRPS   = flag.Float64("rate-limit-rps", 50, "Per-caller requests/second; 0 disables rate limiting")
		rateLimitBurst = flag.Int("rate-limit-burst", 100, "Per-caller burst size")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "browsercore: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "browsercore: configure logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	api, err := coreapi.New(cfg, log)
	if err != nil {
		log.Fatal("construct core", zap.Error(err))
	}

	fe := frontend.New(api, log, *rateLimitRPS, *rateLimitBurst)
	httpServer := &http.Server{
		Addr:    *bindAddr,
		Handler: fe.Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("listening", zap.String("addr", *bindAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown did not complete cleanly", zap.Error(err))
	}
	if err := api.Shutdown(); err != nil {
		log.Warn("core shutdown did not complete cleanly", zap.Error(err))
	}
}

func loadConfig(path string) (config.CoreConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return config.CoreConfig{}, err
	}
	return *cfg, nil
}

// newLogger maps the ambient logging block onto corelog.Config, filling in
// the rotation/async knobs corelog.Config exposes but config.LoggingConfig
// doesn't surface, since the core only ever needs level/format/output
// configured per deployment.
func newLogger(cfg config.LoggingConfig) (*corelog.Logger, error) {
	lc := corelog.DefaultConfig()
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	if cfg.Output != "" {
		lc.Output = cfg.Output
	}
	return corelog.New(lc)
}
