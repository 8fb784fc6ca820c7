package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	isatty "github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/metasphere-xyz/texttransform/internal/config"
	"github.com/metasphere-xyz/texttransform/internal/llm"
	"github.com/metasphere-xyz/texttransform/internal/metrics"
	"github.com/metasphere-xyz/texttransform/internal/server"
	"github.com/metasphere-xyz/texttransform/internal/transform"
	"github.com/metasphere-xyz/texttransform/internal/version"
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		configPath  string
		listen      string
		logLevel    string
		printConfig bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", os.Getenv("TEXTTRANSFORM_CONFIG"), "Path to YAML configuration file")
	flag.StringVar(&listen, "listen", "", "Listen address override, e.g. :2323")
	flag.StringVar(&logLevel, "log-level", "", "Log level override (trace, debug, info, warn, error)")
	flag.BoolVar(&printConfig, "print-config", false, "Print the effective configuration and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Long())
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := setupLogging(cfg); err != nil {
		log.Fatal().Err(err).Msg("configure logging")
	}

	if printConfig {
		dump, err := cfg.Dump()
		if err != nil {
			log.Fatal().Err(err).Msg("render configuration")
		}
		fmt.Print(dump)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// setupLogging applies the configured level and output format. The
// "auto" format picks the console writer on a terminal and JSON
// everywhere else.
func setupLogging(cfg *config.Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	format := cfg.Log.Format
	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "console"
		}
	}
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

// run wires the service graph and blocks until the listener fails or a
// shutdown signal arrives.
func run(cfg *config.Config) error {
	m := metrics.New()
	provider := llm.NewOpenAIProvider(cfg.LLM.BaseURL, cfg.LLM.APIKey.Value(), cfg.LLM.Timeout.Duration())
	gateway := llm.NewGateway(provider, cfg.LLM.Model, cfg.LLM.MaxAttempts, cfg.LLM.InitialBackoff.Duration(), m)
	svc := &transform.Service{
		Gateway:   gateway,
		Limits:    cfg.Limits(),
		Tolerance: cfg.Transform.Tolerance,
		Metrics:   m,
	}
	srv := server.New(cfg, svc, m)

	log.Info().
		Str("version", version.Resolve()).
		Str("listen", cfg.Server.Listen).
		Str("model", cfg.LLM.Model).
		Bool("auth_enabled", len(cfg.Server.APIKeys) > 0).
		Msg("starting texttransformd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	log.Info().Msg("shutdown complete")
	return nil
}
