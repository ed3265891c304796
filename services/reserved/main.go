package reserved

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"reservenet/config"
	"reservenet/native/reserve"
	"reservenet/observability/logging"
	telemetry "reservenet/observability/otel"
	"reservenet/storage"
)

// Main runs the reserved daemon using the provided command line flags.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "reserved.toml", "path to reserved config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("RESERVED_ENV"))
	logger := logging.Setup("reserved", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "reserved",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	creds, err := LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "reserves"))
	if err != nil {
		return fmt.Errorf("open reserve database: %w", err)
	}
	defer func() { _ = db.Close() }()

	engine, err := reserve.NewEngine(cfg.Consensus.Params())
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	engine.SetAuthorizer(creds)
	engine.SetEmitter(NewLogEmitter(logger))
	engine.SetPauses(cfg.Pauses())
	engine.SetState(reserve.NewStore(db))
	if err := engine.LoadFinalized(); err != nil {
		return fmt.Errorf("hydrate finalized reserves: %w", err)
	}

	server := NewServer(engine, creds, logger)
	if cfg.RateLimit.SubmitPerMinute > 0 {
		server.SetRateLimiter(NewRateLimiter(RateLimit{
			RequestsPerMinute: cfg.RateLimit.SubmitPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      otelhttp.NewHandler(server.Router(), "reserved"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("reserved listening", "address", cfg.ListenAddress)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
