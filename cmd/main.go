package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/exposurerisk/internal/adapters/http/api"
	"github.com/okian/exposurerisk/internal/adapters/http/swagger"
	"github.com/okian/exposurerisk/internal/adapters/mq/publisher"
	app "github.com/okian/exposurerisk/internal/app"
	"github.com/okian/exposurerisk/internal/config"
	"github.com/okian/exposurerisk/internal/domain/scoring"
	"github.com/okian/exposurerisk/pkg/logger"
	"github.com/okian/exposurerisk/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.InitWith(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		os.Stderr.WriteString("failed to configure logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "exposure risk service failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	scoringCfg, err := config.LoadScoring(ctx, cfg.ScoringConfigPath)
	if err != nil {
		return err
	}

	pub, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithResultRetention(cfg.ResultRetention),
		app.WithMaxWindowsPerRun(cfg.MaxWindowsPerRun),
		app.WithConfiguration(scoringCfg),
		app.WithPublisher(pub),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	if cfg.ScoringWatch {
		w, err := config.WatchScoring(ctx, cfg.ScoringConfigPath, onScoringChange(ctx, svc, log))
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newMux registers the API and docs routes.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}

// newPublisher returns a Kafka publisher when brokers are configured.
func newPublisher(cfg *config.Config, log logger.Logger) (publisher.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return publisher.Nop{}, nil
	}
	return publisher.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, publisher.WithLogger(log.Named("publisher")))
}

// onScoringChange activates reloaded configurations. A document that fails
// to load or validate leaves the active configuration in place.
func onScoringChange(ctx context.Context, svc *app.Service, log logger.Logger) func(*scoring.Configuration, error) {
	return func(c *scoring.Configuration, err error) {
		if err != nil {
			metrics.RecordConfigurationReload("failed")
			log.Error(ctx, "scoring configuration reload rejected", logger.Error(err))
			return
		}
		if err := svc.SetConfiguration(ctx, c); err != nil {
			metrics.RecordConfigurationReload("failed")
			log.Error(ctx, "scoring configuration activation failed", logger.Error(err))
			return
		}
		metrics.RecordConfigurationReload("ok")
	}
}

// startSystemMetricsUpdater periodically records memory and goroutine usage.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
