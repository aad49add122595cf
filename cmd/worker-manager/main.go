package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mosaic-functions/internal/common/camunda"
	"mosaic-functions/internal/common/config"
	"mosaic-functions/internal/common/database"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/common/observability"
	"mosaic-functions/internal/functions/ipfs"
	"mosaic-functions/internal/workers/verification"
	certificateextraction "mosaic-functions/internal/workers/verification/certificate-extraction"
	workverification "mosaic-functions/internal/workers/verification/work-verification"
)

type registeredWorker interface {
	Register() error
	Close()
	HealthCheck(ctx context.Context) error
	GetTaskType() string
	IsEnabled() bool
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// connectRedis builds one client and retries only the ping, closing the
// client when every attempt fails.
func connectRedis(ctx context.Context, cfg config.RedisConfig, attempts int, delay time.Duration, log *zap.Logger) (*database.RedisClient, error) {
	client, err := database.NewRedis(cfg)
	if err != nil {
		return nil, err
	}
	err = retryWithBackoff(func() error {
		return client.Ping(ctx)
	}, attempts, delay, log, "Redis connection")
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	if err := cfg.RequireWorkerRuntime(); err != nil {
		zapLog.Fatal("worker runtime config incomplete", zap.Error(err))
	}

	obs, err := observability.New("worker-manager")
	if err != nil {
		zapLog.Warn("prometheus exporter unavailable, otel metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	if cfg.Tracing.Enabled {
		tracing, err := observability.NewTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			zapLog.Warn("jaeger exporter unavailable, tracing disabled", zap.Error(err))
		} else {
			obs.AttachTracing(tracing)
			zapLog.Info("Tracing enabled", zap.String("endpoint", cfg.Tracing.JaegerEndpoint))
		}
	}

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFromApp(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init Redis with retry ---
	// Redis only caches IPFS documents; the workers run without it.
	var cache ipfs.Cache
	var redis *database.RedisClient
	if cfg.Redis.Enabled {
		redis, err = connectRedis(ctx, cfg.Redis, 5, 2*time.Second, zapLog)
		if err != nil {
			zapLog.Warn("redis unavailable, IPFS cache disabled", zap.Error(err))
		} else {
			cache = redis
			zapLog.Info("Redis connected successfully")
		}
	}

	sources, err := verification.NewSources(cfg, cache, log)
	if err != nil {
		zapLog.Fatal("data sources failed", zap.Error(err))
	}

	// --- Init Workers ---
	wvHandler, err := workverification.NewHandler(workverification.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       zeebe,
		Logger:        log,
		Observability: obs,
		Sources:       sources,
	})
	if err != nil {
		zapLog.Fatal("work-verification handler failed", zap.Error(err))
	}

	ceHandler, err := certificateextraction.NewHandler(certificateextraction.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       zeebe,
		Logger:        log,
		Observability: obs,
		Sources:       sources,
	})
	if err != nil {
		zapLog.Fatal("certificate-extraction handler failed", zap.Error(err))
	}

	workers := []registeredWorker{wvHandler, ceHandler}
	for _, w := range workers {
		if err := w.Register(); err != nil {
			zapLog.Fatal("worker registration failed", zap.String("taskType", w.GetTaskType()), zap.Error(err))
		}
		zapLog.Info("Worker registered",
			zap.String("taskType", w.GetTaskType()),
			zap.Bool("enabled", w.IsEnabled()),
		)
	}
	zapLog.Info("All workers registered successfully", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		failing := map[string]string{}
		for _, wk := range workers {
			if !wk.IsEnabled() {
				continue
			}
			if err := wk.HealthCheck(checkCtx); err != nil {
				failing[wk.GetTaskType()] = err.Error()
			}
		}
		if redis != nil {
			if err := redis.Ping(checkCtx); err != nil {
				failing["redis"] = err.Error()
			}
		}
		if len(failing) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", failing)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	if redis != nil {
		if err := redis.Close(); err != nil {
			zapLog.Error("Error closing Redis client", zap.Error(err))
		}
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string, failing map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if len(failing) > 0 {
		body["failing"] = failing
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
