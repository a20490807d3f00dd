package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inboxtriage/internal/config"
	"inboxtriage/internal/control"
	"inboxtriage/internal/host/gmailhost"
	"inboxtriage/internal/httpserver"
	"inboxtriage/internal/repository"
	"inboxtriage/internal/service"
	"inboxtriage/internal/triage"
	"inboxtriage/pkg/circuitbreaker"
	pkgconfig "inboxtriage/pkg/config"
	"inboxtriage/pkg/db"
	"inboxtriage/pkg/logger"
	"inboxtriage/pkg/mq"
	"inboxtriage/pkg/otel"
	redisclient "inboxtriage/pkg/redis"
)

func main() {
	cfg, err := config.Load(pkgconfig.GetConfigEnv(), pkgconfig.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	log.Info("Starting triage-runner...",
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("gmail_user", cfg.Gmail.User),
	)

	cfg.Otel.ServiceName = "triage-runner"
	shutdownOtel, err := otel.Init(cfg.Otel, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOtel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	if err := redisclient.Ping(ctx, rdb); err != nil {
		log.Fatal("Redis is not reachable", zap.Error(err))
	}
	log.Info("Redis connection established")

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Control plane
	plane := control.NewPlane(control.NewRedisStore(rdb), publisher, log, control.Options{
		ResetAfter:        cfg.Stats.ResetAfter,
		DefaultBackendURL: cfg.Classifier.DefaultURL,
	})
	state, err := plane.Init(ctx)
	if err != nil {
		log.Fatal("Failed to init control plane", zap.Error(err))
	}

	// Classifier
	var cb *circuitbreaker.CircuitBreaker
	if cfg.Classifier.CircuitBreaker.Enabled {
		cb = circuitbreaker.NewCircuitBreaker(cfg.Classifier.CircuitBreaker.Config)
	}
	classifier := service.NewClassifyClient(service.ClassifyClientOptions{
		Endpoint:       plane.BackendURL,
		Timeout:        cfg.Classifier.Timeout,
		CircuitBreaker: cb,
	})

	// Audit log（可选）
	var recorder triage.Recorder
	if cfg.DB.Enabled {
		dbConn, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			log.Warn("Audit log disabled: database unavailable", zap.Error(err))
		} else {
			defer dbConn.Close()
			repo := repository.NewTriageLogRepository(dbConn)
			if err := repo.EnsureSchema(ctx); err != nil {
				log.Fatal("Failed to ensure triage_log schema", zap.Error(err))
			}
			recorder = repo
		}
	}

	// Host surface
	gmailSvc, err := gmailhost.NewService(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile, log)
	if err != nil {
		log.Fatal("Failed to init Gmail service", zap.Error(err))
	}
	surface := gmailhost.NewSurface(gmailSvc, gmailhost.Options{
		User:         cfg.Gmail.User,
		Query:        cfg.Gmail.Query,
		MaxThreads:   cfg.Gmail.MaxThreads,
		PollInterval: cfg.Gmail.PollInterval,
	}, log)

	// Runner
	runner := triage.NewRunner(triage.Deps{
		Surface:    surface,
		Classifier: classifier,
		Stats:      plane,
		Recorder:   recorder,
		Logger:     log,
	}, triage.Config{
		BulkBatchSize:    cfg.Triage.BulkBatchSize,
		BulkPacing:       cfg.Triage.BulkPacing,
		CountPolicy:      triage.PolicyFor(cfg.Triage.CountFailedAttempts),
		ExtraGuardTitles: cfg.Triage.ExtraGuardTitles,
	})

	// MQ Consumer：每个 runner 独占一个队列，收到所有 triage.# 事件
	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Exchange, "", mq.BroadcastBinding, log)
	if err != nil {
		log.Fatal("Failed to init MQ consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(runner.HandleMessage)
	go func() {
		if err := consumer.StartConsuming(ctx); err != nil {
			log.Error("Consumer stopped", zap.Error(err))
		}
	}()

	runner.Start(ctx, control.Snapshot{Enabled: state.Enabled})

	go func() {
		if err := surface.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Gmail surface stopped", zap.Error(err))
		}
	}()

	// HTTP Server (health, metrics, status)
	router := httpserver.NewRouter(
		func(ctx context.Context) error { return redisclient.Ping(ctx, rdb) },
		func() any {
			return map[string]any{
				"state":   runner.State().String(),
				"enabled": runner.Snapshot().Enabled,
			}
		},
	)
	srv := &http.Server{
		Addr:    ":" + cfg.Triage.OpsPort,
		Handler: router.Engine,
	}
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("triage-runner is fully initialized and running",
		zap.Bool("enabled", state.Enabled),
		zap.Bool("audit_log", recorder != nil),
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down triage-runner gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 等待进行中的 pipeline 完成
	done := make(chan struct{})
	go func() {
		runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("In-flight pipelines did not finish before shutdown deadline")
	}

	log.Info("triage-runner shutdown complete")
}
