package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"inboxtriage/internal/api"
	"inboxtriage/internal/config"
	"inboxtriage/internal/control"
	"inboxtriage/internal/coordinator"
	"inboxtriage/internal/label"
	"inboxtriage/internal/repository"
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

	log.Info("Starting coordinator...",
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("mq_url", cfg.MQ.URL),
		zap.Duration("reset_after", cfg.Stats.ResetAfter),
	)

	cfg.Otel.ServiceName = "triage-coordinator"
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

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	plane := control.NewPlane(control.NewRedisStore(rdb), publisher, log, control.Options{
		ResetAfter:        cfg.Stats.ResetAfter,
		DefaultBackendURL: cfg.Classifier.DefaultURL,
	})

	// Audit log（可选，只用于按类别统计）
	var counter api.CategoryCounter
	if cfg.DB.Enabled {
		dbConn, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			log.Warn("Category breakdown disabled: database unavailable", zap.Error(err))
		} else {
			defer dbConn.Close()
			repo := repository.NewTriageLogRepository(dbConn)
			if err := repo.EnsureSchema(ctx); err != nil {
				log.Fatal("Failed to ensure triage_log schema", zap.Error(err))
			}
			counter = repo
		}
	}

	coord := coordinator.NewCoordinator(plane, log).WithInterval(cfg.Stats.CheckInterval)

	// 只订阅命令，状态变化事件由 runner 消费
	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Exchange, "triage.control.q", "triage.control.#", log)
	if err != nil {
		log.Fatal("Failed to init MQ consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(coord.HandleMessage)
	go func() {
		if err := consumer.StartConsuming(ctx); err != nil {
			log.Error("Consumer stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := coord.Run(ctx); err != nil {
			log.Fatal("Coordinator failed", zap.Error(err))
		}
	}()

	// Control API
	guard := label.NewGuard(cfg.Triage.ExtraGuardTitles...)
	handler := api.NewControlHandler(plane, counter, guard, log)
	router := api.NewRouter(handler, cfg.JWT.Secret, log)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Engine,
	}
	go func() {
		log.Info("Control API starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("coordinator is fully initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down coordinator gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("coordinator shutdown complete")
}
