package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"prequal-service/internal/broker"
	"prequal-service/internal/config"
	"prequal-service/internal/logger"
	"prequal-service/internal/metrics"
	"prequal-service/internal/model"
	"prequal-service/internal/relay"
	"prequal-service/internal/repo"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.New("outbox-relay")
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&model.OutboxEvent{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. kafka publisher
	pub := broker.NewKafkaPublisher(cfg.Kafka.Brokers)
	defer pub.Close()

	// 5. metrics
	reg := prometheus.NewRegistry()
	relayMetrics := metrics.NewRelay(reg)
	if cfg.Metrics.Port > 0 {
		go serveMetrics(cfg.Metrics.Port, reg, log)
	}

	// 6. relay
	repository := repo.NewRepository(gdb, log)
	breaker := relay.NewBreaker(cfg.Relay.FailureThreshold, cfg.Relay.OpenCooldown.Std(), cfg.Relay.SuccessThreshold)
	rel := relay.New(repository, pub, breaker, relayMetrics, log, relay.Options{
		PollInterval:   cfg.Relay.PollInterval.Std(),
		BatchSize:      cfg.Relay.BatchSize,
		MaxRetries:     cfg.Relay.MaxRetries,
		PublishTimeout: cfg.Relay.PublishTimeout.Std(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rel.Run(ctx)
}

func serveMetrics(port int, reg *prometheus.Registry, log interface{ Errorf(string, ...interface{}) }) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		log.Errorf("metrics listen: %v", err)
	}
}
