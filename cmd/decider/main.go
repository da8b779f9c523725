package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"prequal-service/internal/broker"
	"prequal-service/internal/config"
	"prequal-service/internal/consumer"
	"prequal-service/internal/decision"
	"prequal-service/internal/logger"
	"prequal-service/internal/metrics"
	"prequal-service/internal/model"
	"prequal-service/internal/repo"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.New("decision-service")
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&model.ProcessedMessage{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. kafka publisher (dead letters) + reader (manual offset commit)
	pub := broker.NewKafkaPublisher(cfg.Kafka.Brokers)
	defer pub.Close()
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.DecisionGroup,
		Topic:   cfg.Kafka.ScoredTopic,
	})

	// 5. metrics
	reg := prometheus.NewRegistry()
	consumerMetrics := metrics.NewConsumer(reg, "decision")
	if cfg.Metrics.Port > 0 {
		go serveMetrics(cfg.Metrics.Port, reg, log)
	}

	// 6. consumer
	repository := repo.NewRepository(gdb, log)
	handler := decision.NewHandler(repository, log)
	cons := consumer.New(repository, pub, handler.Handle, consumerMetrics, log, consumer.Options{
		Group:          cfg.Kafka.DecisionGroup,
		DLQSuffix:      cfg.Kafka.DLQSuffix,
		MaxAttempts:    cfg.Consumer.MaxAttempts,
		BaseBackoff:    cfg.Consumer.BaseBackoff.Std(),
		HandlerTimeout: cfg.Consumer.HandlerTimeout.Std(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.Infof("decision consumer started on %s", cfg.Kafka.ScoredTopic)
	if err := cons.Run(ctx, reader); err != nil {
		log.Fatalf("consumer: %v", err)
	}
}

func serveMetrics(port int, reg *prometheus.Registry, log interface{ Errorf(string, ...interface{}) }) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		log.Errorf("metrics listen: %v", err)
	}
}
