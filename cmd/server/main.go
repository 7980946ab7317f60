package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/courtbook/webhook-service/internal/config"
	"github.com/courtbook/webhook-service/internal/gateway"
	"github.com/courtbook/webhook-service/internal/logger"
	"github.com/courtbook/webhook-service/internal/model"
	"github.com/courtbook/webhook-service/internal/notify"
	"github.com/courtbook/webhook-service/internal/repo"
	"github.com/courtbook/webhook-service/internal/service"
	httptransport "github.com/courtbook/webhook-service/internal/transport/http"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&model.WebhookEvent{}, &model.Payment{}, &model.Booking{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis (tick leases; the ingest path never touches it)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer for the notification relay
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	// 6. repo & service
	repository := repo.NewRepository(gdb, rdb, log)
	notifier := notify.NewKafkaNotifier(kw)
	svc := service.NewWebhookService(repository, notifier, gateway.All(), cfg.Retry, cfg.Scheduler.BatchSize, log)

	// 7. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)

	// 8. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("webhook-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
