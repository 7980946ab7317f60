package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/courtbook/webhook-service/internal/config"
	"github.com/courtbook/webhook-service/internal/gateway"
	"github.com/courtbook/webhook-service/internal/logger"
	"github.com/courtbook/webhook-service/internal/notify"
	"github.com/courtbook/webhook-service/internal/repo"
	"github.com/courtbook/webhook-service/internal/scheduler"
	"github.com/courtbook/webhook-service/internal/service"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	repository := repo.NewRepository(gdb, rdb, log)
	notifier := notify.NewKafkaNotifier(kw)
	svc := service.NewWebhookService(repository, notifier, gateway.All(), cfg.Retry, cfg.Scheduler.BatchSize, log)

	processor := scheduler.New("webhook-processor", cfg.Scheduler.Interval(), func(ctx context.Context) {
		if _, _, err := svc.ProcessPendingWebhooks(ctx); err != nil {
			log.Errorf("process pending webhooks: %v", err)
		}
	}, repository, log)

	sweeper := scheduler.New("webhook-sweeper", cfg.Sweeper.Interval(), func(ctx context.Context) {
		if _, err := svc.CleanupOldWebhooks(ctx, cfg.Sweeper.DaysToKeep); err != nil {
			log.Errorf("cleanup old webhooks: %v", err)
		}
	}, repository, log)

	processor.Start()
	sweeper.Start()
	log.Info("webhook-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("webhook-worker shutting down")
	processor.Stop()
	sweeper.Stop()
}
