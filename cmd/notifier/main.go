package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"paybridge/internal/config"
	"paybridge/internal/notify"
	"paybridge/pkg/idempotency"
	"paybridge/pkg/logging"
	"paybridge/pkg/shutdown"
	"paybridge/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "notifier")
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	idem := idempotency.NewStore(redisDB, 10*time.Minute)

	notifier := notify.NewLogNotifier(log)
	consumer := notify.NewConsumer(log, cfg.KafkaBrokers, cfg.OrderTopic, "notifier", notifier, idem)

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("notifier shutdown")
}
