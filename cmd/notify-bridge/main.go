package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/wager-royale/backend/internal/config"
	"github.com/wager-royale/backend/internal/db"
	"github.com/wager-royale/backend/internal/events"
	"github.com/wager-royale/backend/internal/notify"
	"go.uber.org/zap"
)

// Notify Bridge: optional small service that subscribes to wager events
// and forwards participant notifications to NOTIFY_WEBHOOK_URL.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.NotifyWebhookURL == "" {
		log.Fatal("NOTIFY_WEBHOOK_URL is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	webhook := notify.NewWebhookClient(cfg.NotifyWebhookURL, log)

	err = subscriber.Subscribe(ctx, events.StreamWager, func(event events.Event) {
		fctx, fcancel := context.WithTimeout(ctx, 20*time.Second)
		defer fcancel()
		if err := webhook.Forward(fctx, event); err != nil {
			log.Warn("failed to forward notification", zap.String("type", event.Type), zap.Error(err))
		}
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("notify-bridge started")
	<-ctx.Done()
	log.Info("shutting down notify-bridge")
}
