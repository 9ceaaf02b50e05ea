package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kudiops/walletcore/internal/api"
	"github.com/kudiops/walletcore/internal/cache"
	"github.com/kudiops/walletcore/internal/config"
	"github.com/kudiops/walletcore/internal/events"
	"github.com/kudiops/walletcore/internal/paystack"
	"github.com/kudiops/walletcore/internal/service"
	"github.com/kudiops/walletcore/internal/store"
)

func main() {
	// .env is a local-dev convenience; deployed environments set real vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	ledgerStore, err := store.NewLedgerStore(cfg.DBSource)
	if err != nil {
		logger.Fatal("unable to connect to database", zap.Error(err))
	}
	defer ledgerStore.Close()
	if err := ledgerStore.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}

	// Optional collaborators: the ledger stays correct without either.
	var seen service.SeenCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, webhook replay cache disabled", zap.Error(err))
		} else {
			seen = cache.NewReferenceCache(redisClient, 24*time.Hour)
		}
	}

	var publisher events.Publisher
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
		} else {
			defer conn.Close()
			ch, err := conn.Channel()
			if err != nil {
				logger.Fatal("rabbitmq channel failed", zap.Error(err))
			}
			defer ch.Close()
			publisher, err = events.NewRabbitPublisher(ch)
			if err != nil {
				logger.Fatal("exchange declaration failed", zap.Error(err))
			}
		}
	}

	checkout := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecret, cfg.ProcessorTimeout, logger)

	// Initialize Layers
	walletService := service.NewWallet(ledgerStore, checkout, publisher, logger)
	reconciler := service.NewReconciler(ledgerStore, cfg.PaystackSecret, seen, publisher, logger)
	handler := api.NewHandler(walletService, reconciler, logger)

	router := api.NewRouter(handler)

	logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
