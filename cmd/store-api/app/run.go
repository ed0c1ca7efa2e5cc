package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/dcastano/store-api/configs"
	"github.com/dcastano/store-api/internal/adapter/cache"
	"github.com/dcastano/store-api/internal/adapter/gateway"
	"github.com/dcastano/store-api/internal/adapter/http"
	"github.com/dcastano/store-api/internal/adapter/http/middleware"
	"github.com/dcastano/store-api/internal/adapter/kafka"
	"github.com/dcastano/store-api/internal/adapter/queue"
	"github.com/dcastano/store-api/internal/adapter/repo"
	"github.com/dcastano/store-api/internal/logging"
	"github.com/dcastano/store-api/internal/security"
	"github.com/dcastano/store-api/internal/usecase"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logger := logging.Init(cfg.App.Name, "./logs/app.log")

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	cancel()

	logger.Info("store-api: starting up")

	// init redis (dedup ledger, rate limiter, status cache)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, err
	}

	// init rabbitmq; the event stream is best-effort, so a broker outage
	// must not keep the API down
	producer, rabbitConn := initRabbit(cfg.Rabbit.URL, logger)

	// infra
	productRepo := repo.NewMySQLProductRepo(db)
	orderRepo := repo.NewMySQLOrderRepo(db)
	paymentRepo := repo.NewMySQLPaymentRepo(db)
	ledger := cache.NewRedisLedger(rdb)
	statusCache := cache.NewRedisCache(rdb, cfg.Redis.CacheTTL)
	mp := gateway.NewMercadoPago(cfg.MercadoPago.BaseURL, cfg.MercadoPago.AccessToken, cfg.MercadoPago.Timeout)
	verifier := security.NewWebhookVerifier(cfg.MercadoPago.WebhookSecret)

	var events usecase.EventPublisher
	if producer != nil {
		events = producer
	}

	// usecases
	createUC := usecase.NewCreateOrder(productRepo, orderRepo, paymentRepo, mp, events, usecase.CheckoutURLs{
		NotificationURL: cfg.App.PublicURL + "/v1/payments/webhook",
		SuccessURL:      cfg.App.StoreURL + "/checkout/success",
		FailureURL:      cfg.App.StoreURL + "/checkout/failure",
		PendingURL:      cfg.App.StoreURL + "/checkout/pending",
	})
	reconcileUC := usecase.NewReconcilePayment(orderRepo, paymentRepo, mp, ledger, events, statusCache, cfg.Idempotency.TTL)
	queryUC := usecase.NewOrderQuery(orderRepo, statusCache)

	// kafka listener for admin-panel status changes
	stopKafka := setupKafkaListener(cfg, orderRepo, statusCache)

	// handlers + router
	auth := middleware.NewAuthz(cfg)
	router := http.NewRouter(http.RouterDeps{
		Orders:   http.NewOrderHandler(createUC, queryUC),
		Payments: http.NewPaymentHandler(reconcileUC, verifier, cfg.MercadoPago.LogWebhooks),
		Products: http.NewProductHandler(productRepo),
		Admin:    http.NewAdminOrderHandler(orderRepo, statusCache),
		Authz:    auth,
		Ledger:   ledger,
		RateLim:  cfg.RateLimit.Requests,
		RateWin:  cfg.RateLimit.Window,
	})

	cleanup := func() {
		stopKafka()
		if rabbitConn != nil {
			_ = rabbitConn.Close()
		}
		_ = rdb.Close()
		_ = db.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func initRabbit(url string, logger *slog.Logger) (*queue.RabbitProducer, *amqp091.Connection) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		logger.Warn("rabbitmq unavailable, order events disabled", "error", err)
		return nil, nil
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("rabbitmq channel failed, order events disabled", "error", err)
		_ = conn.Close()
		return nil, nil
	}
	producer, err := queue.NewRabbitProducer(ch)
	if err != nil {
		logger.Warn("rabbitmq setup failed, order events disabled", "error", err)
		_ = conn.Close()
		return nil, nil
	}
	return producer, conn
}

func setupKafkaListener(cfg configs.Config, orderRepo *repo.MySQLOrderRepo, statusCache *cache.RedisCache) func() {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
		return func() {}
	}

	log := logging.New("kafka")
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		log.Warn("kafka unavailable, admin status feed disabled", "error", err)
		return func() {}
	}

	h := kafka.NewOrderStatusChangedHandler(orderRepo, statusCache)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.Topic}, h.Handle, log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("kafka consumer stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		_ = grp.Close()
	}
}
