// cmd/checkout-service/main.go
package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"vertex/internal/pkg/bootstrap"
	"vertex/internal/pkg/config"
	"vertex/internal/pkg/httpclient"
	"vertex/internal/pkg/logger"
	"vertex/internal/pkg/zookeeper"
	checkout "vertex/internal/service/checkout"
	"vertex/internal/service/checkout/application"
	"vertex/internal/service/checkout/infrastructure"
	"vertex/internal/service/checkout/infrastructure/adapter"
	"vertex/internal/service/checkout/interfaces"
)

const serviceName = "checkout-service"

func main() {
	logger.Init(serviceName)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	tracer := otel.Tracer(serviceName)

	// 1. 持久化
	db, err := infrastructure.OpenMysql(cfg.Infra.Mysql.DSN)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to open mysql")
	}
	ledgerStore := infrastructure.NewGormLedgerStore(db)
	orderStore := infrastructure.NewGormOrderStore(db)
	if err := ledgerStore.AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to migrate ledger tables")
	}
	if err := orderStore.AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to migrate order tables")
	}

	// 2. 可用量缓存
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Infra.Redis.Addr})
	cache := infrastructure.NewRedisAvailabilityCache(redisClient, cfg.Infra.Redis.AvailabilityTTL.Std())

	// 3. 台账与预留管理
	manager := checkout.NewReservationManager(
		ledgerStore, cache,
		cfg.Checkout.MaxReserveAttempts,
		cfg.Checkout.ReservationTTL.Std(),
		tracer,
	)

	// 4. 出站适配器
	httpClient := httpclient.NewClient(tracer)
	gateway := adapter.NewPaymentHTTPAdapter(httpClient, cfg.Checkout.PaymentURL)
	carts := adapter.NewCartHTTPAdapter(httpClient, cfg.Checkout.CartURL)
	producer := infrastructure.NewOutcomeProducerAdapter(
		infrastructure.NewOutcomeWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OutcomeTopic),
	)

	// 5. 编排器
	service := application.NewCheckoutService(
		manager, orderStore, gateway, producer, tracer,
		cfg.Checkout.CheckoutTimeout.Std(),
		cfg.Checkout.PaymentTimeout.Std(),
		cfg.Checkout.Currency,
	)

	// 6. Sweeper，多副本时通过 ZooKeeper 选主
	var elector checkout.Elector
	if len(cfg.Infra.Zookeeper.Servers) > 0 {
		zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 5*time.Second)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		lock, err := zookeeper.NewDistributedLock(zkConn, "reservation-sweeper")
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to create sweeper lock")
		}
		elector = lock
	}
	sweeper := checkout.NewSweeper(
		manager, ledgerStore,
		cfg.Checkout.SweepInterval.Std(),
		cfg.Checkout.SweepBatchSize,
		cfg.Checkout.SweepParallelism,
		elector, tracer,
	)

	handler := interfaces.NewCheckoutHandler(service, carts)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.Service.Name,
		Port:        cfg.Service.Port,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Runners: []func(ctx context.Context){
			sweeper.Run,
		},
	})
}
