package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/payment-fulfillment/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/payment-fulfillment/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/payment-fulfillment/internal/adapters/redis"
	"github.com/robertarktes/payment-fulfillment/internal/config"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/robertarktes/payment-fulfillment/internal/inspect"
	"github.com/robertarktes/payment-fulfillment/internal/inventory"
	"github.com/robertarktes/payment-fulfillment/internal/observability"
	"github.com/robertarktes/payment-fulfillment/internal/order"
	"github.com/robertarktes/payment-fulfillment/internal/queue"
	"github.com/robertarktes/payment-fulfillment/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()
	domain.DefaultCommissionRate = cfg.DefaultCommissionRate

	pool, err := crdb.NewPool(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	ledger := crdb.NewLedger(repo)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("fulfillment")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	locks := redisadapter.NewLockManager(redisClient, cfg.LeaseTTL)
	cache := redisadapter.NewCache(redisClient)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()

	inv := inventory.NewService(repo, locks, cfg.ProductLeaseTimeout, logger)
	orders := order.NewBuilder(repo, catalog, logger)
	events := crdb.NewRecorder(repo)

	processor := queue.NewProcessor(repo, ledger, inv, orders, locks, events, audit, queue.Timeouts{
		Global: cfg.GlobalLeaseTimeout,
		Entry:  cfg.EntryLeaseTimeout,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(ctx, cfg.PollInterval)

	handlers := inspect.NewHandlers(processor)
	rl := rateLimit.NewRateLimiter(cache)
	srv := &http.Server{
		Addr:    cfg.InspectAddr,
		Handler: inspect.SetupRouter(handlers, logger, rl),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown queue worker ...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Queue worker exiting")
}
