package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/common/logger"
	"github.com/yashrajoria/giftshop-backend/common/middleware"
	"github.com/yashrajoria/giftshop-backend/consumers"
	"github.com/yashrajoria/giftshop-backend/controllers"
	"github.com/yashrajoria/giftshop-backend/database"
	awspkg "github.com/yashrajoria/giftshop-backend/pkg/aws"
	"github.com/yashrajoria/giftshop-backend/repository"
	"github.com/yashrajoria/giftshop-backend/repository/memory"
	"github.com/yashrajoria/giftshop-backend/repository/mongostore"
	"github.com/yashrajoria/giftshop-backend/repository/pgstore"
	"github.com/yashrajoria/giftshop-backend/repository/redisstore"
	"github.com/yashrajoria/giftshop-backend/routes"
	"github.com/yashrajoria/giftshop-backend/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "giftshop-service"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- AWS / logging ---
	var (
		awsCfg  sdkaws.Config
		metrics awspkg.Metrics = awspkg.NopMetrics{}
		sns     awspkg.SNSPublisher
	)
	log := logger.Initialize(cfg.Env)
	if cfg.NeedsAWS() {
		awsCfg, err = awspkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Fatal("Failed to load AWS config", zap.Error(err))
		}
		if cfg.CloudWatchEnabled {
			cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, serviceName)
			if err != nil {
				log.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(err))
			} else {
				log = logger.InitializeWithWriter(cfg.Env, cwLogs)
			}
			metrics = awspkg.NewMetricsClient(awsCfg)
		}
		if cfg.OrderTopicARN != "" || cfg.InventoryTopicARN != "" {
			sns = awspkg.NewSNSClient(awsCfg)
		}
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	// --- Storage ---
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	var (
		locker repository.CheckoutLocker
		idem   repository.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(cfg.RedisURL, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		guard := redisstore.NewGuard(rdb, log)
		locker, idem = guard, guard
	} else {
		log.Warn("REDIS_URL not set, checkout lock and idempotency keys are process local")
		guard := memory.NewGuard()
		locker, idem = guard, guard
	}

	// --- Service wiring ---
	events := services.NewEventPublisher(sns, cfg.OrderTopicARN, cfg.InventoryTopicARN, log)
	inventory := services.NewInventoryService(store, events, metrics, log)
	discounts := services.NewDiscountService(store, metrics, log)
	carts := services.NewCartService(store, log)
	orders := services.NewOrderService(services.OrderServiceDeps{
		Store:       store,
		Inventory:   inventory,
		Discounts:   discounts,
		Locker:      locker,
		Idempotency: idem,
		Events:      events,
		Metrics:     metrics,
		Logger:      log,
	})
	payments := services.NewPaymentService(store, orders, metrics, log)
	estimator := services.InHouseEstimator{}

	if cfg.PaymentEventsQueueURL != "" {
		sqsConsumer := awspkg.NewSQSConsumer(awsCfg, cfg.PaymentEventsQueueURL, log)
		go consumers.NewPaymentEventConsumer(sqsConsumer, payments, metrics, log).Start(ctx)
	}

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(apperrors.ErrorMiddleware(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "backend": cfg.StoreBackend})
	})

	limiter := middleware.NewRateLimiter(rate.Limit(float64(cfg.CheckoutRatePerMin)/60), cfg.CheckoutRatePerMin)
	routes.RegisterRoutes(r, routes.Controllers{
		Products:  controllers.NewProductController(services.NewProductService(store, log)),
		Carts:     controllers.NewCartController(carts),
		Shipping:  controllers.NewShippingController(estimator, services.NewCheckoutService(carts, discounts, estimator)),
		Discounts: controllers.NewDiscountController(discounts),
		Orders:    controllers.NewOrderController(orders),
		Payments:  controllers.NewPaymentController(payments),
		Inventory: controllers.NewInventoryController(inventory),
	}, limiter.PerUser())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		log.Info("Gift shop service starting", zap.String("port", cfg.Port), zap.String("backend", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("Shutting down gift shop service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Gift shop service stopped gracefully")
}

// openStore connects the configured backend and returns its repositories
// with a matching close function.
func openStore(ctx context.Context, cfg *Config, log *zap.Logger) (*repository.Store, func(), error) {
	switch cfg.StoreBackend {
	case BackendMongo:
		client, db, err := database.ConnectMongo(cfg.MongoURL, cfg.MongoDBName, log)
		if err != nil {
			return nil, nil, err
		}
		ms := mongostore.New(client, db)
		idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := ms.EnsureIndexes(idxCtx); err != nil {
			_ = database.DisconnectMongo(client, log)
			return nil, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return ms.Repositories(), func() { _ = database.DisconnectMongo(client, log) }, nil

	case BackendPostgres:
		db, err := database.ConnectPostgres(cfg.Postgres, log)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(db).Repositories(), func() {
			if err := database.ClosePostgres(db); err != nil {
				log.Warn("Failed to close Postgres", zap.Error(err))
			}
		}, nil

	case BackendMemory:
		log.Warn("Using the in-memory store, data is lost on restart")
		return memory.New().Repositories(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.StoreBackend)
}
