package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/poovendhan-mathi/yekzen-cart/internal/catalog"
	"github.com/poovendhan-mathi/yekzen-cart/internal/checkout"
	"github.com/poovendhan-mathi/yekzen-cart/internal/config"
	"github.com/poovendhan-mathi/yekzen-cart/internal/events"
	h "github.com/poovendhan-mathi/yekzen-cart/internal/http"
	"github.com/poovendhan-mathi/yekzen-cart/internal/kv"
	"github.com/poovendhan-mathi/yekzen-cart/internal/logger"
	"github.com/poovendhan-mathi/yekzen-cart/internal/outbox"
	"github.com/poovendhan-mathi/yekzen-cart/internal/session"
)

const checkoutResultTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(logger.Options{Service: "yekzen-cart", Env: cfg.Env, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync() //nolint:errcheck
	zap.ReplaceGlobals(lg)

	if err := run(cfg, lg); err != nil {
		lg.Fatal("cart service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	carts, results, closeStorage, err := openStorage(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeStorage()

	if cfg.QuotaBytes > 0 {
		carts = kv.WithQuota(carts, cfg.QuotaBytes)
	}

	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(); err != nil {
		return err
	}
	lg.Info("catalog ready", zap.String("path", cfg.CatalogDBPath))

	sessions := session.NewRegistry(carts,
		session.WithDebounce(cfg.PersistDebounce),
		session.WithIdleTimeout(cfg.SessionIdleTimeout),
		session.WithLogger(lg))

	var publisher events.Publisher = events.LogPublisher{Logger: lg}
	if len(cfg.KafkaBrokers) > 0 {
		origin := "cartd-" + uuid.NewString()
		kp := events.NewKafkaPublisher(origin, cfg.KafkaBrokers...)
		defer kp.Close()

		store, err := outbox.Open(cfg.OutboxDBPath, nil)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.RunMigrations(); err != nil {
			return err
		}
		publisher = store
		go outbox.NewRelay(store, kp, nil, lg).Run(ctx)

		poller := events.NewPoller(sessions, lg, origin, cfg.KafkaBrokers...)
		defer poller.Close()
		go poller.Run(ctx)
		lg.Info("kafka enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	gateway := checkout.Router{
		checkout.MethodCard: checkout.NewBreaker(checkout.CardGateway{}, checkout.BreakerConfig{Name: "card-gateway"}, lg),
		checkout.MethodUPI:  checkout.NewBreaker(checkout.UPIGateway{}, checkout.BreakerConfig{Name: "upi-gateway"}, lg),
	}
	checkoutSvc := checkout.NewService(gateway, publisher, results, checkout.WithLogger(lg))

	router := h.NewRouter(h.RouterConfig{
		Sessions:       sessions,
		Products:       products,
		Checkout:       checkoutSvc,
		Logger:         lg,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(http.MaxBytesHandler(router, cfg.MaxRequestBodySize), "yekzen-cart"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Info("cart service starting", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	// stops the relay and poller before their stores close
	stop()

	lg.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := sessions.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	lg.Info("server exited")
	return errors.Join(errs...)
}

// openStorage returns the slot for carts and preferences and the slot for
// recorded checkout results.
func openStorage(ctx context.Context, cfg *config.Config, lg *zap.Logger) (kv.Slot, kv.Slot, func(), error) {
	switch cfg.Storage {
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		lg.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		closeFn := func() { client.Close() }
		return kv.NewRedis(client, "yekzen:", 0), kv.NewRedis(client, "yekzen:", checkoutResultTTL), closeFn, nil

	case config.StorageMongo:
		db, err := kv.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, nil, err
		}
		lg.Info("connected to mongodb", zap.String("db", cfg.MongoDBName))
		closeFn := func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				lg.Warn("mongodb disconnect failed", zap.Error(err))
			}
		}
		return kv.NewMongo(db, "carts"), kv.NewMongo(db, "checkout_results"), closeFn, nil

	default:
		return kv.NewMemory(), kv.NewMemory(), func() {}, nil
	}
}
