package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/realtime"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/router"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger depends on APP_ENV, which may be what is missing.
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if cfg.IsProd() {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewExample()
	}
	return log.With(zap.String("env", cfg.Env))
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	// Redis is optional: without it caching and rate limiting are off and
	// seat updates only reach clients of this instance.
	var rdb *redis.Client
	if client, err := config.NewRedisClient(ctx); err != nil {
		log.Warn("redis unavailable, running without cache, rate limit and relay", zap.Error(err))
	} else {
		rdb = client
		defer rdb.Close()
	}

	hub := realtime.NewHub(log.Named("hub"))
	var notifier booking.Notifier = hub
	if rdb != nil {
		relay := realtime.NewRelay(rdb, hub, log.Named("relay"))
		notifier = relay
		go func() {
			if err := relay.Run(ctx, nil); err != nil {
				log.Error("seat relay stopped", zap.Error(err))
			}
		}()
	}

	clk := clock.NewSystem()
	opts := []booking.Option{
		booking.WithClock(clk),
		booking.WithLogger(log.Named("booking")),
		booking.WithNotifier(notifier),
		booking.WithHoldTTL(cfg.HoldTTL),
		booking.WithStrictPricing(cfg.StrictPricing),
	}
	if cfg.AMQPURL != "" {
		pub := service.NewQueuePublisher(cfg.AMQPURL, log.Named("publisher"))
		defer pub.Close()
		opts = append(opts, booking.WithEventPublisher(pub))

		consumer, err := queue.NewConsumer(cfg.AMQPURL, cfg.BookingLogDir, log.Named("consumer"))
		if err != nil {
			return err
		}
		defer consumer.Close()
		go func() { _ = consumer.Run(ctx) }()
	} else {
		log.Info("RABBITMQ_URL not set, booking events disabled")
	}

	store := repository.NewStore(db)
	svc := booking.NewService(store, opts...)
	if cfg.HoldSweepInterval > 0 {
		go svc.RunSweeper(ctx, cfg.HoldSweepInterval)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))

	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, &handler.PublicHandler{
		Catalog:   repository.NewCatalogRepo(db),
		ShowTimes: store.ShowTimeRepo,
		Clock:     clk,
		Log:       log.Named("catalog"),
	}, middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log.Named("cache")))
	router.RegisterBooking(e, handler.NewBookingHandler(svc, log.Named("bookings")), cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit")))
	router.RegisterRealtime(e, realtime.Handler(hub, log.Named("ws")))

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", ":"+cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
