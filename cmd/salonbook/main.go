package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jwseo/salonbook/internal/availability"
	"github.com/jwseo/salonbook/internal/booking"
	"github.com/jwseo/salonbook/internal/handlers"
	"github.com/jwseo/salonbook/internal/ledger"
	"github.com/jwseo/salonbook/internal/localtime"
	"github.com/jwseo/salonbook/internal/outbox"
	"github.com/jwseo/salonbook/internal/schedule"
	"github.com/jwseo/salonbook/internal/storage"
	"github.com/jwseo/salonbook/libs/config"
	"github.com/jwseo/salonbook/libs/db"
	"github.com/jwseo/salonbook/libs/httpx"
	"github.com/jwseo/salonbook/libs/kafkax"
	otelx "github.com/jwseo/salonbook/libs/otel"
	"github.com/jwseo/salonbook/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "salonbook")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	clock, err := localtime.Load(config.String("SHOP_TIMEZONE", "Asia/Seoul"))
	if err != nil {
		logger.Error("invalid timezone", "err", err)
		panic(err)
	}

	dirRepo := storage.NewDirectoryRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	prepaidRepo := storage.NewPrepaidRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	validator := schedule.NewValidator(clock)
	bookingSvc := booking.NewService(bookingRepo, dirRepo, outboxRepo, validator, logger)
	ledgerSvc := ledger.NewService(prepaidRepo, bookingRepo, dirRepo, outboxRepo, logger)
	calc := availability.NewCalculator(dirRepo, bookingRepo, clock, config.Int("SLOT_LOOKAHEAD_DAYS", 60))

	bookingHandler := handlers.NewBookingHandler(bookingSvc, calc, bookingRepo, clock)
	prepaidHandler := handlers.NewPrepaidHandler(ledgerSvc)
	scheduleHandler := handlers.NewScheduleHandler(bookingRepo)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.Bookings)
	mux.HandleFunc("/api/v1/bookings/update", bookingHandler.Update)
	mux.HandleFunc("/api/v1/bookings/delete", bookingHandler.Remove)
	mux.HandleFunc("/api/v1/bookings/complete", prepaidHandler.Complete)
	mux.HandleFunc("/api/v1/prepaid/charge", prepaidHandler.Charge)
	mux.HandleFunc("/api/v1/prepaid/balance", prepaidHandler.Balance)
	mux.HandleFunc("/api/v1/prepaid/history", prepaidHandler.History)
	mux.HandleFunc("/api/v1/schedule/blocks", scheduleHandler.Blocks)
	mux.HandleFunc("/api/v1/schedule/blocks/delete", scheduleHandler.Remove)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second),
	}
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		middlewares = append(middlewares, rl.Middleware(logger, true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		middlewares = append(middlewares, rl.Middleware())
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux, middlewares...)
	handler = otelhttp.NewHandler(handler, "salonbook")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := startGrpcHealthServer(ctx, logger, pool); err != nil {
		logger.Error("grpc health server failed to start", "err", err)
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
