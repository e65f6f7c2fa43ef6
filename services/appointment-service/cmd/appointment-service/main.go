package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avik-sarkar/autoshop/libs/auth"
	"github.com/avik-sarkar/autoshop/libs/config"
	"github.com/avik-sarkar/autoshop/libs/db"
	"github.com/avik-sarkar/autoshop/libs/httpx"
	"github.com/avik-sarkar/autoshop/libs/kafkax"
	otelx "github.com/avik-sarkar/autoshop/libs/otel"
	"github.com/avik-sarkar/autoshop/libs/runtime"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/consumer"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/handlers"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/inbox"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/outbox"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/scheduling"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "8084")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewAppointmentRepository(pool, outboxRepo)
	svc := scheduling.NewService(repo, logger)
	appointmentHandler := handlers.NewAppointmentHandler(svc, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	paymentTopic := config.String("KAFKA_PAYMENT_TOPIC", "billing.payment.recorded.v1")
	if strings.TrimSpace(config.String("KAFKA_BROKERS", "")) != "" {
		paymentConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "appointment-service"),
			Topic:   paymentTopic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				AppointmentID string  `json:"appointment_id"`
				Amount        float64 `json:"amount"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid payment payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.AppointmentID == "" || payload.Amount <= 0 {
				logger.Error("missing required payment fields", "topic", msg.Topic)
				return nil
			}
			if err := repo.ApplyPayment(ctx, payload.AppointmentID, payload.Amount); err != nil {
				if repo.Classify(err) == scheduling.ClassNotFound {
					logger.Warn("payment for unknown appointment", "appointment_id", payload.AppointmentID)
					return nil
				}
				return err
			}
			logger.Info("payment applied", "appointment_id", payload.AppointmentID, "amount", payload.Amount)
			return nil
		})
		go paymentConsumer.Run(ctx)
	}

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/appointments", requireAuth(http.HandlerFunc(appointmentHandler.List), jwtSecret))
	mux.Handle("/api/v1/appointments/detail", requireAuth(http.HandlerFunc(appointmentHandler.Get), jwtSecret))
	mux.Handle("/api/v1/appointments/move", requireAuth(http.HandlerFunc(appointmentHandler.Move), jwtSecret))
	mux.Handle("/api/v1/appointments/patch", requireAuth(http.HandlerFunc(appointmentHandler.Patch), jwtSecret))
	mux.Handle("/api/v1/board", requireAuth(http.HandlerFunc(appointmentHandler.Board), jwtSecret))
	mux.Handle("/api/v1/dashboard/stats", requireAuth(http.HandlerFunc(appointmentHandler.DashboardStats), jwtSecret))

	rateLimit := rateLimitMiddleware(logger)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitCSV(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(10*time.Second),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointment")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
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

// rateLimitMiddleware picks the shared redis limiter when REDIS_ADDR is set,
// otherwise the per-instance in-memory one.
func rateLimitMiddleware(logger *slog.Logger) httpx.Middleware {
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
		return rl.Middleware(logger, true)
	}
	rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
	logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	return rl.Middleware()
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func requireAuth(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		r.Header.Set("X-User-Id", claims.Sub)
		r.Header.Set("X-Shop-Id", claims.ShopID)
		r.Header.Set("X-User-Role", claims.Role)
		next.ServeHTTP(w, r)
	})
}
