package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-marketplace/internal/auth"
	"ms-marketplace/internal/config"
	"ms-marketplace/internal/events"
	events_api "ms-marketplace/internal/events/api"
	eventsdb "ms-marketplace/internal/events/db"
	"ms-marketplace/internal/inventory"
	"ms-marketplace/internal/kafka"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/notification"
	"ms-marketplace/internal/payments"
	payments_api "ms-marketplace/internal/payments/api"
	paymentsdb "ms-marketplace/internal/payments/db"
	"ms-marketplace/internal/purchase"
	purchase_api "ms-marketplace/internal/purchase/api"
	purchasedb "ms-marketplace/internal/purchase/db"
	"ms-marketplace/internal/ratelimit"
	"ms-marketplace/internal/sse"
	"ms-marketplace/internal/tickets"
	tickets_api "ms-marketplace/internal/tickets/api"
	ticketsdb "ms-marketplace/internal/tickets/db"
	"ms-marketplace/internal/tickets/qr"
	"ms-marketplace/internal/users"
	"ms-marketplace/internal/utils"
	"ms-marketplace/internal/waitlist"
	waitlist_api "ms-marketplace/internal/waitlist/api"
	waitlistdb "ms-marketplace/internal/waitlist/db"
	wlredis "ms-marketplace/internal/waitlist/redis"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))
		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	if err := wlredis.EnableKeyspaceNotifications(ctx, redisClient); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		log.Info("REDIS", "Keyspace notifications enabled for offer expiry events")
	}

	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))
	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Marketplace Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, kafka.Topics{
		QueuePromote:    cfg.Kafka.Topics.QueuePromote,
		TicketPurchased: cfg.Kafka.Topics.TicketPurchased,
		OfferExpired:    cfg.Kafka.Topics.OfferExpired,
	})
	defer producer.Close()

	if cfg.Kafka.Enabled {
		requiredTopics := []string{
			cfg.Kafka.Topics.QueuePromote,
			cfg.Kafka.Topics.TicketPurchased,
			cfg.Kafka.Topics.OfferExpired,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
	}

	// Stores
	eventsStore := &eventsdb.DB{Bun: bunDB}
	waitlistStore := &waitlistdb.DB{Bun: bunDB}
	ticketsStore := &ticketsdb.DB{Bun: bunDB}
	paymentsStore := &paymentsdb.DB{Bun: bunDB}
	purchaseStore := &purchasedb.DB{Bun: bunDB}
	usersStore := &users.DB{Bun: bunDB}

	// Core components
	ledger := inventory.NewLedger(bunDB)
	limiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit.Window, cfg.RateLimit.Quota)
	admission := wlredis.NewRedis(redisClient)
	emitter := sse.NewQueueEventEmitter()
	qrGen := qr.NewGenerator(cfg.QRSecret)
	mailer := notification.NewMailer(cfg.Email, usersStore, log)

	waitlistService := waitlist.NewService(waitlistStore, eventsStore, ledger, limiter,
		admission, producer, emitter, log, cfg.Offer.TTL)

	purchaseService := &purchase.Service{
		DB:       purchaseStore,
		Entries:  waitlistStore,
		Events:   eventsStore,
		Ledger:   ledger,
		Redis:    admission,
		Kafka:    producer,
		Promoter: waitlistService,
		QR:       qrGen,
		Notifier: mailer,
		Logger:   log,
	}

	eventsService := events.NewService(eventsStore, waitlistStore, log)
	ticketsService := tickets.NewService(ticketsStore, eventsStore, log)
	paymentsService := payments.NewService(paymentsStore, eventsStore, producer, log)

	// Offer expiry callbacks
	if err := wlredis.SubscribeOfferExpiries(ctx, redisClient, func(entryID string) {
		expireCtx, expireCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer expireCancel()
		if err := waitlistService.ExpireOffer(expireCtx, entryID); err != nil {
			log.Error("WAITLIST", fmt.Sprintf("Expiry callback failed for %s: %v", entryID, err))
		}
	}); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to subscribe to offer expiries: %v", err))
	}
	log.Info("REDIS", "Offer expiry subscription started")

	// Deferred promotion passes
	if cfg.Kafka.Enabled {
		consumer := kafka.NewPromotionConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID,
			cfg.Kafka.Topics.QueuePromote, waitlistService.PromoteNext, log)
		defer consumer.Close()
		go consumer.Run(ctx)
	} else {
		log.Warn("KAFKA", "Kafka disabled; promotion passes will run inline")
	}

	// Hourly sweep of tickets whose events already happened
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := ticketsService.SweepEnded(ctx); err != nil {
					log.Error("TICKETS", fmt.Sprintf("Sweep failed: %v", err))
				}
			}
		}
	}()

	// Handlers
	eventsHandler := events_api.NewHandler(eventsService, ledger, log)
	waitlistHandler := waitlist_api.NewHandler(waitlistService, emitter, log)
	purchaseHandler := purchase_api.NewHandler(purchaseService, log)
	ticketsHandler := tickets_api.NewHandler(ticketsService, log)
	paymentsHandler := payments_api.NewHandler(paymentsService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})

	// --- Public Routes ---
	eventsHandler.RegisterPublicRoutes(r)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(usersStore))

		waitlistHandler.RegisterRoutes(r)
		purchaseHandler.RegisterRoutes(r)
		ticketsHandler.RegisterRoutes(r)
		paymentsHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireOrganizer(usersStore))
			eventsHandler.RegisterOrganizerRoutes(r)
			ticketsHandler.RegisterOrganizerRoutes(r)
			paymentsHandler.RegisterOrganizerRoutes(r)
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Marketplace Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Marketplace Service shutdown complete")
	}
}
