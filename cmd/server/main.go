package main

import (
	"context"                        // Context for Redis operations and shutdown
	"errors"                         // Error matching
	"net/http"                       // HTTP server
	"os"                             // Signals
	"os/signal"                      // Signal handling
	"syscall"                        // SIGTERM
	"time"                           // Shutdown timeout
	"wallet_ledger/internal/api"     // Custom package for API handlers
	"wallet_ledger/internal/config"  // Custom package for configuration
	"wallet_ledger/internal/db"      // Database connection
	"wallet_ledger/internal/ledger"  // Ledger engine
	"wallet_ledger/internal/lock"    // Distributed wallet locks
	"wallet_ledger/internal/metrics" // Prometheus metrics
	"wallet_ledger/internal/notify"  // Transaction notifications
	"wallet_ledger/internal/storage" // Wallet and transaction stores

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// Connect to the database
	gdb, err := db.Open(cfg.DSN(), !cfg.IsProd)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	store := storage.NewGorm(gdb) // Wallet and transaction store

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	defer redisClient.Close()

	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Notification sinks
	sinks := []notify.Sink{notify.LogSink{Log: logrus.StandardLogger()}}
	if cfg.NotifyRedisChannel != "" {
		sinks = append(sinks, notify.RedisSink{Client: redisClient, Channel: cfg.NotifyRedisChannel})
	}
	if len(cfg.NotifyKafkaBrokers) > 0 {
		writer := notify.NewKafkaWriter(cfg.NotifyKafkaBrokers, cfg.NotifyKafkaTopic)
		defer writer.Close()
		sinks = append(sinks, notify.KafkaSink{Writer: writer})
	}
	dispatcher := notify.NewDispatcher(cfg.NotifyBuffer, logrus.StandardLogger(), sinks...)

	// Ledger engine
	collector := metrics.New()
	opts := []ledger.Option{
		ledger.WithNotifier(dispatcher),
		ledger.WithMetrics(collector),
		ledger.WithLogger(logrus.StandardLogger()),
	}
	if cfg.LockBackend == "redis" {
		opts = append(opts, ledger.WithLocker(lock.NewRedis(redisClient, lock.DefaultRedisOptions())))
	}
	engine := ledger.NewEngine(store, cfg.EngineConfig(), opts...)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.RegisterRoutes(r, api.Deps{
		Engine:         engine,
		Store:          store,
		Redis:          redisClient,
		JWTSecret:      cfg.JWTSecret,
		InitialBalance: cfg.Ledger.InitialWalletBalance,
		Metrics:        collector.Handler(),
	})

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":         cfg.AppPort,     // Listening port
			"lock_backend": cfg.LockBackend, // Wallet lock mode
			"sinks":        len(sinks),      // Notification sinks
		}).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithField("error", err.Error()).Error("Server shutdown failed")
	}
	// Flush queued notifications after in-flight requests finish
	if err := dispatcher.Close(ctx); err != nil {
		logrus.WithField("error", err.Error()).Warn("Notification queue not drained")
	}
	logrus.Info("Server stopped")
}
