package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/shkarik/ordering/internal/auth"
	"github.com/shkarik/ordering/internal/lifecycle"
	"github.com/shkarik/ordering/internal/ratelimit"
	"github.com/shkarik/ordering/internal/server"
	"github.com/shkarik/ordering/internal/stats"
	"github.com/shkarik/ordering/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// Database configuration
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "ordering")
	dbPassword := getEnv("DB_PASSWORD", "ordering")
	dbName := getEnv("DB_NAME", "orders")

	// Redis configuration (sessions and rate limits)
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")

	// Role access codes
	creds := auth.Credentials{
		ChefCodes:    codeSet(getEnv("CHEF_CODES", "")),
		CourierCodes: codeSet(getEnv("COURIER_CODES", "")),
		OwnerToken:   getEnv("OWNER_TOKEN", ""),
	}
	if len(creds.ChefCodes) == 0 {
		logger.Warn("CHEF_CODES is empty, chef login disabled")
	}
	if len(creds.CourierCodes) == 0 {
		logger.Warn("COURIER_CODES is empty, courier login disabled")
	}

	port := getEnv("ORDERD_PORT", "8080")

	// Connect to database
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	if err := store.Bootstrap(db); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable at startup, sessions will fail until it recovers")
	}

	orders := store.NewPostgres(db, logger)
	machine := lifecycle.NewMachine(orders, logger)
	sessions := auth.NewManager(auth.NewRedisTokens(rdb), creds, logger)
	limiter := ratelimit.New(rdb, logger)
	dashboard := stats.NewPostgres(db, codeList(getEnv("COURIER_CODES", "")))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      server.New(orders, machine, sessions, limiter, dashboard, logger).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting ordering service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func codeSet(env string) map[string]bool {
	set := make(map[string]bool)
	for _, code := range codeList(env) {
		set[code] = true
	}
	return set
}

func codeList(env string) []string {
	var codes []string
	for _, code := range strings.Split(env, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
