package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventcrm/internal/tracking"
)

// The tracking service is deliberately tiny: serve the pixel, record the
// redirect, push the event to Redis. Everything slow happens in the worker.
func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	signingKey := os.Getenv("TRACKING_SIGNING_KEY")
	if signingKey == "" {
		log.Fatal("TRACKING_SIGNING_KEY is required")
	}
	baseURL := os.Getenv("TRACKING_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	signer := tracking.NewSigner(signingKey, baseURL)
	pub := tracking.NewPublisher(rdb, os.Getenv("TRACKING_QUEUE_KEY"))
	handler := tracking.NewHandler(signer, pub)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("tracking service listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down tracking service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
