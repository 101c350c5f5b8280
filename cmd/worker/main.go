package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventcrm/internal/config"
	"github.com/ignite/eventcrm/internal/ingest"
	"github.com/ignite/eventcrm/internal/mailer"
	"github.com/ignite/eventcrm/internal/repository/postgres"
	"github.com/ignite/eventcrm/internal/scoring"
	"github.com/ignite/eventcrm/internal/service/campaign"
	"github.com/ignite/eventcrm/internal/tracking"
	"github.com/ignite/eventcrm/internal/worker"
)

// The worker hosts everything that runs outside a request: confirmation
// emails, tracking event consumption, interrupted-send recovery, and the
// nightly engagement scoring batch.
func main() {
	log.Println("starting worker...")

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	redisURL := cfg.Redis.URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	sender := buildSender(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registration confirmation emails
	fromName := os.Getenv("CONFIRMATION_FROM_NAME")
	if fromName == "" {
		fromName = "Events"
	}
	fromEmail := os.Getenv("CONFIRMATION_FROM_EMAIL")
	if fromEmail == "" {
		fromEmail = "events@localhost"
	}
	notify, err := worker.NewNotifyWorker(rdb, sender, fromName, fromEmail)
	if err != nil {
		log.Fatalf("notify worker: %v", err)
	}
	notify.Start(ctx)
	log.Println("confirmation worker started")

	// Tracking pixel/click events feed the same ingestion pipeline as
	// provider webhooks.
	events := ingest.NewService(postgres.NewIngestRepo(db))
	consumer := tracking.NewConsumer(rdb, events, cfg.Tracking.QueueKey)
	consumer.Start(ctx)
	log.Println("tracking consumer started")

	// Campaign delivery: the API enqueues and dispatches, this loop drains.
	campaignRepo := postgres.NewCampaignRepo(db)
	campaigns := campaign.NewService(campaignRepo, sender, campaign.Options{
		Throttle:       worker.NewRateLimiter(rdb, cfg.Send.PerSecond),
		ClaimBatchSize: cfg.Send.ClaimBatchSize,
		InterSendDelay: time.Duration(cfg.Send.InterSendDelayMS) * time.Millisecond,
	})
	sendWorker := worker.NewSendWorker(rdb, campaigns)
	sendWorker.Start(ctx)
	log.Println("send worker started")

	// Interrupted-send recovery
	recovery := worker.NewRecovery(campaignRepo, campaigns, cfg.Send.VisibilityTimeout)
	go recovery.RunEvery(ctx, 2*time.Minute)
	log.Println("send recovery started")

	// Engagement scoring batch
	scorer := scoring.NewScorer(postgres.NewScoringRepo(db), cfg.Scoring, rdb)
	go runScoring(ctx, scorer)
	log.Println("scoring batch scheduled")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down worker...")
	cancel()
	notify.Stop()
	consumer.Stop()
	sendWorker.Stop()
	log.Println("worker stopped")
}

func runScoring(ctx context.Context, scorer *scoring.Scorer) {
	interval := 6 * time.Hour
	if v := os.Getenv("SCORING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			interval = d
		}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := scorer.ScoreAll(ctx)
			if err != nil {
				log.Printf("scoring batch: %v", err)
				continue
			}
			log.Printf("scoring batch finished, %d contacts", n)
		}
	}
}

// buildSender assembles the provider chain in configured fallback order.
func buildSender(cfg *config.Config) mailer.Sender {
	var senders []mailer.Sender
	for _, name := range cfg.Send.FallbackOrder {
		switch name {
		case "ses":
			if cfg.SES.AccessKey != "" {
				senders = append(senders, mailer.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region))
			}
		case "sparkpost":
			if cfg.SparkPost.APIKey != "" {
				senders = append(senders, mailer.NewSparkPostSender(cfg.SparkPost.APIKey,
					cfg.SparkPost.BaseURL, time.Duration(cfg.SparkPost.TimeoutSeconds)*time.Second))
			}
		}
	}
	if len(senders) == 0 {
		log.Println("no email provider configured, sends will fail")
	}
	return mailer.NewChain(senders...)
}
