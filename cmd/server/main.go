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

	"github.com/ignite/eventcrm/internal/api"
	"github.com/ignite/eventcrm/internal/config"
	"github.com/ignite/eventcrm/internal/ingest"
	"github.com/ignite/eventcrm/internal/mailer"
	"github.com/ignite/eventcrm/internal/repository/postgres"
	"github.com/ignite/eventcrm/internal/service/campaign"
	"github.com/ignite/eventcrm/internal/service/checkin"
	"github.com/ignite/eventcrm/internal/service/registration"
	"github.com/ignite/eventcrm/internal/service/subscription"
	"github.com/ignite/eventcrm/internal/worker"
)

func main() {
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

	rdb := mustRedis(cfg.Redis.URL)
	defer rdb.Close()

	sender := buildSender(cfg)

	// The API only enqueues sends; pacing and delivery live in the worker
	// process, which pops the dispatch queue.
	campaignRepo := postgres.NewCampaignRepo(db)
	campaigns := campaign.NewService(campaignRepo, sender, campaign.Options{
		Dispatch: worker.NewSendDispatcher(rdb),
	})

	h := &api.Handlers{
		Registrations: registration.NewService(postgres.NewRegistrationRepo(db), worker.NewNotifier(rdb)),
		Checkins:      checkin.NewService(postgres.NewCheckinRepo(db)),
		Campaigns:     campaigns,
		Events:        ingest.NewService(postgres.NewIngestRepo(db)),
		Subscriptions: subscription.NewService(postgres.NewSubscriptionRepo(db)),
	}

	srv := api.NewServer(cfg.Server, h)

	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func mustRedis(url string) *redis.Client {
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}
	return redis.NewClient(opts)
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
