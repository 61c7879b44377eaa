// cmd/worker/main.go
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/logger"
	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.AppEnv).With().Str("component", "worker").Logger()
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer conn.Close()

	q, err := queue.DialAMQP(cfg.AMQPURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer q.Close()

	d := &service.Dispatcher{
		Messages:  &repository.ScheduledMessageRepository{DB: conn},
		Campaigns: &repository.CampaignRepository{DB: conn},
		Queue:     q,
		Topic:     cfg.SendQueue,
		Batch:     cfg.Dispatch.Batch,
		Log:       log,
	}

	metrics.StartServer(ctx, log, cfg.MetricsAddr)
	if err := start(ctx, d, q, cfg.ResultQueue, cfg.Dispatch.Interval, log); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker")
	}
	log.Info().
		Str("send_queue", cfg.SendQueue).
		Str("result_queue", cfg.ResultQueue).
		Dur("interval", cfg.Dispatch.Interval).
		Msg("worker running")

	<-ctx.Done()
	log.Info().Msg("worker stopping")
}

// start consumes sender reports from resultTopic and dispatches due messages
// every interval until ctx is done.
func start(ctx context.Context, d *service.Dispatcher, q queue.Queue, resultTopic string, interval time.Duration, log zerolog.Logger) error {
	if err := queue.StartSendResultSubscriber(q, resultTopic, d.HandleResult, log); err != nil {
		return err
	}
	go d.Run(ctx, interval)
	return nil
}
