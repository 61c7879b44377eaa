package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ScheduledMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduled_messages_total",
		Help: "Messages assigned a send slot, by sending identity",
	}, []string{"identity"})

	CampaignLaunches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_launches_total",
		Help: "Campaign launch attempts by outcome",
	}, []string{"status"})

	ContactQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contact_query_duration_seconds",
		Help:    "Contact segmentation query latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"shape", "status"})

	ContactQueryShortCircuits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_query_short_circuit_total",
		Help: "Segmentation requests answered empty without running the contact query",
	}, []string{"reason"})

	DispatchedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatched_messages_total",
		Help: "Due messages handed to the send queue",
	}, []string{"status"})
)

// MustRegister registers every collector with registerer.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ScheduledMessages,
		CampaignLaunches,
		ContactQueryDuration,
		ContactQueryShortCircuits,
		DispatchedMessages,
	)
}

// ObserveContactQuery records latency and outcome of one store round trip.
func ObserveContactQuery(shape string, start time.Time, err error) {
	if shape == "" {
		shape = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	ContactQueryDuration.WithLabelValues(shape, status).Observe(time.Since(start).Seconds())
}

// StartServer serves /metrics on addr until ctx is done.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}
