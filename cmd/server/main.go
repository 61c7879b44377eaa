// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/cache"
	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/controller"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/logger"
	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/schedule"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// app is everything the router needs. Campaigns is nil when no database is
// configured, and the campaign routes are then not mounted.
type app struct {
	Campaigns  *controller.CampaignController
	Contacts   *controller.ContactController
	Selections *handler.SelectionHandler
}

func newRouter(a app) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Campaign routes
	if a.Campaigns != nil {
		r.Post("/campaigns", a.Campaigns.CreateCampaign)
		r.Get("/campaigns", a.Campaigns.ListCampaigns)
		r.Get("/campaigns/{id}", a.Campaigns.GetCampaignDetails)
		r.Post("/campaigns/{id}/launch", a.Campaigns.LaunchCampaign)
	}

	// Segmentation routes
	r.Post("/contacts/search", a.Contacts.Search)
	r.Post("/recipients/resolve", a.Contacts.ResolveRecipients)
	a.Selections.Routes(r)
	return r
}

func newScheduler(cfg config.AppConfig) (*schedule.Scheduler, error) {
	identities, err := cfg.SendingIdentities()
	if err != nil {
		return nil, err
	}
	cal, err := schedule.NewCalendar(cfg.Schedule.Timezone, cfg.Schedule.WorkStartHour, cfg.Schedule.WorkEndHour)
	if err != nil {
		return nil, err
	}
	return schedule.NewScheduler(cal, schedule.DefaultConfig(identities))
}

func main() {
	// Load .env
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.AppEnv)
	if envErr != nil {
		log.Debug().Msg("no .env file found, relying on OS environment variables")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("server: init failed")
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	go func() {
		log.Info().Int("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("server: running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server: stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// build wires stores by STORE_DRIVER. The memory driver keeps contacts and
// selections in process; campaigns still need DATABASE_URL.
func build(ctx context.Context, cfg config.AppConfig, log zerolog.Logger) (app, func(), error) {
	var (
		a       app
		closers []func()
		conn    *sql.DB
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" || cfg.StoreDriver == "postgres" {
		var err error
		conn, err = db.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return app{}, cleanup, err
		}
		closers = append(closers, func() { conn.Close() })
	}

	queryLog := log.With().Str("component", "contacts").Logger()
	switch cfg.StoreDriver {
	case "postgres":
		a.Contacts = &controller.ContactController{
			Contacts: &service.ContactQueryService{
				Store:    &repository.ContactRepository{DB: conn},
				Resolver: &repository.CampaignRecipientRepository{DB: conn},
				Log:      queryLog,
			},
			Log: log,
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func() { rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return app{}, cleanup, err
		}
		a.Selections = &handler.SelectionHandler{Store: cache.NewRedisSelectionStore(rdb, cfg.SelectionTTL), Log: log}
	case "memory":
		mem := repository.NewMemoryContactStore()
		a.Contacts = &controller.ContactController{
			Contacts: &service.ContactQueryService{Store: mem, Resolver: mem, Log: queryLog},
			Log:      log,
		}
		a.Selections = &handler.SelectionHandler{Store: cache.NewMemorySelectionStore(cfg.SelectionTTL), Log: log}
	default:
		return app{}, cleanup, errors.New("STORE_DRIVER must be postgres or memory")
	}

	if conn == nil {
		log.Warn().Msg("no DATABASE_URL, campaign routes disabled")
		return a, cleanup, nil
	}
	sched, err := newScheduler(cfg)
	if err != nil {
		return app{}, cleanup, err
	}
	a.Campaigns = &controller.CampaignController{
		CampaignService: &service.CampaignService{
			CampaignRepo: &repository.CampaignRepository{DB: conn},
			MessageRepo:  &repository.ScheduledMessageRepository{DB: conn},
			Scheduler:    sched,
			Log:          log.With().Str("component", "campaigns").Logger(),
		},
		Log: log,
	}
	return a, cleanup, nil
}
