package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"namex/internal/events"
	evmemory "namex/internal/events/store/memory"
	evpostgres "namex/internal/events/store/postgres"
	idmiddleware "namex/internal/identity/middleware"
	idservice "namex/internal/identity/service"
	idmemory "namex/internal/identity/store/memory"
	idpostgres "namex/internal/identity/store/postgres"
	"namex/internal/identity/token"
	"namex/internal/namerequest/adapters"
	"namex/internal/namerequest/handler"
	nrmetrics "namex/internal/namerequest/metrics"
	nrservice "namex/internal/namerequest/service"
	nrmemory "namex/internal/namerequest/store/memory"
	nrpostgres "namex/internal/namerequest/store/postgres"
	"namex/internal/notification"
	"namex/internal/platform/config"
	"namex/internal/platform/httpserver"
	"namex/internal/platform/kafka"
	"namex/internal/platform/lock"
	"namex/internal/platform/logger"
	"namex/internal/platform/metrics"
	"namex/internal/platform/postgres"
	"namex/internal/platform/redis"
	"namex/pkg/platform/circuit"
	authmw "namex/pkg/platform/middleware/auth"
	"namex/pkg/platform/middleware/metadata"
	"namex/pkg/platform/middleware/request"
	"namex/pkg/platform/middleware/requesttime"
)

const lockWait = 2 * time.Second

// main wires dependencies, serves HTTP and runs the notification dispatcher
// until a signal arrives. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.close()

	users, err := idservice.New(infra.userStore, idservice.WithLogger(log))
	if err != nil {
		return err
	}
	account, err := users.ServiceAccount(ctx, cfg.ServiceAccountUsername)
	if err != nil {
		return err
	}

	recorder, err := events.New(infra.eventStore, events.WithLogger(log), events.WithMetrics(events.NewMetrics()))
	if err != nil {
		return err
	}

	dispatcher, err := notification.NewDispatcher(infra.sink,
		notification.WithLogger(log),
		notification.WithMetrics(notification.NewMetrics()),
	)
	if err != nil {
		return err
	}

	loc, err := cfg.Expiry.Location()
	if err != nil {
		return err
	}
	opts := []nrservice.Option{
		nrservice.WithLogger(log),
		nrservice.WithMetrics(nrmetrics.New()),
		nrservice.WithNotifier(dispatcher),
		nrservice.WithLocker(infra.locker),
	}
	if infra.db != nil {
		opts = append(opts, nrservice.WithTx(newNameRequestPostgresTx(infra.db)))
	}
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	if cfg.Solr.URL != "" {
		solr, err := adapters.NewSolrClient(cfg.Solr.URL,
			adapters.WithSolrHTTPClient(httpClient),
			adapters.WithSolrBreaker(circuit.New("solr")),
		)
		if err != nil {
			return err
		}
		opts = append(opts, nrservice.WithSearchIndex(solr))
	}
	if cfg.Payment.URL != "" {
		payments, err := adapters.NewPaymentClient(cfg.Payment.URL, cfg.Payment.Token,
			adapters.WithPaymentHTTPClient(httpClient),
			adapters.WithPaymentBreaker(circuit.New("payment")),
		)
		if err != nil {
			return err
		}
		opts = append(opts, nrservice.WithPaymentGateway(payments))
	}

	svc, err := nrservice.New(infra.nrStore, recorder, nrservice.Config{
		ServiceAccount: account,
		SolrCore:       cfg.Solr.Core,
		Expiry: nrservice.ExpiryPolicy{
			Location:        loc,
			Days:            cfg.Expiry.Days,
			RestorationDays: cfg.Expiry.RestorationDays,
		},
	}, opts...)
	if err != nil {
		return err
	}

	validator, err := token.New(cfg.JWTSigningKey)
	if err != nil {
		return err
	}
	h, err := handler.New(svc, log)
	if err != nil {
		return err
	}
	router := newRouter(log, metrics.New(), validator, users, h)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting namex api", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := dispatcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(log *slog.Logger, m *metrics.Metrics, validator authmw.JWTValidator, users idmiddleware.UserResolver, h *handler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recover(log))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(m.Latency)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", m.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, log))
		r.Use(idmiddleware.RequireUser(users, log))
		h.Register(r)
	})
	return r
}

// infrastructure holds the backends picked from configuration: Postgres or
// memory stores, Redis or in-process locks, Kafka or log-only notifications.
type infrastructure struct {
	db         *sql.DB
	redis      *redis.Client
	kafka      *kgo.Client
	nrStore    nrservice.Store
	eventStore events.Store
	userStore  idservice.UserStore
	locker     nrservice.Locker
	sink       notification.Sink
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		infra.db = db
		infra.nrStore = nrpostgres.New(db)
		infra.eventStore = evpostgres.New(db)
		infra.userStore = idpostgres.New(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		infra.nrStore = nrmemory.NewInMemoryStore()
		infra.eventStore = evmemory.NewInMemoryStore()
		infra.userStore = idmemory.New()
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		infra.close()
		return nil, err
	}
	if rc != nil {
		infra.redis = rc
		infra.locker = lock.NewRedis(rc.Client, cfg.CheckoutLockTTL, lockWait)
	} else {
		infra.locker = lock.NewMemory(cfg.CheckoutLockTTL, lockWait)
	}

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		infra.close()
		return nil, err
	}
	if kc != nil {
		if err := notification.EnsureTopic(ctx, kc, cfg.Kafka.NotificationTopic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			kc.Close()
			infra.close()
			return nil, err
		}
		infra.kafka = kc
		infra.sink = notification.NewKafkaSink(kc, cfg.Kafka.NotificationTopic)
	} else {
		log.Warn("KAFKA_BROKERS not set, notifications are only logged")
		infra.sink = notification.NewLogSink(log)
	}
	return infra, nil
}

func (i *infrastructure) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}
