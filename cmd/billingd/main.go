// Command billingd runs the EMTChat billing API: the status endpoint the
// entitlement client polls, checkout/portal brokering and the payment
// provider webhook.
package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	billingmodule "github.com/emtchat/emtkit/modules/billing"
	"github.com/emtchat/emtkit/pkg/billing"
	"github.com/emtchat/emtkit/pkg/config"
	"github.com/emtchat/emtkit/pkg/email"
	"github.com/emtchat/emtkit/pkg/httpserver"
	"github.com/emtchat/emtkit/pkg/logger"
	"github.com/emtchat/emtkit/pkg/mongo"
	"github.com/emtchat/emtkit/pkg/pg"
	"github.com/emtchat/emtkit/pkg/redis"
)

type appConfig struct {
	Environment     string `env:"APP_ENV" envDefault:"development"`
	Provider        string `env:"BILLING_PROVIDER" envDefault:"stripe"`
	StoreBackend    string `env:"BILLING_STORE" envDefault:"postgres"`
	MongoDatabase   string `env:"BILLING_MONGO_DATABASE" envDefault:"emtchat"`
	CatalogPath     string `env:"BILLING_CATALOG_PATH" envDefault:"prices.yaml"`
	PortalReturnURL string `env:"BILLING_PORTAL_RETURN_URL,required"`
	StatusCacheTTL  string `env:"BILLING_STATUS_CACHE_TTL" envDefault:"30s"`
	EmailEnabled    bool   `env:"BILLING_EMAIL_ENABLED" envDefault:"false"`
	EmailDir        string `env:"BILLING_EMAIL_DIR" envDefault:"./tmp/emails"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Environment, "billingd"))
	logger.SetAsDefault(log)

	store, storeCheck, closeStore, err := newStore(ctx, appCfg)
	if err != nil {
		log.ErrorContext(ctx, "failed to set up subscription store", logger.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	var redisCfg redis.Config
	config.MustLoad(&redisCfg)
	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.ErrorContext(ctx, "failed to connect to redis", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	catalog, err := billing.LoadCatalogFile(appCfg.CatalogPath)
	if err != nil {
		log.ErrorContext(ctx, "failed to load price catalog", logger.Error(err))
		os.Exit(1)
	}

	provider, err := newProvider(appCfg.Provider)
	if err != nil {
		log.ErrorContext(ctx, "failed to create billing provider", logger.Error(err))
		os.Exit(1)
	}

	opts := []billing.ServiceOption{
		billing.WithServiceLogger(log),
		billing.WithPortalReturnURL(appCfg.PortalReturnURL),
	}
	if ttl, err := time.ParseDuration(appCfg.StatusCacheTTL); err == nil {
		opts = append(opts, billing.WithStatusCache(billing.NewStatusCache(redisClient, ttl)))
	}
	if appCfg.EmailEnabled {
		sender, err := newEmailSender(appCfg)
		if err != nil {
			log.ErrorContext(ctx, "failed to create email sender", logger.Error(err))
			os.Exit(1)
		}
		opts = append(opts, billing.WithEmailSender(sender))
	}

	svc := billing.NewService(store, provider, catalog, opts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/readyz", httpserver.HealthCheckHandler(ctx, log,
		storeCheck,
		redis.Healthcheck(redisClient),
	))
	r.Mount("/v1/billing", billingmodule.Router(svc, tenantFromHeader, billingmodule.WithLogger(log)))

	var srvCfg httpserver.Config
	config.MustLoad(&srvCfg)
	srv := httpserver.NewFromConfig(srvCfg, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.ErrorContext(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// newStore builds the subscription store for the configured backend along
// with its readiness check and teardown. Postgres owns its schema through
// embedded migrations; Mongo needs none.
func newStore(ctx context.Context, cfg appConfig) (billing.Store, func(context.Context) error, func(), error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "mongo":
		var mongoCfg mongo.Config
		if err := config.Load(&mongoCfg); err != nil {
			return nil, nil, nil, err
		}
		db, err := mongo.NewWithDatabase(ctx, mongoCfg, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() { _ = db.Client().Disconnect(context.Background()) }
		return billing.NewMongoStore(db), mongo.Healthcheck(db.Client()), closeFn, nil
	default:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := billing.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return billing.NewPGStore(pool), pg.Healthcheck(pool), pool.Close, nil
	}
}

func newProvider(name string) (billing.Provider, error) {
	switch strings.ToLower(name) {
	case "paddle":
		var cfg billing.PaddleConfig
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		return billing.NewPaddleProvider(cfg)
	default:
		var cfg billing.StripeConfig
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		return billing.NewStripeProvider(cfg)
	}
}

// newEmailSender picks the delivery path: development keeps dunning notices
// on disk, everything else goes through Postmark.
func newEmailSender(cfg appConfig) (email.EmailSender, error) {
	if cfg.Environment == "development" {
		return email.NewDevSender(cfg.EmailDir), nil
	}
	var emailCfg email.Config
	if err := config.Load(&emailCfg); err != nil {
		return nil, err
	}
	return email.NewPostmarkClient(emailCfg)
}

// tenantFromHeader trusts the X-Tenant-ID header set by the authenticating
// reverse proxy. Deployments exposing billingd directly must replace this
// with a resolver backed by their session layer.
func tenantFromHeader(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.Header.Get("X-Tenant-ID"))
}
