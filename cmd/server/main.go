package main

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/subkit/subkit/modules/account"
	billingapi "github.com/subkit/subkit/modules/billing"
	"github.com/subkit/subkit/pkg/auth"
	"github.com/subkit/subkit/pkg/billing"
	"github.com/subkit/subkit/pkg/config"
	"github.com/subkit/subkit/pkg/httpserver"
	"github.com/subkit/subkit/pkg/logger"
	"github.com/subkit/subkit/pkg/mongo"
	"github.com/subkit/subkit/pkg/redis"
	"github.com/subkit/subkit/pkg/session"
)

type appConfig struct {
	Log     logger.Config
	HTTP    httpserver.Config
	Mongo   mongo.Config
	Redis   redis.Config
	Session session.Config
	Google  auth.GoogleConfig
	Account account.Config
	Billing billing.Config
	Stripe  billing.StripeConfig

	PlansPath       string `env:"BILLING_PLANS_PATH" envDefault:"plans.yaml"`
	UsersCollection string `env:"MONGODB_USERS_COLLECTION" envDefault:"users"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.NewFromConfig(cfg.Log, logger.WithService("subkit"))
	ctx := context.Background()

	mongoClient, err := mongo.Connect(ctx, cfg.Mongo)
	if err != nil {
		log.Error("Failed to connect to MongoDB", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = mongoClient.Disconnect(ctx) }()
	users := mongoClient.Database(cfg.Mongo.Database).Collection(cfg.UsersCollection)

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to Redis", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	catalog, err := billing.LoadCatalog(cfg.PlansPath)
	if err != nil {
		log.Error("Failed to load plan catalog", logger.Error(err))
		os.Exit(1)
	}

	gateway, err := billing.NewStripeGateway(cfg.Stripe)
	if err != nil {
		log.Error("Failed to configure Stripe gateway", logger.Error(err))
		os.Exit(1)
	}

	billingSvc := billing.NewService(
		catalog,
		billing.NewMongoStore(users),
		gateway,
		cfg.Billing,
		billing.WithLogger(log),
	)

	sessions := session.NewManager(session.NewRedisStore(redisClient), cfg.Session)

	authSvc := auth.NewService(
		auth.NewGoogleProvider(cfg.Google),
		auth.NewMongoUserStore(users),
		auth.NewRedisStateStore(redisClient),
		cfg.Google.StateTTL,
		auth.WithLogger(log),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpserver.HealthcheckHandler(log,
		mongo.Healthcheck(mongoClient),
		redis.Healthcheck(redisClient),
	))
	r.Mount("/auth", account.Router(authSvc, sessions, cfg.Account, log))
	r.Mount("/billing", billingapi.Router(billingSvc, sessions, log))

	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.Error("HTTP server exited with error", logger.Error(err))
		os.Exit(1)
	}
}
