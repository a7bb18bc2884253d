// README: Entry point; loads config, builds the pricing snapshot, counters and audit sink, then serves HTTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"velo/internal/config"
	httptransport "velo/internal/http"
	"velo/internal/http/handlers"
	"velo/internal/infra"
	"velo/internal/logger"
	"velo/internal/metrics"
	"velo/internal/modules/audit"
	"velo/internal/modules/plan"
	"velo/internal/modules/pricing"
	"velo/internal/modules/promotion"
	"velo/internal/modules/rule"
	"velo/internal/modules/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg := logger.New(cfg.ServiceName, cfg.LoggerLevel, cfg.Development())
	defer func() { _ = lg.Sync() }()

	shutdownTracer, err := infra.InitTracer(cfg.ServiceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		log.Fatalf("tracing init: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	m := metrics.New(prometheus.DefaultRegisterer)

	var dbPool *pgxpool.Pool
	if cfg.DB.DSN != "" {
		if err := infra.Migrate(cfg.DB.DSN, cfg.DB.Migrations, lg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		dbPool, err = infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
	}

	var (
		source     snapshot.Source
		planStore  handlers.PlanStore
		ruleStore  handlers.RuleStore
		promoStore handlers.PromotionStore
	)
	if cfg.Pricing.ConfigFile != "" {
		source = snapshot.FileSource{Path: cfg.Pricing.ConfigFile}
		lg.Info("pricing configuration from file", logger.String("path", cfg.Pricing.ConfigFile))
	} else {
		plans, rules, promos := plan.NewStore(dbPool), rule.NewStore(dbPool), promotion.NewStore(dbPool)
		source = snapshot.PostgresSource{Plans: plans, Rules: rules, Promotions: promos}
		planStore, ruleStore, promoStore = plans, rules, promos
	}

	manager := snapshot.NewManager(source, lg)
	manager.OnLoad = func(s *snapshot.Snapshot, took time.Duration) {
		m.ObserveSnapshot(s.Version, took)
	}
	if redisClient != nil {
		bus := snapshot.NewRedisBus(redisClient, lg)
		manager.SetBroadcaster(bus)
		go bus.Listen(ctx, manager)
	}
	if _, err := manager.Reload(ctx); err != nil {
		// The refresher keeps retrying; requests fail until a load succeeds.
		lg.Error("initial snapshot load failed", logger.Error(err))
	}
	go manager.RunRefresher(ctx, cfg.Pricing.SnapshotRefresh)

	var counter promotion.Counter
	switch cfg.Pricing.CounterBackend {
	case config.CounterRedis:
		counter = promotion.NewRedisCounter(redisClient)
	case config.CounterPostgres:
		counter = promotion.NewPostgresCounter(dbPool)
	default:
		counter = promotion.NewMemoryCounter()
	}
	lg.Info("promotion counter", logger.String("backend", string(cfg.Pricing.CounterBackend)))

	var publisher audit.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		w := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		defer w.Close()
		publisher = audit.NewKafkaPublisher(w)
	} else {
		publisher = audit.NewLogPublisher(lg)
	}

	loc, err := time.LoadLocation(cfg.Pricing.Timezone)
	if err != nil {
		log.Fatal(err)
	}

	pricingSvc := pricing.NewService(pricing.Deps{
		Snapshots:   manager,
		Counter:     counter,
		Audit:       publisher,
		Metrics:     m,
		Log:         lg,
		Calculator:  pricing.Calculator{Location: loc, Currency: cfg.Pricing.Currency},
		Development: cfg.Development(),
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Pricing:     pricingSvc,
		Plans:       planStore,
		Rules:       ruleStore,
		Promotions:  promoStore,
		Invalidator: manager,
		Metrics:     m,
		Log:         lg,
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, router, lg)
	if err := server.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
