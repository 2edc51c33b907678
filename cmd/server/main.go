// Command server runs the loan origination core: rule evaluation, condition
// tracking, milestone workflow, pricing and decisioning behind one HTTP API.
// main wires dependencies and owns process lifecycle; business logic lives in
// the internal service packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lendgate/internal/appdata"
	"lendgate/internal/audit"
	"lendgate/internal/conditions"
	conditionmetrics "lendgate/internal/conditions/metrics"
	"lendgate/internal/decision"
	decisionmetrics "lendgate/internal/decision/metrics"
	"lendgate/internal/platform/applock"
	"lendgate/internal/platform/config"
	"lendgate/internal/platform/httpserver"
	"lendgate/internal/platform/logger"
	platformredis "lendgate/internal/platform/redis"
	"lendgate/internal/pricing"
	"lendgate/internal/rules"
	"lendgate/internal/rules/cache"
	rulemetrics "lendgate/internal/rules/metrics"
	httptransport "lendgate/internal/transport/http"
	"lendgate/internal/workflow"
	workflowmetrics "lendgate/internal/workflow/metrics"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	// Postgres is optional; without it every store runs in memory, which is
	// enough for local development and demos.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Audit: durable store first, Kafka sink behind it when configured.
	var auditStore audit.Store
	if pool != nil {
		auditStore = audit.NewPostgresStore(pool)
	} else {
		auditStore = audit.NewInMemoryStore()
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer kafkaStore.Close()

		// Broker writes go through a worker so produce latency stays off the
		// request path. The durable store keeps the synchronous write.
		inbox := make(chan audit.Event, 256)
		workerCtx, stopWorker := context.WithCancel(ctx)
		defer stopWorker()
		go func() { _ = audit.NewWorker(kafkaStore, inbox, log).Run(workerCtx) }()
		auditStore = audit.NewTeeStore(auditStore, audit.NewChannelStore(inbox, log))
	}
	publisher := audit.NewPublisher(auditStore)

	locks := applock.New()
	evaluator := rules.NewEvaluator()

	var conditionStore conditions.Store = conditions.NewInMemoryStore()
	var ruleStore rules.Store = rules.NewInMemoryStore()
	var workflowStore workflow.Store = workflow.NewInMemoryStore()
	var decisionStore decision.Store = decision.NewInMemoryStore()
	var dataStore appdata.Store = appdata.NewInMemoryStore()
	if pool != nil {
		conditionStore = conditions.NewPostgresStore(pool)
		ruleStore = rules.NewPostgresStore(pool)
		workflowStore = workflow.NewPostgresStore(pool)
		decisionStore = decision.NewPostgresStore(pool)
		dataStore = appdata.NewPostgresStore(pool)
	}

	var versionCache cache.VersionCache = cache.NewInMemoryCache(cfg.RuleCacheTTL)
	if redisClient != nil {
		versionCache = cache.NewRedisCache(redisClient, cfg.RuleCacheTTL, log)
	}

	conditionService, err := conditions.NewService(conditionStore, evaluator,
		conditions.WithAuditPublisher(publisher),
		conditions.WithMetrics(conditionmetrics.New()),
		conditions.WithLogger(log),
	)
	if err != nil {
		log.Error("condition service init failed", "error", err)
		os.Exit(1)
	}

	engine, err := rules.NewEngine(ruleStore, conditionService,
		rules.WithEvaluator(evaluator),
		rules.WithCache(versionCache),
		rules.WithAuditPublisher(publisher),
		rules.WithMetrics(rulemetrics.New()),
		rules.WithLogger(log),
	)
	if err != nil {
		log.Error("rule engine init failed", "error", err)
		os.Exit(1)
	}
	lifecycle := rules.NewLifecycle(ruleStore, versionCache, publisher, log)

	defs, err := workflow.LoadDefinitions()
	if err != nil {
		log.Error("workflow definitions invalid", "error", err)
		os.Exit(1)
	}

	wfMetrics := workflowmetrics.New()
	tasks, err := workflow.NewTaskService(defs, workflowStore, locks,
		workflow.WithTaskAuditPublisher(publisher),
		workflow.WithTaskMetrics(wfMetrics),
		workflow.WithTaskLogger(log),
	)
	if err != nil {
		log.Error("task service init failed", "error", err)
		os.Exit(1)
	}

	dataService := appdata.NewService(dataStore)

	aggregator, err := decision.NewAggregator(decisionStore, locks,
		decision.WithAuditPublisher(publisher),
		decision.WithMetrics(decisionmetrics.New()),
		decision.WithLogger(log),
	)
	if err != nil {
		log.Error("decision aggregator init failed", "error", err)
		os.Exit(1)
	}

	prereqs := workflow.NewPrerequisiteChecker(defs, workflowStore, conditionService, dataService, aggregator)
	stateMachine, err := workflow.NewStateMachine(defs, workflowStore, prereqs, tasks, locks,
		workflow.WithAuditPublisher(publisher),
		workflow.WithMetrics(wfMetrics),
		workflow.WithLogger(log),
	)
	if err != nil {
		log.Error("state machine init failed", "error", err)
		os.Exit(1)
	}

	pricer := pricing.NewEngine()

	slaScheduler, err := workflow.NewSLAScheduler(cfg.SLASweepSpec, tasks, log)
	if err != nil {
		log.Error("sla scheduler init failed", "error", err)
		os.Exit(1)
	}
	slaScheduler.Start()
	defer slaScheduler.Stop()

	router := httptransport.NewRouter(httptransport.Handlers{
		Rules:      httptransport.NewRulesHandler(engine, lifecycle, log),
		Conditions: httptransport.NewConditionsHandler(conditionService, log),
		Workflow:   httptransport.NewWorkflowHandler(stateMachine, tasks, log),
		Decisions:  httptransport.NewDecisionsHandler(aggregator, engine, pricer, conditionService, log),
		Pricing:    httptransport.NewPricingHandler(pricer),
		AppData:    httptransport.NewAppDataHandler(dataService, conditionService, stateMachine, log),
		Audit:      httptransport.NewAuditHandler(auditStore),
	}, log)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting lendgate", "addr", cfg.Addr, "postgres", pool != nil, "redis", redisClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("lendgate stopped")
}
