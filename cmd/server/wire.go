package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"securecart/internal/config"
	"securecart/internal/handlers"
	"securecart/internal/middleware"
	"securecart/internal/models"
	"securecart/internal/repositories"
	"securecart/internal/repositories/analytics"
	"securecart/internal/repositories/cache"
	"securecart/internal/routes"
	"securecart/internal/services/auth"
	"securecart/internal/services/dashboard"
	"securecart/internal/services/detection"
	"securecart/internal/services/ledger"
	"securecart/internal/services/monitor"
	"securecart/internal/services/notification"
	"securecart/internal/services/processor"
	"securecart/internal/services/realtime"
	"securecart/internal/services/rules"
	"securecart/internal/services/settings"
	"securecart/internal/services/training"
	"securecart/internal/services/transaction"
)

// server holds everything main needs after construction.
type server struct {
	db             *gorm.DB
	redis          *redis.Client
	cache          *cache.CacheService
	limiterStorage fiber.Storage

	detector  *detection.Detector
	settings  settings.Service
	training  training.Service
	notifier  *notification.Service
	hub       *realtime.Hub
	collector *monitor.Collector
	audit     *monitor.AuditLog
	health    *monitor.Health
	auth      *middleware.AuthMiddleware
	handlers  routes.Handlers

	closers []func()
	wg      sync.WaitGroup
}

// publisher fans pipeline events out to the dashboards and the metrics.
// Only analyzed transactions count toward the metrics.
type publisher struct {
	hub     *realtime.Hub
	metrics monitor.MetricsCollector
}

func (p publisher) PublishTransaction(t *models.Transaction) {
	p.metrics.RecordTransaction(t.Status, t.Amount, t.RiskScore)
	p.hub.PublishTransaction(t)
}

func (p publisher) PublishStatusChange(t *models.Transaction) {
	p.hub.PublishTransaction(t)
}

func (p publisher) PublishAlert(a models.FraudAlert) {
	p.hub.PublishAlert(a)
}

func build(ctx context.Context, cfg *config.Config) (*server, error) {
	srv := &server{}

	db, err := repositories.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	srv.db = db
	srv.closers = append(srv.closers, func() {
		if err := repositories.Close(db); err != nil {
			log.Printf("⚠️ Closing database: %v", err)
		}
	})
	log.Println("✅ Database connected")

	srv.openRedis(ctx, cfg)

	var source dashboard.Source
	if pool, err := analytics.NewPool(ctx, cfg.Database); err != nil {
		log.Printf("⚠️ Analytics disabled: %v", err)
	} else {
		source = analytics.NewRepository(pool)
		srv.closers = append(srv.closers, pool.Close)
	}

	users := repositories.NewUserRepository(db, srv.cache)
	sessions := repositories.NewSessionRepository(db)
	txns := repositories.NewTransactionRepository(db)
	reports := repositories.NewFraudReportRepository(db)
	ruleRepo := repositories.NewRuleRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)
	modelRepo := repositories.NewModelRepository(db)
	logs := repositories.NewSystemLogRepository(db)

	srv.collector = monitor.NewCollector(logs)
	if cfg.Logging.DBEnabled && cfg.Features.AuditLogging {
		srv.audit = monitor.NewAuditLog(logs, cfg.Logging.DBLevel, 0)
	}

	srv.detector = detection.NewDetector(detection.Options{
		Threshold: cfg.ML.FraudThreshold,
		Version:   cfg.ML.ModelVersion,
	})
	if err := srv.detector.Load(cfg.ML.ModelPath); err != nil {
		if !errors.Is(err, detection.ErrNoSnapshot) {
			log.Printf("⚠️ Could not load model snapshot: %v", err)
		}
	} else {
		log.Printf("✅ Loaded fraud model %s", srv.detector.Status().Version)
	}

	ledgerSvc, err := srv.openLedger(ctx, cfg)
	if err != nil {
		srv.close()
		return nil, err
	}

	srv.settings = settings.NewService(settingsRepo, srv.detector, cfg.ML)
	if err := srv.settings.Sync(ctx); err != nil {
		log.Printf("⚠️ Model settings not applied: %v", err)
	}

	srv.notifier = notification.NewService(srv.settings, reports, notification.Options{Workers: 2})
	var hasher rules.Hasher
	if cfg.Features.BlockchainIntegration {
		hasher = ledgerSvc
	}
	ruleSvc := rules.NewService(ruleRepo, hasher)

	tokens := auth.NewTokenService(cfg.Security.JWTSecret, cfg.Security.RefreshTokenTTL)
	var live auth.LiveSessions
	if srv.redis != nil {
		live = cache.NewSessionStore(srv.redis)
	}
	authSvc := auth.NewService(users, tokens, live, sessions, cfg.Security)
	srv.auth = middleware.NewAuthMiddleware(authSvc, srv.settings)

	var dashCache dashboard.Cache
	if srv.cache != nil {
		dashCache = srv.cache
	}
	dashSvc := dashboard.NewService(source, dashCache, srv.detector)

	var bridge realtime.Bridge
	if srv.redis != nil && cfg.WebSocket.UseRedisFanout {
		bridge = cache.NewPubSub(srv.redis)
	}
	srv.hub = realtime.NewHub(realtime.Deps{
		Auth:       authSvc,
		Stats:      dashSvc,
		Thresholds: srv.settings,
		Bridge:     bridge,
	}, realtime.OptionsFromConfig(cfg.WebSocket))

	deps := transaction.Deps{
		Transactions: txns,
		Reports:      reports,
		Scorer:       srv.detector,
		Rules:        ruleSvc,
		Settings:     srv.settings,
		Publisher:    publisher{hub: srv.hub, metrics: srv.collector},
	}
	if srv.redis != nil && cfg.ML.VelocityChecks {
		deps.Velocity = cache.NewVelocityStore(srv.redis)
	}
	if proc := processor.NewClient(cfg.Processor); proc.Enabled() {
		deps.Processor = proc
	}
	if cfg.Features.BlockchainIntegration {
		deps.Ledger = ledgerSvc
	}
	if cfg.Features.UserNotifications {
		deps.Notifier = srv.notifier
	}
	txnSvc := transaction.NewService(deps, cfg.Features, cfg.ML)
	srv.hub.SetHistory(txnSvc)

	srv.training = training.NewService(training.Deps{
		Detector:     srv.detector,
		Registry:     modelRepo,
		Transactions: txns,
		Reports:      reports,
	}, cfg.ML, cfg.Features)
	srv.trainOnStartup(ctx, cfg)

	srv.health = monitor.NewHealth(cfg.App.Version, 5*time.Second)
	srv.registerChecks(ledgerSvc)

	var audit handlers.AuditRecorder
	if srv.audit != nil {
		audit = srv.audit
	}
	srv.handlers = routes.Handlers{
		Health:      handlers.NewHealthHandler(srv.health, cfg.App, cfg.Features),
		Auth:        handlers.NewAuthHandler(authSvc, audit),
		Transaction: handlers.NewTransactionHandler(txnSvc),
		Fraud:       handlers.NewFraudHandler(txnSvc),
		Rule:        handlers.NewRuleHandler(ruleSvc),
		Settings:    handlers.NewSettingsHandler(srv.settings, audit),
		Analytics:   handlers.NewAnalyticsHandler(dashSvc),
		Model:       handlers.NewModelHandler(srv.training, srv.hub),
		Ledger:      handlers.NewLedgerHandler(ledgerSvc),
		Admin:       handlers.NewAdminHandler(authSvc, logs, srv.collector, srv.hub, cfg, audit),
	}
	return srv, nil
}

func (s *server) openRedis(ctx context.Context, cfg *config.Config) {
	client := cache.NewRedisClient(cfg.Redis)
	svc := cache.NewCacheService(client, cfg.Redis.DefaultTTL)
	if err := svc.HealthCheck(ctx); err != nil {
		log.Printf("⚠️ Redis unavailable, continuing without cache: %v", err)
		_ = client.Close()
		return
	}
	if cfg.Redis.FlushOnStartup {
		if err := svc.FlushAll(ctx); err != nil {
			log.Printf("⚠️ Failed to flush Redis: %v", err)
		} else {
			log.Println("🧹 Redis flushed")
		}
	}
	s.redis = client
	s.cache = svc
	s.limiterStorage = cache.NewStorage(client)
	s.closers = append(s.closers, func() { _ = svc.Close() })
	log.Println("✅ Redis connected")
}

// openLedger opens the local hash chain and, when enabled, the Ethereum
// anchor.
func (s *server) openLedger(ctx context.Context, cfg *config.Config) (*ledger.Service, error) {
	store, err := ledger.OpenLocalStore(cfg.Blockchain.LocalLedgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	s.closers = append(s.closers, func() { _ = store.Close() })

	var chain ledger.Chain
	if cfg.Blockchain.Enabled && cfg.Features.BlockchainIntegration {
		recorder, err := ledger.DialEthereum(ctx, cfg.Blockchain)
		switch {
		case errors.Is(err, ledger.ErrNoContract):
			log.Println("⚠️ No contract address configured, ledger runs locally")
		case err != nil:
			log.Printf("⚠️ Ethereum unavailable, ledger runs locally: %v", err)
		default:
			chain = recorder
			s.closers = append(s.closers, recorder.Close)
			log.Printf("✅ Connected to %s", cfg.Blockchain.Network)
		}
	}
	return ledger.NewService(store, chain, cfg.Blockchain.Network), nil
}

func (s *server) trainOnStartup(ctx context.Context, cfg *config.Config) {
	if s.detector.Trained() || !cfg.ML.TrainOnStartup {
		return
	}
	log.Println("🧠 No saved model, training on startup")
	res, err := s.training.Train(ctx, training.Request{})
	if err != nil {
		log.Printf("⚠️ Startup training failed, using heuristic scoring: %v", err)
		return
	}
	log.Printf("✅ Trained model %s on %d %s samples", res.Report.Version, res.Report.Samples, res.Source)
}

func (s *server) registerChecks(ledgerSvc *ledger.Service) {
	if sqlDB, err := s.db.DB(); err == nil {
		s.health.Register("database", true, monitor.DBCheck(sqlDB))
	}
	if s.cache != nil {
		s.health.Register("redis", false, func(ctx context.Context) (map[string]interface{}, error) {
			return nil, s.cache.HealthCheck(ctx)
		})
	}
	s.health.Register("model", false, func(ctx context.Context) (map[string]interface{}, error) {
		st := s.detector.Status()
		details := map[string]interface{}{"version": st.Version, "trained": st.Trained}
		if !st.Trained {
			return details, errors.New("model is not trained")
		}
		return details, nil
	})
	s.health.Register("ledger", false, func(ctx context.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"network": ledgerSvc.Network(ctx)}, nil
	})
}

// security applies the feature flag on top of the configured limits.
func (s *server) security(cfg *config.Config) config.SecurityConfig {
	sec := cfg.Security
	if !cfg.Features.APIRateLimiting {
		sec.RateLimitEnabled = false
	}
	return sec
}

// start launches the background workers. They stop when ctx is cancelled.
func (s *server) start(ctx context.Context, cfg *config.Config) {
	s.notifier.Start(ctx)
	if s.audit != nil {
		s.audit.Start()
	}

	s.spawn(func() { s.hub.Run(ctx) })
	s.spawn(func() { s.collector.Run(ctx, cfg.Monitoring.MetricsInterval) })
	if sqlDB, err := s.db.DB(); err == nil {
		s.spawn(func() { monitor.WatchPool(ctx, sqlDB, time.Minute, s.collector) })
	}

	var alerter monitor.Alerter
	if cfg.Monitoring.SlackAlerts && cfg.Monitoring.SlackWebhookURL != "" {
		alerter = monitor.SlackAlerter{Notifier: s.notifier, URL: cfg.Monitoring.SlackWebhookURL}
	}
	s.spawn(func() { s.health.Watch(ctx, cfg.Monitoring.HealthCheckInterval, alerter) })
}

func (s *server) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// wait blocks until the workers have drained.
func (s *server) wait() {
	s.wg.Wait()
	s.notifier.Stop()
	if s.audit != nil {
		s.audit.Stop()
	}
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
