package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ritesh5001/tatvivah-marketplace/internal/cache"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/audit"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/checkout"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/payment"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/shipment"
	"github.com/ritesh5001/tatvivah-marketplace/internal/handler"
	"github.com/ritesh5001/tatvivah-marketplace/internal/notify"
	"github.com/ritesh5001/tatvivah-marketplace/internal/storage/postgres"
	"github.com/ritesh5001/tatvivah-marketplace/pkg/health"
	"github.com/ritesh5001/tatvivah-marketplace/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Tracking cache: Redis when configured, otherwise a no-op store.
	var store cache.Store = cache.Noop{}
	var redisStore *cache.Redis
	if cfg.RedisURL != "" {
		redisStore, err = cache.NewRedis(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "create redis store")
		}
		defer redisStore.Close()
		store = redisStore
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisStore != nil {
		healthSvc.AddReadinessCheck("redis", 5*time.Second, redisStore.Ping)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	db := postgres.NewDB(pool)
	orderRepo := postgres.NewOrderRepository(db)
	cartRepo := postgres.NewCartRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	settlementRepo := postgres.NewSettlementRepository(db)
	shipmentRepo := postgres.NewShipmentRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Payment providers.
	var providers []payment.Provider
	if cfg.Payment.MockSecret != "" {
		providers = append(providers, payment.NewMockProvider(cfg.Payment.MockSecret))
	}
	if cfg.Payment.RazorpayWebhookSecret != "" {
		providers = append(providers, payment.NewRazorpayProvider(payment.RazorpayConfig{
			KeyID:         cfg.Payment.RazorpayKeyID,
			KeySecret:     cfg.Payment.RazorpayKeySecret,
			WebhookSecret: cfg.Payment.RazorpayWebhookSecret,
		}))
	}

	// Domain services.
	notifier := notify.NewLogNotifier()
	auditLog := audit.NewLogger(auditRepo)
	checkoutSvc := checkout.NewService(db, cartRepo, inventoryRepo, orderRepo)
	processor := payment.NewProcessor(payment.ProcessorConfig{
		IntentTimeout: cfg.Payment.IntentTimeout,
		Currency:      cfg.Payment.Currency,
	}, db, paymentRepo, orderRepo, settlementRepo, providers, notifier, store)
	synchronizer := shipment.NewSynchronizer(db, orderRepo, shipmentRepo)
	tracker := shipment.NewTracker(db, shipmentRepo, orderRepo, synchronizer, auditLog, notifier, store)
	trackingReader := shipment.NewTrackingReader(orderRepo, shipmentRepo, store, cfg.Tracking.CacheTTL)
	adminSvc := order.NewAdminService(orderRepo, auditLog)

	// HTTP surface.
	h := handler.NewHandler(checkoutSvc, processor, tracker, trackingReader, adminSvc)

	api := http.NewServeMux()
	h.Register(api)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", otelhttp.NewHandler(handler.WithActor(api), "marketplace-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-User-ID", "X-User-Role"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
