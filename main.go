package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	appOrder "github.com/Zhima-Mochi/minishop-settlement/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-settlement/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/config"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/inventory"
	domainOutbox "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	domainPayment "github.com/Zhima-Mochi/minishop-settlement/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/gateway/bkash"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/gateway/stripe"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-settlement/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-settlement/internal/observability"
	"github.com/Zhima-Mochi/minishop-settlement/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-settlement/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// store is what the process needs from a persistence backend.
type store interface {
	application.UnitOfWork
	SeedProduct(ctx context.Context, p *inventory.Product) (bool, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	if err := run(cfg, baseLogger, systemLogger); err != nil {
		systemLogger.Error("service_exit", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, baseLogger, systemLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	instruments := prometrics.RegisterAll(prometrics.New(registry, "", ""))
	tel := telemetry.New(
		oteltrace.New(cfg.ServiceName),
		zaplogger.New(baseLogger),
		instruments.Counters,
		instruments.Histograms,
		instruments.Gauges,
	)

	st, ready, closeStore, err := openStore(ctx, cfg, systemLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	created := 0
	for _, sp := range cfg.SeedProducts {
		p, err := inventory.NewProduct(sp.ID, sp.Name, sp.SKU, sp.Price, sp.Stock)
		if err != nil {
			return fmt.Errorf("seed product %s: %w", sp.ID, err)
		}
		ok, err := st.SeedProduct(ctx, p)
		if err != nil {
			return fmt.Errorf("seed product %s: %w", sp.ID, err)
		}
		if ok {
			created++
		}
	}
	if n := len(cfg.SeedProducts); n > 0 {
		systemLogger.Info("catalog_seeded",
			zap.Int("products", n),
			zap.Int("created", created),
			zap.Int("kept", n-created),
		)
	}

	gateways, verifiers, err := buildGateways(cfg, tel)
	if err != nil {
		return err
	}
	systemLogger.Info("payment_providers_enabled", zap.Any("providers", gateways.Providers()))

	publisher, closePublisher, err := buildPublisher(cfg, tel)
	if err != nil {
		return err
	}
	defer closePublisher()

	relay := outbox.NewRelay(st, publisher, tel, outbox.RelayOptions{
		Interval: cfg.OutboxInterval,
		Batch:    cfg.OutboxBatch,
	})
	relay.Start(ctx)
	defer relay.Stop(context.Background())

	ids := id.NewUUIDGenerator()
	handler := httppresentation.NewHandler(httppresentation.UseCases{
		CreateOrder:    appOrder.NewCreateOrderUseCase(st, ids, tel),
		ListOrders:     appOrder.NewListOrdersUseCase(st, tel),
		GetOrder:       appOrder.NewGetOrderUseCase(st, tel),
		CreatePayment:  appPayment.NewCreatePaymentUseCase(st, gateways, ids, cfg.PaymentCurrency, tel),
		ConfirmPayment: appPayment.NewConfirmPaymentUseCase(st, gateways, ids, tel),
		GetPayment:     appPayment.NewGetPaymentUseCase(st, tel),
		ListPayments:   appPayment.NewListPaymentsUseCase(st, tel),
		HandleWebhook:  appPayment.NewHandleWebhookUseCase(st, verifiers, ids, tel),
	}, httppresentation.Options{
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Ready:          ready,
	}, tel)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.Store),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store, func(context.Context) error, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("memory_store_enabled")
		return memory.NewStore(), nil, func() {}, nil
	}

	db, err := postgres.Open(ctx, postgres.Config{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSLMode,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	logger.Info("postgres_ready", zap.String("host", cfg.PostgresHost), zap.String("db", cfg.PostgresDB))

	st := postgres.NewStore(db)
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("postgres_close_error", zap.Error(err))
		}
	}
	return st, st.Ping, closeDB, nil
}

func buildGateways(cfg config.Config, tel observability.Observability) (*gateway.Registry, map[domainPayment.Provider]domainPayment.WebhookVerifier, error) {
	registry := gateway.NewRegistry()
	verifiers := make(map[domainPayment.Provider]domainPayment.WebhookVerifier)

	if cfg.StripeEnabled() {
		client, err := stripe.New(stripe.Config{
			SecretKey: cfg.StripeSecretKey,
			BaseURL:   cfg.StripeBaseURL,
			Timeout:   cfg.StripeTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		registry.Register(domainPayment.ProviderStripe,
			gateway.WithBreaker(domainPayment.ProviderStripe, client, gateway.DefaultBreakerSettings(), tel))
	}
	if cfg.StripeWebhookSecret != "" {
		verifier, err := stripe.NewVerifier(cfg.StripeWebhookSecret, cfg.StripeWebhookTolerance)
		if err != nil {
			return nil, nil, err
		}
		verifiers[domainPayment.ProviderStripe] = verifier
	}
	if cfg.BkashEnabled {
		registry.Register(domainPayment.ProviderBkash, bkash.New())
	}
	return registry, verifiers, nil
}

func buildPublisher(cfg config.Config, tel observability.Observability) (domainOutbox.Publisher, func(), error) {
	if !cfg.KafkaEnabled {
		return outbox.NewLogPublisher(tel.Logger()), func() {}, nil
	}
	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		return nil, nil, err
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			tel.Logger().Error("kafka_close_error", observability.F("error", err))
		}
	}, nil
}
