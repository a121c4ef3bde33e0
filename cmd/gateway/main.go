package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"paybridge/internal/config"
	orderpg "paybridge/internal/order/infrastructure/postgres"
	"paybridge/internal/payment/application"
	paymenthttp "paybridge/internal/payment/infrastructure/http"
	paymentpg "paybridge/internal/payment/infrastructure/postgres"
	"paybridge/internal/payment/infrastructure/provider"
	"paybridge/pkg/logging"
	"paybridge/pkg/outbox"
	"paybridge/pkg/shutdown"
	"paybridge/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "gateway")
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
	defer writer.Close()

	// Stores
	orders := orderpg.NewRepository(log, pool)
	outboxStore := orderpg.NewOutboxStore(log, pool)
	correlations := paymentpg.NewCorrelationStore(log, pool)

	// Outbox relay
	dispatch := outbox.NewDispatcher(log, writer, cfg.OrderTopic)
	relay := outbox.NewRelay(log, outboxStore, dispatch, "gateway-relay")

	// Provider client and services
	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.SecretKey)
	secret := []byte(cfg.SecretKey)
	correlator := application.NewCorrelator(cfg.Salt, correlations)
	sessions := application.NewSessionService(log, orders, providerClient, correlator, secret, cfg.PublicBaseURL, cfg.ReturnPath, cfg.ProviderLocale)
	redirects := application.NewRedirectHandler(log, orders, providerClient, secret, cfg.ReturnPath)
	processor := application.NewProcessor(log, orders)

	handler := paymenthttp.NewHandler(log, sessions, redirects, processor, correlator, secret, paymenthttp.RedirectURLs{
		Success:         cfg.SuccessURL,
		CheckoutPayment: cfg.CheckoutPaymentURL,
		Home:            cfg.HomeURL,
	})

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("gateway shutdown complete")
}
