package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"gozon/internal/auth"
	"gozon/internal/config"
	"gozon/internal/events"
	"gozon/internal/handler"
	"gozon/internal/metrics"
	"gozon/internal/outbox"
	"gozon/internal/repository"
	"gozon/internal/service"
	"gozon/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Error connecting to DB: ", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("DB is not reachable: ", err)
	}
	log.Println("Connected to DB")

	if err := repository.CreateTables(ctx, db); err != nil {
		log.Fatal("Failed to create tables: ", err)
	}

	sessions, err := newSessionStore(ctx, cfg, db)
	if err != nil {
		log.Fatal("Failed to init session store: ", err)
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		log.Fatal("Failed to init event publisher: ", err)
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg, "order_service")

	store := repository.NewPostgresStore(db)
	processor := outbox.NewOutboxProcessor(store, publisher, cfg.OutboxInterval, cfg.OutboxBatchSize, m)
	processorDone := processor.Start(ctx)

	svc := service.New(store)
	h := handler.New(handler.Options{
		Service:        svc,
		Auth:           auth.NewAuthenticator(auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL), sessions, svc.Policy()),
		Metrics:        m,
		MetricsHandler: metrics.Handler(reg),
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      rate.Limit(cfg.RateLimitRPS),
		RateBurst:      cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Order Service started on :%s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server failed: ", err)
	}
	<-processorDone
	log.Println("Order Service stopped")
}

func newSessionStore(ctx context.Context, cfg config.Config, db *sql.DB) (session.Store, error) {
	if cfg.SessionStore != config.SessionsPostgres {
		return session.NewMemoryStore(), nil
	}
	store := session.NewPostgresStore(db)
	if err := store.CreateTable(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newPublisher(cfg config.Config) (events.Publisher, error) {
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		conn, err := events.DialRabbit(cfg.RabbitMQURL, 15, 2*time.Second)
		if err != nil {
			return nil, err
		}
		return events.NewRabbitPublisher(conn)
	case config.BrokerKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic), nil
	}
	log.Println("No event broker configured, lifecycle events are dropped")
	return events.Discard{}, nil
}
