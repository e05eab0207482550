package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"gozon/internal/access"
	"gozon/internal/auth"
	"gozon/internal/config"
	"gozon/internal/events"
	"gozon/internal/gateway"
	"gozon/internal/repository"
	"gozon/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	upstream, err := url.Parse(cfg.OrderServiceURL)
	if err != nil {
		log.Fatalf("Invalid ORDER_SERVICE_URL: %v", err)
	}

	if err := cfg.RequireDatabase(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// websocket handshakes are checked against the same actors and revoked sessions as the API
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Error connecting to DB: ", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("DB is not reachable: ", err)
	}

	sessions, err := newSessionStore(ctx, cfg, db)
	if err != nil {
		log.Fatal("Failed to init session store: ", err)
	}
	authenticator := auth.NewAuthenticator(
		auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		sessions,
		access.NewPolicy(repository.NewPostgresStore(db)),
	)

	hub := gateway.NewWSHub()
	go listen(ctx, cfg, hub)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gateway.NewServer(hub, authenticator, upstream, 10*time.Second).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Gateway starting on :%s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Gateway failed: %v", err)
	}
}

func listen(ctx context.Context, cfg config.Config, hub *gateway.WSHub) {
	sub, err := newSubscriber(cfg)
	if err != nil {
		log.Fatalf("Gateway failed to subscribe to lifecycle events: %v", err)
	}
	if sub == nil {
		log.Println("No event broker configured, websocket push disabled")
		return
	}
	defer sub.Close()

	log.Printf("Gateway listening to %s events", cfg.EventBroker)
	if err := sub.Subscribe(ctx, hub.Dispatch); err != nil && ctx.Err() == nil {
		log.Fatalf("Gateway event subscription ended: %v", err)
	}
}

func newSessionStore(ctx context.Context, cfg config.Config, db *sql.DB) (session.Store, error) {
	if cfg.SessionStore != config.SessionsPostgres {
		log.Println("Memory session store: logouts done through the order service are not seen here")
		return session.NewMemoryStore(), nil
	}
	store := session.NewPostgresStore(db)
	if err := store.CreateTable(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newSubscriber(cfg config.Config) (events.Subscriber, error) {
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		conn, err := events.DialRabbit(cfg.RabbitMQURL, 15, 2*time.Second)
		if err != nil {
			return nil, err
		}
		return events.NewRabbitSubscriber(conn)
	case config.BrokerKafka:
		host, _ := os.Hostname()
		// every gateway replica needs every event, so each one reads in its own group
		return events.NewKafkaSubscriber(cfg.KafkaBrokers, cfg.EventsTopic, "api-gateway-"+host), nil
	}
	return nil, nil
}
