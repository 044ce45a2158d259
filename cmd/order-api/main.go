package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warehouse-sim/shipping-coordinator/internal/config"
	"github.com/warehouse-sim/shipping-coordinator/internal/httpx"
	"github.com/warehouse-sim/shipping-coordinator/internal/invclient"
	kafkax "github.com/warehouse-sim/shipping-coordinator/internal/kafka"
	"github.com/warehouse-sim/shipping-coordinator/internal/orders"
	"github.com/warehouse-sim/shipping-coordinator/internal/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.InitOrderSchema(ctx, db); err != nil {
		log.Fatalf("db schema: %v", err)
	}

	// Kafka event publishing is optional; no brokers, no events.
	var pub *orders.Publisher
	var producers []*kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
		shipped := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderShipped, 1024)
		stuck := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStuck, 1024)
		for _, p := range []*kafkax.Producer{created, shipped, stuck} {
			p.Start(ctx)
			producers = append(producers, p)
		}
		pub = &orders.Publisher{Created: created, Shipped: shipped, Stuck: stuck, Service: cfg.ServiceName}
	}

	client := invclient.New(invclient.NewHTTPCaller(cfg.InventoryBaseURL), invclient.Config{
		Timeout:      cfg.ClientTimeout,
		MaxRetries:   cfg.MaxRetries,
		BaseDelay:    cfg.RetryBaseDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		ThresholdPct: cfg.BreakerThresholdPct,
		Volume:       cfg.BreakerVolume,
		CoolDown:     cfg.BreakerCoolDown,
	})

	repo := &orders.Repo{DB: db}
	coordinator := &orders.Coordinator{Store: repo, Inventory: client, Events: pub}
	reconciler := &orders.Reconciler{Store: repo, Inventory: client, Events: pub}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Coordinator: coordinator, Reconciler: reconciler, Client: client}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Printf("order-api listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	for _, p := range producers {
		p.Close()
	}
	cancel()
	for _, p := range producers {
		p.WaitClosed()
	}
}
