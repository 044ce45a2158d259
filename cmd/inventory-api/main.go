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
	"github.com/warehouse-sim/shipping-coordinator/internal/fault"
	"github.com/warehouse-sim/shipping-coordinator/internal/httpx"
	"github.com/warehouse-sim/shipping-coordinator/internal/inventory"
	"github.com/warehouse-sim/shipping-coordinator/internal/postgres"
	"github.com/warehouse-sim/shipping-coordinator/internal/redisx"
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
	if err := postgres.InitInventorySchema(ctx, db); err != nil {
		log.Fatalf("db schema: %v", err)
	}
	if err := postgres.SeedProducts(ctx, db); err != nil {
		log.Fatalf("db seed: %v", err)
	}

	// The gremlin counter lives in redis so the Nth-call cadence holds across
	// replicas; the counter itself degrades to process-local when redis is
	// down rather than failing requests.
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Printf("redis unreachable, gremlin counter degrades to local: %v", err)
	}

	gremlin := fault.NewGremlin(cfg.GremlinEnabled, cfg.GremlinEveryNth, cfg.GremlinDelay,
		fault.NewRedisCounter(rdb))
	chaos := fault.NewChaos(cfg.ChaosEnabled, cfg.ChaosProbability, rdb)

	svc := inventory.NewService(&inventory.Repo{DB: db}, gremlin, chaos)

	router := httpx.NewRouter()
	ih := &httpx.InventoryHandler{Svc: svc}
	ih.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Printf("inventory-api listening at %s (gremlin=%v chaos=%v)",
			cfg.HTTPAddr, cfg.GremlinEnabled, cfg.ChaosEnabled)
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
}
