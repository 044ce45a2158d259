package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/warehouse-sim/shipping-coordinator/internal/config"
	"github.com/warehouse-sim/shipping-coordinator/internal/invclient"
	kafkax "github.com/warehouse-sim/shipping-coordinator/internal/kafka"
	"github.com/warehouse-sim/shipping-coordinator/internal/orders"
	"github.com/warehouse-sim/shipping-coordinator/internal/postgres"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

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

	client := invclient.New(invclient.NewHTTPCaller(cfg.InventoryBaseURL), invclient.Config{
		Timeout:      cfg.ClientTimeout,
		MaxRetries:   cfg.MaxRetries,
		BaseDelay:    cfg.RetryBaseDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		ThresholdPct: cfg.BreakerThresholdPct,
		Volume:       cfg.BreakerVolume,
		CoolDown:     cfg.BreakerCoolDown,
	})

	reconciler := &orders.Reconciler{
		Store:     &orders.Repo{DB: db},
		Inventory: client,
	}

	// Periodic sweep: catches everything, eventually.
	go func() {
		t := time.NewTicker(cfg.RecoverInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := reconciler.RecoverPendingOrders(ctx); err != nil {
					log.Printf("sweep failed: %v", err)
				}
			}
		}
	}()

	// Targeted repair: order-api flags shipments whose deduction outcome is
	// unknown; repairing those first shrinks the inconsistency window.
	if len(cfg.KafkaBrokers) > 0 {
		group := getenv("RECONCILER_GROUP", "shipment-reconciler")
		workers := mustAtoi(os.Getenv("RECONCILER_WORKERS"), "4")
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderStuck, workers)
		go func() {
			log.Printf("stuck-order consumer started: group=%s workers=%d", group, workers)
			if err := cons.Start(ctx, func(ctx context.Context, m kafkago.Message) error {
				var env orders.Envelope
				if err := kafkax.Unmarshal(m.Value, &env); err != nil {
					return err
				}
				if env.EventType != orders.EventOrderStuck {
					return nil
				}
				p, err := kafkax.UnwrapPayload[orders.OrderStuckPayload](env.Payload)
				if err != nil {
					return err
				}
				fixed, err := reconciler.RecoverOrder(ctx, p.OrderID)
				if err != nil {
					return err
				}
				if fixed {
					log.Printf("repaired stuck order %s", p.OrderID)
				}
				return nil
			}); err != nil {
				log.Printf("consumer exit: %v", err)
				cancel()
			}
		}()
	}

	log.Printf("reconciler running, sweep every %s", cfg.RecoverInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down reconciler...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
