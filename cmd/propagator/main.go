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

	"github.com/ariefcatur/go-kitchen-orders.git/internal/catalog"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/config"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/events"
	kafkax "github.com/ariefcatur/go-kitchen-orders.git/internal/kafka"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/postgres"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/redisx"
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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer utk event plate.availability
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start()

	repo := &catalog.Repo{DB: db}
	svc := &catalog.Service{
		Propagator:  &catalog.Propagator{Repo: repo},
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName + "-propagator",
	}

	// full sweep dulu biar derived state konsisten sebelum terima event
	if flips, err := svc.Propagator.RecomputeAll(ctx); err != nil {
		log.Fatalf("initial recompute: %v", err)
	} else {
		log.Printf("initial recompute done, %d plate(s) flipped", len(flips))
	}

	// Consumer
	group := getenv("PROPAGATOR_GROUP", "availability-propagator")
	workers := mustAtoi(os.Getenv("PROPAGATOR_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, events.TopicStockChanged, workers)

	go func() {
		log.Printf("propagator consumer started: group=%s topic=%s workers=%d", group, events.TopicStockChanged, workers)
		if err := cons.Start(ctx, svc.HandleStockChanged); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down propagator...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
