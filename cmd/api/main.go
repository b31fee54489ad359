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

	"github.com/ariefcatur/go-kitchen-orders.git/internal/cart"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/catalog"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/checkout"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/config"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-kitchen-orders.git/internal/kafka"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/order"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/payment"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/postgres"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/quota"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/redisx"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (satu writer, topic per message)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start()

	// Repos & services
	catalogRepo := &catalog.Repo{DB: db}
	ledger := &stock.Ledger{DB: db}
	tracker := &quota.Tracker{DB: db}
	cartSvc := &cart.Service{
		Carts:   &cart.Repo{DB: db},
		Catalog: catalogRepo,
		Stock:   ledger,
		Quota:   tracker,
	}
	orderRepo := &order.Repo{DB: db}
	provider := payment.NewHTTPProvider(cfg.PaymentAPIURL, cfg.PaymentAPIKey)
	checkoutSvc := &checkout.Service{
		Orders:      orderRepo,
		Carts:       cartSvc,
		Provider:    provider,
		Producer:    prod,
		Redis:       rdb,
		ServiceName: cfg.ServiceName,
	}
	recon := &payment.Reconciler{
		Orders:      orderRepo,
		Provider:    provider,
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName,
	}

	// Router & handlers
	router := httpx.NewRouter()
	(&httpx.CartHandler{Svc: cartSvc}).Register(router)
	(&httpx.OrdersHandler{Checkout: checkoutSvc, Recon: recon, Orders: orderRepo, Redis: rdb}).Register(router)
	(&httpx.AdminHandler{Catalog: catalogRepo, Quota: tracker, Producer: prod, ServiceName: cfg.ServiceName}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
