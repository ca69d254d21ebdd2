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

	"github.com/mysafawale-ai/safawala-booking/internal/audit"
	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	"github.com/mysafawale-ai/safawala-booking/internal/config"
	"github.com/mysafawale-ai/safawala-booking/internal/coupons"
	"github.com/mysafawale-ai/safawala-booking/internal/fulfillment"
	"github.com/mysafawale-ai/safawala-booking/internal/httpx"
	"github.com/mysafawale-ai/safawala-booking/internal/inventory"
	kafkax "github.com/mysafawale-ai/safawala-booking/internal/kafka"
	"github.com/mysafawale-ai/safawala-booking/internal/postgres"
	"github.com/mysafawale-ai/safawala-booking/internal/redisx"
	"github.com/mysafawale-ai/safawala-booking/internal/returns"
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

	// Kafka producers, one per topic
	producers := []*kafkax.Producer{
		kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicBookingCreated, 1024),
		kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicBookingStatus, 1024),
		kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicStockReserved, 1024),
		kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicStockRejected, 1024),
		kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicStockReleased, 1024),
		kafkax.NewProducer(cfg.KafkaBrokers, booking.TopicAudit, 1024),
	}
	for _, p := range producers {
		p.Start(ctx)
	}
	pCreated, pStatus, pReserved, pRejected, pReleased, pAudit :=
		producers[0], producers[1], producers[2], producers[3], producers[4], producers[5]

	recorder := &audit.Recorder{Producer: pAudit, Service: cfg.ServiceName}
	couponSvc := &coupons.Service{DB: db, Redis: rdb, Audit: recorder}
	ledger := &inventory.PgLedger{DB: db, LockTimeoutMS: cfg.LockTimeoutMS}
	tracker := &returns.Tracker{Store: &returns.PgStore{DB: db}}

	svc := &fulfillment.Service{
		Repo:    &booking.PgRepo{DB: db},
		Ledger:  ledger,
		Tracker: tracker,
		Coupons: couponSvc,
		Redis:   rdb,
		Audit:   recorder,
		Events: &fulfillment.Events{
			Created:       pCreated,
			Status:        pStatus,
			StockReserved: pReserved,
			StockRejected: pRejected,
			StockReleased: pReleased,
			Service:       cfg.ServiceName,
		},
		TaxRateBps:        cfg.TaxRateBps,
		PackageTaxRateBps: cfg.PackageTaxRateBps,
		FetchConcurrency:  cfg.FetchConcurrency,
	}

	router := httpx.NewRouter()
	(&httpx.BookingsHandler{Svc: svc}).Register(router)
	(&httpx.InventoryHandler{Ledger: ledger, Coupons: couponSvc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close() // close inbox -> flush & close writer
	}
	cancel() // stop producer loops
	for _, p := range producers {
		p.WaitClosed() // drain
	}
}
