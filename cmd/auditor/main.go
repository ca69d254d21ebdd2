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

	"github.com/mysafawale-ai/safawala-booking/internal/audit"
	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	"github.com/mysafawale-ai/safawala-booking/internal/config"
	kafkax "github.com/mysafawale-ai/safawala-booking/internal/kafka"
	"github.com/mysafawale-ai/safawala-booking/internal/postgres"
	"github.com/mysafawale-ai/safawala-booking/internal/redisx"
)

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

	svc := &audit.Consumer{DB: db, Redis: rdb}

	group := getenv("AUDITOR_GROUP", "auditor-svc")
	workers := mustAtoi(os.Getenv("AUDITOR_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, booking.TopicAudit, workers)

	go func() {
		log.Printf("auditor consumer started: group=%s topic=%s workers=%d", group, booking.TopicAudit, workers)
		if err := cons.Start(ctx, svc.HandleAuditEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

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
