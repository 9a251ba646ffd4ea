package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/proyek/coffeeshop-pos/internal/config"
	"github.com/proyek/coffeeshop-pos/internal/inventory"
	kafkax "github.com/proyek/coffeeshop-pos/internal/kafka"
	"github.com/proyek/coffeeshop-pos/internal/orders"
	"github.com/proyek/coffeeshop-pos/internal/postgres"
	"github.com/proyek/coffeeshop-pos/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName+"-stockwatch")
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pLow := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 1024)
	pLow.Start(ctx)

	watcher := &inventory.Watcher{
		Ledger:      &inventory.Ledger{DB: db, Logger: logger},
		Redis:       rdb,
		Producer:    pLow,
		ServiceName: cfg.ServiceName + "-stockwatch",
	}

	group := getenv("STOCKWATCH_GROUP", "stockwatch")
	workers := atoi(os.Getenv("STOCKWATCH_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderCreated, workers)

	go func() {
		logger.Info("stockwatch consumer started", "group", group, "topic", orders.TopicOrderCreated, "workers", workers)
		if err := cons.Start(ctx, watcher.HandleOrderCreated); err != nil {
			logger.Error("consumer exited", "error", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pLow.Close()
	pLow.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
