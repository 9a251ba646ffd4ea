package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/proyek/coffeeshop-pos/internal/catalog"
	"github.com/proyek/coffeeshop-pos/internal/config"
	"github.com/proyek/coffeeshop-pos/internal/httpx"
	"github.com/proyek/coffeeshop-pos/internal/inventory"
	kafkax "github.com/proyek/coffeeshop-pos/internal/kafka"
	"github.com/proyek/coffeeshop-pos/internal/orders"
	"github.com/proyek/coffeeshop-pos/internal/postgres"
	"github.com/proyek/coffeeshop-pos/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", cfg.ServiceName)
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

	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatus, 1024)
	pStatus.Start(ctx)

	catalogRepo := &catalog.Repo{DB: db}
	ledger := &inventory.Ledger{DB: db, Logger: logger}
	svc := &orders.Service{
		Catalog: catalogRepo,
		Actors:  catalogRepo,
		Ledger:  ledger,
		Store:   &orders.Repo{DB: db},
		Logger:  logger,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Service: svc,
		Created: pCreated,
		Status:  pStatus,
		Redis:   rdb,
		Source:  cfg.ServiceName,
	}
	oh.Register(router)
	sh := &httpx.StockHandler{Ledger: ledger, Catalog: catalogRepo}
	sh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	pCreated.Close()
	pStatus.Close()
	cancel()
	pCreated.WaitClosed()
	pStatus.WaitClosed()
}
