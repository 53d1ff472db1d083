package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/phantom-eng/bytefood-web/internal/adapter/channel"
	"github.com/phantom-eng/bytefood-web/internal/adapter/handler"
	"github.com/phantom-eng/bytefood-web/internal/adapter/presenter"
	"github.com/phantom-eng/bytefood-web/internal/adapter/storage"
	"github.com/phantom-eng/bytefood-web/internal/config"
	"github.com/phantom-eng/bytefood-web/internal/core/domain"
	"github.com/phantom-eng/bytefood-web/internal/core/service"
	"github.com/phantom-eng/bytefood-web/internal/metrics"
	"github.com/phantom-eng/bytefood-web/internal/port"
)

func main() {
	cfg := config.MustLoad()

	logger, err := config.NewLogger(config.LoggerConfig{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer closeRepo()

	// Receipts
	archive := presenter.NewArchive(cfg.Receipt.Blocked)
	var receipts port.ReceiptPresenter = archive
	if cfg.Receipt.Dir != "" {
		if err := os.MkdirAll(cfg.Receipt.Dir, 0o755); err != nil {
			logger.Fatal("failed to create receipt dir", zap.Error(err))
		}
		receipts = presenter.Chain(archive, presenter.NewDirectory(cfg.Receipt.Dir))
	}

	// Outbound channel
	var outbound port.OutboundChannel = channel.NewLogOpener(logger)
	if cfg.Outbound.Mode == "http" {
		outbound = channel.NewHTTPOpener(&http.Client{Timeout: cfg.Outbound.Timeout}, logger)
	}

	hours := domain.Hours{Open: cfg.Store.OpenHour, Close: cfg.Store.CloseHour}
	sessionCfg := service.SessionConfig{
		StoreName:   cfg.Store.Name,
		Currency:    cfg.Store.Currency,
		Destination: cfg.Store.WhatsApp,
		TimeZone:    cfg.Store.Location(),
		TimeLayout:  cfg.Store.TimeLayout,
		CardDelay:   cfg.Payment.CardDelay,
		QRDelay:     cfg.Payment.QRDelay,
	}
	if cfg.Store.EnforceHours {
		sessionCfg.Hours = &hours
	}

	checkout := service.NewCheckoutService(repo, receipts, sessionCfg, cfg.Workers.QueueSize,
		service.WithCartKey(cfg.Storage.CartKey),
		service.WithLogger(logger),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	checkout.Subscribe(m.Observe)
	checkout.Subscribe(func(e service.Event) {
		if e.Kind == service.EventNotice && e.Notice != "" {
			logger.Debug("notice", zap.String("session_id", e.SessionID), zap.String("op", e.Op), zap.String("text", e.Notice))
		}
	})

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, checkout.GetOutboundQueue(), outbound, m, cfg.Outbound.Timeout, logger)
		}(i)
	}
	logger.Info("started workers", zap.Int("count", cfg.Workers.Count))

	// gRPC server
	grpcServer := grpc.NewServer()
	handler.NewGRPCHandler(checkout, logger).Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(checkout, archive, hours, cfg.Store.Location(), logger).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.Timeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close outbound queue and wait for workers
	checkout.Close()
	wg.Wait()
	logger.Info("workers stopped")
}

func openStorage(ctx context.Context, cfg config.Storage, logger *zap.Logger) (port.LineRepository, func(), error) {
	switch cfg.Driver {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to mysql")
		return adapter, func() { db.Close() }, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 20,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, err
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		return storage.NewRedisAdapter(rdb, cfg.CartTTL), func() { rdb.Close() }, nil
	case "file":
		logger.Info("using file storage", zap.String("dir", cfg.Dir))
		return storage.NewFileAdapter(cfg.Dir), func() {}, nil
	default:
		return storage.NewMemoryAdapter(), func() {}, nil
	}
}

func workerLoop(id int, queue <-chan domain.OutboundMessage, outbound port.OutboundChannel, m *metrics.Metrics, timeout time.Duration, logger *zap.Logger) {
	for msg := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)

		err := outbound.Deliver(ctx, msg)
		m.ObserveDelivery(err)
		if err != nil {
			logger.Error("delivery failed", zap.Int("worker", id), zap.String("session_id", msg.SessionID), zap.Error(err))
		} else {
			logger.Debug("delivered", zap.Int("worker", id), zap.String("session_id", msg.SessionID))
		}

		cancel()
	}
}
