package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/inventory-purchase/internal/adapter/catalog"
	"github.com/rl1809/inventory-purchase/internal/adapter/handler"
	"github.com/rl1809/inventory-purchase/internal/adapter/handler/pb"
	"github.com/rl1809/inventory-purchase/internal/adapter/messaging"
	"github.com/rl1809/inventory-purchase/internal/adapter/storage"
	"github.com/rl1809/inventory-purchase/internal/config"
	"github.com/rl1809/inventory-purchase/internal/core/service"
	"github.com/rl1809/inventory-purchase/internal/observability"
	"github.com/rl1809/inventory-purchase/internal/port"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "inventory-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger = logger.With(zap.String("service", config.ServiceName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	// Storage
	db, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Idempotency keys
	var cache port.CacheRepository
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()

		adapter := storage.NewRedisAdapter(rdb).WithTTL(cfg.Redis.KeyTTL)
		if err := adapter.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		cache = adapter
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		cache = storage.NewMemoryCache(cfg.Redis.KeyTTL)
	}

	// Catalog
	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL:     cfg.Catalog.BaseURL,
		APIKey:      cfg.Catalog.APIKey,
		Timeout:     cfg.Catalog.Timeout,
		MaxAttempts: cfg.Catalog.MaxAttempts,
		BaseDelay:   cfg.Catalog.BaseDelay,
		MaxDelay:    cfg.Catalog.MaxDelay,
	}, catalog.WithLogger(logger), catalog.WithMetrics(metrics))

	opts := []service.Option{
		service.WithIdempotency(cache),
		service.WithLogger(logger),
		service.WithMetrics(metrics),
	}

	// Purchase events
	if cfg.EventsEnabled() {
		kafkaPublisher := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		events := messaging.NewAsyncPublisher(kafkaPublisher, cfg.Kafka.Workers, cfg.Kafka.QueueSize, logger, metrics)
		defer func() {
			events.Close()
			if err := kafkaPublisher.Close(); err != nil {
				logger.Warn("close kafka writer", zap.Error(err))
			}
			logger.Info("event publisher stopped")
		}()
		opts = append(opts, service.WithEventPublisher(events))
		logger.Info("publishing purchase events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
			zap.Int("workers", cfg.Kafka.Workers),
		)
	}

	purchaseService := service.NewPurchaseService(catalogClient, db, opts...)
	inventoryService := service.NewInventoryService(catalogClient, db, opts...)

	// HTTP server
	httpHandler := handler.NewHTTPHandler(purchaseService, inventoryService, logger, handler.HTTPConfig{
		ServiceName: config.ServiceName,
		Version:     config.ServiceVersion,
		APIKey:      cfg.APIKey,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Routes(),
	}

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogger(logger)))
	pb.RegisterPurchaseServiceServer(grpcServer, handler.NewGRPCHandler(purchaseService, inventoryService))

	var grpcListener net.Listener
	if cfg.GRPCAddr != "" {
		grpcListener, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcListener != nil {
		lis := grpcListener
		g.Go(func() error {
			logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown", zap.Error(err))
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
		return nil
	})

	err = g.Wait()
	logger.Info("connections closing")
	return err
}

// openStore connects the configured ledger and applies the schema when asked.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (port.DatabaseRepository, error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory storage; data is lost on restart")
		return storage.NewMemoryStore(), nil
	}

	store, err := storage.OpenSQLStore(ctx, cfg.Driver, cfg.DSN, storage.PoolOptions{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}
	logger.Info("connected to database", zap.String("driver", cfg.Driver))

	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema migrated")
	}
	return store, nil
}
