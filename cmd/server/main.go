package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout/cmd/server/config"
	"checkout/internal/adapters/rest"
	"checkout/internal/balance"
	"checkout/internal/observability"
	"checkout/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const orderServiceName = "checkout.OrderService"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("checkout: %v", err)
	}
}

func run(ctx context.Context) error {
	httpCfg, err := config.LoadHTTP()
	if err != nil {
		return err
	}
	balanceCfg, err := config.LoadBalance()
	if err != nil {
		return err
	}
	reliability, err := balance.LoadReliabilityConfigFromEnv()
	if err != nil {
		return err
	}
	redisCfg, err := config.LoadRedis()
	if err != nil {
		return err
	}
	grpcCfg, err := config.LoadGRPC()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	hub := realtime.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	publisher, cleanupEvents, err := buildEventPublisher(ctx, redisCfg, hub, metrics)
	if err != nil {
		return err
	}
	defer cleanupEvents()

	gateway := buildGateway(balanceCfg, reliability, metrics, log.Printf)
	orderService, cleanupOrders := buildOrderService(ctx, config.LoadDatabase().URL, gateway, publisher, log.Printf)
	defer cleanupOrders()

	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{
		Addr: httpCfg.Addr,
		Handler: rest.NewRouter(rest.Config{
			Service:  orderService,
			Metrics:  metrics,
			Realtime: http.HandlerFunc(hub.ServeWS),
			Logf:     log.Printf,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, healthSrv := buildGRPCServer(grpcCfg, metrics)
	lis, err := net.Listen("tcp", grpcCfg.Addr)
	if err != nil {
		return err
	}

	obsSrv, err := startObservabilityServer(metrics)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		log.Printf("HTTP API listening on %s", httpCfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.Printf("gRPC health server listening on %s", grpcCfg.Addr)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	healthSrv.SetServingStatus(orderServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	metrics.MarkShutdown(metrics.InFlight())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	stopHub()
	grpcSrv.GracefulStop()
	if err := obsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("observability shutdown: %v", err)
	}
	return runErr
}

func buildGRPCServer(cfg config.GRPCConfig, metrics *observability.Metrics) (*grpcpkg.Server, *health.Server) {
	var limiter rateLimiter
	if cfg.RateLimitInterval > 0 && cfg.RateLimitBurst > 0 {
		limiter = balance.NewRateLimiter(cfg.RateLimitInterval, cfg.RateLimitBurst, metrics.AddRateLimitWait)
	}

	server := grpcpkg.NewServer(
		grpcpkg.UnaryInterceptor(rateLimitUnaryInterceptor(limiter, metrics)),
		grpcpkg.StreamInterceptor(rateLimitStreamInterceptor(limiter, metrics)),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(orderServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if cfg.Reflection {
		reflection.Register(server)
		log.Println("gRPC reflection enabled")
	}
	return server, healthServer
}

func startObservabilityServer(metrics *observability.Metrics) (*http.Server, error) {
	cfg, err := config.LoadObservability()
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("observability server error: %v", err)
		}
	}()

	return srv, nil
}
