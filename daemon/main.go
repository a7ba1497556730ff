package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantarax/cclsim/daemon/api/server"
	"github.com/quantarax/cclsim/daemon/manager"
	"github.com/quantarax/cclsim/daemon/service"
	"github.com/quantarax/cclsim/internal/config"
	"github.com/quantarax/cclsim/internal/observability"
	"github.com/quantarax/cclsim/internal/ratelimit"
	"github.com/quantarax/cclsim/internal/validation"
)

func main() {
	grpcAddr := flag.String("grpc-addr", "127.0.0.1:9090", "gRPC server address")
	restAddr := flag.String("rest-addr", "127.0.0.1:8080", "REST server address")
	observAddr := flag.String("observ-addr", "127.0.0.1:8081", "Observability server address")
	mode := flag.String("mode", "", "Run mode (e.g., test)")
	flag.Parse()

	logger := observability.NewLogger("cclsim-daemon", "1.0.0", os.Stdout)
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker("1.0.0")
	if shutdown, err := observability.InitTracing(context.Background(), "cclsim-daemon"); err == nil {
		defer shutdown(context.Background())
	}

	logger.Info("cclsim daemon starting...")

	cfg, err := config.LoadConfig("")
	if err != nil {
		logger.Fatal(err, "failed to load config")
	}
	cfg.GRPCAddress = *grpcAddr
	cfg.RESTAddress = *restAddr

	if err := validation.ValidateAddr(cfg.GRPCAddress); err != nil {
		logger.Fatal(err, "invalid grpc-addr")
	}
	if err := validation.ValidateAddr(cfg.RESTAddress); err != nil {
		logger.Fatal(err, "invalid rest-addr")
	}

	logger.Info("configuration loaded")
	log.Printf("  Data directory: %s", cfg.DataDirectory)
	log.Printf("  Packet payload bytes: %d", cfg.PacketPayloadBytes)
	log.Printf("  Max concurrent simulations: %d", cfg.MaxConcurrentSimulations)

	if err := os.MkdirAll(cfg.DataDirectory, 0o755); err != nil {
		logger.Fatal(err, "failed to create data directory")
	}

	runStore := manager.NewRunStore()
	logger.Info("run store initialized")

	persist, err := manager.NewPersistentStore(cfg.DataDirectory + "/cclsim.db")
	if err != nil {
		logger.Fatal(err, "failed to open persistent store")
	}
	defer persist.Close()

	resultCache, err := manager.OpenResultCache(cfg.DataDirectory + "/results.bolt")
	if err != nil {
		logger.Fatal(err, "failed to open result cache")
	}
	defer resultCache.Close()

	eventPublisher := service.NewEventPublisher(cfg.EventBufferSize)
	log.Printf("event publisher initialized (buffer size: %d)", cfg.EventBufferSize)

	admission := ratelimit.NewTokenBucket(20, cfg.RunQueueDepth)
	runner := service.NewSimRunner(runStore, persist, resultCache, eventPublisher, logger, metrics, admission, cfg.MaxConcurrentSimulations)
	logger.Info("simulation runner initialized")

	if *mode != "test" {
		healthChecker.RegisterCheck("grpc_server", observability.GRPCServerCheck(cfg.GRPCAddress))
		healthChecker.RegisterCheck("runner_backlog", observability.RunnerBacklogCheck(runner.InFlight))
		healthChecker.RegisterCheck("result_cache", observability.ResultCacheCheck(resultCache.Ping))
		healthChecker.RegisterCheck("database", observability.DatabaseCheck(persist.Ping))
		healthChecker.RegisterCheck("disk_space", observability.DiskSpaceCheck(cfg.DataDirectory, 1))
	}

	go startObservabilityServer(*observAddr, metrics, healthChecker, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	grpcStop, restStop, err := server.StartAPIServers(ctx, cfg.GRPCAddress, cfg.RESTAddress, server.NewDaemonAPIServer(runner, runStore, eventPublisher))
	if err != nil {
		logger.Fatal(err, "failed to start API servers")
	}
	logger.Info("API servers started: gRPC on " + cfg.GRPCAddress + ", REST on " + cfg.RESTAddress)

	logger.Info("cclsim daemon running")
	logger.Info("press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully...")
	cancel()
	grpcStop()
	restStop()

	cleanedUp := runStore.CleanupOldRuns(24 * time.Hour)
	log.Printf("cleaned up %d old runs", cleanedUp)

	logger.Info("daemon stopped")
}

func startObservabilityServer(addr string, metrics *observability.Metrics, health *observability.HealthChecker, logger *observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", health.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	srv := &http.Server{Addr: addr, Handler: mux}
	logger.Info("observability server listening on " + addr + " (metrics, health, pprof)")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(err, "observability server error")
	}
}
