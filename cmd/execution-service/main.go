package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arena/internal/arena/analyzer"
	"arena/internal/arena/controller"
	"arena/internal/arena/game"
	"arena/internal/arena/service"
	"arena/internal/arena/simulation"
	commonmw "arena/internal/common/http/middleware"
	"arena/internal/hardening"
	"arena/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/execution_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := hardening.Apply(appCfg.Hardening); err != nil {
		logger.Error(context.Background(), "apply process hardening failed", zap.Error(err))
		return
	}

	execCfg := appCfg.Execution
	policy := analyzer.DefaultPolicy()
	policy.AllowedImports = append(policy.AllowedImports, execCfg.AllowedImports...)
	policy.MaxSourceBytes = execCfg.MaxCodeBytes

	games := game.NewRegistry(game.NewPig(appCfg.Games.Pig), game.NewDilemma(appCfg.Games.Dilemma))
	runner := simulation.NewRunner(simulation.Config{
		PoolSize:     execCfg.PoolSize,
		TrialTimeout: execCfg.TrialTimeout,
		MaxWork:      execCfg.MaxWork,
	})
	execSvc, err := service.NewService(service.Config{
		Analyzer:        analyzer.New(policy),
		Games:           games,
		Runner:          runner,
		WorkRoot:        execCfg.WorkRoot,
		VMLimits:        execCfg.VM,
		RequestTimeout:  execCfg.RequestTimeout,
		TraceTimeout:    execCfg.TraceTimeout,
		SlotTimeout:     execCfg.SlotTimeout,
		MaxBatches:      execCfg.MaxBatches,
		FeedbackMaxSize: execCfg.FeedbackMaxSize,
		Seed:            execCfg.Seed,
		Validation:      execCfg.Validation,
		Simulation:      execCfg.Simulation,
	})
	if err != nil {
		logger.Error(context.Background(), "init execution service failed", zap.Error(err))
		return
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := commonmw.NewRateLimiter(appCfg.Limiter)
	go limiter.RunCleanup(shutdownCtx, time.Minute)

	httpServer := buildHTTPServer(appCfg.Server, execSvc, limiter)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "execution service started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("mode", execCfg.Mode),
			zap.Strings("games", games.Names()),
			zap.Int("pool_size", execCfg.PoolSize),
		)
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, svc controller.Executor, limiter *commonmw.RateLimiter) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.AccessLogMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("")
	api.Use(limiter.Middleware())
	controller.NewExecutionController(svc).Register(router, api)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
