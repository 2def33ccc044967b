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

	"arena/internal/common/cache"
	commonmw "arena/internal/common/http/middleware"
	"arena/internal/common/mq"
	"arena/internal/common/storage"
	"arena/internal/supervisor"
	appErr "arena/pkg/errors"
	"arena/pkg/utils/logger"
	"arena/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConfigPath = "configs/supervisor.yaml"

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

	var opts []supervisor.Option
	if appCfg.Sink.Enabled {
		redisCache, err := cache.OpenRedis(context.Background(), appCfg.Sink.Redis)
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisCache.Close()
		}()
		opts = append(opts, supervisor.WithSink(supervisor.NewRedisSink(redisCache, appCfg.Sink.TTL, appCfg.Sink.History)))
	}
	if appCfg.Events.Enabled {
		producer, err := mq.NewKafkaPublisher(appCfg.Events.Kafka)
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = producer.Close()
		}()
		opts = append(opts, supervisor.WithEvents(supervisor.NewMQEventPublisher(producer, appCfg.Events.Topic)))
	}
	if appCfg.Archive.Enabled {
		objStorage, err := storage.NewMinIOStorage(appCfg.Archive.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		if err := objStorage.EnsureBucket(context.Background(), appCfg.Archive.MinIO.Bucket); err != nil {
			logger.Error(context.Background(), "ensure archive bucket failed", zap.Error(err))
			return
		}
		opts = append(opts, supervisor.WithArchiver(supervisor.NewObjectArchiver(objStorage, appCfg.Archive.MinIO.Bucket, appCfg.Archive.Prefix)))
	}

	supervisors := make([]*supervisor.Supervisor, 0, len(appCfg.Services))
	var children []*supervisor.ProcessInstance
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		stopChildren(ctx, children)
	}()
	for _, svcCfg := range appCfg.Services {
		instance, err := buildInstance(svcCfg)
		if err != nil {
			logger.Error(context.Background(), "init service instance failed", zap.String("service", svcCfg.Name), zap.Error(err))
			return
		}
		if child, ok := instance.(*supervisor.ProcessInstance); ok {
			children = append(children, child)
		}
		prober := supervisor.NewHTTPProber(svcCfg.HealthURL, svcCfg.Probe.Timeout)
		supervisors = append(supervisors, supervisor.New(svcCfg.supervisorConfig(), prober, instance, opts...))
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := buildHTTPServer(appCfg.Server, supervisors)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	g, ctx := errgroup.WithContext(shutdownCtx)
	for _, s := range supervisors {
		s := s
		g.Go(func() error {
			return s.Run(ctx)
		})
	}
	g.Go(func() error {
		logger.Info(ctx, "supervisor http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Int("services", len(supervisors)),
		)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info(context.Background(), "shutting down supervisor")
		shutCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "supervisor stopped", zap.Error(err))
	}
}

func buildInstance(cfg ServiceConfig) (supervisor.Instance, error) {
	switch cfg.Kind {
	case "docker":
		return supervisor.NewDockerInstance(cfg.Container, cfg.StopTimeout)
	case "process":
		inst, err := supervisor.NewProcessInstance(cfg.Process)
		if err != nil {
			return nil, err
		}
		if err := inst.Start(context.Background()); err != nil {
			return nil, err
		}
		return inst, nil
	default:
		return nil, fmt.Errorf("unknown instance kind %q", cfg.Kind)
	}
}

// stopChildren stops the locally spawned services so none outlive the supervisor.
func stopChildren(ctx context.Context, children []*supervisor.ProcessInstance) {
	for _, child := range children {
		if err := child.Stop(ctx); err != nil {
			logger.Error(ctx, "stop child process failed", zap.Error(err))
		}
	}
}

func buildHTTPServer(cfg ServerConfig, supervisors []*supervisor.Supervisor) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.AccessLogMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/services", func(c *gin.Context) {
		snaps := make([]supervisor.Snapshot, 0, len(supervisors))
		for _, s := range supervisors {
			snaps = append(snaps, s.Snapshot())
		}
		c.JSON(http.StatusOK, gin.H{"services": snaps})
	})
	router.GET("/services/:name", func(c *gin.Context) {
		for _, s := range supervisors {
			if s.Service() == c.Param("name") {
				c.JSON(http.StatusOK, s.Snapshot())
				return
			}
		}
		response.AbortWithCode(c, appErr.InstanceNotFound, "no supervised service named "+c.Param("name"))
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
