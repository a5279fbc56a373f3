package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PPSocket/global"
	"PPSocket/global/config"
	"PPSocket/logger"
	mid "PPSocket/middleware"
	"PPSocket/service/api"
	"PPSocket/service/dispatcher"
	"PPSocket/service/gateway"
	"PPSocket/service/metrics"
	"PPSocket/service/socket"
	"PPSocket/tools/errs"
	"PPSocket/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthService   = "ppsocket.Gateway"
	shutdownTimeout = 20 * time.Second
)

func main() {
	confPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "yaml config file")
	flag.Parse()

	if err := run(*confPath); err != nil {
		logger.Error("ppsocket exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(confPath string) error {
	// 1) 配置：默认值 < 文件 < nacos < 环境变量
	cfg, err := config.Load(confPath)
	if err != nil {
		return err
	}
	remoteSrc, err := global.ConfigRemote(&cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Init(cfg.Log).With(zap.String("node", cfg.NodeID))
	defer func() { _ = log.Sync() }()
	global.ConfigIds(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2) 存储 + 多节点通道，任何一个起不来都直接退出
	rdb, err := global.ConfigRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	adp, err := global.ConfigAdapter(&cfg, rdb, log)
	if err != nil {
		return err
	}
	srv := socket.NewServer(cfg.NodeID, global.ConfigSocket(&cfg, gateway.ErrorAck), adp, log.Named("socket"))

	// 3) 后端调用
	broker, local, remote, err := global.ConfigDispatcher(cfg.Dispatcher, log)
	if err != nil {
		return err
	}
	if remote != nil {
		remote.Start()
		defer func() { _ = remote.Close() }()
	}

	// 4) 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 5) 网关
	gw, err := gateway.New(gateway.Deps{
		Server:   srv,
		Broker:   broker,
		Local:    local,
		Presence: global.ConfigPresence(rdb, &cfg),
		Verifier: security.NewJWTVerifier(security.Options{
			Secret: []byte(cfg.Auth.Secret),
			Alg:    cfg.Auth.Alg,
			Issuer: cfg.Auth.Issuer,
		}),
		Observer: collector,
		Logger:   log,
	}, gateway.Options{
		Blacklist:       cfg.Gateway.Blacklist,
		UserRoomPrefix:  cfg.Gateway.UserRoomPrefix,
		CallTimeout:     cfg.Gateway.CallTimeout,
		RefreshInterval: cfg.Presence.RefreshInterval,
		DefaultLanguage: cfg.Gateway.DefaultLanguage,
	})
	if err != nil {
		return err
	}
	if err := gw.Start(ctx); err != nil {
		return errs.WrapMsg(err, "start gateway", "adapter", cfg.Adapter.Type)
	}
	if remoteSrc != nil {
		if err := global.WatchBlacklist(cfg, remoteSrc, gw.SetBlacklist, log); err != nil {
			log.Warn("watch nacos config failed", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// 6) HTTP：websocket + metrics + 内部接口
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newEngine(&cfg, gw, reg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTP.Addr), zap.String("socketPath", cfg.HTTP.SocketPath))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errs.WrapMsg(err, "http serve", "addr", cfg.HTTP.Addr)
		}
		return nil
	})

	// 7) gRPC：health + 网关自身 action
	var (
		gs       *grpc.Server
		healthSv *health.Server
	)
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return errs.WrapMsg(err, "grpc listen", "addr", cfg.GRPC.Addr)
		}
		gs = grpc.NewServer()
		healthSv = health.NewServer()
		healthpb.RegisterHealthServer(gs, healthSv)
		dispatcher.NewBrokerServer(local, log).Register(gs)
		healthSv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthSv.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

		g.Go(func() error {
			log.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
			if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return errs.WrapMsg(err, "grpc serve", "addr", cfg.GRPC.Addr)
			}
			return nil
		})
	}

	// 8) kafka 通知，只在 Close 时停止
	consumer, err := global.ConfigKafka(cfg.Kafka, gw, log)
	if err != nil {
		log.Error("kafka consumer disabled", zap.Error(err))
	} else if consumer != nil {
		consumer.Start(context.WithoutCancel(ctx))
	}

	// 9) 注册到 nacos
	registry, err := global.ConfigRegistry(&cfg, log)
	if err != nil {
		log.Error("nacos registry disabled", zap.Error(err))
	} else if registry != nil {
		if err := registry.Register(); err != nil {
			log.Error("register instance failed", zap.Error(err))
		}
	}

	log.Info("ppsocket started", zap.String("adapter", cfg.Adapter.Type))
	<-gctx.Done()
	log.Info("shutting down", zap.Error(context.Cause(gctx)))

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	if healthSv != nil {
		healthSv.Shutdown()
	}
	if err := gw.Stop(sctx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if err := httpSrv.Shutdown(sctx); err != nil {
		shutdownErr = errors.Join(shutdownErr, errs.WrapMsg(err, "http shutdown"))
	}
	if gs != nil {
		gs.GracefulStop()
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			shutdownErr = errors.Join(shutdownErr, errs.WrapMsg(err, "kafka close"))
		}
	}
	if registry != nil {
		if err := registry.Deregister(); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}

	if err := g.Wait(); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if shutdownErr != nil {
		log.Error("shutdown finished with errors", zap.Error(shutdownErr))
		return shutdownErr
	}
	log.Info("bye")
	return nil
}

func newEngine(cfg *config.AppConfig, gw *gateway.Gateway, reg *prometheus.Registry, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	mids := mid.NewManager()
	mids.Add("recovery", mid.Recovery(log))
	mids.Add("access", mid.AccessLog(log.Named("http")))
	r.Use(mids.Use())

	mid.GET(r, cfg.HTTP.SocketPath, gin.WrapH(gw.Server()), mid.RouteOpt{})
	mid.GET(r, "/metrics", gin.WrapH(metrics.Handler(reg)), mid.RouteOpt{})
	mid.GET(r, "/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"node": cfg.NodeID, "sockets": gw.Server().SocketCount()})
	}, mid.RouteOpt{})
	api.RegisterInternal(r, gw, cfg.HTTP.InternalToken, log)
	return r
}
