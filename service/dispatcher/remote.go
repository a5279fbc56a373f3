package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"PPSocket/tools/errs"
	"PPSocket/tools/safe"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type RemoteConfig struct {
	Target          string        // gRPC service address
	DialTimeout     time.Duration // Resolve 超时
	HealthInterval  time.Duration // health check interval，0 关闭
	BreakerFailures uint32        // 连续失败多少次熔断
	BreakerOpenFor  time.Duration // 熔断后多久进入半开
	BreakerHalfOpen uint32        // 半开状态放行的请求数
	DialOptions     []grpc.DialOption
}

// Remote 通过 gRPC 调用后端 broker，structpb 作为载荷
type Remote struct {
	cfg     RemoteConfig
	log     *zap.Logger
	conn    *grpc.ClientConn
	breaker *gobreaker.CircuitBreaker
	healthy atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRemote(cfg RemoteConfig, log *zap.Logger) (*Remote, error) {
	if cfg.Target == "" {
		return nil, errs.ErrArgs.WrapMsg("dispatcher target is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("dispatcher.remote")

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, cfg.DialOptions...)
	conn, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("create grpc client", "target", cfg.Target, "err", err)
	}

	r := &Remote{cfg: cfg, log: log, conn: conn, stopCh: make(chan struct{})}
	r.healthy.Store(true)
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dispatcher:" + cfg.Target,
		MaxRequests: cfg.BreakerHalfOpen,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !unavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("breaker state changed", zap.String("name", name),
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return r, nil
}

// Start 后台健康检查；后端没有注册 health 服务时视为健康
func (r *Remote) Start() {
	if r.cfg.HealthInterval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer safe.Recover("dispatcher.healthLoop")
		r.healthLoop()
	}()
}

func (r *Remote) healthLoop() {
	ticker := time.NewTicker(r.cfg.HealthInterval)
	defer ticker.Stop()

	health := grpc_health_v1.NewHealthClient(r.conn)
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			resp, err := health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: serviceName})
			cancel()

			ok := err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING
			if status.Code(err) == codes.Unimplemented {
				ok = true
			}
			if was := r.healthy.Swap(ok); was != ok {
				r.log.Warn("backend health changed", zap.Bool("healthy", ok), zap.Error(err))
			}
		case <-r.stopCh:
			return
		}
	}
}

func (r *Remote) Healthy() bool { return r.healthy.Load() }

func (r *Remote) invoke(ctx context.Context, method string, req, resp *structpb.Struct) error {
	if !r.healthy.Load() {
		return status.Error(codes.Unavailable, "backend unhealthy")
	}
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.conn.Invoke(ctx, method, req, resp)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return err
}

func (r *Remote) FindEndpoint(ctx context.Context, name string) (*Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DialTimeout)
	defer cancel()

	req := &structpb.Struct{Fields: map[string]*structpb.Value{"name": structpb.NewStringValue(name)}}
	resp := &structpb.Struct{}
	if err := r.invoke(ctx, methodResolve, req, resp); err != nil {
		return nil, fromStatus(err, name)
	}
	ep, ok := structToEndpoint(resp)
	if !ok {
		return nil, errs.ErrServiceNotFound.WrapMsg("remote action not found", "action", name)
	}
	return ep, nil
}

func (r *Remote) Call(ctx context.Context, name string, params any, meta Meta) (any, error) {
	pv, err := toValue(params)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("encode params", "action", name, "err", err)
	}
	mv, err := metaToStruct(meta)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("encode meta", "action", name, "err", err)
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"action": structpb.NewStringValue(name),
		"params": pv,
		"meta":   structpb.NewStructValue(mv),
	}}
	resp := &structpb.Struct{}
	if err := r.invoke(ctx, methodCall, req, resp); err != nil {
		return nil, fromStatus(err, name)
	}
	return resp.GetFields()["data"].AsInterface(), nil
}

func (r *Remote) Close() error {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	return r.conn.Close()
}
