package nacos

import (
	"sync"

	"PPSocket/tools/errs"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
)

// Namer naming_client.INamingClient 的子集
type Namer interface {
	RegisterInstance(param vo.RegisterInstanceParam) (bool, error)
	DeregisterInstance(param vo.DeregisterInstanceParam) (bool, error)
}

type Instance struct {
	ServiceName string
	Group       string
	IP          string
	Port        uint64
	Metadata    map[string]string
}

// Registry 网关实例注册，临时实例，进程退出前注销
type Registry struct {
	client Namer
	inst   Instance
	log    *zap.Logger

	mu         sync.Mutex
	registered bool
}

func NewRegistry(client Namer, inst Instance, log *zap.Logger) *Registry {
	if inst.Group == "" {
		inst.Group = "DEFAULT_GROUP"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{client: client, inst: inst, log: log.Named("nacos")}
}

func (r *Registry) Register() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ok, err := r.client.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          r.inst.IP,
		Port:        r.inst.Port,
		ServiceName: r.inst.ServiceName,
		GroupName:   r.inst.Group,
		ClusterName: "DEFAULT",
		Weight:      1,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    r.inst.Metadata,
	})
	if err != nil {
		return errs.WrapMsg(err, "register instance", "service", r.inst.ServiceName)
	}
	if !ok {
		return errs.ErrInternal.WrapMsg("register instance returned false", "service", r.inst.ServiceName)
	}
	r.registered = true
	r.log.Info("registered instance",
		zap.String("service", r.inst.ServiceName),
		zap.String("ip", r.inst.IP),
		zap.Uint64("port", r.inst.Port),
		zap.Any("metadata", r.inst.Metadata))
	return nil
}

// Deregister 未注册时什么也不做
func (r *Registry) Deregister() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.registered {
		return nil
	}
	ok, err := r.client.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          r.inst.IP,
		Port:        r.inst.Port,
		ServiceName: r.inst.ServiceName,
		GroupName:   r.inst.Group,
		Cluster:     "DEFAULT",
		Ephemeral:   true,
	})
	if err != nil {
		return errs.WrapMsg(err, "deregister instance", "service", r.inst.ServiceName)
	}
	if !ok {
		r.log.Warn("instance not found or already gone", zap.String("service", r.inst.ServiceName))
	}
	r.registered = false
	return nil
}
