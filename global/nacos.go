package global

import (
	"net"
	"strconv"

	"PPSocket/global/config"
	"PPSocket/service/nacos"
	"PPSocket/tools/errs"

	"go.uber.org/zap"
)

func nacosConfig(c config.NacosConfig) nacos.Config {
	return nacos.Config{
		Addr:        c.Addr,
		NamespaceID: c.NamespaceID,
		Group:       c.Group,
		DataID:      c.DataID,
		Username:    c.Username,
		Password:    c.Password,
	}
}

// ConfigRemote 从 nacos 拉取 yaml 覆盖本地配置，返回的 source 用于之后监听变更。
// 没有配置 nacos.addr 时返回 nil。
func ConfigRemote(c *config.AppConfig) (nacos.ConfigSource, error) {
	if c.Nacos.Addr == "" {
		return nil, nil
	}
	src, err := nacos.NewConfigClient(nacosConfig(c.Nacos))
	if err != nil {
		return nil, err
	}
	if err := OverlayRemote(c, src); err != nil {
		return nil, err
	}
	return src, nil
}

// OverlayRemote 远程配置优先级：默认值 < 本地文件 < nacos < 环境变量
func OverlayRemote(c *config.AppConfig, src nacos.ConfigSource) error {
	content, err := nacos.Fetch(src, c.Nacos.DataID, c.Nacos.Group)
	if err != nil {
		return err
	}
	if err := c.Overlay([]byte(content)); err != nil {
		return errs.WrapMsg(err, "overlay nacos config", "dataId", c.Nacos.DataID)
	}
	c.ApplyEnv(config.LookupEnv)
	return nil
}

// WatchBlacklist 远程配置变化时只热更新黑名单，其余配置需要重启
func WatchBlacklist(c config.AppConfig, src nacos.ConfigSource, set func([]string) error, log *zap.Logger) error {
	return nacos.Watch(src, c.Nacos.DataID, c.Nacos.Group, func(content string) {
		next := c
		next.Gateway.Blacklist = nil
		if err := next.Overlay([]byte(content)); err != nil {
			log.Warn("ignore bad nacos config", zap.Error(err))
			return
		}
		if next.Gateway.Blacklist == nil {
			return
		}
		if err := set(next.Gateway.Blacklist); err != nil {
			log.Warn("ignore bad blacklist", zap.Strings("blacklist", next.Gateway.Blacklist), zap.Error(err))
		}
	}, log)
}

// ConfigRegistry nacos.register 打开时注册网关实例，否则返回 nil
func ConfigRegistry(c *config.AppConfig, log *zap.Logger) (*nacos.Registry, error) {
	if c.Nacos.Addr == "" || !c.Nacos.Register {
		return nil, nil
	}
	ip, port, err := instanceAddr(c.Nacos.IP, c.HTTP.Addr)
	if err != nil {
		return nil, err
	}
	namer, err := nacos.NewNamingClient(nacosConfig(c.Nacos))
	if err != nil {
		return nil, err
	}
	return nacos.NewRegistry(namer, nacos.Instance{
		ServiceName: c.Nacos.ServiceName,
		Group:       c.Nacos.Group,
		IP:          ip,
		Port:        port,
		Metadata: map[string]string{
			"nodeId":     c.NodeID,
			"socketPath": c.HTTP.SocketPath,
			"adapter":    c.Adapter.Type,
		},
	}, log), nil
}

// instanceAddr 注册地址：ip 优先取配置，否则取 http 监听地址里的 host
func instanceAddr(ip, httpAddr string) (string, uint64, error) {
	host, portStr, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return "", 0, errs.ErrArgs.WrapMsg("http.addr", "addr", httpAddr, "err", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, errs.ErrArgs.WrapMsg("http.addr port", "addr", httpAddr)
	}
	if ip == "" {
		ip = host
	}
	if ip == "" || net.ParseIP(ip).IsUnspecified() {
		return "", 0, errs.ErrArgs.WrapMsg("nacos.ip is required when http.addr has no host", "addr", httpAddr)
	}
	return ip, port, nil
}
