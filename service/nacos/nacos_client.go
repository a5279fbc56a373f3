package nacos

import (
	"net"
	"strconv"

	"PPSocket/tools/errs"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

type Config struct {
	Addr        string // host:port
	NamespaceID string
	Group       string
	DataID      string
	Username    string
	Password    string
	CacheDir    string
	LogDir      string
}

func NewConfigClient(c Config) (config_client.IConfigClient, error) {
	param, err := clientParam(c)
	if err != nil {
		return nil, err
	}
	cli, err := clients.NewConfigClient(param)
	if err != nil {
		return nil, errs.WrapMsg(err, "create nacos config client", "addr", c.Addr)
	}
	return cli, nil
}

func NewNamingClient(c Config) (naming_client.INamingClient, error) {
	param, err := clientParam(c)
	if err != nil {
		return nil, err
	}
	cli, err := clients.NewNamingClient(param)
	if err != nil {
		return nil, errs.WrapMsg(err, "create nacos naming client", "addr", c.Addr)
	}
	return cli, nil
}

func clientParam(c Config) (vo.NacosClientParam, error) {
	servers, err := serverConfigs(c.Addr)
	if err != nil {
		return vo.NacosClientParam{}, err
	}
	return vo.NacosClientParam{
		ClientConfig:  clientConfig(c),
		ServerConfigs: servers,
	}, nil
}

func serverConfigs(addr string) ([]constant.ServerConfig, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("nacos addr", "addr", addr, "err", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 64)
	if err != nil || host == "" {
		return nil, errs.ErrArgs.WrapMsg("nacos addr", "addr", addr)
	}
	return []constant.ServerConfig{
		*constant.NewServerConfig(host, port),
	}, nil
}

func clientConfig(c Config) *constant.ClientConfig {
	cacheDir, logDir := c.CacheDir, c.LogDir
	if cacheDir == "" {
		cacheDir = "nacos/cache"
	}
	if logDir == "" {
		logDir = "nacos/log"
	}
	return constant.NewClientConfig(
		constant.WithNamespaceId(c.NamespaceID),
		constant.WithTimeoutMs(5000),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel("warn"),
		constant.WithCacheDir(cacheDir),
		constant.WithLogDir(logDir),
		constant.WithUsername(c.Username),
		constant.WithPassword(c.Password),
	)
}
