package nacos

import (
	"PPSocket/tools/errs"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
)

// ConfigSource config_client.IConfigClient 的子集
type ConfigSource interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(param vo.ConfigParam) error
}

// Fetch 读取一次配置内容
func Fetch(src ConfigSource, dataID, group string) (string, error) {
	content, err := src.GetConfig(vo.ConfigParam{DataId: dataID, Group: group})
	if err != nil {
		return "", errs.WrapMsg(err, "get nacos config", "dataId", dataID, "group", group)
	}
	return content, nil
}

// Watch 配置变化时回调，回调里 panic 不影响 sdk 的监听协程
func Watch(src ConfigSource, dataID, group string, onChange func(content string), log *zap.Logger) error {
	err := src.ListenConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("nacos config callback panic", zap.Any("panic", r))
				}
			}()
			log.Info("nacos config changed", zap.String("dataId", dataId), zap.String("group", group))
			onChange(data)
		},
	})
	if err != nil {
		return errs.WrapMsg(err, "listen nacos config", "dataId", dataID, "group", group)
	}
	return nil
}
