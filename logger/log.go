package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置
type Config struct {
	Level  string `yaml:"level"`  // debug/info/warn/error
	Format string `yaml:"format"` // console/json
}

var (
	mu  sync.RWMutex
	Log *zap.Logger
)

func init() {
	Log = build(Config{Level: "debug", Format: "console"})
}

// Init 按配置重建全局 logger
func Init(c Config) *zap.Logger {
	l := build(c)
	mu.Lock()
	old := Log
	Log = l
	mu.Unlock()
	_ = old.Sync()
	return l
}

// Replace 替换全局 logger（测试用），返回还原函数
func Replace(l *zap.Logger) (restore func()) {
	mu.Lock()
	old := Log
	Log = l
	mu.Unlock()
	return func() {
		mu.Lock()
		Log = old
		mu.Unlock()
	}
}

// L 当前全局 logger
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return Log
}

// Named 子 logger（组件名）
func Named(name string) *zap.Logger { return L().Named(name) }

func Sync() error { return L().Sync() }

func build(c Config) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalColorLevelEncoder, // 彩色等级
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	if strings.EqualFold(c.Format, "json") {
		encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), parseLevel(c.Level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// 快捷方法
func Info(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...) }
func Infof(format string, args ...interface{}) {
	L().WithOptions(zap.AddCallerSkip(1)).Info(fmt.Sprintf(format, args...))
}
func Warn(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...) }
func Warnf(format string, args ...interface{}) {
	L().WithOptions(zap.AddCallerSkip(1)).Warn(fmt.Sprintf(format, args...))
}
func Error(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...) }

func Errorf(format string, args ...interface{}) {
	L().WithOptions(zap.AddCallerSkip(1)).Error(fmt.Sprintf(format, args...))
}

func Debug(msg string, fields ...zap.Field) { L().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...) }
