package middleware

import (
	"net/http"
	"time"

	"PPSocket/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLog 请求日志，websocket 升级请求只记一次建立
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("cost", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("http", fields...)
			return
		}
		log.Debug("http", fields...)
	}
}

// Recovery handler panic 时返回 500，不中断进程
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("http handler panic",
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r), zap.Stack("stack"))
				e := errs.ErrInternal
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": e.Code, "msg": e.Msg})
			}
		}()
		c.Next()
	}
}
