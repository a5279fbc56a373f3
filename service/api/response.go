package api

import (
	"net/http"

	"PPSocket/tools/errs"

	"github.com/gin-gonic/gin"
)

type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, &Msg{Code: 0, Data: data})
}

// Fail 只返回错误码和对外消息，内部细节留在日志里
func Fail(c *gin.Context, err error) {
	code := errs.ServerInternalError
	if ce, ok := errs.AsCode(err); ok {
		code = ce.Code
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(httpStatus(code), &Msg{Code: code, Msg: errs.ClientMessage(err)})
}

func httpStatus(code int) int {
	switch code {
	case errs.ArgsError:
		return http.StatusBadRequest
	case errs.AuthenticationFailure:
		return http.StatusUnauthorized
	case errs.TargetNotFound:
		return http.StatusNotFound
	case errs.StoreUnavailable, errs.BackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
