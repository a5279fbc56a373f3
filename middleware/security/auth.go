package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"PPSocket/tools/errs"

	"github.com/gin-gonic/gin"
)

// PPCtxAuthKey 校验通过后写入 gin context 的 token
const PPCtxAuthKey = "authorization"

type Options struct {
	Token string // 期望的 token，空则一律拒绝

	// 读取哪个请求头，默认 Authorization（Bearer xxx）
	HeaderToken string
}

func DefaultOptions(token string) *Options {
	return &Options{
		Token:       token,
		HeaderToken: "Authorization",
	}
}

// Middleware 内部接口的 bearer token 校验
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions("")
	}
	if opts.HeaderToken == "" {
		opts.HeaderToken = "Authorization"
	}
	want := []byte(opts.Token)
	return func(c *gin.Context) {
		token := bearer(c.GetHeader(opts.HeaderToken))
		if len(want) == 0 || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			e := errs.ErrTokenInvalid
			if token == "" {
				e = errs.ErrTokenRequired
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": e.Code, "msg": e.Msg})
			return
		}
		c.Set(PPCtxAuthKey, token)
		c.Next()
	}
}

// 兼容 "Bearer xxx" 和裸 token
func bearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}
