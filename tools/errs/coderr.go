package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"google.golang.org/grpc/status"
)

// 错误码
const (
	ServerInternalError   = 500
	ArgsError             = 1001
	AuthenticationFailure = 1101 // 握手鉴权失败
	PolicyRejection       = 1201 // 黑名单/不可见/禁用
	BackendUnavailable    = 1202 // 找不到可用的后端
	BackendExecutionError = 1203 // 后端 handler 执行失败
	TargetNotFound        = 1301 // joinRoom 找不到目标连接
	StoreUnavailable      = 1401 // presence store 不可达
)

var (
	ErrInternal           = NewCodeError(ServerInternalError, "Internal server error")
	ErrArgs               = NewCodeError(ArgsError, "Invalid arguments")
	ErrTokenRequired      = NewCodeError(AuthenticationFailure, "Token is required")
	ErrTokenInvalid       = NewCodeError(AuthenticationFailure, "Token is invalid")
	ErrNotAllowed         = NewCodeError(PolicyRejection, "Request not allowed")
	ErrTooManyRequests    = NewCodeError(PolicyRejection, "Too many requests")
	ErrServiceNotFound    = NewCodeError(PolicyRejection, "Service unavailable")
	ErrServiceUnavailable = NewCodeError(BackendUnavailable, "Service unavailable")
	ErrSocketNotFound     = NewCodeError(TargetNotFound, "Unable to join room, socket connection not found")
	ErrStoreUnavailable   = NewCodeError(StoreUnavailable, "Presence store unavailable")
)

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e CodeError) WithDetail(detail string) CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Wrap 附带调用栈
func (e CodeError) Wrap() error {
	c := e
	return pkgerrors.WithStack(&c)
}

func (e CodeError) WrapMsg(msg string, kv ...any) error {
	c := e
	if msg != "" || len(kv) > 0 {
		detail := toString(msg, kv)
		if c.Detail == "" {
			c.Detail = detail
		} else {
			c.Detail += ", " + detail
		}
	}
	return pkgerrors.WithStack(&c)
}

// Is 按错误码比较，errors.Is(err, &errs.ErrSocketNotFound) 可用
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) || t == nil || e == nil {
		return false
	}
	return e.Code == t.Code
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// AsCode 取出链上的 CodeError
func AsCode(err error) (*CodeError, bool) {
	var c *CodeError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// HasCode 链上是否存在指定错误码
func HasCode(err error, code int) bool {
	c, ok := AsCode(err)
	return ok && c.Code == code
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

// ClientMessage 给客户端的错误文案：只有一句话，不带 detail / 栈
func ClientMessage(err error) string {
	if err == nil {
		return ""
	}
	if c, ok := AsCode(err); ok {
		return c.Msg
	}
	if s, ok := status.FromError(pkgerrors.Cause(err)); ok && s.Message() != "" {
		return s.Message()
	}
	if msg := pkgerrors.Cause(err).Error(); msg != "" {
		return msg
	}
	return ErrInternal.Msg
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			sb.WriteString("MISSING")
		}
	}
	return sb.String()
}
