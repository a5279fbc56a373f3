package api

import (
	"context"

	mid "PPSocket/middleware"
	midsec "PPSocket/middleware/security"
	"PPSocket/service/gateway"
	"PPSocket/tools/decode"
	"PPSocket/tools/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Gateway 内部接口用到的网关能力
type Gateway interface {
	JoinRoom(ctx context.Context, roomIDs []string, socketID string) error
	Notify(ctx context.Context, m gateway.CastMessage)
	CheckUserOnline(ctx context.Context, userIDs []string) ([]bool, error)
	Sessions(ctx context.Context, userID string) (map[string]string, error)
}

type Internal struct {
	gw  Gateway
	log *zap.Logger
}

// RegisterInternal 挂载 /internal/*，token 为空时不开放
func RegisterInternal(r gin.IRouter, gw Gateway, token string, log *zap.Logger) bool {
	if token == "" {
		log.Warn("internal api disabled, http.internalToken is empty")
		return false
	}
	h := &Internal{gw: gw, log: log.Named("api")}
	g := r.Group("/internal")
	opt := mid.RouteOpt{Auth: midsec.Middleware(midsec.DefaultOptions(token))}

	mid.POST(g, "/joinRoom", h.JoinRoom, opt)
	mid.POST(g, "/notify", h.Notify, opt)
	mid.POST(g, "/checkUserOnline", h.CheckUserOnline, opt)
	mid.GET(g, "/sessions/:userId", h.Sessions, opt)
	return true
}

func (h *Internal) JoinRoom(c *gin.Context) {
	var p gateway.JoinRoomParams
	if err := c.ShouldBindJSON(&p); err != nil {
		Fail(c, errs.ErrArgs.WrapMsg("joinRoom body", "err", err))
		return
	}
	if err := h.gw.JoinRoom(c.Request.Context(), p.RoomIDs, p.SocketID); err != nil {
		h.log.Info("joinRoom failed", zap.String("sid", p.SocketID), zap.Strings("rooms", p.RoomIDs), zap.Error(err))
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// Notify 与 gateway.notify 一致：字段类型或方式不对只记日志，不返回错误。
// body 不是 JSON 才算请求错误。
func (h *Internal) Notify(c *gin.Context) {
	var body any
	if err := c.ShouldBindJSON(&body); err != nil {
		Fail(c, errs.ErrArgs.WrapMsg("notify body", "err", err))
		return
	}
	m, err := decode.Map[gateway.CastMessage](body)
	if err != nil {
		h.log.Warn("unknown notify type or target", zap.Any("body", body), zap.Error(err))
		Success(c, nil)
		return
	}
	h.gw.Notify(c.Request.Context(), *m)
	Success(c, nil)
}

func (h *Internal) CheckUserOnline(c *gin.Context) {
	var p gateway.CheckUserOnlineParams
	if err := c.ShouldBindJSON(&p); err != nil {
		Fail(c, errs.ErrArgs.WrapMsg("checkUserOnline body", "err", err))
		return
	}
	online, err := h.gw.CheckUserOnline(c.Request.Context(), p.UserIDs)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, online)
}

func (h *Internal) Sessions(c *gin.Context) {
	s, err := h.gw.Sessions(c.Request.Context(), c.Param("userId"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, s)
}
