package gateway

import (
	"PPSocket/service/socket"
	"PPSocket/tools/errs"
	"PPSocket/tools/i18n"

	"go.uber.org/zap"
)

// authenticate 握手中间件：没有 token 或校验失败直接拒绝，此时还没有任何房间与在线状态
func (g *Gateway) authenticate(s *socket.Socket) error {
	if g.stopping.Load() {
		g.obs.Handshake(OutcomeRejected)
		return errs.ErrServiceUnavailable.WrapMsg("gateway stopping")
	}

	token, ok := s.Handshake().Auth["token"].(string)
	if !ok || token == "" {
		g.obs.Handshake(OutcomeRejected)
		return errs.ErrTokenRequired.Wrap()
	}

	id, err := g.verifier.Verify(token)
	if err != nil {
		g.obs.Handshake(OutcomeRejected)
		return errs.ErrTokenInvalid.WrapMsg("verify token", "err", err)
	}
	if id == nil || id.UserID == "" {
		g.obs.Handshake(OutcomeRejected)
		return errs.ErrTokenInvalid.WrapMsg("token carries no user id")
	}

	lang := g.opts.DefaultLanguage
	if h := s.Handshake().Header.Get("Accept-Language"); h != "" || lang == "" {
		lang = i18n.FromAcceptLanguage(h)
	}

	s.Set(keyIdentity, id)
	s.Set(keyToken, token)
	s.Set(keyLanguage, lang)
	g.obs.Handshake(OutcomeOK)
	g.log.Info("authenticated via JWT",
		zap.String("sid", s.ID()),
		zap.String("userId", id.UserID),
		zap.String("nickname", id.Nickname))
	return nil
}
