package dispatcher

import (
	"encoding/json"

	"PPSocket/tools/decode"
	"PPSocket/tools/errs"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName   = "ppsocket.Broker"
	methodResolve = "/ppsocket.Broker/Resolve"
	methodCall    = "/ppsocket.Broker/Call"
)

// toValue 任意 JSON 兼容的值转 structpb.Value
func toValue(v any) (*structpb.Value, error) {
	if v == nil {
		return structpb.NewNullValue(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Value{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func metaToStruct(m Meta) (*structpb.Struct, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func structToMeta(s *structpb.Struct) (Meta, error) {
	if s == nil {
		return Meta{}, nil
	}
	m, err := decode.Struct[Meta](s)
	if err != nil {
		return Meta{}, err
	}
	return *m, nil
}

func endpointToStruct(ep *Endpoint) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"found":         structpb.NewBoolValue(true),
		"name":          structpb.NewStringValue(ep.Name),
		"visibility":    structpb.NewStringValue(ep.Visibility),
		"disableSocket": structpb.NewBoolValue(ep.DisableSocket),
	}}
}

func structToEndpoint(s *structpb.Struct) (*Endpoint, bool) {
	f := s.GetFields()
	if !f["found"].GetBoolValue() {
		return nil, false
	}
	return &Endpoint{
		Name:          f["name"].GetStringValue(),
		Visibility:    f["visibility"].GetStringValue(),
		DisableSocket: f["disableSocket"].GetBoolValue(),
	}, true
}

// toStatus broker 错误转 gRPC status，消息只保留给客户端看的那一句
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	code := codes.Unknown
	if c, ok := errs.AsCode(err); ok {
		switch c.Code {
		case errs.PolicyRejection:
			code = codes.NotFound
		case errs.BackendUnavailable:
			code = codes.Unavailable
		case errs.ArgsError:
			code = codes.InvalidArgument
		}
	}
	return status.Error(code, errs.ClientMessage(err))
}

// fromStatus gRPC 错误转回错误分类
func fromStatus(err error, action string) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.NotFound:
		return errs.ErrServiceNotFound.WrapMsg(st.Message(), "action", action)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return errs.ErrServiceUnavailable.WrapMsg(st.Message(), "action", action)
	case codes.InvalidArgument:
		return errs.NewCodeError(errs.ArgsError, st.Message()).WrapMsg("", "action", action)
	}
	msg := st.Message()
	if msg == "" {
		msg = "Backend error"
	}
	return errs.NewCodeError(errs.BackendExecutionError, msg).WrapMsg("", "action", action)
}

// unavailable 只有后端不可达才计入熔断
func unavailable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}
