package dispatcher

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// BrokerServer 把一个 Broker 以 ppsocket.Broker gRPC 服务暴露出去
type BrokerServer struct {
	broker Broker
	log    *zap.Logger
}

type brokerService interface {
	resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var brokerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*brokerService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: unaryHandler(methodResolve, brokerService.resolve)},
		{MethodName: "Call", Handler: unaryHandler(methodCall, brokerService.call)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ppsocket/broker.proto",
}

func unaryHandler(fullMethod string, fn func(brokerService, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(brokerService)
		if interceptor == nil {
			return fn(svc, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return fn(svc, ctx, req.(*structpb.Struct))
		})
	}
}

func NewBrokerServer(b Broker, log *zap.Logger) *BrokerServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &BrokerServer{broker: b, log: log.Named("dispatcher.server")}
}

func (s *BrokerServer) Register(g *grpc.Server) {
	g.RegisterService(&brokerServiceDesc, s)
}

func (s *BrokerServer) resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.GetFields()["name"].GetStringValue()
	ep, err := s.broker.FindEndpoint(ctx, name)
	if err != nil {
		s.log.Debug("resolve miss", zap.String("action", name), zap.Error(err))
		return nil, toStatus(err)
	}
	return endpointToStruct(ep), nil
}

func (s *BrokerServer) call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	name := f["action"].GetStringValue()
	meta, err := structToMeta(f["meta"].GetStructValue())
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := s.broker.Call(ctx, name, f["params"].AsInterface(), meta)
	if err != nil {
		s.log.Info("call failed", zap.String("action", name), zap.Error(err))
		return nil, toStatus(err)
	}
	data, err := toValue(out)
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"data": data}}, nil
}
