package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "fieldkeeper.v1.Records"

const (
	ListMethod = "/" + ServiceName + "/List"
	PushMethod = "/" + ServiceName + "/Push"
	PingMethod = "/" + ServiceName + "/Ping"
)

// RecordsServer is implemented by the server side of the records service.
type RecordsServer interface {
	List(ctx context.Context, req *ListRequest) (*ListResponse, error)
	Push(ctx context.Context, req *PushRequest) (*PushResponse, error)
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
}

// RegisterRecordsServer registers srv on s.
func RegisterRecordsServer(s grpc.ServiceRegistrar, srv RecordsServer) {
	s.RegisterService(&RecordsServiceDesc, srv)
}

// unary adapts a typed handler to the Struct-in, Struct-out form gRPC sees.
// Interceptors observe the raw *structpb.Struct request.
func unary[Req, Resp any](method string, call func(RecordsServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, raw any) (any, error) {
			req := new(Req)
			if err := Unmarshal(raw.(*structpb.Struct), req); err != nil {
				return nil, invalidArgument(err)
			}
			resp, err := call(srv.(RecordsServer), ctx, req)
			if err != nil {
				return nil, err
			}
			if resp == nil {
				return &structpb.Struct{}, nil
			}
			return Marshal(resp)
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, handler)
	}
}

var RecordsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unary(ListMethod, RecordsServer.List)},
		{MethodName: "Push", Handler: unary(PushMethod, RecordsServer.Push)},
		{MethodName: "Ping", Handler: unary(PingMethod, RecordsServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fieldkeeper/v1/records.proto",
}

// RecordsClient is the client stub for the records service.
type RecordsClient struct {
	cc grpc.ClientConnInterface
}

func NewRecordsClient(cc grpc.ClientConnInterface) *RecordsClient {
	return &RecordsClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts ...grpc.CallOption) (*Resp, error) {
	in, err := Marshal(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := Unmarshal(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *RecordsClient) List(ctx context.Context, req *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c.cc, ListMethod, req, opts...)
}

func (c *RecordsClient) Push(ctx context.Context, req *PushRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	return invoke[PushResponse](ctx, c.cc, PushMethod, req, opts...)
}

func (c *RecordsClient) Ping(ctx context.Context, req *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, PingMethod, req, opts...)
}
