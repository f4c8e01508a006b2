package v2

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "launcher.v1.LinkService"

// LinkServiceServer серверная часть launcher.v1.LinkService.
// Сообщения передаются как google.protobuf.Struct с полями в snake_case,
// как в JSON API.
type LinkServiceServer interface {
	CreateLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUserLinks(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReorderLinks(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv LinkServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LinkServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LinkServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LinkServiceDesc описание сервиса для grpc.Server.RegisterService.
var LinkServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LinkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateLink", Handler: unaryHandler("CreateLink", LinkServiceServer.CreateLink)},
		{MethodName: "GetUserLinks", Handler: unaryHandler("GetUserLinks", LinkServiceServer.GetUserLinks)},
		{MethodName: "UpdateLink", Handler: unaryHandler("UpdateLink", LinkServiceServer.UpdateLink)},
		{MethodName: "DeleteLink", Handler: unaryHandler("DeleteLink", LinkServiceServer.DeleteLink)},
		{MethodName: "ReorderLinks", Handler: unaryHandler("ReorderLinks", LinkServiceServer.ReorderLinks)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "launcher/v1/links.proto",
}

// RegisterLinkServiceServer регистрирует реализацию на сервере.
func RegisterLinkServiceServer(s grpc.ServiceRegistrar, srv LinkServiceServer) {
	s.RegisterService(&LinkServiceDesc, srv)
}

// LinkServiceClient клиент launcher.v1.LinkService.
type LinkServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLinkServiceClient(cc grpc.ClientConnInterface) *LinkServiceClient {
	return &LinkServiceClient{cc: cc}
}

func (c *LinkServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LinkServiceClient) CreateLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateLink", in, opts...)
}

func (c *LinkServiceClient) GetUserLinks(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetUserLinks", in, opts...)
}

func (c *LinkServiceClient) UpdateLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "UpdateLink", in, opts...)
}

func (c *LinkServiceClient) DeleteLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "DeleteLink", in, opts...)
}

func (c *LinkServiceClient) ReorderLinks(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ReorderLinks", in, opts...)
}
