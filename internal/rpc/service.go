package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "imv.v1.Viewer"

// ViewerServer is implemented by the daemon.
type ViewerServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	GetConversation(context.Context, *GetConversationRequest) (*GetConversationResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	ListMessagesAroundDate(context.Context, *ListMessagesAroundDateRequest) (*ListMessagesAroundDateResponse, error)
	ListHandles(context.Context, *ListHandlesRequest) (*ListHandlesResponse, error)
	ListFilterConversations(context.Context, *ListFilterConversationsRequest) (*ListFilterConversationsResponse, error)
	GetThumbnail(context.Context, *GetThumbnailRequest) (*GetThumbnailResponse, error)
	PutThumbnail(context.Context, *PutThumbnailRequest) (*PutThumbnailResponse, error)
	GetDateIndex(context.Context, *GetDateIndexRequest) (*GetDateIndexResponse, error)
	ListMedia(context.Context, *ListMediaRequest) (*ListMediaResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
	WatchChanges(*WatchChangesRequest, WatchChangesServer) error
}

// WatchChangesServer is the server side of the WatchChanges stream.
type WatchChangesServer interface {
	Send(*ChangeEvent) error
	Context() context.Context
}

type watchChangesServer struct {
	grpc.ServerStream
}

func (s *watchChangesServer) Send(evt *ChangeEvent) error {
	return s.ServerStream.SendMsg(evt)
}

// RegisterViewerServer registers srv on s.
func RegisterViewerServer(s grpc.ServiceRegistrar, srv ViewerServer) {
	s.RegisterService(&ViewerServiceDesc, srv)
}

// ViewerServiceDesc describes imv.v1.Viewer.
var ViewerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ViewerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListConversations", ViewerServer.ListConversations),
		unary("GetConversation", ViewerServer.GetConversation),
		unary("ListMessages", ViewerServer.ListMessages),
		unary("ListMessagesAroundDate", ViewerServer.ListMessagesAroundDate),
		unary("ListHandles", ViewerServer.ListHandles),
		unary("ListFilterConversations", ViewerServer.ListFilterConversations),
		unary("GetThumbnail", ViewerServer.GetThumbnail),
		unary("PutThumbnail", ViewerServer.PutThumbnail),
		unary("GetDateIndex", ViewerServer.GetDateIndex),
		unary("ListMedia", ViewerServer.ListMedia),
		unary("GetStatus", ViewerServer.GetStatus),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchChanges",
			Handler:       watchChangesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "imv/v1/viewer",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(ViewerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ViewerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ViewerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchChangesHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchChangesRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ViewerServer).WatchChanges(in, &watchChangesServer{stream})
}
