package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a typed Viewer client. Errors returned by its methods have been
// mapped back through FromStatus.
type Client struct {
	conn grpc.ClientConnInterface
	own  *grpc.ClientConn
}

// Dial connects to a daemon listening on the unix socket at socketPath.
// No I/O happens until the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn, own: conn}, nil
}

// NewClient wraps an existing connection. Calls force the JSON codec.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Close closes the connection if it was opened by Dial.
func (c *Client) Close() error {
	if c.own == nil {
		return nil
	}
	return c.own.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}

func (c *Client) ListConversations(ctx context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c, "ListConversations", req)
}

func (c *Client) GetConversation(ctx context.Context, req *GetConversationRequest) (*GetConversationResponse, error) {
	return invoke[GetConversationResponse](ctx, c, "GetConversation", req)
}

func (c *Client) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c, "ListMessages", req)
}

func (c *Client) ListMessagesAroundDate(ctx context.Context, req *ListMessagesAroundDateRequest) (*ListMessagesAroundDateResponse, error) {
	return invoke[ListMessagesAroundDateResponse](ctx, c, "ListMessagesAroundDate", req)
}

func (c *Client) ListHandles(ctx context.Context, req *ListHandlesRequest) (*ListHandlesResponse, error) {
	return invoke[ListHandlesResponse](ctx, c, "ListHandles", req)
}

func (c *Client) ListFilterConversations(ctx context.Context, req *ListFilterConversationsRequest) (*ListFilterConversationsResponse, error) {
	return invoke[ListFilterConversationsResponse](ctx, c, "ListFilterConversations", req)
}

func (c *Client) GetThumbnail(ctx context.Context, req *GetThumbnailRequest) (*GetThumbnailResponse, error) {
	return invoke[GetThumbnailResponse](ctx, c, "GetThumbnail", req)
}

func (c *Client) PutThumbnail(ctx context.Context, req *PutThumbnailRequest) (*PutThumbnailResponse, error) {
	return invoke[PutThumbnailResponse](ctx, c, "PutThumbnail", req)
}

func (c *Client) GetDateIndex(ctx context.Context, req *GetDateIndexRequest) (*GetDateIndexResponse, error) {
	return invoke[GetDateIndexResponse](ctx, c, "GetDateIndex", req)
}

func (c *Client) ListMedia(ctx context.Context, req *ListMediaRequest) (*ListMediaResponse, error) {
	return invoke[ListMediaResponse](ctx, c, "ListMedia", req)
}

func (c *Client) GetStatus(ctx context.Context) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c, "GetStatus", &GetStatusRequest{})
}

// ChangeStream receives events from WatchChanges.
type ChangeStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event. It returns io.EOF when the daemon closes
// the stream.
func (s *ChangeStream) Recv() (*ChangeEvent, error) {
	evt := new(ChangeEvent)
	if err := s.stream.RecvMsg(evt); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, FromStatus(err)
	}
	return evt, nil
}

// WatchChanges opens the change stream. Cancel ctx to close it.
func (c *Client) WatchChanges(ctx context.Context, req *WatchChangesRequest) (*ChangeStream, error) {
	desc := &ViewerServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(ctx, desc, fullMethod(desc.StreamName), grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, FromStatus(err)
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, FromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, FromStatus(err)
	}
	return &ChangeStream{stream: stream}, nil
}
