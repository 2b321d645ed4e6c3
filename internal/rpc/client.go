package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/break-tracker/internal/signals"
)

// #region client-struct
// SignalClient talks to a running breakd over gRPC.
type SignalClient struct {
	conn *grpc.ClientConn
}

// #endregion client-struct

// #region constructor
// NewSignalClient connects to the daemon's gRPC address.
func NewSignalClient(addr string) (*SignalClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &SignalClient{conn: conn}, nil
}

// NewSignalClientWithConn wraps an existing connection. Close closes it.
func NewSignalClientWithConn(conn *grpc.ClientConn) *SignalClient {
	return &SignalClient{conn: conn}
}

// #endregion constructor

// Close shuts down the gRPC connection.
func (c *SignalClient) Close() error {
	return c.conn.Close()
}

func (c *SignalClient) invoke(ctx context.Context, method string, in, out interface{}) error {
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out)
}

// #region calls
// Submit sends one signal message and returns its outcome.
func (c *SignalClient) Submit(ctx context.Context, msg signals.Message) (Reply, error) {
	in, err := messageToStruct(msg)
	if err != nil {
		return Reply{}, fmt.Errorf("encode message: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Submit", in, out); err != nil {
		return Reply{}, fmt.Errorf("submit rpc: %w", err)
	}
	return replyFromStruct(out)
}

// Observe forwards a network response for classification.
func (c *SignalClient) Observe(ctx context.Context, url string, body []byte, at time.Time) ([]Reply, error) {
	m := map[string]interface{}{"url": url, "body": string(body)}
	if !at.IsZero() {
		m["when"] = float64(at.UnixMilli())
	}
	in, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode observe: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Observe", in, out); err != nil {
		return nil, fmt.Errorf("observe rpc: %w", err)
	}
	var replies []Reply
	for _, v := range out.GetFields()["results"].GetListValue().GetValues() {
		r, err := replyFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		replies = append(replies, r)
	}
	return replies, nil
}

// Manual starts or stops a break by hand. Zero at means now on the server.
func (c *SignalClient) Manual(ctx context.Context, at time.Time) (Reply, error) {
	m := map[string]interface{}{}
	if !at.IsZero() {
		m["when"] = float64(at.UnixMilli())
	}
	in, err := structpb.NewStruct(m)
	if err != nil {
		return Reply{}, fmt.Errorf("encode manual: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Manual", in, out); err != nil {
		return Reply{}, fmt.Errorf("manual rpc: %w", err)
	}
	return replyFromStruct(out)
}

// Status reads the tracking flag and the open break.
func (c *SignalClient) Status(ctx context.Context) (Status, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Status", &emptypb.Empty{}, out); err != nil {
		return Status{}, fmt.Errorf("status rpc: %w", err)
	}
	return statusFromStruct(out), nil
}

// SetTracking turns tracking on or off.
func (c *SignalClient) SetTracking(ctx context.Context, enabled bool) (Status, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"enabled": enabled})
	if err != nil {
		return Status{}, fmt.Errorf("encode tracking: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "SetTracking", in, out); err != nil {
		return Status{}, fmt.Errorf("set tracking rpc: %w", err)
	}
	return statusFromStruct(out), nil
}

// #endregion calls
