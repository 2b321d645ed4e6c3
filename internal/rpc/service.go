package rpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/break-tracker/internal/engine"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

const serviceName = "breaktracker.v1.SignalService"

// #region deps
// Ingestor is the engine surface the service drives.
type Ingestor interface {
	SubmitWait(ctx context.Context, sig signals.Signal) (engine.Result, error)
	Manual(ctx context.Context, at time.Time) (engine.Result, error)
}

// Settings reads and writes the tracking flag and reads the persisted
// open-break marker.
type Settings interface {
	TrackingEnabled(ctx context.Context) (bool, error)
	SetTrackingEnabled(ctx context.Context, enabled bool) error
	Current(ctx context.Context) (*state.CurrentSession, error)
}

// #endregion deps

// #region service-desc
// SignalServer is the server API for the signal service.
type SignalServer interface {
	Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Observe(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Manual(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Status(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	SetTracking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SignalServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: structHandler("Submit", SignalServer.Submit)},
		{MethodName: "Observe", Handler: structHandler("Observe", SignalServer.Observe)},
		{MethodName: "Manual", Handler: structHandler("Manual", SignalServer.Manual)},
		{MethodName: "Status", Handler: statusHandler},
		{MethodName: "SetTracking", Handler: structHandler("SetTracking", SignalServer.SetTracking)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "breaktracker/v1/signal.proto",
}

func structHandler(method string, call func(SignalServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SignalServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(SignalServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func statusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SignalServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Status"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SignalServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Register attaches the signal service to s.
func Register(s *grpc.Server, srv SignalServer) {
	s.RegisterService(&serviceDesc, srv)
}

// #endregion service-desc

// #region server
// Server implements SignalServer on top of the engine.
type Server struct {
	ingest   Ingestor
	settings Settings
	producer *signals.Producer
	logger   *zap.Logger
}

// NewServer creates the service. producer classifies forwarded network responses.
func NewServer(ingest Ingestor, settings Settings, producer *signals.Producer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{ingest: ingest, settings: settings, producer: producer, logger: logger}
}

// Submit ingests one signal message and waits for its outcome.
func (s *Server) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sig, err := messageFromStruct(req).Signal(signals.OriginRPC)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.ingest.SubmitWait(ctx, sig)
	if err != nil {
		return nil, s.toStatus("submit", err)
	}
	return resultToStruct(res)
}

// Observe classifies a forwarded network response {url, body, when} and
// ingests whatever signals it yields.
func (s *Server) Observe(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	url := f["url"].GetStringValue()
	if url == "" {
		return nil, status.Error(codes.InvalidArgument, "url is required")
	}
	at := time.Time{}
	if ms := int64(f["when"].GetNumberValue()); ms > 0 {
		at = time.UnixMilli(ms)
	}

	results := []interface{}{}
	for _, sig := range s.producer.FromResponse(url, []byte(f["body"].GetStringValue()), at) {
		res, err := s.ingest.SubmitWait(ctx, sig)
		if err != nil {
			return nil, s.toStatus("observe", err)
		}
		st, err := resultToStruct(res)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		results = append(results, st.AsMap())
	}
	return structpb.NewStruct(map[string]interface{}{"results": results})
}

// Manual starts or stops a break by hand. An optional "when" is epoch millis.
func (s *Server) Manual(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	at := time.Time{}
	if ms := int64(req.GetFields()["when"].GetNumberValue()); ms > 0 {
		at = time.UnixMilli(ms)
	}
	res, err := s.ingest.Manual(ctx, at)
	if err != nil {
		return nil, s.toStatus("manual", err)
	}
	return resultToStruct(res)
}

// Status reports the tracking flag and the open break.
func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	tracking, err := s.settings.TrackingEnabled(ctx)
	if err != nil {
		return nil, s.toStatus("status", err)
	}
	// The marker comes from the store so a reset made elsewhere shows up
	// before the engine processes another signal.
	cur, err := s.settings.Current(ctx)
	if err != nil {
		return nil, s.toStatus("status", err)
	}
	return statusToStruct(Status{Tracking: tracking, Current: cur})
}

// SetTracking writes the tracking flag {enabled: bool}.
func (s *Server) SetTracking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, ok := req.GetFields()["enabled"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "enabled is required")
	}
	if err := s.settings.SetTrackingEnabled(ctx, v.GetBoolValue()); err != nil {
		return nil, s.toStatus("set tracking", err)
	}
	s.logger.Info("tracking changed", zap.Bool("enabled", v.GetBoolValue()))
	return s.Status(ctx, &emptypb.Empty{})
}

func (s *Server) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, engine.ErrQueueFull):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, engine.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error("rpc failed", zap.String("op", op), zap.Error(err))
	return status.Error(codes.Internal, err.Error())
}

// #endregion server
