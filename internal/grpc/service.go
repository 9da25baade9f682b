// Package grpc serves navigation sessions over a bidirectional gRPC stream. Envelopes
// travel with the navwire codec; frame payloads are binary frames compressed by the
// configured Compressor.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/pilot"
	"starfolio/navigator/internal/wire"
)

const (
	// ServiceName is the fully qualified service exposed by Register.
	ServiceName = "navigator.v1.Navigator"
	// FlyMethod is the full method name of the session stream.
	FlyMethod = "/" + ServiceName + "/Fly"
	// PilotIDMetadataKey lets a client name its session when no token is required.
	PilotIDMetadataKey = "x-navigator-pilot-id"
	// PilotTokenMetadataKey carries a signed pilot token.
	PilotTokenMetadataKey = "x-navigator-pilot-token"
	// HelloEncoding tags the first envelope, which carries the JSON hello.
	HelloEncoding = "hello+json"
)

// FlyServer is the server side of one session stream.
type FlyServer = grpc.BidiStreamingServer[wire.ControlEnvelope, wire.FrameEnvelope]

// FlyClient is the client side of one session stream.
type FlyClient = grpc.BidiStreamingClient[wire.ControlEnvelope, wire.FrameEnvelope]

// NavigatorServer is implemented by Service.
type NavigatorServer interface {
	Fly(FlyServer) error
}

// RuntimeFactory builds the pilot runtime backing a stream. An empty pilot id asks the
// factory to mint one.
type RuntimeFactory func(pilotID string, format wire.Format) (*pilot.Runtime, error)

// Option customises the behaviour of the gRPC streaming service.
type Option func(*Service)

// WithCompressor overrides the default payload compressor.
func WithCompressor(compressor Compressor) Option {
	return func(s *Service) {
		if compressor != nil {
			s.compressor = compressor
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the receive timestamp source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service implements NavigatorServer on top of pilot runtimes.
type Service struct {
	newRuntime RuntimeFactory
	compressor Compressor
	logger     *logging.Logger
	now        func() time.Time
}

// NewService wires the gRPC service to the runtime factory and optional settings.
func NewService(factory RuntimeFactory, opts ...Option) *Service {
	service := &Service{newRuntime: factory, compressor: NewSnappyCompressor(), logger: logging.L(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// Fly runs one navigation session for the lifetime of the stream.
func (s *Service) Fly(stream FlyServer) error {
	if s == nil || s.newRuntime == nil {
		return status.Error(codes.FailedPrecondition, "navigation unavailable")
	}
	streamCtx := stream.Context()

	//1.- Build the session; frames are always binary on this transport.
	runtime, err := s.newRuntime(PilotIDFromContext(streamCtx), wire.Format{Encoding: wire.EncodingBinary})
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Errorf(codes.ResourceExhausted, "start session: %v", err)
	}
	logger := runtime.Logger()

	//2.- Greet the client before any frame so it can build its scene.
	hello, err := json.Marshal(runtime.Hello())
	if err != nil {
		runtime.Close()
		return status.Errorf(codes.Internal, "encode hello: %v", err)
	}
	if err := stream.Send(&wire.FrameEnvelope{Encoding: HelloEncoding, Payload: hello}); err != nil {
		runtime.Close()
		return err
	}

	ctx, cancel := context.WithCancel(streamCtx)
	defer cancel()

	//3.- Pump inbound control on its own goroutine; the runtime owns Send from here on.
	recvDone := make(chan error, 1)
	go func() {
		recvDone <- s.receive(ctx, stream, runtime, logger)
		cancel()
	}()

	frameLabel := encodingLabel(wire.EncodingBinary.String(), s.compressor)
	runErr := runtime.Run(ctx, func(d pilot.Delivery) error {
		payload, err := s.compressor.Compress(d.Payload)
		if err != nil {
			return status.Errorf(codes.Internal, "compress frame: %v", err)
		}
		return stream.Send(&wire.FrameEnvelope{Tick: d.Frame.Tick, Encoding: frameLabel, Payload: payload})
	})
	cancel()
	if runErr != nil {
		//4.- Returning unblocks the pending Recv once gRPC tears the stream down.
		return runErr
	}
	recvErr := <-recvDone

	switch {
	case recvErr != nil:
		return recvErr
	case streamCtx.Err() != nil:
		//5.- Surface context cancellation so clients can retry.
		if errors.Is(streamCtx.Err(), context.Canceled) {
			return status.Error(codes.Canceled, "stream cancelled")
		}
		return status.Error(codes.DeadlineExceeded, "stream deadline exceeded")
	}
	return nil
}

// receive decodes control envelopes until the client half-closes or the stream fails.
func (s *Service) receive(ctx context.Context, stream FlyServer, runtime *pilot.Runtime, logger *logging.Logger) error {
	for {
		envelope, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if envelope == nil {
			continue
		}
		msg, err := s.decodeControl(envelope)
		if err != nil {
			logger.Warn("rejected control envelope", logging.Error(err))
			continue
		}
		err = runtime.Submit(msg, s.now())
		switch {
		case err == nil:
		case errors.Is(err, pilot.ErrClosed):
			return nil
		case errors.Is(err, pilot.ErrGated):
			logger.Debug("joystick sample dropped", logging.Error(err))
		default:
			logger.Warn("control submission failed", logging.Error(err))
		}
	}
}

func (s *Service) decodeControl(envelope *wire.ControlEnvelope) (wire.ControlMessage, error) {
	base, suffix := splitEncoding(envelope.Encoding)
	if base != "" && base != "json" {
		return wire.ControlMessage{}, status.Errorf(codes.InvalidArgument, "unsupported control encoding %q", envelope.Encoding)
	}
	payload := envelope.Payload
	if suffix != "" {
		if suffix != s.compressor.Name() {
			return wire.ControlMessage{}, status.Errorf(codes.InvalidArgument, "unsupported control compression %q", suffix)
		}
		decompressed, err := s.compressor.Decompress(payload)
		if err != nil {
			return wire.ControlMessage{}, err
		}
		payload = decompressed
	}
	msg, err := wire.DecodeControl(payload)
	if err != nil {
		return wire.ControlMessage{}, err
	}
	//1.- The envelope sequence stands in for a message that carries none.
	if msg.Sequence == 0 {
		msg.Sequence = envelope.Sequence
	}
	return msg, nil
}

type verifiedPilotKey struct{}

// ContextWithVerifiedPilot records an authenticated pilot id. It wins over any id the
// client claims in metadata.
func ContextWithVerifiedPilot(ctx context.Context, pilotID string) context.Context {
	return context.WithValue(ctx, verifiedPilotKey{}, pilotID)
}

// PilotIDFromContext returns the verified pilot id, else the id claimed in metadata,
// else "" so the host mints one.
func PilotIDFromContext(ctx context.Context) string {
	if verified, ok := ctx.Value(verifiedPilotKey{}).(string); ok && verified != "" {
		return verified
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(PilotIDMetadataKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func flyHandler(srv any, stream grpc.ServerStream) error {
	return srv.(NavigatorServer).Fly(&grpc.GenericServerStream[wire.ControlEnvelope, wire.FrameEnvelope]{ServerStream: stream})
}

// ServiceDesc describes the navigator service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NavigatorServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Fly",
		Handler:       flyHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "navigator/v1/navigator.proto",
}

// Register attaches the service to a gRPC server.
func Register(registrar grpc.ServiceRegistrar, server NavigatorServer) {
	registrar.RegisterService(&ServiceDesc, server)
}

// Fly opens a session stream using the navwire codec.
func Fly(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (FlyClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], FlyMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wire.ControlEnvelope, wire.FrameEnvelope]{ClientStream: stream}, nil
}

var _ NavigatorServer = (*Service)(nil)
