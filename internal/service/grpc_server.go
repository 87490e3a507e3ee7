package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/AmmannChristian/randqa/internal/metrics"
	"github.com/AmmannChristian/randqa/internal/randomness"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "randqa.v1.RandomnessAssessment"

const (
	analyzeMethod = "/" + ServiceName + "/Analyze"

	// CodecName is the content subtype of every call; messages travel as
	// JSON instead of protobuf.
	CodecName = "json"

	transportGRPC = "grpc"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// RandomnessAssessmentServer is the server API of the assessment service.
type RandomnessAssessmentServer interface {
	Analyze(context.Context, *AnalyzeRequest) (*AnalyzeResponse, error)
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AnalyzeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RandomnessAssessmentServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: analyzeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RandomnessAssessmentServer).Analyze(ctx, req.(*AnalyzeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the assessment service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RandomnessAssessmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Analyze",
			Handler:    analyzeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "randqa/v1/assessment",
}

// RegisterRandomnessAssessmentServer registers srv with s.
func RegisterRandomnessAssessmentServer(s grpc.ServiceRegistrar, srv RandomnessAssessmentServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// GRPCServer implements RandomnessAssessmentServer on top of AnalysisService.
type GRPCServer struct {
	svc *AnalysisService
}

// NewGRPCServer creates a new GRPCServer instance.
func NewGRPCServer(svc *AnalysisService) *GRPCServer {
	return &GRPCServer{svc: svc}
}

// Analyze handles gRPC analysis requests.
func (s *GRPCServer) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}

	startTime := time.Now()
	metrics.RecordRequest(transportGRPC)
	defer func() {
		metrics.RecordDuration(transportGRPC, time.Since(startTime).Seconds())
	}()

	resp, err := s.svc.Analyze(ctx, req)
	if err != nil {
		st := toStatus(err)
		metrics.RecordError(transportGRPC, errorType(err))
		return nil, st.Err()
	}

	metrics.RecordSequenceBits(transportGRPC, resp.Report.Bits)
	return resp, nil
}

func toStatus(err error) *status.Status {
	switch {
	case errors.Is(err, randomness.ErrInvalidInput):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err)
	default:
		return status.New(codes.Internal, err.Error())
	}
}

// errorType is the error_type label recorded for err.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, randomness.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

// Client calls a remote assessment service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Analyze sends req to the remote service.
func (c *Client) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	out := new(AnalyzeResponse)
	if err := c.cc.Invoke(ctx, analyzeMethod, req, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}
