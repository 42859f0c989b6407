package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// AnalyzerServiceName is the fully qualified gRPC service name.
const AnalyzerServiceName = "netlog.v1.Analyzer"

// AnalyzerServer is the server API for the netlog.v1.Analyzer service. Payloads use
// protobuf well-known types so clients need no generated stubs.
type AnalyzerServer interface {
	GetDashboardStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ExplainRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAnalyzerServer registers srv on s.
func RegisterAnalyzerServer(s grpc.ServiceRegistrar, srv AnalyzerServer) {
	s.RegisterService(&analyzerServiceDesc, srv)
}

var analyzerServiceDesc = grpc.ServiceDesc{
	ServiceName: AnalyzerServiceName,
	HandlerType: (*AnalyzerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDashboardStats", Handler: getDashboardStatsHandler},
		{MethodName: "ExplainRecord", Handler: explainRecordHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "netlog/v1/analyzer.proto",
}

func getDashboardStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzerServer).GetDashboardStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AnalyzerServiceName + "/GetDashboardStats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyzerServer).GetDashboardStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func explainRecordHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzerServer).ExplainRecord(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AnalyzerServiceName + "/ExplainRecord"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyzerServer).ExplainRecord(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AnalyzerService adapts the netlog facade to the gRPC API.
type AnalyzerService struct {
	svc    Service
	logger *slog.Logger
}

// NewAnalyzerService constructs the gRPC adapter.
func NewAnalyzerService(svc Service, logger *slog.Logger) *AnalyzerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzerService{svc: svc, logger: logger}
}

// GetDashboardStats returns the dashboard blocks with the same field names as the REST API.
func (s *AnalyzerService) GetDashboardStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats, err := s.svc.DashboardStats(ctx)
	if err != nil {
		return nil, s.toStatus("GetDashboardStats", err)
	}
	out, err := toStruct(stats)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// ExplainRecord expects {"record": {...}, "label": "..."} and answers {"explanation": ...}.
func (s *AnalyzerService) ExplainRecord(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	fields := req.GetFields()
	recordValue, ok := fields["record"]
	if !ok || recordValue.GetStructValue() == nil {
		return nil, status.Error(codes.InvalidArgument, "record must be an object")
	}
	label, err := models.ParseLabel(fields["label"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rec := recordFromJSON(recordValue.GetStructValue().AsMap())
	explanation, _, err := s.svc.Explain(ctx, rec, label)
	if err != nil {
		return nil, s.toStatus("ExplainRecord", err)
	}
	out, err := toStruct(explainResponse{Explanation: explanation})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *AnalyzerService) toStatus(method string, err error) error {
	switch {
	case utils.IsMissingField(err), utils.IsInputFormat(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, utils.ErrEmptyDataset):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		s.logger.Error("grpc call failed", slog.String("method", method), slog.Any("error", err))
		return status.Error(codes.Internal, fmt.Sprintf("%s failed: %v", method, err))
	}
}

// toStruct converts a JSON-serialisable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return structpb.NewStruct(m)
}
