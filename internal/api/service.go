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
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/soil-risk/go-engine/internal/engine"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/evaluation"
	"github.com/danielpatrickdp/soil-risk/go-engine/internal/logging"
)

// #region service-desc
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "soilrisk.v1.EvaluationService"

// Method names of the evaluation service. Every request and response is a
// google.protobuf.Struct carrying the JSON form of the engine types.
const (
	MethodEvaluate     = "Evaluate"
	MethodGetLatest    = "GetLatest"
	MethodGetVersion   = "GetVersion"
	MethodListVersions = "ListVersions"
	MethodRenderReport = "RenderReport"
	MethodPreview      = "Preview"
)

// EvaluationServer is the server side of the evaluation service.
type EvaluationServer interface {
	Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetLatest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetVersion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListVersions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RenderReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Preview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(EvaluationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(EvaluationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(EvaluationServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EvaluationServer)(nil),
	Methods: []grpc.MethodDesc{
		handler(MethodEvaluate, EvaluationServer.Evaluate),
		handler(MethodGetLatest, EvaluationServer.GetLatest),
		handler(MethodGetVersion, EvaluationServer.GetVersion),
		handler(MethodListVersions, EvaluationServer.ListVersions),
		handler(MethodRenderReport, EvaluationServer.RenderReport),
		handler(MethodPreview, EvaluationServer.Preview),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "soilrisk/v1/evaluation",
}

// RegisterEvaluationServer registers srv on s.
func RegisterEvaluationServer(s grpc.ServiceRegistrar, srv EvaluationServer) {
	s.RegisterService(&serviceDesc, srv)
}
// #endregion service-desc

// #region requests
// EvaluateRequest selects what to evaluate.
type EvaluateRequest struct {
	ZoneID          string   `json:"zone_id"`
	StandardID      string   `json:"standard_id"`
	DatapointIDs    []string `json:"datapoint_ids,omitempty"`
	Recommendations string   `json:"recommendations,omitempty"`
}

// VersionRequest names a version; Number 0 means the latest.
type VersionRequest struct {
	OutputID string `json:"output_id"`
	Number   int    `json:"number,omitempty"`
}

// VersionList wraps a version listing.
type VersionList struct {
	Versions []evaluation.Version `json:"versions"`
}
// #endregion requests

// #region service
// Service adapts the engine to the evaluation gRPC service.
type Service struct {
	engine *engine.Engine
	log    *slog.Logger
}

// NewService wraps e. A nil logger discards.
func NewService(e *engine.Engine, log *slog.Logger) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{engine: e, log: log.With(slog.String("component", "grpc"))}
}

func (s *Service) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in EvaluateRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	v, err := s.engine.Evaluate(ctx, in.ZoneID, in.StandardID, in.DatapointIDs, in.Recommendations)
	if err != nil {
		return nil, s.toStatus(MethodEvaluate, err)
	}
	return toStruct(v)
}

func (s *Service) GetLatest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in VersionRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	v, err := s.engine.GetLatestEvaluation(ctx, in.OutputID)
	if err != nil {
		return nil, s.toStatus(MethodGetLatest, err)
	}
	return toStruct(v)
}

func (s *Service) GetVersion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in VersionRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	v, err := s.engine.GetVersion(ctx, in.OutputID, in.Number)
	if err != nil {
		return nil, s.toStatus(MethodGetVersion, err)
	}
	return toStruct(v)
}

func (s *Service) ListVersions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in VersionRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	vs, err := s.engine.ListVersions(ctx, in.OutputID)
	if err != nil {
		return nil, s.toStatus(MethodListVersions, err)
	}
	return toStruct(VersionList{Versions: vs})
}

func (s *Service) RenderReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in VersionRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	v, err := s.engine.GetVersion(ctx, in.OutputID, in.Number)
	if err != nil {
		return nil, s.toStatus(MethodRenderReport, err)
	}
	doc, err := s.engine.RenderReport(ctx, v)
	if err != nil {
		return nil, s.toStatus(MethodRenderReport, err)
	}
	return toStruct(doc)
}

func (s *Service) Preview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in EvaluateRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	doc, err := s.engine.Preview(ctx, in.ZoneID, in.StandardID, in.DatapointIDs)
	if err != nil {
		return nil, s.toStatus(MethodPreview, err)
	}
	return toStruct(doc)
}
// #endregion service

// #region codec
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := s.MarshalJSON()
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}
// #endregion codec

// #region errors
var errorCodes = []struct {
	kind error
	code codes.Code
}{
	{evaluation.ErrValidation, codes.InvalidArgument},
	{evaluation.ErrNotFound, codes.NotFound},
	{evaluation.ErrAlreadyExists, codes.AlreadyExists},
	{evaluation.ErrCorrupt, codes.DataLoss},
	{evaluation.ErrTransient, codes.Unavailable},
}

// toStatus maps engine errors onto gRPC codes. The analyst-facing message
// goes to the caller; the full cause stays in the log.
func (s *Service) toStatus(method string, err error) error {
	for _, m := range errorCodes {
		if errors.Is(err, m.kind) {
			if m.code == codes.Unavailable || m.code == codes.DataLoss {
				s.log.Warn("rpc failed", slog.String("method", method), slog.Any("error", err))
			}
			return status.Error(m.code, evaluation.Message(err))
		}
	}
	s.log.Error("rpc failed", slog.String("method", method), slog.Any("error", err))
	return status.Error(codes.Internal, fmt.Sprintf("%s failed", method))
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, m := range errorCodes {
		if st.Code() == m.code {
			return evaluation.NewError("rpc", m.kind, st.Message(), err)
		}
	}
	return err
}
// #endregion errors
