// Package rpc exposes a content.Generator over gRPC and provides a client
// that satisfies content.Generator. Messages travel as JSON through a
// registered codec, so no generated stubs are needed.
package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"debatecoach/agent/internal/content"
	"debatecoach/agent/internal/types"
)

const ServiceName = "debatecoach.content.v1.Content"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() { encoding.RegisterCodec(jsonCodec{}) }

type StructureNotesRequest struct {
	Motion string     `json:"motion"`
	Role   types.Role `json:"role"`
	Notes  string     `json:"notes"`
}

type GradeRoundRequest struct {
	Speeches   []types.Speech   `json:"speeches"`
	Motion     string           `json:"motion"`
	SkillLevel types.SkillLevel `json:"skill_level"`
}

type TextReply struct {
	Text string `json:"text"`
}

type ReportReply struct {
	Report types.Report `json:"report"`
}

// ContentServer is the service handler set.
type ContentServer interface {
	StructureNotes(context.Context, *StructureNotesRequest) (*TextReply, error)
	GeneratePOI(context.Context, *content.POIRequest) (*TextReply, error)
	GradeRound(context.Context, *GradeRoundRequest) (*ReportReply, error)
	GenerateSpeech(context.Context, *content.SpeechRequest) (*TextReply, error)
}

func unary[Req, Resp any](name string, call func(ContentServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ContentServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ContentServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("StructureNotes", ContentServer.StructureNotes),
		unary("GeneratePOI", ContentServer.GeneratePOI),
		unary("GradeRound", ContentServer.GradeRound),
		unary("GenerateSpeech", ContentServer.GenerateSpeech),
	},
	Metadata: "content.json",
}

// Register installs srv on s.
func Register(s *grpc.Server, srv ContentServer) { s.RegisterService(&serviceDesc, srv) }

// NewGRPCServer builds a traced gRPC server serving gen plus the standard
// health service, already marked SERVING for ServiceName.
func NewGRPCServer(gen content.Generator, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	Register(s, NewServer(gen))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, hs
}

// Server adapts a content.Generator to ContentServer.
type Server struct {
	gen content.Generator
}

func NewServer(gen content.Generator) *Server { return &Server{gen: gen} }

func (s *Server) StructureNotes(ctx context.Context, in *StructureNotesRequest) (*TextReply, error) {
	out, err := s.gen.StructureNotes(ctx, in.Motion, in.Role, in.Notes)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TextReply{Text: out}, nil
}

func (s *Server) GeneratePOI(ctx context.Context, in *content.POIRequest) (*TextReply, error) {
	out, err := s.gen.GeneratePOI(ctx, *in)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TextReply{Text: out}, nil
}

func (s *Server) GradeRound(ctx context.Context, in *GradeRoundRequest) (*ReportReply, error) {
	if len(in.Speeches) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no speeches")
	}
	rep, err := s.gen.GradeRound(ctx, in.Speeches, in.Motion, in.SkillLevel)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ReportReply{Report: rep}, nil
}

func (s *Server) GenerateSpeech(ctx context.Context, in *content.SpeechRequest) (*TextReply, error) {
	out, err := s.gen.GenerateSpeech(ctx, *in)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TextReply{Text: out}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, content.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
