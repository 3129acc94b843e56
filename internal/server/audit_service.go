package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AuditServiceName is the fully qualified gRPC service name.
const AuditServiceName = "refundhunter.v1.AuditService"

const (
	methodAudit              = "/" + AuditServiceName + "/Audit"
	methodValidateCandidates = "/" + AuditServiceName + "/ValidateCandidates"
	methodListRuns           = "/" + AuditServiceName + "/ListRuns"
	methodExportClaims       = "/" + AuditServiceName + "/ExportClaims"
)

// AuditServiceServer is the server API for the audit service. Messages are
// well-known types so no generated stubs are needed:
//
//	Audit              {text, source}           -> report
//	ValidateCandidates {candidates: [...]}      -> {claims, totalEstimatedValue, messages}
//	ListRuns           {limit}                  -> {runs: [...]}
//	ExportClaims       run id                   -> xlsx bytes
type AuditServiceServer interface {
	Audit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateCandidates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportClaims(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

// RegisterAuditServiceServer registers srv on s.
func RegisterAuditServiceServer(s grpc.ServiceRegistrar, srv AuditServiceServer) {
	s.RegisterService(&AuditServiceDesc, srv)
}

var AuditServiceDesc = grpc.ServiceDesc{
	ServiceName: AuditServiceName,
	HandlerType: (*AuditServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Audit", Handler: auditHandler},
		{MethodName: "ValidateCandidates", Handler: validateCandidatesHandler},
		{MethodName: "ListRuns", Handler: listRunsHandler},
		{MethodName: "ExportClaims", Handler: exportClaimsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "refundhunter/v1/audit.proto",
}

func auditHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuditServiceServer).Audit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAudit}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuditServiceServer).Audit(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func validateCandidatesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuditServiceServer).ValidateCandidates(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodValidateCandidates}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuditServiceServer).ValidateCandidates(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listRunsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuditServiceServer).ListRuns(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListRuns}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuditServiceServer).ListRuns(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func exportClaimsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuditServiceServer).ExportClaims(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodExportClaims}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuditServiceServer).ExportClaims(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// AuditServiceClient is the client API for the audit service.
type AuditServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuditServiceClient(cc grpc.ClientConnInterface) *AuditServiceClient {
	return &AuditServiceClient{cc: cc}
}

func (c *AuditServiceClient) Audit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodAudit, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuditServiceClient) ValidateCandidates(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodValidateCandidates, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuditServiceClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListRuns, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuditServiceClient) ExportClaims(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodExportClaims, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
