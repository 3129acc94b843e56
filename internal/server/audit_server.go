package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/theduckverse/refundhunter-backend/internal/audit"
	"github.com/theduckverse/refundhunter-backend/internal/common"
	"github.com/theduckverse/refundhunter-backend/internal/entity"
	"github.com/theduckverse/refundhunter-backend/internal/export"
	"github.com/theduckverse/refundhunter-backend/internal/pipeline"
)

// DefaultMaxTextChars bounds the inline text accepted by Audit.
const DefaultMaxTextChars = 2 << 20

// RunLister lists stored audit runs. Implemented by repository.AuditRunRepository.
type RunLister interface {
	List(ctx context.Context, limit int) ([]*entity.AuditRun, error)
}

type AuditServer struct {
	auditor      *pipeline.Auditor
	runs         RunLister
	exporter     *export.Service
	maxTextChars int
	logger       *slog.Logger
}

var _ AuditServiceServer = (*AuditServer)(nil)

// NewAuditServer wires the RPC surface. runs and exporter may be nil when no
// run store is configured; the dependent methods then report FailedPrecondition.
func NewAuditServer(auditor *pipeline.Auditor, runs RunLister, exporter *export.Service, logger *slog.Logger) *AuditServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditServer{
		auditor:      auditor,
		runs:         runs,
		exporter:     exporter,
		maxTextChars: DefaultMaxTextChars,
		logger:       logger,
	}
}

func (s *AuditServer) Audit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	text := fields["text"].GetStringValue()
	source := strings.TrimSpace(fields["source"].GetStringValue())
	if source == "" {
		source = "rpc"
	}

	// blank text is a valid audit with no rows; only oversized input is rejected
	v := common.NewValidator().
		Field("text", text, common.MaxLength(s.maxTextChars)).
		Field("source", source, common.MaxLength(255))
	if v.HasErrors() {
		s.logger.Warn("audit request rejected", "req_id", common.RequestIDFromContext(ctx), "reason", v.ErrorMessage())
		return nil, common.InvalidArgumentError(v.ErrorMessage())
	}

	rep, err := s.auditor.AuditText(ctx, source, text)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(rep)
}

func (s *AuditServer) ValidateCandidates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list := req.GetFields()["candidates"].GetListValue()
	if list == nil {
		return nil, common.InvalidArgumentError("candidates must be a list")
	}
	b, err := protojson.Marshal(list)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("candidates: %v", err)
	}
	res := s.auditor.ValidateCandidates(b)
	s.logger.Debug("validate candidates", "req_id", common.RequestIDFromContext(ctx),
		"in", len(list.GetValues()), "out", len(res.Claims))
	return toStruct(res)
}

func (s *AuditServer) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.FailedPrecondition, "run store not configured")
	}
	limit := int(req.GetFields()["limit"].GetNumberValue())
	if err := common.NewValidator().Field("limit", limit, common.NonNegative).Error(); err != nil {
		return nil, common.ToStatus(err)
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		s.logger.Error("list runs failed", "req_id", common.RequestIDFromContext(ctx), "error", err)
		return nil, common.ToStatus(err)
	}

	out := make([]any, 0, len(runs))
	for _, r := range runs {
		out = append(out, runRecord(r))
	}
	st, err := structpb.NewStruct(map[string]any{"runs": out})
	if err != nil {
		return nil, common.InternalErrorf("encode runs: %v", err)
	}
	return st, nil
}

func (s *AuditServer) ExportClaims(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s.exporter == nil {
		return nil, status.Error(codes.FailedPrecondition, "run store not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(req.GetValue()))
	if err != nil {
		return nil, common.InvalidArgumentError("run id must be a UUID")
	}
	b, err := s.exporter.RunXLSX(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NotFoundError("run " + id.String() + " not found")
	}
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}

// toStruct renders a JSON-marshalable value as a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	st := new(structpb.Struct)
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return st, nil
}

func runRecord(r *entity.AuditRun) map[string]any {
	rec := map[string]any{
		"id":                  r.ID.String(),
		"source":              r.Source,
		"format":              r.Format,
		"contentHash":         r.ContentHash,
		"status":              string(r.Status),
		"rowCount":            r.RowCount,
		"candidateCount":      r.CandidateCount,
		"claimCount":          r.ClaimCount,
		"totalEstimatedValue": string(audit.FormatMoney(r.TotalEstimatedValue)),
		"usedClassifier":      r.UsedClassifier,
		"createdAt":           r.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.FinishedAt != nil {
		rec["finishedAt"] = r.FinishedAt.Format(time.RFC3339Nano)
	}
	if r.ErrorMessage != nil {
		rec["error"] = *r.ErrorMessage
	}
	return rec
}
