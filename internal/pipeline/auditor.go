// Package pipeline runs one audit end to end: normalize, classify, validate and
// aggregate, optionally enriched by an external classifier and recorded in the
// run store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/audit"
	"github.com/theduckverse/refundhunter-backend/internal/claims"
	"github.com/theduckverse/refundhunter-backend/internal/common"
	"github.com/theduckverse/refundhunter-backend/internal/eligibility"
	"github.com/theduckverse/refundhunter-backend/internal/entity"
	"github.com/theduckverse/refundhunter-backend/internal/ingest"
	"github.com/theduckverse/refundhunter-backend/internal/llm"
	"github.com/theduckverse/refundhunter-backend/internal/rules"
)

// RunStore records audit runs. Implemented by repository.AuditRunRepository.
type RunStore interface {
	Start(ctx context.Context, run *entity.AuditRun) error
	Complete(ctx context.Context, run *entity.AuditRun) error
	FindLatestByHash(ctx context.Context, hash string) (*entity.AuditRun, error)
}

// Report is the outcome of one audit.
type Report struct {
	RunID       uuid.UUID           `json:"runId"`
	Source      string              `json:"source"`
	Format      string              `json:"format"`
	ContentHash string              `json:"contentHash"`
	Status      constants.RunStatus `json:"status"`
	Rows        int                 `json:"rows"`
	Candidates  int                 `json:"candidates"`
	Reused      bool                `json:"reused"`
	Result      audit.Result        `json:"result"`
}

// Auditor is immutable after construction and safe for concurrent use.
type Auditor struct {
	policy     Policy
	rules      *rules.Rules
	normalizer *ingest.RowNormalizer
	classifier *eligibility.Classifier
	validator  *claims.Validator
	aggregator *audit.Aggregator
	external   llm.ClaimClassifier
	store      RunStore
	logger     *slog.Logger
}

type Option func(*Auditor)

// WithClassifier routes candidate generation through an external classifier.
func WithClassifier(c llm.ClaimClassifier) Option {
	return func(a *Auditor) { a.external = c }
}

// WithStore records every run and enables dedupe by content hash.
func WithStore(s RunStore) Option {
	return func(a *Auditor) { a.store = s }
}

// WithRules replaces the built-in alias table and keyword set.
func WithRules(r *rules.Rules) Option {
	return func(a *Auditor) {
		if r != nil {
			a.rules = r
		}
	}
}

func NewAuditor(policy Policy, logger *slog.Logger, opts ...Option) (*Auditor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultPolicy()
	if !policy.UnitValue.IsPositive() {
		policy.UnitValue = def.UnitValue
	}
	if policy.ClassifierBatchSize <= 0 {
		policy.ClassifierBatchSize = def.ClassifierBatchSize
	}

	a := &Auditor{policy: policy, rules: rules.Default(), logger: logger}
	for _, o := range opts {
		o(a)
	}

	agg, err := audit.NewAggregator(policy.MessageTemplate, logger)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "parse message template", err)
	}
	a.aggregator = agg
	a.normalizer = ingest.NewRowNormalizer(ingest.NewHeaderResolver(a.rules.Aliases), policy.MaxRows, logger)
	a.classifier = eligibility.NewClassifier(eligibility.Policy{
		UnitValue:        policy.UnitValue,
		AssumeSingleUnit: policy.AssumeSingleUnit,
		Keywords:         a.rules.Keywords,
	}, logger)
	a.validator = claims.NewValidator(claims.Options{
		MaxClaims:        policy.MaxClaims,
		AssumeSingleUnit: policy.AssumeSingleUnit,
	}, logger)
	a.policy.MaxRows = a.normalizer.MaxRows()
	a.policy.MaxClaims = a.validator.MaxClaims()
	return a, nil
}

// Policy returns the effective policy after defaults were applied.
func (a *Auditor) Policy() Policy { return a.policy }

// AuditText audits raw delimited text. Text audits are always recorded as new runs.
func (a *Auditor) AuditText(ctx context.Context, source, text string) (*Report, error) {
	src, err := ingest.FromBytes(source, constants.TEXT, []byte(text))
	if err != nil {
		return nil, err
	}
	return a.AuditSource(ctx, src, true)
}

// AuditFile loads and audits one file. Unless force is set, a file whose content
// already produced a successful run returns that run instead of re-auditing.
func (a *Auditor) AuditFile(ctx context.Context, path string, force bool) (*Report, error) {
	src, err := ingest.ReadFile(path)
	if err != nil {
		a.logger.Error("audit.file.read_failed", "path", path, "err", err)
		return nil, err
	}
	return a.AuditSource(ctx, src, force)
}

// ProcessFile adapts AuditFile to the background queue.
func (a *Auditor) ProcessFile(ctx context.Context, path string, force bool) error {
	_, err := a.AuditFile(ctx, path, force)
	return err
}

// AuditSource audits an already-parsed source.
func (a *Auditor) AuditSource(ctx context.Context, src *ingest.Source, force bool) (*Report, error) {
	start := time.Now()
	if !force && a.store != nil {
		rep, err := a.reuse(ctx, src)
		if err != nil || rep != nil {
			return rep, err
		}
	}

	run := &entity.AuditRun{
		ID:             uuid.New(),
		Source:         filepath.Base(src.Path),
		Format:         src.Format,
		ContentHash:    src.HashHex,
		Status:         constants.RunStatusRunning,
		UsedClassifier: a.external != nil,
		CreatedAt:      time.Now().UTC(),
	}
	ctx = common.WithRunID(ctx, run.ID.String())
	if a.store != nil {
		if err := a.store.Start(ctx, run); err != nil {
			return nil, err
		}
	}
	a.logger.Info("audit.run.start", "run_id", run.ID, "source", run.Source, "format", run.Format)

	rows := a.normalizer.NormalizeRecords(src.Table.Header, src.Table.Records)
	heuristic := a.classifier.Classify(rows)
	run.RowCount = len(rows)

	candidates, err := a.candidates(ctx, run.Source, rows, heuristic)
	if err != nil {
		a.fail(ctx, run, err)
		return nil, err
	}
	run.CandidateCount = len(candidates)

	res := a.aggregator.Aggregate(a.validator.Validate(candidates))
	run.Claims = res.Claims
	run.ClaimCount = len(res.Claims)
	run.TotalEstimatedValue = res.TotalEstimatedValue
	run.Status = constants.RunStatusEmpty
	if len(res.Claims) > 0 {
		run.Status = constants.RunStatusOK
	}
	if a.store != nil {
		if err := a.store.Complete(ctx, run); err != nil {
			return nil, err
		}
	}

	a.logger.Info("audit.run.ok",
		"run_id", run.ID,
		"status", run.Status,
		"rows", run.RowCount,
		"candidates", run.CandidateCount,
		"claims", run.ClaimCount,
		"total", res.TotalEstimatedValue.String(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Report{
		RunID:       run.ID,
		Source:      run.Source,
		Format:      run.Format,
		ContentHash: run.ContentHash,
		Status:      run.Status,
		Rows:        run.RowCount,
		Candidates:  run.CandidateCount,
		Result:      res,
	}, nil
}

// ValidateCandidates runs untrusted candidate records through the validator and
// aggregator only.
func (a *Auditor) ValidateCandidates(input any) audit.Result {
	return a.aggregator.Aggregate(a.validator.Validate(input))
}

func (a *Auditor) reuse(ctx context.Context, src *ingest.Source) (*Report, error) {
	prev, err := a.store.FindLatestByHash(ctx, src.HashHex)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.logger.Info("audit.run.reused", "run_id", prev.ID, "source", src.Path, "hash", src.HashHex)
	return &Report{
		RunID:       prev.ID,
		Source:      prev.Source,
		Format:      prev.Format,
		ContentHash: prev.ContentHash,
		Status:      prev.Status,
		Rows:        prev.RowCount,
		Candidates:  prev.CandidateCount,
		Reused:      true,
		Result:      a.aggregator.Aggregate(prev.Claims),
	}, nil
}

// candidates returns the records handed to the validator: the heuristic output,
// or the external classifier's output when one is configured.
func (a *Auditor) candidates(ctx context.Context, source string, rows []ingest.CanonicalRow, heuristic []eligibility.Candidate) ([]any, error) {
	if a.external == nil {
		out := make([]any, len(heuristic))
		for i, c := range heuristic {
			out[i] = c.Record()
		}
		return out, nil
	}
	if len(rows) == 0 {
		return nil, nil
	}

	estimated := make(map[int]string, len(heuristic))
	for _, c := range heuristic {
		estimated[c.Row] = c.EstimatedValue.String()
	}
	records := make([]map[string]any, len(rows))
	for i, r := range rows {
		rec := r.Record()
		if v, ok := estimated[r.Index]; ok {
			rec["estimatedValue"] = v
		}
		records[i] = rec
	}

	var out []any
	size := a.policy.ClassifierBatchSize
	for lo := 0; lo < len(records); lo += size {
		hi := min(lo+size, len(records))
		req := llm.ClassifyRequest{
			Rows:      records[lo:hi],
			UnitValue: a.policy.UnitValue.StringFixed(2),
			MaxClaims: a.policy.MaxClaims,
			Source:    source,
		}
		payload, _, err := a.external.Classify(ctx, req)
		if err != nil {
			return nil, common.UpstreamError(fmt.Sprintf("classify rows %d-%d", lo+1, hi), err)
		}
		switch items := payload.(type) {
		case nil:
		case []any:
			out = append(out, items...)
		default:
			return nil, common.UpstreamError(fmt.Sprintf("classify rows %d-%d: unexpected payload %T", lo+1, hi, payload), nil)
		}
	}
	return out, nil
}

func (a *Auditor) fail(ctx context.Context, run *entity.AuditRun, cause error) {
	a.logger.Error("audit.run.failed", "run_id", run.ID, "source", run.Source, "err", cause)
	if a.store == nil {
		return
	}
	msg := cause.Error()
	run.Status = constants.RunStatusFailed
	run.ErrorMessage = &msg
	if err := a.store.Complete(ctx, run); err != nil {
		a.logger.Error("audit.run.persist_failed", "run_id", run.ID, "err", err)
	}
}
