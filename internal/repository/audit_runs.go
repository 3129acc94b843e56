package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/claims"
	"github.com/theduckverse/refundhunter-backend/internal/common"
	"github.com/theduckverse/refundhunter-backend/internal/entity"
)

type AuditRunRepository interface {
	Migrate(ctx context.Context) error
	Start(ctx context.Context, run *entity.AuditRun) error
	Complete(ctx context.Context, run *entity.AuditRun) error
	Get(ctx context.Context, id uuid.UUID) (*entity.AuditRun, error)
	FindLatestByHash(ctx context.Context, hash string) (*entity.AuditRun, error)
	List(ctx context.Context, limit int) ([]*entity.AuditRun, error)
}

const auditRunsDDL = `CREATE TABLE IF NOT EXISTS audit_runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	format TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	status TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	candidate_count INTEGER NOT NULL DEFAULT 0,
	claim_count INTEGER NOT NULL DEFAULT 0,
	total_estimated_value TEXT NOT NULL DEFAULT '0',
	claims_json TEXT NOT NULL DEFAULT '[]',
	used_classifier BOOLEAN NOT NULL DEFAULT FALSE,
	error_message TEXT,
	created_at BIGINT NOT NULL,
	finished_at BIGINT
)`

const auditRunsHashIndex = `CREATE INDEX IF NOT EXISTS audit_runs_content_hash_idx ON audit_runs (content_hash, created_at)`

const auditRunColumns = `id, source, format, content_hash, status, row_count, candidate_count, claim_count,
	total_estimated_value, claims_json, used_classifier, error_message, created_at, finished_at`

type auditRunRepo struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

func NewAuditRunRepository(db *DB, logger *slog.Logger) AuditRunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &auditRunRepo{
		db:      db.SQL,
		dialect: db.Dialect,
		logger:  logger,
	}
}

func (r *auditRunRepo) Migrate(ctx context.Context) error {
	for _, stmt := range []string{auditRunsDDL, auditRunsHashIndex} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			r.logger.Error("failed to migrate audit_runs", "error", err)
			return common.NewAppError(common.CodeStorage, "migrate audit_runs", err)
		}
	}
	return nil
}

func (r *auditRunRepo) Start(ctx context.Context, run *entity.AuditRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = constants.RunStatusRunning
	}
	claimsJSON, err := encodeClaims(run.Claims)
	if err != nil {
		return err
	}

	q := rebind(r.dialect, `INSERT INTO audit_runs (`+auditRunColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, q,
		run.ID.String(), run.Source, run.Format, run.ContentHash, string(run.Status),
		run.RowCount, run.CandidateCount, run.ClaimCount,
		run.TotalEstimatedValue.String(), claimsJSON, run.UsedClassifier,
		nullString(run.ErrorMessage), run.CreatedAt.UnixMilli(), nullMillis(run.FinishedAt),
	)
	if err != nil {
		r.logger.Error("failed to create audit run", "run_id", run.ID, "source", run.Source, "error", err)
		return common.NewAppError(common.CodeStorage, "create audit run", err)
	}
	r.logger.Debug("audit run created", "run_id", run.ID, "status", run.Status)
	return nil
}

func (r *auditRunRepo) Complete(ctx context.Context, run *entity.AuditRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	run.ClaimCount = len(run.Claims)
	claimsJSON, err := encodeClaims(run.Claims)
	if err != nil {
		return err
	}

	q := rebind(r.dialect, `UPDATE audit_runs SET status = ?, row_count = ?, candidate_count = ?, claim_count = ?,
		total_estimated_value = ?, claims_json = ?, used_classifier = ?, error_message = ?, finished_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q,
		string(run.Status), run.RowCount, run.CandidateCount, run.ClaimCount,
		run.TotalEstimatedValue.String(), claimsJSON, run.UsedClassifier,
		nullString(run.ErrorMessage), nullMillis(run.FinishedAt), run.ID.String(),
	)
	if err != nil {
		r.logger.Error("failed to complete audit run", "run_id", run.ID, "error", err)
		return common.NewAppError(common.CodeStorage, "complete audit run", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("audit run %s: %w", run.ID, common.ErrNotFound)
	}
	r.logger.Debug("audit run completed", "run_id", run.ID, "status", run.Status, "claims", run.ClaimCount)
	return nil
}

func (r *auditRunRepo) Get(ctx context.Context, id uuid.UUID) (*entity.AuditRun, error) {
	q := rebind(r.dialect, `SELECT `+auditRunColumns+` FROM audit_runs WHERE id = ?`)
	run, err := scanRun(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get audit run", "run_id", id, "error", err)
		return nil, common.NewAppError(common.CodeStorage, "get audit run", err)
	}
	return run, nil
}

// FindLatestByHash returns the newest successful run for the content hash.
// Failed and in-flight runs are ignored so a retry is never short-circuited.
func (r *auditRunRepo) FindLatestByHash(ctx context.Context, hash string) (*entity.AuditRun, error) {
	q := rebind(r.dialect, `SELECT `+auditRunColumns+` FROM audit_runs
		WHERE content_hash = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`)
	run, err := scanRun(r.db.QueryRowContext(ctx, q, hash, string(constants.RunStatusOK), string(constants.RunStatusEmpty)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit run for hash %s: %w", hash, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to find audit run by hash", "hash", hash, "error", err)
		return nil, common.NewAppError(common.CodeStorage, "find audit run", err)
	}
	return run, nil
}

// List returns runs newest first; limit <= 0 means 50.
func (r *auditRunRepo) List(ctx context.Context, limit int) ([]*entity.AuditRun, error) {
	if limit <= 0 {
		limit = 50
	}
	q := rebind(r.dialect, `SELECT `+auditRunColumns+` FROM audit_runs ORDER BY created_at DESC LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		r.logger.Error("failed to list audit runs", "error", err)
		return nil, common.NewAppError(common.CodeStorage, "list audit runs", err)
	}
	defer rows.Close()

	var out []*entity.AuditRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, common.NewAppError(common.CodeStorage, "scan audit run", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeStorage, "list audit runs", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*entity.AuditRun, error) {
	var (
		run        entity.AuditRun
		id, status string
		total      string
		claimsJSON string
		errMsg     sql.NullString
		created    int64
		finished   sql.NullInt64
	)
	err := s.Scan(&id, &run.Source, &run.Format, &run.ContentHash, &status,
		&run.RowCount, &run.CandidateCount, &run.ClaimCount,
		&total, &claimsJSON, &run.UsedClassifier, &errMsg, &created, &finished)
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	if run.TotalEstimatedValue, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if err := json.Unmarshal([]byte(claimsJSON), &run.Claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	run.Status = constants.RunStatus(status)
	run.CreatedAt = time.UnixMilli(created).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		run.FinishedAt = &t
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	return &run, nil
}

func encodeClaims(cs []claims.Claim) (string, error) {
	if cs == nil {
		cs = []claims.Claim{}
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return "", common.NewAppError(common.CodeStorage, "encode claims", err)
	}
	return string(b), nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
