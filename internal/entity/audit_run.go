package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/claims"
)

// AuditRun represents one audit of one input for data transfer between layers.
type AuditRun struct {
	ID                  uuid.UUID           `json:"id"`
	Source              string              `json:"source"`
	Format              string              `json:"format"`
	ContentHash         string              `json:"content_hash"`
	Status              constants.RunStatus `json:"status"`
	RowCount            int                 `json:"row_count"`
	CandidateCount      int                 `json:"candidate_count"`
	ClaimCount          int                 `json:"claim_count"`
	TotalEstimatedValue decimal.Decimal     `json:"total_estimated_value"`
	Claims              []claims.Claim      `json:"claims"`
	UsedClassifier      bool                `json:"used_classifier"`
	ErrorMessage        *string             `json:"error_message,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	FinishedAt          *time.Time          `json:"finished_at,omitempty"`
}

// Terminal reports whether the run reached a final status.
func (r *AuditRun) Terminal() bool {
	return r.Status == constants.RunStatusOK ||
		r.Status == constants.RunStatusEmpty ||
		r.Status == constants.RunStatusFailed
}
