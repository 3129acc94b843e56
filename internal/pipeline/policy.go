package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/audit"
	"github.com/theduckverse/refundhunter-backend/internal/common"
)

// Policy is threaded explicitly through every stage of one Auditor.
type Policy struct {
	UnitValue        decimal.Decimal
	MaxRows          int
	MaxClaims        int
	AssumeSingleUnit bool
	// MessageTemplate drafts one message per claim; empty disables messages.
	MessageTemplate string
	// ClassifierBatchSize bounds the rows sent per external classifier call.
	ClassifierBatchSize int
}

// DefaultPolicy mirrors the built-in audit configuration.
func DefaultPolicy() Policy {
	return Policy{
		UnitValue:           decimal.RequireFromString(constants.DefaultUnitValue),
		MaxRows:             constants.DefaultMaxRows,
		MaxClaims:           constants.DefaultMaxClaims,
		MessageTemplate:     audit.DefaultMessageTemplate,
		ClassifierBatchSize: 200,
	}
}

// PolicyFromConfig converts the env-driven audit section into a Policy.
func PolicyFromConfig(cfg common.AuditConfig) (Policy, error) {
	p := DefaultPolicy()
	if cfg.UnitValue != "" {
		v, err := decimal.NewFromString(cfg.UnitValue)
		if err != nil || !v.IsPositive() {
			return Policy{}, common.NewAppError(common.CodeConfig,
				fmt.Sprintf("AUDIT_UNIT_VALUE must be a positive number, got %q", cfg.UnitValue), common.ErrInvalidInput)
		}
		p.UnitValue = v
	}
	if cfg.MaxRows > 0 {
		p.MaxRows = cfg.MaxRows
	}
	if cfg.MaxClaims > 0 {
		p.MaxClaims = cfg.MaxClaims
	}
	if cfg.ClassifierBatchSize > 0 {
		p.ClassifierBatchSize = cfg.ClassifierBatchSize
	}
	p.AssumeSingleUnit = cfg.AssumeSingleUnit
	if !cfg.IncludeMessages {
		p.MessageTemplate = ""
	}
	return p, nil
}
