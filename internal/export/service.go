package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/theduckverse/refundhunter-backend/internal/audit"
	"github.com/theduckverse/refundhunter-backend/internal/common"
	"github.com/theduckverse/refundhunter-backend/internal/entity"
)

// ClaimsSheet is the worksheet name of exported workbooks.
const ClaimsSheet = "Claims"

// RunReader loads stored audit runs. Implemented by repository.AuditRunRepository.
type RunReader interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.AuditRun, error)
}

// Service renders claim sets as XLSX workbooks.
type Service struct {
	runs   RunReader
	logger *slog.Logger
}

// NewService accepts a nil reader when only in-memory results are exported.
func NewService(runs RunReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

// RunXLSX exports the claims of a stored run.
func (s *Service) RunXLSX(ctx context.Context, runID uuid.UUID) ([]byte, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("export run %s: no run store configured", runID)
	}
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, common.WrapError(err, "load run")
	}
	res := audit.Result{Claims: run.Claims, TotalEstimatedValue: run.TotalEstimatedValue}
	return s.ClaimsXLSX(res)
}

// ClaimsXLSX returns a workbook with one row per claim followed by a totals row.
func (s *Service) ClaimsXLSX(res audit.Result) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", ClaimsSheet); err != nil {
		return nil, err
	}

	headers := []string{
		"SKU",
		"Claim Reason",
		"Quantity",
		"Estimated Value",
		"Transaction ID",
		"Message",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ClaimsSheet, cell, h)
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(ClaimsSheet, 1, 1, bold)
	}

	row := 2
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(ClaimsSheet, cell, v)
	}
	writeMoney := func(col int, d decimal.Decimal) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellFloat(ClaimsSheet, cell, d.InexactFloat64(), 2, 64)
	}

	for i, c := range res.Claims {
		write(1, c.SKU)
		write(2, c.ClaimReason)
		write(3, c.Quantity)
		writeMoney(4, c.EstimatedValue)
		write(5, c.TransactionID)
		if i < len(res.Messages) {
			write(6, truncate(res.Messages[i].Message, 500))
		}
		row++
	}

	write(1, "Total")
	writeMoney(4, res.TotalEstimatedValue)

	_ = f.SetColWidth(ClaimsSheet, "A", "A", 22) // sku
	_ = f.SetColWidth(ClaimsSheet, "B", "B", 28) // reason
	_ = f.SetColWidth(ClaimsSheet, "C", "D", 14) // quantity, value
	_ = f.SetColWidth(ClaimsSheet, "E", "E", 24) // transaction
	_ = f.SetColWidth(ClaimsSheet, "F", "F", 80) // message

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"claims", len(res.Claims),
		"total", res.TotalEstimatedValue.String(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
