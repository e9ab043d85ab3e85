package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
)

const statementSheet = "Refund Statement"

// ExcelStatementWriter renders refund statements as Excel workbooks
type ExcelStatementWriter struct {
	outputDir string
	logger    *zap.Logger
}

// NewExcelStatementWriter creates a new statement writer
func NewExcelStatementWriter(outputDir string, logger *zap.Logger) *ExcelStatementWriter {
	return &ExcelStatementWriter{
		outputDir: outputDir,
		logger:    logger,
	}
}

// WriteRefundStatement writes the workbook and returns its path
func (w *ExcelStatementWriter) WriteRefundStatement(ctx context.Context, rec *entity.RefundRecord) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", statementSheet); err != nil {
		return "", fmt.Errorf("failed to name statement sheet: %w", err)
	}

	rows := [][2]string{
		{"Entity", rec.Ref.String()},
		{"Policy holder", fmt.Sprintf("user %d", rec.UserID)},
		{"Holder email", rec.UserEmail},
		{"Review status", rec.ReviewStatus},
		{"Payment status", rec.PaymentStatus},
		{"Refund status", rec.RefundStatus},
		{"Refund amount", amountString(rec)},
		{"Refund reference", rec.RefundReference},
		{"Remarks", rec.RefundRemarks},
		{"Refund initiated at", timeString(rec.RefundInitiatedAt)},
		{"Refund processed at", timeString(rec.RefundProcessedAt)},
		{"Closed at", timeString(rec.ClosedAt)},
		{"Last action by", rec.LastActionByAdmin},
		{"Generated at", time.Now().Format("2006-01-02 15:04:05")},
	}
	for i, row := range rows {
		w.setCell(f, fmt.Sprintf("A%d", i+1), row[0])
		w.setCell(f, fmt.Sprintf("B%d", i+1), row[1])
	}

	if err := f.SetColWidth(statementSheet, "A", "A", 24); err != nil {
		w.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(statementSheet, "B", "B", 40); err != nil {
		w.logger.Warn("Failed to set column width", zap.Error(err))
	}

	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create statement directory: %w", err)
	}

	name := strings.ReplaceAll(rec.Ref.String(), "/", "_")
	path := filepath.Join(w.outputDir,
		fmt.Sprintf("refund_statement_%s_%s.xlsx", name, time.Now().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save statement workbook: %w", err)
	}

	w.logger.Info("Refund statement written", zap.String("path", path))
	return path, nil
}

func (w *ExcelStatementWriter) setCell(f *excelize.File, cell, value string) {
	if err := f.SetCellValue(statementSheet, cell, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func amountString(rec *entity.RefundRecord) string {
	if rec.RefundAmount == nil {
		return ""
	}
	return rec.RefundAmount.StringFixed(2)
}

func timeString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// Verify interface compliance
var _ port.StatementWriter = (*ExcelStatementWriter)(nil)
