package document

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/domain/entity"
)

func TestExcelStatementWriter_WriteRefundStatement(t *testing.T) {
	dir := t.TempDir()
	writer := NewExcelStatementWriter(dir, zap.NewNop())

	amount := decimal.RequireFromString("120.5")
	rec := &entity.RefundRecord{
		Ref:             entity.EntityRef{Family: entity.FamilyTravel, Subtype: entity.TravelSubtypeSingle, ID: 9},
		UserID:          7,
		UserEmail:       "user@example.com",
		ReviewStatus:    entity.ReviewStatusRejected,
		PaymentStatus:   entity.PaymentStatusPaid,
		RefundStatus:    entity.RefundStatusProcessed,
		RefundAmount:    &amount,
		RefundReference: "TXN-1",
	}

	path, err := writer.WriteRefundStatement(context.Background(), rec)
	require.NoError(t, err)
	assert.Contains(t, path, "refund_statement_travel_single_9_")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	entityCell, err := f.GetCellValue(statementSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "travel/single/9", entityCell)

	amountCell, err := f.GetCellValue(statementSheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "120.50", amountCell)

	statusCell, err := f.GetCellValue(statementSheet, "B6")
	require.NoError(t, err)
	assert.Equal(t, entity.RefundStatusProcessed, statusCell)
}

func TestExcelStatementWriter_EmptyOptionalFields(t *testing.T) {
	dir := t.TempDir()
	writer := NewExcelStatementWriter(dir, zap.NewNop())

	rec := &entity.RefundRecord{
		Ref:           entity.EntityRef{Family: entity.FamilyMotor, ID: 42},
		UserID:        7,
		ReviewStatus:  entity.ReviewStatusRejected,
		PaymentStatus: entity.PaymentStatusPaid,
		RefundStatus:  entity.RefundStatusNotApplicable,
	}

	path, err := writer.WriteRefundStatement(context.Background(), rec)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	amountCell, err := f.GetCellValue(statementSheet, "B7")
	require.NoError(t, err)
	assert.Empty(t, amountCell)
}
