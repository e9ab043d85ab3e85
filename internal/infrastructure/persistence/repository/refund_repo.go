package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/infrastructure/persistence/postgres"
)

// refundColumns is the shared refund block every registry table carries
const refundColumns = `id, user_id, user_email, review_status, payment_status,
		refund_status, refund_amount, refund_reference, refund_remarks,
		refund_evidence_path, refund_initiated_at, refund_processed_at,
		closed_at, last_action_by_admin, last_action_at, updated_at`

// RefundRepository implements port.RefundRepository over the table registry
type RefundRepository struct {
	db     *postgres.DB
	logger *zap.Logger
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(db *postgres.DB, logger *zap.Logger) port.RefundRepository {
	return &RefundRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the refund block of one entity without locking it
func (r *RefundRepository) Get(ctx context.Context, ref entity.EntityRef) (*entity.RefundRecord, error) {
	return r.get(ctx, ref, false)
}

// GetForUpdate retrieves the refund block under an exclusive row lock.
// Must run inside a transaction; the lock is held until commit or rollback.
func (r *RefundRepository) GetForUpdate(ctx context.Context, ref entity.EntityRef) (*entity.RefundRecord, error) {
	return r.get(ctx, ref, true)
}

func (r *RefundRepository) get(ctx context.Context, ref entity.EntityRef, forUpdate bool) (*entity.RefundRecord, error) {
	table, err := tableFor(ref)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", refundColumns, table)
	if forUpdate {
		query += " FOR UPDATE"
	}

	row := r.db.Executor(ctx).QueryRowContext(ctx, query, ref.ID)
	rec, err := scanRefundRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get refund record", zap.Error(err), zap.String("ref", ref.String()))
		return nil, fmt.Errorf("failed to get refund record: %w", err)
	}

	rec.Ref = ref
	return rec, nil
}

// ApplyUpdate writes the full refund block built by the service.
// Runs in the same transaction that locked the row.
func (r *RefundRepository) ApplyUpdate(ctx context.Context, ref entity.EntityRef, upd port.RefundUpdate) error {
	table, err := tableFor(ref)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			refund_status = $1,
			refund_amount = $2,
			refund_reference = $3,
			refund_remarks = $4,
			refund_evidence_path = $5,
			refund_initiated_at = $6,
			refund_processed_at = $7,
			closed_at = $8,
			last_action_by_admin = $9,
			last_action_at = $10,
			updated_at = $10
		WHERE id = $11`, table)

	amount := decimal.NullDecimal{}
	if upd.RefundAmount != nil {
		amount = decimal.NullDecimal{Decimal: *upd.RefundAmount, Valid: true}
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		upd.RefundStatus,
		amount,
		upd.RefundReference,
		upd.RefundRemarks,
		upd.EvidencePath,
		upd.RefundInitiatedAt,
		upd.RefundProcessedAt,
		upd.ClosedAt,
		upd.LastActionByAdmin,
		upd.LastActionAt,
		ref.ID,
	)
	if err != nil {
		r.logger.Error("Failed to apply refund update", zap.Error(err), zap.String("ref", ref.String()))
		return fmt.Errorf("failed to apply refund update: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entity %s not found", ref)
	}
	return nil
}

// ListRefundable pages through refund-relevant entities across the registry.
// Refund-relevant means a refund is already underway, or the entity is
// eligible to start one; the optional filters narrow by family and current
// refund status.
func (r *RefundRepository) ListRefundable(ctx context.Context, filter port.RefundListFilter) ([]*entity.RefundRecord, int, error) {
	tables := tablesForFamily(filter.Family)
	if len(tables) == 0 {
		return nil, 0, fmt.Errorf("unknown entity family %q", filter.Family)
	}

	where := "(refund_status <> $1 OR (review_status = $2 AND payment_status = $3))"
	args := []interface{}{entity.RefundStatusNotApplicable, entity.ReviewStatusRejected, entity.PaymentStatusPaid}
	if filter.RefundStatus != "" {
		where += " AND refund_status = $4"
		args = append(args, filter.RefundStatus)
	}

	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		parts = append(parts, fmt.Sprintf(
			"SELECT '%s' AS family, '%s' AS subtype, %s FROM %s WHERE %s",
			t.family, t.subtype, refundColumns, t.name, where))
	}
	union := strings.Join(parts, " UNION ALL ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM (%s) refundable", union)
	if err := r.db.Executor(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count refundable entities", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count refundable entities: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	listQuery := fmt.Sprintf(
		"SELECT * FROM (%s) refundable ORDER BY updated_at DESC, family, subtype, id LIMIT $%d OFFSET $%d",
		union, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, listQuery, args...)
	if err != nil {
		r.logger.Error("Failed to list refundable entities", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list refundable entities: %w", err)
	}
	defer rows.Close()

	var records []*entity.RefundRecord
	for rows.Next() {
		rec, err := scanRefundableRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan refundable row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate refundable rows: %w", err)
	}

	return records, total, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// refundRow is scan scratch space for the refund column block
type refundRow struct {
	rec          entity.RefundRecord
	userEmail    sql.NullString
	amount       decimal.NullDecimal
	reference    sql.NullString
	remarks      sql.NullString
	evidencePath sql.NullString
	initiatedAt  sql.NullTime
	processedAt  sql.NullTime
	closedAt     sql.NullTime
	actionBy     sql.NullString
	actionAt     sql.NullTime
}

// dest returns scan targets in refundColumns order
func (r *refundRow) dest() []interface{} {
	return []interface{}{
		&r.rec.Ref.ID,
		&r.rec.UserID,
		&r.userEmail,
		&r.rec.ReviewStatus,
		&r.rec.PaymentStatus,
		&r.rec.RefundStatus,
		&r.amount,
		&r.reference,
		&r.remarks,
		&r.evidencePath,
		&r.initiatedAt,
		&r.processedAt,
		&r.closedAt,
		&r.actionBy,
		&r.actionAt,
		&r.rec.UpdatedAt,
	}
}

// record folds the nullable columns into the entity
func (r *refundRow) record() *entity.RefundRecord {
	rec := r.rec
	rec.UserEmail = r.userEmail.String
	if r.amount.Valid {
		rec.RefundAmount = &r.amount.Decimal
	}
	rec.RefundReference = r.reference.String
	rec.RefundRemarks = r.remarks.String
	rec.RefundEvidencePath = r.evidencePath.String
	if r.initiatedAt.Valid {
		rec.RefundInitiatedAt = &r.initiatedAt.Time
	}
	if r.processedAt.Valid {
		rec.RefundProcessedAt = &r.processedAt.Time
	}
	if r.closedAt.Valid {
		rec.ClosedAt = &r.closedAt.Time
	}
	rec.LastActionByAdmin = r.actionBy.String
	if r.actionAt.Valid {
		rec.LastActionAt = &r.actionAt.Time
	}
	return &rec
}

// scanRefundRecord scans the refund column block; the caller fills Ref
func scanRefundRecord(row rowScanner) (*entity.RefundRecord, error) {
	var r refundRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.record(), nil
}

// scanRefundableRow scans a union row: family and subtype discriminators
// followed by the refund column block
func scanRefundableRow(rows *sql.Rows) (*entity.RefundRecord, error) {
	var family, subtype string
	var r refundRow
	dest := append([]interface{}{&family, &subtype}, r.dest()...)
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	rec := r.record()
	rec.Ref.Family = entity.Family(family)
	rec.Ref.Subtype = subtype
	return rec, nil
}

// Verify interface compliance
var _ port.RefundRepository = (*RefundRepository)(nil)
