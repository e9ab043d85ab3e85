package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/infrastructure/persistence/postgres"
)

const claimColumns = `id, user_id, proposal_id, claim_status, fnol_no,
		incident_date, incident_description, proposal_snapshot, required_docs,
		remarks, closed_at, last_action_by_admin, last_action_at,
		created_at, updated_at`

// ClaimRepository implements port.ClaimRepository over motor_claims
type ClaimRepository struct {
	db     *postgres.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *postgres.DB, logger *zap.Logger) port.ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the claim row and sets ID and timestamps from the store.
// The FNOL number is stamped separately, in the same transaction, once the
// generated id is known.
func (r *ClaimRepository) Create(ctx context.Context, claim *entity.Claim) error {
	snapshot, err := json.Marshal(claim.ProposalSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal snapshot: %w", err)
	}
	requiredDocs := claim.RequiredDocs
	if requiredDocs == nil {
		requiredDocs = []string{}
	}
	docs, err := json.Marshal(requiredDocs)
	if err != nil {
		return fmt.Errorf("failed to marshal required docs: %w", err)
	}

	query := `
		INSERT INTO motor_claims (
			user_id, proposal_id, claim_status, fnol_no, incident_date,
			incident_description, proposal_snapshot, required_docs, remarks
		) VALUES ($1, $2, $3, '', $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err = r.db.Executor(ctx).QueryRowContext(ctx, query,
		claim.UserID,
		claim.ProposalID,
		claim.ClaimStatus,
		claim.IncidentDate,
		claim.IncidentDescription,
		snapshot,
		docs,
		claim.Remarks,
	).Scan(&claim.ID, &claim.CreatedAt, &claim.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.Error(err), zap.Int64("proposal_id", claim.ProposalID))
		return fmt.Errorf("failed to create claim: %w", err)
	}

	return nil
}

// StampFnol persists the derived FNOL number. The guard on the current value
// keeps the number write-once.
func (r *ClaimRepository) StampFnol(ctx context.Context, id int64, fnolNo string) error {
	query := `UPDATE motor_claims SET fnol_no = $1 WHERE id = $2 AND fnol_no = ''`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, fnolNo, id)
	if err != nil {
		r.logger.Error("Failed to stamp FNOL number", zap.Error(err), zap.Int64("claim_id", id))
		return fmt.Errorf("failed to stamp fnol number: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("claim %d not found or fnol already stamped", id)
	}
	return nil
}

// GetByID retrieves a claim by ID
func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*entity.Claim, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate retrieves a claim under an exclusive row lock; must run
// inside a transaction
func (r *ClaimRepository) GetForUpdate(ctx context.Context, id int64) (*entity.Claim, error) {
	return r.get(ctx, id, true)
}

func (r *ClaimRepository) get(ctx context.Context, id int64, forUpdate bool) (*entity.Claim, error) {
	query := fmt.Sprintf("SELECT %s FROM motor_claims WHERE id = $1", claimColumns)
	if forUpdate {
		query += " FOR UPDATE"
	}

	row := r.db.Executor(ctx).QueryRowContext(ctx, query, id)
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get claim", zap.Error(err), zap.Int64("claim_id", id))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// FindInFlightByProposal returns the claim blocking a new submission on the
// proposal, or nil when none exists
func (r *ClaimRepository) FindInFlightByProposal(ctx context.Context, proposalID int64) (*entity.Claim, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM motor_claims
		WHERE proposal_id = $1 AND claim_status = ANY($2)
		ORDER BY id
		LIMIT 1`, claimColumns)

	row := r.db.Executor(ctx).QueryRowContext(ctx, query, proposalID, pq.Array(entity.InFlightClaimStatuses))
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find in-flight claim", zap.Error(err), zap.Int64("proposal_id", proposalID))
		return nil, fmt.Errorf("failed to find in-flight claim: %w", err)
	}
	return claim, nil
}

// SetStatus moves the claim status and bumps updated_at
func (r *ClaimRepository) SetStatus(ctx context.Context, id int64, status string, now time.Time) error {
	query := `UPDATE motor_claims SET claim_status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, now, id)
	if err != nil {
		r.logger.Error("Failed to set claim status", zap.Error(err), zap.Int64("claim_id", id))
		return fmt.Errorf("failed to set claim status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("claim %d not found", id)
	}
	return nil
}

// ApplyReview writes an admin review transition
func (r *ClaimRepository) ApplyReview(ctx context.Context, id int64, upd port.ClaimReviewUpdate) error {
	requiredDocs := upd.RequiredDocs
	if requiredDocs == nil {
		requiredDocs = []string{}
	}
	docs, err := json.Marshal(requiredDocs)
	if err != nil {
		return fmt.Errorf("failed to marshal required docs: %w", err)
	}

	query := `
		UPDATE motor_claims SET
			claim_status = $1,
			required_docs = $2,
			remarks = $3,
			closed_at = $4,
			last_action_by_admin = $5,
			last_action_at = $6,
			updated_at = $6
		WHERE id = $7`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		upd.ClaimStatus,
		docs,
		upd.Remarks,
		upd.ClosedAt,
		upd.LastActionByAdmin,
		upd.LastActionAt,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to apply claim review", zap.Error(err), zap.Int64("claim_id", id))
		return fmt.Errorf("failed to apply claim review: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("claim %d not found", id)
	}
	return nil
}

// ListByUser pages through one user's claims, newest first
func (r *ClaimRepository) ListByUser(ctx context.Context, userID int64, filter port.ClaimListFilter) ([]*entity.Claim, int, error) {
	where := "user_id = $1"
	args := []interface{}{userID}
	if filter.ClaimStatus != "" {
		where += " AND claim_status = $2"
		args = append(args, filter.ClaimStatus)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM motor_claims WHERE %s", where)
	if err := r.db.Executor(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count claims", zap.Error(err), zap.Int64("user_id", userID))
		return nil, 0, fmt.Errorf("failed to count claims: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	listQuery := fmt.Sprintf(
		"SELECT %s FROM motor_claims WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		claimColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, listQuery, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err), zap.Int64("user_id", userID))
		return nil, 0, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []*entity.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate claims: %w", err)
	}

	return claims, total, nil
}

// scanClaim scans one motor_claims row, decoding the jsonb columns at the
// read boundary so callers only ever see typed fields
func scanClaim(row rowScanner) (*entity.Claim, error) {
	var claim entity.Claim
	var (
		description sql.NullString
		snapshot    []byte
		docs        []byte
		remarks     sql.NullString
		closedAt    sql.NullTime
		actionBy    sql.NullString
		actionAt    sql.NullTime
	)

	err := row.Scan(
		&claim.ID,
		&claim.UserID,
		&claim.ProposalID,
		&claim.ClaimStatus,
		&claim.FnolNo,
		&claim.IncidentDate,
		&description,
		&snapshot,
		&docs,
		&remarks,
		&closedAt,
		&actionBy,
		&actionAt,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.IncidentDescription = description.String
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &claim.ProposalSnapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proposal snapshot: %w", err)
		}
	}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &claim.RequiredDocs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal required docs: %w", err)
		}
	}
	if len(claim.RequiredDocs) == 0 {
		claim.RequiredDocs = nil
	}
	claim.Remarks = remarks.String
	if closedAt.Valid {
		claim.ClosedAt = &closedAt.Time
	}
	claim.LastActionByAdmin = actionBy.String
	if actionAt.Valid {
		claim.LastActionAt = &actionAt.Time
	}

	return &claim, nil
}

// Verify interface compliance
var _ port.ClaimRepository = (*ClaimRepository)(nil)
