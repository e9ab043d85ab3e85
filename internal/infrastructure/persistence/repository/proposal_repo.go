package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/infrastructure/persistence/postgres"
)

// ProposalRepository implements port.ProposalRepository.
// The claim workflow only reads proposals; intake and premium calculation
// write them from a separate subsystem.
type ProposalRepository struct {
	db     *postgres.DB
	logger *zap.Logger
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(db *postgres.DB, logger *zap.Logger) port.ProposalRepository {
	return &ProposalRepository{
		db:     db,
		logger: logger,
	}
}

// GetMotorByID retrieves a motor proposal by ID
func (r *ProposalRepository) GetMotorByID(ctx context.Context, id int64) (*entity.MotorProposal, error) {
	query := `
		SELECT id, user_id, user_email, policy_no, policy_status,
			coverage_start, coverage_end, vehicle_reg_no, vehicle_make,
			vehicle_model, plan_name, premium_amount, created_at, updated_at
		FROM motor_proposals
		WHERE id = $1`

	var p entity.MotorProposal
	var (
		userEmail     sql.NullString
		policyNo      sql.NullString
		coverageStart sql.NullTime
		coverageEnd   sql.NullTime
		regNo         sql.NullString
		vehicleMake   sql.NullString
		vehicleModel  sql.NullString
		planName      sql.NullString
		premium       decimal.NullDecimal
	)

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&userEmail,
		&policyNo,
		&p.PolicyStatus,
		&coverageStart,
		&coverageEnd,
		&regNo,
		&vehicleMake,
		&vehicleModel,
		&planName,
		&premium,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get motor proposal", zap.Error(err), zap.Int64("proposal_id", id))
		return nil, fmt.Errorf("failed to get motor proposal: %w", err)
	}

	p.UserEmail = userEmail.String
	p.PolicyNo = policyNo.String
	if coverageStart.Valid {
		p.CoverageStart = &coverageStart.Time
	}
	if coverageEnd.Valid {
		p.CoverageEnd = &coverageEnd.Time
	}
	p.VehicleRegNo = regNo.String
	p.VehicleMake = vehicleMake.String
	p.VehicleModel = vehicleModel.String
	p.PlanName = planName.String
	if premium.Valid {
		p.PremiumAmount = &premium.Decimal
	}

	return &p, nil
}

// Verify interface compliance
var _ port.ProposalRepository = (*ProposalRepository)(nil)
