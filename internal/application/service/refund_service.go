package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/covana/insurance-backoffice/internal/apperr"
	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/attachment"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventDispatcher is the slice of the dispatcher the services need:
// fire-and-forget delivery of notification intents after commit
type EventDispatcher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// RefundService runs status-gated refund transitions across entity families
type RefundService interface {
	// ApplyTransition validates and applies a refund patch under a row lock,
	// then returns the refreshed projection
	ApplyTransition(ctx context.Context, ref entity.EntityRef, adminID string, patch entity.RefundPatch) (*entity.RefundRecord, error)

	// GetDetail returns the refund projection with a resolved evidence URL
	GetDetail(ctx context.Context, ref entity.EntityRef) (*entity.RefundRecord, error)

	// ListRefundable pages through refund-relevant entities across families
	ListRefundable(ctx context.Context, filter port.RefundListFilter) ([]*entity.RefundRecord, int, error)

	// ExportStatement renders the refund statement workbook for an entity
	ExportStatement(ctx context.Context, ref entity.EntityRef) (string, error)
}

type refundServiceImpl struct {
	refundRepo port.RefundRepository
	txManager  port.TransactionManager
	dispatcher EventDispatcher
	resolver   *attachment.Resolver
	statements port.StatementWriter
	logger     Logger
}

// NewRefundService creates a new RefundService
func NewRefundService(
	refundRepo port.RefundRepository,
	txManager port.TransactionManager,
	dispatcher EventDispatcher,
	resolver *attachment.Resolver,
	statements port.StatementWriter,
	logger Logger,
) RefundService {
	return &refundServiceImpl{
		refundRepo: refundRepo,
		txManager:  txManager,
		dispatcher: dispatcher,
		resolver:   resolver,
		statements: statements,
		logger:     logger,
	}
}

// ApplyTransition applies a refund patch to one entity.
// Validation that needs no entity state runs before the lock is taken;
// state-dependent checks run under the lock, before any write.
func (s *refundServiceImpl) ApplyTransition(ctx context.Context, ref entity.EntityRef, adminID string, patch entity.RefundPatch) (*entity.RefundRecord, error) {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return nil, apperr.Unauthorized("acting admin id is required")
	}
	if err := ref.Validate(); err != nil {
		return nil, apperr.InvalidArgument("invalid entity reference: %v", err)
	}

	// Normalize and validate the patch before touching the store
	if patch.RefundStatus != nil {
		normalized, err := normalizeRefundStatus(*patch.RefundStatus)
		if err != nil {
			return nil, err
		}
		patch.RefundStatus = &normalized
	}
	if patch.RefundAmount != nil && patch.RefundAmount.IsNegative() {
		return nil, apperr.InvalidArgument("refund amount must be non-negative, got %s", patch.RefundAmount.String())
	}

	var updated *entity.RefundRecord
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Exclusive row lock; concurrent transitions on the same entity
		// serialize here
		rec, err := s.refundRepo.GetForUpdate(txCtx, ref)
		if err != nil {
			return fmt.Errorf("lock entity: %w", err)
		}
		if rec == nil {
			return apperr.NotFound("entity %s not found", ref)
		}

		if !rec.RefundEligible() {
			return apperr.PreconditionFailed("refund not available: review_status=%s payment_status=%s", rec.ReviewStatus, rec.PaymentStatus)
		}

		now := time.Now()
		upd := mergeRefundPatch(rec, patch, adminID, now)
		if err := s.refundRepo.ApplyUpdate(txCtx, ref, upd); err != nil {
			return fmt.Errorf("apply refund update: %w", err)
		}

		updated = projectUpdate(rec, upd)
		return nil
	})
	if err != nil {
		s.logger.Error("Refund transition failed", "error", err, "ref", ref.String(), "admin_id", adminID)
		return nil, err
	}

	s.logger.Info("Refund transition applied",
		"ref", ref.String(),
		"admin_id", adminID,
		"refund_status", updated.RefundStatus,
	)

	// Best-effort notification, strictly after commit
	s.dispatcher.DispatchAsync(ctx, event.NewUserEvent(
		event.TypeRefundUpdated,
		updated.UserID,
		updated.UserEmail,
		string(ref.Family),
		ref.ID,
		updated.RefundStatus,
		refundEventPayload(updated),
	))

	updated.RefundEvidenceURL = s.resolver.Resolve(updated.RefundEvidencePath)
	return updated, nil
}

// GetDetail returns the refund projection for one entity
func (s *refundServiceImpl) GetDetail(ctx context.Context, ref entity.EntityRef) (*entity.RefundRecord, error) {
	if err := ref.Validate(); err != nil {
		return nil, apperr.InvalidArgument("invalid entity reference: %v", err)
	}

	rec, err := s.refundRepo.Get(ctx, ref)
	if err != nil {
		s.logger.Error("Failed to get refund detail", "error", err, "ref", ref.String())
		return nil, fmt.Errorf("get refund detail: %w", err)
	}
	if rec == nil {
		return nil, apperr.NotFound("entity %s not found", ref)
	}

	rec.RefundEvidenceURL = s.resolver.Resolve(rec.RefundEvidencePath)
	return rec, nil
}

// ListRefundable pages through refund-relevant entities
func (s *refundServiceImpl) ListRefundable(ctx context.Context, filter port.RefundListFilter) ([]*entity.RefundRecord, int, error) {
	if filter.RefundStatus != "" {
		normalized, err := normalizeRefundStatus(filter.RefundStatus)
		if err != nil {
			return nil, 0, err
		}
		filter.RefundStatus = normalized
	}
	switch filter.Family {
	case "", string(entity.FamilyMotor), string(entity.FamilyTravel):
	default:
		return nil, 0, apperr.InvalidArgument("unknown entity family %q", filter.Family)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	records, total, err := s.refundRepo.ListRefundable(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list refundable entities", "error", err)
		return nil, 0, fmt.Errorf("list refundable: %w", err)
	}

	for _, rec := range records {
		rec.RefundEvidenceURL = s.resolver.Resolve(rec.RefundEvidencePath)
	}
	return records, total, nil
}

// ExportStatement renders the refund statement workbook for one entity
func (s *refundServiceImpl) ExportStatement(ctx context.Context, ref entity.EntityRef) (string, error) {
	rec, err := s.GetDetail(ctx, ref)
	if err != nil {
		return "", err
	}

	path, err := s.statements.WriteRefundStatement(ctx, rec)
	if err != nil {
		s.logger.Error("Failed to write refund statement", "error", err, "ref", ref.String())
		return "", fmt.Errorf("write refund statement: %w", err)
	}

	s.logger.Info("Refund statement generated", "ref", ref.String(), "path", path)
	s.dispatcher.DispatchAsync(ctx, event.NewAdminEvent(
		event.TypeStatementGenerated,
		string(ref.Family),
		ref.ID,
		rec.RefundStatus,
		map[string]interface{}{"path": path},
	))
	return path, nil
}

// normalizeRefundStatus trims and lower-cases a requested status and checks
// it against the allowed values
func normalizeRefundStatus(s string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if !entity.IsValidRefundStatus(normalized) {
		return "", apperr.InvalidArgument("invalid refund status %q", s)
	}
	return normalized, nil
}

// mergeRefundPatch builds the full write block: patch fields overwrite,
// absent fields keep the locked row's values, and each milestone timestamp
// is stamped only on its first visit to the matching status.
func mergeRefundPatch(rec *entity.RefundRecord, patch entity.RefundPatch, adminID string, now time.Time) port.RefundUpdate {
	upd := port.RefundUpdate{
		RefundStatus:      rec.RefundStatus,
		RefundAmount:      rec.RefundAmount,
		RefundReference:   rec.RefundReference,
		RefundRemarks:     rec.RefundRemarks,
		EvidencePath:      rec.RefundEvidencePath,
		RefundInitiatedAt: rec.RefundInitiatedAt,
		RefundProcessedAt: rec.RefundProcessedAt,
		ClosedAt:          rec.ClosedAt,
		LastActionByAdmin: adminID,
		LastActionAt:      now,
	}

	if patch.RefundStatus != nil {
		upd.RefundStatus = *patch.RefundStatus
	}
	if patch.RefundAmount != nil {
		upd.RefundAmount = patch.RefundAmount
	}
	if patch.RefundReference != nil {
		upd.RefundReference = *patch.RefundReference
	}
	if patch.RefundRemarks != nil {
		upd.RefundRemarks = *patch.RefundRemarks
	}
	if patch.EvidencePath != nil {
		upd.EvidencePath = *patch.EvidencePath
	}

	// Write-once milestone stamps: never reset, never overwritten on
	// re-entering the same status
	switch upd.RefundStatus {
	case entity.RefundStatusInitiated:
		if upd.RefundInitiatedAt == nil {
			upd.RefundInitiatedAt = &now
		}
	case entity.RefundStatusProcessed:
		if upd.RefundProcessedAt == nil {
			upd.RefundProcessedAt = &now
		}
	case entity.RefundStatusClosed:
		if upd.ClosedAt == nil {
			upd.ClosedAt = &now
		}
	}

	return upd
}

// projectUpdate folds the committed write block back onto the locked row,
// giving the refreshed projection without a second read
func projectUpdate(rec *entity.RefundRecord, upd port.RefundUpdate) *entity.RefundRecord {
	out := *rec
	out.RefundStatus = upd.RefundStatus
	out.RefundAmount = upd.RefundAmount
	out.RefundReference = upd.RefundReference
	out.RefundRemarks = upd.RefundRemarks
	out.RefundEvidencePath = upd.EvidencePath
	out.RefundInitiatedAt = upd.RefundInitiatedAt
	out.RefundProcessedAt = upd.RefundProcessedAt
	out.ClosedAt = upd.ClosedAt
	out.LastActionByAdmin = upd.LastActionByAdmin
	out.LastActionAt = &upd.LastActionAt
	out.UpdatedAt = upd.LastActionAt
	return &out
}

func refundEventPayload(rec *entity.RefundRecord) map[string]interface{} {
	payload := map[string]interface{}{
		"refund_status": rec.RefundStatus,
	}
	if rec.RefundAmount != nil {
		payload["refund_amount"] = rec.RefundAmount.String()
	}
	if rec.RefundReference != "" {
		payload["refund_reference"] = rec.RefundReference
	}
	return payload
}
