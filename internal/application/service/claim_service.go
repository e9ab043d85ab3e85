package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/covana/insurance-backoffice/internal/apperr"
	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/attachment"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/domain/event"
)

// CreateClaimInput carries a claim submission
type CreateClaimInput struct {
	UserID              int64
	ProposalID          int64
	IncidentDate        time.Time
	IncidentDescription string
	// Documents maps doc-type tags to accepted uploads
	Documents map[string]port.UploadedFile
}

// ReviewClaimInput carries an admin review decision
type ReviewClaimInput struct {
	Decision string
	// RequiredDocs declares the reupload allow-list; only meaningful when
	// Decision is reupload_required
	RequiredDocs []string
	Remarks      string
}

// ClaimService manages the motor claim lifecycle: creation with a complete
// document set, selective re-upload, and admin review transitions
type ClaimService interface {
	CreateClaim(ctx context.Context, input CreateClaimInput) (*entity.Claim, error)
	ReuploadDocuments(ctx context.Context, userID, claimID int64, documents map[string]port.UploadedFile) (*entity.Claim, error)
	ReviewClaim(ctx context.Context, adminID string, claimID int64, input ReviewClaimInput) (*entity.Claim, error)
	ListClaims(ctx context.Context, userID int64, filter port.ClaimListFilter) ([]*entity.Claim, int, error)
	GetClaimDetail(ctx context.Context, userID, claimID int64) (*entity.Claim, error)
}

type claimServiceImpl struct {
	claimRepo    port.ClaimRepository
	docRepo      port.ClaimDocumentRepository
	proposalRepo port.ProposalRepository
	txManager    port.TransactionManager
	dispatcher   EventDispatcher
	resolver     *attachment.Resolver
	logger       Logger
}

// NewClaimService creates a new ClaimService
func NewClaimService(
	claimRepo port.ClaimRepository,
	docRepo port.ClaimDocumentRepository,
	proposalRepo port.ProposalRepository,
	txManager port.TransactionManager,
	dispatcher EventDispatcher,
	resolver *attachment.Resolver,
	logger Logger,
) ClaimService {
	return &claimServiceImpl{
		claimRepo:    claimRepo,
		docRepo:      docRepo,
		proposalRepo: proposalRepo,
		txManager:    txManager,
		dispatcher:   dispatcher,
		resolver:     resolver,
		logger:       logger,
	}
}

// CreateClaim validates the submission, freezes a proposal snapshot, inserts
// the claim with its FNOL number and documents in one transaction, and fires
// the confirmation notifications after commit.
func (s *claimServiceImpl) CreateClaim(ctx context.Context, input CreateClaimInput) (*entity.Claim, error) {
	if input.UserID <= 0 {
		return nil, apperr.Unauthorized("acting user id is required")
	}
	if input.ProposalID <= 0 {
		return nil, apperr.InvalidArgument("proposal id must be positive")
	}
	if input.IncidentDate.IsZero() {
		return nil, apperr.InvalidArgument("incident date is required")
	}
	for _, tag := range entity.MandatoryClaimDocTypes {
		if _, ok := input.Documents[tag]; !ok {
			return nil, apperr.InvalidArgument("missing required document %q", tag)
		}
	}

	proposal, err := s.proposalRepo.GetMotorByID(ctx, input.ProposalID)
	if err != nil {
		s.logger.Error("Failed to load proposal", "error", err, "proposal_id", input.ProposalID)
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	if proposal == nil {
		return nil, apperr.NotFound("proposal %d not found", input.ProposalID)
	}
	if proposal.UserID != input.UserID {
		return nil, apperr.Forbidden("proposal %d does not belong to user %d", input.ProposalID, input.UserID)
	}
	if !proposal.PolicyIssued() {
		return nil, apperr.PreconditionFailed("policy not issued for proposal %d", input.ProposalID)
	}
	if !proposal.CoversDate(input.IncidentDate) {
		return nil, apperr.InvalidArgument("incident date %s outside policy coverage window", input.IncidentDate.Format("2006-01-02"))
	}

	now := time.Now()
	claim := &entity.Claim{
		UserID:              input.UserID,
		ProposalID:          input.ProposalID,
		ClaimStatus:         entity.ClaimStatusPendingReview,
		IncidentDate:        input.IncidentDate,
		IncidentDescription: input.IncidentDescription,
		ProposalSnapshot:    entity.SnapshotOf(proposal, now),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Only one in-flight claim per proposal; checked inside the
		// transaction so two simultaneous submissions cannot both pass
		existing, err := s.claimRepo.FindInFlightByProposal(txCtx, input.ProposalID)
		if err != nil {
			return fmt.Errorf("check in-flight claims: %w", err)
		}
		if existing != nil {
			return apperr.Conflict("claim %s already in flight for proposal %d", existing.FnolNo, input.ProposalID)
		}

		// Two-step insert: the FNOL number is derived from the generated id
		if err := s.claimRepo.Create(txCtx, claim); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		claim.FnolNo = entity.FnolNo(claim.ID, now.Year())
		if err := s.claimRepo.StampFnol(txCtx, claim.ID, claim.FnolNo); err != nil {
			return fmt.Errorf("stamp fnol: %w", err)
		}

		for _, tag := range sortedDocTags(input.Documents) {
			doc := &entity.ClaimDocument{
				ClaimID:   claim.ID,
				DocType:   tag,
				FilePath:  input.Documents[tag].StoredPath,
				CreatedAt: now,
			}
			if err := s.docRepo.Upsert(txCtx, doc); err != nil {
				return fmt.Errorf("save claim document %q: %w", tag, err)
			}
			claim.Documents = append(claim.Documents, doc)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create claim", "error", err, "proposal_id", input.ProposalID, "user_id", input.UserID)
		return nil, err
	}

	s.logger.Info("Claim created",
		"claim_id", claim.ID,
		"fnol_no", claim.FnolNo,
		"proposal_id", input.ProposalID,
	)

	s.dispatcher.DispatchAsync(ctx, event.NewUserEvent(
		event.TypeClaimCreated, claim.UserID, proposal.UserEmail,
		"claim", claim.ID, claim.ClaimStatus,
		map[string]interface{}{"fnol_no": claim.FnolNo},
	))
	s.dispatcher.DispatchAsync(ctx, event.NewAdminEvent(
		event.TypeClaimCreated,
		"claim", claim.ID, claim.ClaimStatus,
		map[string]interface{}{"fnol_no": claim.FnolNo, "proposal_id": claim.ProposalID},
	))

	s.resolveDocURLs(claim)
	return claim, nil
}

// ReuploadDocuments replaces document slots on a claim that asked for them
// and moves the claim back to review.
func (s *claimServiceImpl) ReuploadDocuments(ctx context.Context, userID, claimID int64, documents map[string]port.UploadedFile) (*entity.Claim, error) {
	if userID <= 0 {
		return nil, apperr.Unauthorized("acting user id is required")
	}
	if claimID <= 0 {
		return nil, apperr.InvalidArgument("claim id must be positive")
	}
	if len(documents) == 0 {
		return nil, apperr.InvalidArgument("no documents supplied")
	}

	var claim *entity.Claim
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		claim, err = s.claimRepo.GetForUpdate(txCtx, claimID)
		if err != nil {
			return fmt.Errorf("lock claim: %w", err)
		}
		if claim == nil {
			return apperr.NotFound("claim %d not found", claimID)
		}
		if claim.UserID != userID {
			return apperr.Forbidden("claim %d does not belong to user %d", claimID, userID)
		}
		if claim.ClaimStatus != entity.ClaimStatusReuploadRequired {
			return apperr.PreconditionFailed("reupload not requested for claim %d", claimID)
		}
		// Supplied tags must sit inside the declared allow-list; an empty
		// list accepts anything
		for _, tag := range sortedDocTags(documents) {
			if !claim.AllowsDocType(tag) {
				return apperr.InvalidArgument("document type %q not requested", tag)
			}
		}

		now := time.Now()
		for _, tag := range sortedDocTags(documents) {
			doc := &entity.ClaimDocument{
				ClaimID:   claimID,
				DocType:   tag,
				FilePath:  documents[tag].StoredPath,
				CreatedAt: now,
			}
			if err := s.docRepo.Upsert(txCtx, doc); err != nil {
				return fmt.Errorf("save claim document %q: %w", tag, err)
			}
		}
		if err := s.claimRepo.SetStatus(txCtx, claimID, entity.ClaimStatusPendingReview, now); err != nil {
			return fmt.Errorf("set claim status: %w", err)
		}
		claim.ClaimStatus = entity.ClaimStatusPendingReview
		claim.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to reupload claim documents", "error", err, "claim_id", claimID, "user_id", userID)
		return nil, err
	}

	s.logger.Info("Claim documents reuploaded", "claim_id", claimID, "count", len(documents))
	s.dispatcher.DispatchAsync(ctx, event.NewAdminEvent(
		event.TypeClaimReuploaded,
		"claim", claimID, claim.ClaimStatus,
		map[string]interface{}{"fnol_no": claim.FnolNo, "doc_count": len(documents)},
	))

	return s.loadClaimWithDocuments(ctx, claim)
}

// ReviewClaim applies an admin decision to a claim under the row lock
func (s *claimServiceImpl) ReviewClaim(ctx context.Context, adminID string, claimID int64, input ReviewClaimInput) (*entity.Claim, error) {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return nil, apperr.Unauthorized("acting admin id is required")
	}
	if claimID <= 0 {
		return nil, apperr.InvalidArgument("claim id must be positive")
	}

	decision := strings.ToLower(strings.TrimSpace(input.Decision))
	switch decision {
	case entity.ClaimStatusApproved, entity.ClaimStatusRejected, entity.ClaimStatusClosed, entity.ClaimStatusReuploadRequired:
	default:
		return nil, apperr.InvalidArgument("invalid claim decision %q", input.Decision)
	}
	requiredDocs := input.RequiredDocs
	if decision != entity.ClaimStatusReuploadRequired {
		requiredDocs = nil
	}
	for _, tag := range requiredDocs {
		if !knownDocType(tag) {
			return nil, apperr.InvalidArgument("unknown document type %q in required docs", tag)
		}
	}

	var claim *entity.Claim
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		claim, err = s.claimRepo.GetForUpdate(txCtx, claimID)
		if err != nil {
			return fmt.Errorf("lock claim: %w", err)
		}
		if claim == nil {
			return apperr.NotFound("claim %d not found", claimID)
		}
		if entity.IsTerminalClaimStatus(claim.ClaimStatus) {
			return apperr.PreconditionFailed("claim %d already %s", claimID, claim.ClaimStatus)
		}

		now := time.Now()
		upd := port.ClaimReviewUpdate{
			ClaimStatus:       decision,
			RequiredDocs:      requiredDocs,
			Remarks:           input.Remarks,
			ClosedAt:          claim.ClosedAt,
			LastActionByAdmin: adminID,
			LastActionAt:      now,
		}
		// closed_at is write-once, same as the refund milestone stamps
		if entity.IsTerminalClaimStatus(decision) && upd.ClosedAt == nil {
			upd.ClosedAt = &now
		}
		if err := s.claimRepo.ApplyReview(txCtx, claimID, upd); err != nil {
			return fmt.Errorf("apply claim review: %w", err)
		}

		claim.ClaimStatus = decision
		claim.RequiredDocs = requiredDocs
		claim.Remarks = input.Remarks
		claim.ClosedAt = upd.ClosedAt
		claim.LastActionByAdmin = adminID
		claim.LastActionAt = &now
		claim.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to review claim", "error", err, "claim_id", claimID, "admin_id", adminID)
		return nil, err
	}

	s.logger.Info("Claim reviewed", "claim_id", claimID, "decision", decision, "admin_id", adminID)
	s.dispatcher.DispatchAsync(ctx, event.NewUserEvent(
		event.TypeClaimReviewed, claim.UserID, "",
		"claim", claimID, decision,
		map[string]interface{}{"fnol_no": claim.FnolNo, "required_docs": claim.RequiredDocs},
	))

	return s.loadClaimWithDocuments(ctx, claim)
}

// ListClaims pages through a user's claims
func (s *claimServiceImpl) ListClaims(ctx context.Context, userID int64, filter port.ClaimListFilter) ([]*entity.Claim, int, error) {
	if userID <= 0 {
		return nil, 0, apperr.Unauthorized("acting user id is required")
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

	claims, total, err := s.claimRepo.ListByUser(ctx, userID, filter)
	if err != nil {
		s.logger.Error("Failed to list claims", "error", err, "user_id", userID)
		return nil, 0, fmt.Errorf("list claims: %w", err)
	}
	return claims, total, nil
}

// GetClaimDetail returns one claim with its documents and resolved URLs
func (s *claimServiceImpl) GetClaimDetail(ctx context.Context, userID, claimID int64) (*entity.Claim, error) {
	if userID <= 0 {
		return nil, apperr.Unauthorized("acting user id is required")
	}

	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		s.logger.Error("Failed to get claim", "error", err, "claim_id", claimID)
		return nil, fmt.Errorf("get claim: %w", err)
	}
	if claim == nil {
		return nil, apperr.NotFound("claim %d not found", claimID)
	}
	if claim.UserID != userID {
		return nil, apperr.Forbidden("claim %d does not belong to user %d", claimID, userID)
	}

	return s.loadClaimWithDocuments(ctx, claim)
}

// loadClaimWithDocuments attaches the document set and resolves file URLs
func (s *claimServiceImpl) loadClaimWithDocuments(ctx context.Context, claim *entity.Claim) (*entity.Claim, error) {
	docs, err := s.docRepo.GetByClaimID(ctx, claim.ID)
	if err != nil {
		s.logger.Error("Failed to load claim documents", "error", err, "claim_id", claim.ID)
		return nil, fmt.Errorf("load claim documents: %w", err)
	}
	claim.Documents = docs
	s.resolveDocURLs(claim)
	return claim, nil
}

func (s *claimServiceImpl) resolveDocURLs(claim *entity.Claim) {
	for _, doc := range claim.Documents {
		doc.FileURL = s.resolver.Resolve(doc.FilePath)
	}
}

// sortedDocTags gives a stable iteration order over a document map
func sortedDocTags(documents map[string]port.UploadedFile) []string {
	tags := make([]string, 0, len(documents))
	for tag := range documents {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func knownDocType(tag string) bool {
	if tag == entity.DocTypePoliceReport {
		return true
	}
	for _, t := range entity.MandatoryClaimDocTypes {
		if tag == t {
			return true
		}
	}
	return false
}
