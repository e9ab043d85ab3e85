package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covana/insurance-backoffice/internal/domain/entity"
)

// RefundUpdate is the full refund column block written by a transition.
// The service merges the caller's patch over the locked row before building
// this; the repository writes it verbatim.
type RefundUpdate struct {
	RefundStatus      string
	RefundAmount      *decimal.Decimal
	RefundReference   string
	RefundRemarks     string
	EvidencePath      string
	RefundInitiatedAt *time.Time
	RefundProcessedAt *time.Time
	ClosedAt          *time.Time
	LastActionByAdmin string
	LastActionAt      time.Time
}

// RefundListFilter narrows listRefundable results
type RefundListFilter struct {
	RefundStatus string
	Family       string
	Page         int
	Limit        int
}

// RefundRepository persists the refund sub-record across entity families.
// GetForUpdate must run inside a transaction; it takes an exclusive row lock
// that is held until the surrounding transaction commits or rolls back.
type RefundRepository interface {
	Get(ctx context.Context, ref entity.EntityRef) (*entity.RefundRecord, error)
	GetForUpdate(ctx context.Context, ref entity.EntityRef) (*entity.RefundRecord, error)
	ApplyUpdate(ctx context.Context, ref entity.EntityRef, upd RefundUpdate) error
	ListRefundable(ctx context.Context, filter RefundListFilter) ([]*entity.RefundRecord, int, error)
}

// ClaimListFilter narrows claim listings
type ClaimListFilter struct {
	ClaimStatus string
	Page        int
	Limit       int
}

// ClaimReviewUpdate is the write block of an admin claim review transition
type ClaimReviewUpdate struct {
	ClaimStatus       string
	RequiredDocs      []string
	Remarks           string
	ClosedAt          *time.Time
	LastActionByAdmin string
	LastActionAt      time.Time
}

// ClaimRepository defines persistence operations for Claim
type ClaimRepository interface {
	// Create inserts the claim row and sets claim.ID from the store
	Create(ctx context.Context, claim *entity.Claim) error

	// StampFnol persists the derived FNOL number; called once, in the same
	// transaction as Create
	StampFnol(ctx context.Context, id int64, fnolNo string) error

	GetByID(ctx context.Context, id int64) (*entity.Claim, error)

	// GetForUpdate takes an exclusive lock on the claim row; must run inside
	// a transaction
	GetForUpdate(ctx context.Context, id int64) (*entity.Claim, error)

	// FindInFlightByProposal returns the claim blocking a new submission,
	// or nil when none exists
	FindInFlightByProposal(ctx context.Context, proposalID int64) (*entity.Claim, error)

	// SetStatus moves the claim status and bumps updated_at
	SetStatus(ctx context.Context, id int64, status string, now time.Time) error

	// ApplyReview writes an admin review transition
	ApplyReview(ctx context.Context, id int64, upd ClaimReviewUpdate) error

	ListByUser(ctx context.Context, userID int64, filter ClaimListFilter) ([]*entity.Claim, int, error)
}

// ClaimDocumentRepository defines persistence operations for ClaimDocument.
// One slot per (claim, docType); Upsert replaces path and timestamp when the
// slot already holds a document.
type ClaimDocumentRepository interface {
	Upsert(ctx context.Context, doc *entity.ClaimDocument) error
	GetByClaimID(ctx context.Context, claimID int64) ([]*entity.ClaimDocument, error)
}

// ProposalRepository reads source proposals for the claim workflow
type ProposalRepository interface {
	GetMotorByID(ctx context.Context, id int64) (*entity.MotorProposal, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
