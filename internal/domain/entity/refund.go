package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundRecord is the refund sub-record of a financial entity, read under a
// row lock before a transition and returned as the refreshed projection
// after one.
type RefundRecord struct {
	Ref                EntityRef        `json:"ref"`
	UserID             int64            `json:"user_id"`
	UserEmail          string           `json:"user_email,omitempty"`
	ReviewStatus       string           `json:"review_status"`
	PaymentStatus      string           `json:"payment_status"`
	RefundStatus       string           `json:"refund_status"`
	RefundAmount       *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundReference    string           `json:"refund_reference,omitempty"`
	RefundRemarks      string           `json:"refund_remarks,omitempty"`
	RefundEvidencePath string           `json:"refund_evidence_path,omitempty"`
	RefundEvidenceURL  string           `json:"refund_evidence_url,omitempty"`
	RefundInitiatedAt  *time.Time       `json:"refund_initiated_at,omitempty"`
	RefundProcessedAt  *time.Time       `json:"refund_processed_at,omitempty"`
	ClosedAt           *time.Time       `json:"closed_at,omitempty"`
	LastActionByAdmin  string           `json:"last_action_by_admin,omitempty"`
	LastActionAt       *time.Time       `json:"last_action_at,omitempty"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// RefundEligible reports whether the entity state permits refund transitions
func (r *RefundRecord) RefundEligible() bool {
	return r.ReviewStatus == ReviewStatusRejected && r.PaymentStatus == PaymentStatusPaid
}

// RefundPatch carries the optional fields of a refund transition. Nil fields
// keep their previous value (partial update, not a replace).
type RefundPatch struct {
	RefundStatus    *string          `json:"refund_status,omitempty"`
	RefundAmount    *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundReference *string          `json:"refund_reference,omitempty"`
	RefundRemarks   *string          `json:"refund_remarks,omitempty"`
	EvidencePath    *string          `json:"evidence_path,omitempty"`
}

// IsEmpty reports whether the patch would change nothing
func (p *RefundPatch) IsEmpty() bool {
	return p.RefundStatus == nil &&
		p.RefundAmount == nil &&
		p.RefundReference == nil &&
		p.RefundRemarks == nil &&
		p.EvidencePath == nil
}
