package entity

// Review status constants (owned by the review workflow; read-only here)
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// Payment status constants (owned by the payment workflow; read-only here)
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// Refund status constants (owned by the transition engine)
const (
	RefundStatusNotApplicable = "not_applicable"
	RefundStatusInitiated     = "refund_initiated"
	RefundStatusProcessed     = "refund_processed"
	RefundStatusClosed        = "closed"
)

// Claim status constants
const (
	ClaimStatusPendingReview    = "pending_review"
	ClaimStatusSubmitted        = "submitted"
	ClaimStatusReuploadRequired = "reupload_required"
	ClaimStatusApproved         = "approved"
	ClaimStatusRejected         = "rejected"
	ClaimStatusClosed           = "closed"
)

// Policy status constants on the source proposal
const (
	PolicyStatusNotIssued = "not_issued"
	PolicyStatusIssued    = "issued"
)

// ValidRefundStatuses lists the values applyRefundTransition accepts
var ValidRefundStatuses = []string{
	RefundStatusNotApplicable,
	RefundStatusInitiated,
	RefundStatusProcessed,
	RefundStatusClosed,
}

// InFlightClaimStatuses are the statuses that block a second claim on the
// same proposal
var InFlightClaimStatuses = []string{
	ClaimStatusPendingReview,
	ClaimStatusSubmitted,
	ClaimStatusReuploadRequired,
}

// IsValidRefundStatus reports whether s is an accepted refund status value
func IsValidRefundStatus(s string) bool {
	for _, v := range ValidRefundStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminalClaimStatus reports whether a claim can no longer move
func IsTerminalClaimStatus(s string) bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected || s == ClaimStatusClosed
}
