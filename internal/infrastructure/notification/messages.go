package notification

import (
	"fmt"

	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/domain/event"
)

// renderUserMessage builds the subject and body of a user-facing message
func renderUserMessage(evt *event.Event) (string, string) {
	switch evt.Type {
	case event.TypeRefundUpdated:
		subject := fmt.Sprintf("Refund update on your %s policy", evt.Entity)
		body := refundBody(evt)
		return subject, body

	case event.TypeClaimCreated:
		fnol := evt.GetPayloadString("fnol_no")
		subject := "We received your motor claim"
		body := fmt.Sprintf("Your claim has been registered under reference %s. Our team will review it and get back to you.", fnol)
		return subject, body

	case event.TypeClaimReviewed:
		subject := "Your motor claim has been reviewed"
		body := fmt.Sprintf("Your claim is now %s.", evt.Milestone)
		if remarks := evt.GetPayloadString("remarks"); remarks != "" {
			body += " Reviewer notes: " + remarks
		}
		return subject, body

	default:
		return fmt.Sprintf("Update on your %s", evt.Entity),
			fmt.Sprintf("Status changed to %s.", evt.Milestone)
	}
}

func refundBody(evt *event.Event) string {
	var body string
	switch evt.Milestone {
	case entity.RefundStatusInitiated:
		body = "Your refund has been initiated."
	case entity.RefundStatusProcessed:
		body = "Your refund has been processed and the amount is on its way."
	case entity.RefundStatusClosed:
		body = "Your refund case has been closed."
	default:
		body = fmt.Sprintf("Your refund status changed to %s.", evt.Milestone)
	}
	if amount := evt.GetPayloadString("refund_amount"); amount != "" {
		body += fmt.Sprintf(" Amount: %s.", amount)
	}
	if ref := evt.GetPayloadString("refund_reference"); ref != "" {
		body += fmt.Sprintf(" Reference: %s.", ref)
	}
	return body
}

// renderAdminMessage builds the subject and body of an operations-chat message
func renderAdminMessage(evt *event.Event) (string, string) {
	ref := fmt.Sprintf("%s/%d", evt.Entity, evt.EntityID)
	switch evt.Type {
	case event.TypeClaimCreated:
		subject := "New motor claim"
		body := fmt.Sprintf("Claim %s submitted by user %d, reference %s.", ref, evt.UserID, evt.GetPayloadString("fnol_no"))
		return subject, body

	case event.TypeClaimReuploaded:
		subject := "Claim documents reuploaded"
		body := fmt.Sprintf("Claim %s is back in review after a document reupload.", ref)
		return subject, body

	case event.TypeStatementGenerated:
		subject := "Refund statement generated"
		body := fmt.Sprintf("Statement for %s written to %s.", ref, evt.GetPayloadString("path"))
		return subject, body

	default:
		return fmt.Sprintf("%s update", evt.Entity),
			fmt.Sprintf("%s moved to %s.", ref, evt.Milestone)
	}
}
