package event

// Type identifies the type of notification event
type Type string

const (
	TypeRefundUpdated      Type = "refund.updated"
	TypeClaimCreated       Type = "claim.created"
	TypeClaimReuploaded    Type = "claim.documents_reuploaded"
	TypeClaimReviewed      Type = "claim.reviewed"
	TypeStatementGenerated Type = "statement.generated"
)

// Audience selects the notification channel for an event
type Audience string

const (
	AudienceUser  Audience = "user"
	AudienceAdmin Audience = "admin"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRefundUpdated,
		TypeClaimCreated,
		TypeClaimReuploaded,
		TypeClaimReviewed,
		TypeStatementGenerated:
		return true
	default:
		return false
	}
}
