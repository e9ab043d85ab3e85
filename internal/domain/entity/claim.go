package entity

import (
	"fmt"
	"time"
)

// Claim document type tags
const (
	DocTypeVehicleFront   = "vehicle_front"
	DocTypeVehicleBack    = "vehicle_back"
	DocTypeVehicleLeft    = "vehicle_left"
	DocTypeVehicleRight   = "vehicle_right"
	DocTypeVehicleDamaged = "vehicle_damaged"
	DocTypePoliceReport   = "police_report"
)

// MandatoryClaimDocTypes must all be present when a claim is created
var MandatoryClaimDocTypes = []string{
	DocTypeVehicleFront,
	DocTypeVehicleBack,
	DocTypeVehicleLeft,
	DocTypeVehicleRight,
	DocTypeVehicleDamaged,
}

// Claim represents a motor claim (FNOL)
type Claim struct {
	ID                  int64            `json:"id"`
	UserID              int64            `json:"user_id"`
	ProposalID          int64            `json:"proposal_id"`
	ClaimStatus         string           `json:"claim_status"`
	FnolNo              string           `json:"fnol_no"`
	IncidentDate        time.Time        `json:"incident_date"`
	IncidentDescription string           `json:"incident_description,omitempty"`
	ProposalSnapshot    ProposalSnapshot `json:"proposal_snapshot"`
	RequiredDocs        []string         `json:"required_docs,omitempty"`
	Remarks             string           `json:"remarks,omitempty"`
	ClosedAt            *time.Time       `json:"closed_at,omitempty"`
	LastActionByAdmin   string           `json:"last_action_by_admin,omitempty"`
	LastActionAt        *time.Time       `json:"last_action_at,omitempty"`
	Documents           []*ClaimDocument `json:"documents,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// AllowsDocType reports whether the reupload allow-list accepts the tag.
// An empty list means no restriction.
func (c *Claim) AllowsDocType(docType string) bool {
	if len(c.RequiredDocs) == 0 {
		return true
	}
	for _, t := range c.RequiredDocs {
		if t == docType {
			return true
		}
	}
	return false
}

// ClaimDocument is one document slot on a claim, one per doc type,
// last write wins
type ClaimDocument struct {
	ID        int64     `json:"id"`
	ClaimID   int64     `json:"claim_id"`
	DocType   string    `json:"doc_type"`
	FilePath  string    `json:"file_path"`
	FileURL   string    `json:"file_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FnolNo derives the First Notice of Loss number for a claim.
// Deterministic over claim id and creation year, immutable after stamping.
func FnolNo(claimID int64, year int) string {
	return fmt.Sprintf("FNOL-MOT-%d-%06d", year, claimID)
}
