package entity

import "fmt"

// Family identifies a financial-entity family
type Family string

const (
	FamilyMotor  Family = "motor"
	FamilyTravel Family = "travel"
)

// Travel proposal subtype tags
const (
	TravelSubtypeSingle  = "single"
	TravelSubtypeAnnual  = "annual"
	TravelSubtypeStudent = "student"
	TravelSubtypeGroup   = "group"
)

// TravelSubtypes lists all known travel proposal subtypes
var TravelSubtypes = []string{
	TravelSubtypeSingle,
	TravelSubtypeAnnual,
	TravelSubtypeStudent,
	TravelSubtypeGroup,
}

// EntityRef identifies one financial entity across families.
// Subtype is empty for motor proposals.
type EntityRef struct {
	Family  Family `json:"family"`
	Subtype string `json:"subtype,omitempty"`
	ID      int64  `json:"id"`
}

// Validate checks the reference identifies a known family/subtype and id
func (r EntityRef) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("entity id must be positive, got %d", r.ID)
	}
	switch r.Family {
	case FamilyMotor:
		if r.Subtype != "" {
			return fmt.Errorf("motor proposals have no subtype, got %q", r.Subtype)
		}
		return nil
	case FamilyTravel:
		for _, s := range TravelSubtypes {
			if r.Subtype == s {
				return nil
			}
		}
		return fmt.Errorf("unknown travel subtype %q", r.Subtype)
	default:
		return fmt.Errorf("unknown entity family %q", r.Family)
	}
}

// String renders the reference for logs and notification payloads
func (r EntityRef) String() string {
	if r.Family == FamilyTravel {
		return fmt.Sprintf("travel/%s/%d", r.Subtype, r.ID)
	}
	return fmt.Sprintf("%s/%d", r.Family, r.ID)
}
