package repository

import (
	"fmt"

	"github.com/covana/insurance-backoffice/internal/domain/entity"
)

// refundTable binds one entity family/subtype to its backing table. Every
// table in the registry carries the shared refund column block, so the refund
// repository can serve all of them with the same statements.
type refundTable struct {
	family  entity.Family
	subtype string
	name    string
}

var refundTables = []refundTable{
	{entity.FamilyMotor, "", "motor_proposals"},
	{entity.FamilyTravel, entity.TravelSubtypeSingle, "travel_single_proposals"},
	{entity.FamilyTravel, entity.TravelSubtypeAnnual, "travel_annual_proposals"},
	{entity.FamilyTravel, entity.TravelSubtypeStudent, "travel_student_proposals"},
	{entity.FamilyTravel, entity.TravelSubtypeGroup, "travel_group_proposals"},
}

// tableFor resolves an entity reference to its backing table
func tableFor(ref entity.EntityRef) (string, error) {
	for _, t := range refundTables {
		if t.family == ref.Family && t.subtype == ref.Subtype {
			return t.name, nil
		}
	}
	return "", fmt.Errorf("no refund table for entity %s", ref)
}

// tablesForFamily returns the registry entries of one family, or the whole
// registry when family is empty
func tablesForFamily(family string) []refundTable {
	if family == "" {
		return refundTables
	}
	var out []refundTable
	for _, t := range refundTables {
		if string(t.family) == family {
			out = append(out, t)
		}
	}
	return out
}
