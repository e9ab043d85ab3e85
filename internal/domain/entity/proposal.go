package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MotorProposal is the slice of a motor proposal the claim workflow needs.
// Premium calculation and intake live in a separate subsystem; this core
// only reads issued-policy fields and ownership.
type MotorProposal struct {
	ID            int64            `json:"id"`
	UserID        int64            `json:"user_id"`
	UserEmail     string           `json:"user_email,omitempty"`
	PolicyNo      string           `json:"policy_no,omitempty"`
	PolicyStatus  string           `json:"policy_status"`
	CoverageStart *time.Time       `json:"coverage_start,omitempty"`
	CoverageEnd   *time.Time       `json:"coverage_end,omitempty"`
	VehicleRegNo  string           `json:"vehicle_reg_no,omitempty"`
	VehicleMake   string           `json:"vehicle_make,omitempty"`
	VehicleModel  string           `json:"vehicle_model,omitempty"`
	PlanName      string           `json:"plan_name,omitempty"`
	PremiumAmount *decimal.Decimal `json:"premium_amount,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PolicyIssued reports whether the proposal carries an issued policy
func (p *MotorProposal) PolicyIssued() bool {
	return p.PolicyNo != "" && p.PolicyStatus != PolicyStatusNotIssued
}

// CoversDate reports whether t lies within the policy coverage window.
// An unknown bound does not constrain the check.
func (p *MotorProposal) CoversDate(t time.Time) bool {
	if p.CoverageStart != nil && t.Before(*p.CoverageStart) {
		return false
	}
	if p.CoverageEnd != nil && t.After(*p.CoverageEnd) {
		return false
	}
	return true
}

// ProposalSnapshot is the immutable copy of proposal fields frozen into a
// claim at creation time. Later proposal edits must not leak into the claim.
type ProposalSnapshot struct {
	ProposalID    int64            `json:"proposal_id"`
	PolicyNo      string           `json:"policy_no"`
	PolicyStatus  string           `json:"policy_status"`
	CoverageStart *time.Time       `json:"coverage_start,omitempty"`
	CoverageEnd   *time.Time       `json:"coverage_end,omitempty"`
	VehicleRegNo  string           `json:"vehicle_reg_no,omitempty"`
	VehicleMake   string           `json:"vehicle_make,omitempty"`
	VehicleModel  string           `json:"vehicle_model,omitempty"`
	PlanName      string           `json:"plan_name,omitempty"`
	PremiumAmount *decimal.Decimal `json:"premium_amount,omitempty"`
	TakenAt       time.Time        `json:"taken_at"`
}

// SnapshotOf freezes the claim-relevant proposal fields
func SnapshotOf(p *MotorProposal, now time.Time) ProposalSnapshot {
	return ProposalSnapshot{
		ProposalID:    p.ID,
		PolicyNo:      p.PolicyNo,
		PolicyStatus:  p.PolicyStatus,
		CoverageStart: p.CoverageStart,
		CoverageEnd:   p.CoverageEnd,
		VehicleRegNo:  p.VehicleRegNo,
		VehicleMake:   p.VehicleMake,
		VehicleModel:  p.VehicleModel,
		PlanName:      p.PlanName,
		PremiumAmount: p.PremiumAmount,
		TakenAt:       now,
	}
}
