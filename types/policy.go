package types

import (
	"fmt"
	"time"
)

// Policy is a named governance rule set. At most one policy is active at
// a time; activation deactivates all others in the same transaction.
type Policy struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	MaxAllowedMRI            float64   `json:"max_allowed_mri"`
	MaxAllowedDisparity      float64   `json:"max_allowed_disparity"`
	ApprovalRequiredAboveMRI float64   `json:"approval_required_above_mri"`
	Active                   bool      `json:"active"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// Validate ensures thresholds are in range and mutually consistent
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy name cannot be empty")
	}
	if p.MaxAllowedMRI < 0 || p.MaxAllowedMRI > 100 {
		return fmt.Errorf("max_allowed_mri must be in [0,100], got %v", p.MaxAllowedMRI)
	}
	if p.MaxAllowedDisparity < 0 || p.MaxAllowedDisparity > 1 {
		return fmt.Errorf("max_allowed_disparity must be in [0,1], got %v", p.MaxAllowedDisparity)
	}
	if p.ApprovalRequiredAboveMRI < 0 || p.ApprovalRequiredAboveMRI > 100 {
		return fmt.Errorf("approval_required_above_mri must be in [0,100], got %v", p.ApprovalRequiredAboveMRI)
	}
	if p.ApprovalRequiredAboveMRI > p.MaxAllowedMRI {
		return fmt.Errorf("approval_required_above_mri %v exceeds max_allowed_mri %v",
			p.ApprovalRequiredAboveMRI, p.MaxAllowedMRI)
	}
	return nil
}
