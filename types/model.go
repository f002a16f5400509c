package types

import (
	"fmt"
	"time"
)

// Governance status values for a registered model
const (
	StatusDraft    = "draft"
	StatusApproved = "approved"
	StatusAtRisk   = "at_risk"
	StatusBlocked  = "blocked"
	StatusDeployed = "deployed"
	StatusArchived = "archived"

	// StatusUngoverned marks a verdict produced without an active policy.
	// The stored model status is left untouched in that case.
	StatusUngoverned = "ungoverned"
)

// Deployment status values
const (
	DeploymentNone     = ""
	DeploymentDeployed = "deployed"
	DeploymentBlocked  = "blocked"
)

// Model is a registered ML model tracked by the governance engine
type Model struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Version          string    `json:"version"`
	Status           string    `json:"status"`
	DeploymentStatus string    `json:"deployment_status,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate ensures the model has required fields
func (m *Model) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("model ID cannot be empty")
	}
	if m.Name == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	return nil
}

// IsDeployed reports whether the model is currently deployed
func (m *Model) IsDeployed() bool {
	return m.DeploymentStatus == DeploymentDeployed
}
