package domain

import "time"

// Operation names a mutation recorded in the local journal.
type Operation string

const (
	OperationCreateDeployment Operation = "create_deployment"
	OperationUpdateDeployment Operation = "update_deployment"
	OperationCreateVersion    Operation = "create_version"
	OperationStatusChange     Operation = "status_change"
)

// Outcome of a journaled operation.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeFailed Outcome = "failed"
)

// JournalEntry is one record of something this tool did to, or observed on,
// the hub.
type JournalEntry struct {
	ID                   string    `json:"id"`
	Operation            Operation `json:"operation"`
	Outcome              Outcome   `json:"outcome"`
	DeploymentTargetID   string    `json:"deploymentTargetId,omitempty"`
	DeploymentID         string    `json:"deploymentId,omitempty"`
	ApplicationID        string    `json:"applicationId,omitempty"`
	ApplicationVersionID string    `json:"applicationVersionId,omitempty"`
	PreviousVersionID    string    `json:"previousVersionId,omitempty"`
	Step                 string    `json:"step,omitempty"`
	Message              string    `json:"message,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}
